package gateway

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/MosinFAM/feedsync/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	perrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// PostgresGateway - шлюз поверх реляционных таблиц бэкенда
type PostgresGateway struct {
	DB *sql.DB
}

// NewPostgresGateway создаёт шлюз поверх готового подключения
func NewPostgresGateway(db *sql.DB) *PostgresGateway {
	return &PostgresGateway{DB: db}
}

const postColumns = `p.id, p.owner_id, p.media_kind, p.media_url, p.caption,
	p.like_count, p.comment_count, p.created_at,
	COALESCE(pr.display_name, ''), COALESCE(pr.avatar_url, ''), COALESCE(pr.role, '')`

// FetchPostsPage возвращает страницу постов строго старее before (nil - самые свежие).
// Порядок: created_at по убыванию, при равенстве - id по убыванию.
func (g *PostgresGateway) FetchPostsPage(ctx context.Context, before *time.Time, limit int) ([]models.Post, error) {
	const op = "gateway.FetchPostsPage"
	var (
		rows *sql.Rows
		err  error
	)
	if before == nil {
		rows, err = g.DB.QueryContext(ctx, `SELECT `+postColumns+`
			FROM posts p LEFT JOIN profiles pr ON pr.user_id = p.owner_id
			ORDER BY p.created_at DESC, p.id DESC LIMIT $1`, limit)
	} else {
		rows, err = g.DB.QueryContext(ctx, `SELECT `+postColumns+`
			FROM posts p LEFT JOIN profiles pr ON pr.user_id = p.owner_id
			WHERE p.created_at < $1
			ORDER BY p.created_at DESC, p.id DESC LIMIT $2`, *before, limit)
	}
	if err != nil {
		logrus.Errorf("Error fetching posts page: %v", err)
		return nil, pgError(op, err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.MediaKind, &p.MediaURL, &p.Caption,
			&p.LikeCount, &p.CommentCount, &p.CreatedAt,
			&p.OwnerName, &p.OwnerAvatar, &p.OwnerRole); err != nil {
			logrus.Errorf("Error scanning post row: %v", err)
			return nil, pgError(op, err)
		}
		posts = append(posts, p)
	}
	return posts, pgError(op, rows.Err())
}

// FetchLikedPostIDs - пакетная проверка лайков пользователя на наборе постов
func (g *PostgresGateway) FetchLikedPostIDs(ctx context.Context, userID string, postIDs []string) (map[string]struct{}, error) {
	const op = "gateway.FetchLikedPostIDs"
	return g.fetchIDSet(ctx, op,
		`SELECT post_id FROM post_likes WHERE user_id = $1 AND post_id = ANY($2)`,
		userID, pq.Array(postIDs))
}

// FetchFollowedIDs возвращает всех, на кого подписан пользователь
func (g *PostgresGateway) FetchFollowedIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	const op = "gateway.FetchFollowedIDs"
	rows, err := g.DB.QueryContext(ctx, `SELECT followed_id FROM follows WHERE follower_id = $1`, userID)
	if err != nil {
		return nil, pgError(op, err)
	}
	defer rows.Close()
	return scanIDSet(op, rows)
}

// CreateLike создает связь лайка; дубликат приходит как conflict
func (g *PostgresGateway) CreateLike(ctx context.Context, postID, userID string) error {
	const op = "gateway.CreateLike"
	_, err := g.DB.ExecContext(ctx,
		`INSERT INTO post_likes (post_id, user_id, created_at) VALUES ($1, $2, $3)`,
		postID, userID, time.Now())
	return pgError(op, err)
}

// DeleteLike удаляет связь лайка; отсутствие связи - conflict
func (g *PostgresGateway) DeleteLike(ctx context.Context, postID, userID string) error {
	const op = "gateway.DeleteLike"
	res, err := g.DB.ExecContext(ctx,
		`DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`, postID, userID)
	if err != nil {
		return pgError(op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return E(op, KindConflict, errors.New("like is already absent"))
	}
	return nil
}

// CreateFollow создает подписку; дубликат приходит как conflict
func (g *PostgresGateway) CreateFollow(ctx context.Context, followerID, followedID string) error {
	const op = "gateway.CreateFollow"
	_, err := g.DB.ExecContext(ctx,
		`INSERT INTO follows (follower_id, followed_id, created_at) VALUES ($1, $2, $3)`,
		followerID, followedID, time.Now())
	return pgError(op, err)
}

// DeleteFollow удаляет подписку; отсутствие связи - conflict
func (g *PostgresGateway) DeleteFollow(ctx context.Context, followerID, followedID string) error {
	const op = "gateway.DeleteFollow"
	res, err := g.DB.ExecContext(ctx,
		`DELETE FROM follows WHERE follower_id = $1 AND followed_id = $2`, followerID, followedID)
	if err != nil {
		return pgError(op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return E(op, KindConflict, errors.New("follow is already absent"))
	}
	return nil
}

// IncrementPostCounter увеличивает счётчик поста на единицу
func (g *PostgresGateway) IncrementPostCounter(ctx context.Context, postID, field string) error {
	const op = "gateway.IncrementPostCounter"
	return g.adjustCounter(ctx, op, postID, field, `+ 1`)
}

// DecrementPostCounter уменьшает счётчик поста, не опуская ниже нуля
func (g *PostgresGateway) DecrementPostCounter(ctx context.Context, postID, field string) error {
	const op = "gateway.DecrementPostCounter"
	return g.adjustCounter(ctx, op, postID, field, `- 1`)
}

func (g *PostgresGateway) adjustCounter(ctx context.Context, op, postID, field, delta string) error {
	column, ok := counterColumn(field)
	if !ok {
		return E(op, KindValidation, errors.New("unknown counter field: "+field))
	}
	res, err := g.DB.ExecContext(ctx,
		`UPDATE posts SET `+column+` = GREATEST(`+column+` `+delta+`, 0) WHERE id = $1`, postID)
	if err != nil {
		return pgError(op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return E(op, KindNotFound, errors.New("post not found"))
	}
	return nil
}

// FetchComments возвращает комментарии поста, свежие первыми
func (g *PostgresGateway) FetchComments(ctx context.Context, postID string, limit int) ([]models.Comment, error) {
	const op = "gateway.FetchComments"
	rows, err := g.DB.QueryContext(ctx,
		`SELECT id, post_id, author_id, content, like_count, created_at, author_name, author_avatar
		 FROM comments WHERE post_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2`, postID, limit)
	if err != nil {
		logrus.Errorf("Error fetching comments for post %s: %v", postID, err)
		return nil, pgError(op, err)
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Content, &c.LikeCount,
			&c.CreatedAt, &c.AuthorName, &c.AuthorAvatar); err != nil {
			return nil, pgError(op, err)
		}
		comments = append(comments, c)
	}
	return comments, pgError(op, rows.Err())
}

// FetchReplies возвращает ответы для набора комментариев одним запросом,
// внутри комментария - старые первыми
func (g *PostgresGateway) FetchReplies(ctx context.Context, commentIDs []string) (map[string][]models.Reply, error) {
	const op = "gateway.FetchReplies"
	rows, err := g.DB.QueryContext(ctx,
		`SELECT id, comment_id, post_id, author_id, content, like_count, created_at, author_name, author_avatar
		 FROM replies WHERE comment_id = ANY($1)
		 ORDER BY created_at ASC, id ASC`, pq.Array(commentIDs))
	if err != nil {
		logrus.Errorf("Error fetching replies: %v", err)
		return nil, pgError(op, err)
	}
	defer rows.Close()

	replies := make(map[string][]models.Reply)
	for rows.Next() {
		var r models.Reply
		if err := rows.Scan(&r.ID, &r.CommentID, &r.PostID, &r.AuthorID, &r.Content,
			&r.LikeCount, &r.CreatedAt, &r.AuthorName, &r.AuthorAvatar); err != nil {
			return nil, pgError(op, err)
		}
		replies[r.CommentID] = append(replies[r.CommentID], r)
	}
	return replies, pgError(op, rows.Err())
}

// FetchLikedCommentIDs - пакетная проверка лайков на комментариях
func (g *PostgresGateway) FetchLikedCommentIDs(ctx context.Context, userID string, commentIDs []string) (map[string]struct{}, error) {
	const op = "gateway.FetchLikedCommentIDs"
	return g.fetchIDSet(ctx, op,
		`SELECT comment_id FROM comment_likes WHERE user_id = $1 AND comment_id = ANY($2)`,
		userID, pq.Array(commentIDs))
}

// FetchLikedReplyIDs - пакетная проверка лайков на ответах
func (g *PostgresGateway) FetchLikedReplyIDs(ctx context.Context, userID string, replyIDs []string) (map[string]struct{}, error) {
	const op = "gateway.FetchLikedReplyIDs"
	return g.fetchIDSet(ctx, op,
		`SELECT reply_id FROM reply_likes WHERE user_id = $1 AND reply_id = ANY($2)`,
		userID, pq.Array(replyIDs))
}

// CreateComment сохраняет комментарий и возвращает его с серверными полями
func (g *PostgresGateway) CreateComment(ctx context.Context, comment models.Comment) (*models.Comment, error) {
	const op = "gateway.CreateComment"
	comment.ID = uuid.New().String()
	comment.CreatedAt = time.Now()
	logrus.Infof("Adding comment %s to post %s", comment.ID, comment.PostID)
	_, err := g.DB.ExecContext(ctx,
		`INSERT INTO comments (id, post_id, author_id, content, like_count, created_at, author_name, author_avatar)
		 VALUES ($1, $2, $3, $4, 0, $5, $6, $7)`,
		comment.ID, comment.PostID, comment.AuthorID, comment.Content,
		comment.CreatedAt, comment.AuthorName, comment.AuthorAvatar)
	if err != nil {
		logrus.Errorf("DB insert error: %v", err)
		return nil, pgError(op, err)
	}
	return &comment, nil
}

// CreateReply сохраняет ответ и возвращает его с серверными полями
func (g *PostgresGateway) CreateReply(ctx context.Context, reply models.Reply) (*models.Reply, error) {
	const op = "gateway.CreateReply"
	reply.ID = uuid.New().String()
	reply.CreatedAt = time.Now()
	logrus.Infof("Adding reply %s to comment %s", reply.ID, reply.CommentID)
	_, err := g.DB.ExecContext(ctx,
		`INSERT INTO replies (id, comment_id, post_id, author_id, content, like_count, created_at, author_name, author_avatar)
		 VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8)`,
		reply.ID, reply.CommentID, reply.PostID, reply.AuthorID, reply.Content,
		reply.CreatedAt, reply.AuthorName, reply.AuthorAvatar)
	if err != nil {
		logrus.Errorf("DB insert error: %v", err)
		return nil, pgError(op, err)
	}
	return &reply, nil
}

// DeleteComment удаляет комментарий, если его автор - authorID
func (g *PostgresGateway) DeleteComment(ctx context.Context, commentID, authorID string) error {
	const op = "gateway.DeleteComment"
	return g.deleteOwned(ctx, op, `comments`, `author_id`, commentID, authorID)
}

// CreateCommentLike создает лайк комментария; дубликат - conflict
func (g *PostgresGateway) CreateCommentLike(ctx context.Context, commentID, userID string) error {
	const op = "gateway.CreateCommentLike"
	_, err := g.DB.ExecContext(ctx,
		`INSERT INTO comment_likes (comment_id, user_id, created_at) VALUES ($1, $2, $3)`,
		commentID, userID, time.Now())
	return pgError(op, err)
}

// DeleteCommentLike удаляет лайк комментария; отсутствие - conflict
func (g *PostgresGateway) DeleteCommentLike(ctx context.Context, commentID, userID string) error {
	const op = "gateway.DeleteCommentLike"
	res, err := g.DB.ExecContext(ctx,
		`DELETE FROM comment_likes WHERE comment_id = $1 AND user_id = $2`, commentID, userID)
	if err != nil {
		return pgError(op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return E(op, KindConflict, errors.New("comment like is already absent"))
	}
	return nil
}

// CreateReplyLike создает лайк ответа; дубликат - conflict
func (g *PostgresGateway) CreateReplyLike(ctx context.Context, replyID, userID string) error {
	const op = "gateway.CreateReplyLike"
	_, err := g.DB.ExecContext(ctx,
		`INSERT INTO reply_likes (reply_id, user_id, created_at) VALUES ($1, $2, $3)`,
		replyID, userID, time.Now())
	return pgError(op, err)
}

// DeleteReplyLike удаляет лайк ответа; отсутствие - conflict
func (g *PostgresGateway) DeleteReplyLike(ctx context.Context, replyID, userID string) error {
	const op = "gateway.DeleteReplyLike"
	res, err := g.DB.ExecContext(ctx,
		`DELETE FROM reply_likes WHERE reply_id = $1 AND user_id = $2`, replyID, userID)
	if err != nil {
		return pgError(op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return E(op, KindConflict, errors.New("reply like is already absent"))
	}
	return nil
}

// DeletePost удаляет пост, если его владелец - ownerID
func (g *PostgresGateway) DeletePost(ctx context.Context, postID, ownerID string) error {
	const op = "gateway.DeletePost"
	return g.deleteOwned(ctx, op, `posts`, `owner_id`, postID, ownerID)
}

// FetchProfile возвращает профиль пользователя
func (g *PostgresGateway) FetchProfile(ctx context.Context, userID string) (*models.Profile, error) {
	const op = "gateway.FetchProfile"
	var p models.Profile
	err := g.DB.QueryRowContext(ctx,
		`SELECT user_id, display_name, avatar_url, role FROM profiles WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.DisplayName, &p.AvatarURL, &p.Role)
	if err != nil {
		return nil, pgError(op, err)
	}
	return &p, nil
}

// CreateReport сохраняет жалобу и возвращает её ID
func (g *PostgresGateway) CreateReport(ctx context.Context, kind string, targetIDs []string) (string, error) {
	const op = "gateway.CreateReport"
	id := uuid.New().String()
	_, err := g.DB.ExecContext(ctx,
		`INSERT INTO reports (id, kind, target_ids, created_at) VALUES ($1, $2, $3, $4)`,
		id, kind, pq.Array(targetIDs), time.Now())
	if err != nil {
		return "", pgError(op, err)
	}
	return id, nil
}

// deleteOwned удаляет строку с проверкой владельца: ноль затронутых строк
// означает либо чужую сущность (forbidden), либо исчезнувшую (not_found)
func (g *PostgresGateway) deleteOwned(ctx context.Context, op, table, ownerColumn, id, ownerID string) error {
	res, err := g.DB.ExecContext(ctx,
		`DELETE FROM `+table+` WHERE id = $1 AND `+ownerColumn+` = $2`, id, ownerID)
	if err != nil {
		return pgError(op, err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		return nil
	}
	var exists bool
	if err := g.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists); err != nil {
		return pgError(op, err)
	}
	if exists {
		return E(op, KindForbidden, errors.New("entity belongs to another user"))
	}
	return E(op, KindNotFound, errors.New("entity not found"))
}

func (g *PostgresGateway) fetchIDSet(ctx context.Context, op, query string, args ...interface{}) (map[string]struct{}, error) {
	rows, err := g.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, pgError(op, err)
	}
	defer rows.Close()
	return scanIDSet(op, rows)
}

func scanIDSet(op string, rows *sql.Rows) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, pgError(op, err)
		}
		ids[id] = struct{}{}
	}
	return ids, pgError(op, rows.Err())
}

func counterColumn(field string) (string, bool) {
	switch field {
	case CounterLikes, CounterComments:
		return field, true
	}
	return "", false
}

// pgError переводит ошибки драйвера в типизированные ошибки шлюза
func pgError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return E(op, KindNotFound, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "unique_violation":
			return E(op, KindConflict, err)
		case "foreign_key_violation":
			return E(op, KindNotFound, err)
		}
	}
	return E(op, KindNetwork, perrors.Wrap(err, "backend call failed"))
}

package thread

import (
	"context"
	"errors"
	"sync"

	"github.com/MosinFAM/feedsync/internal/gateway"
	"github.com/MosinFAM/feedsync/internal/identity"
	"github.com/MosinFAM/feedsync/internal/models"

	"github.com/sirupsen/logrus"
)

// Максимум комментариев, загружаемых на один пост
const DefaultMaxComments = 100

// CounterSink получает локальные правки счётчика комментариев поста.
// Реализуется лентой (feed.Store).
type CounterSink interface {
	IncrementCommentCount(postID string)
	DecrementCommentCount(postID string)
}

// Store - деревья комментариев по постам, загружаются лениво при первом
// открытии и кэшируются, пока представление треда не закроют
type Store struct {
	gw          gateway.Gateway
	sess        *identity.Session
	sink        CounterSink
	maxComments int

	mu      sync.RWMutex
	threads map[string][]models.Comment
	opening map[string]bool // single-flight на пост
}

// NewStore создает пустое хранилище тредов
func NewStore(gw gateway.Gateway, sess *identity.Session, sink CounterSink, maxComments int) *Store {
	if maxComments <= 0 {
		maxComments = DefaultMaxComments
	}
	return &Store{
		gw:          gw,
		sess:        sess,
		sink:        sink,
		maxComments: maxComments,
		threads:     make(map[string][]models.Comment),
		opening:     make(map[string]bool),
	}
}

// Open загружает тред поста, если он ещё не загружен.
// Комментарии приходят свежие-первыми, ответы внутри комментария - старые-первыми;
// членство лайков добирается одной парой пакетных запросов, без N+1.
func (s *Store) Open(ctx context.Context, postID string) error {
	s.mu.Lock()
	if _, ok := s.threads[postID]; ok {
		s.mu.Unlock()
		return nil
	}
	if s.opening[postID] {
		s.mu.Unlock()
		return nil
	}
	s.opening[postID] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.opening, postID)
		s.mu.Unlock()
	}()

	logrus.Infof("Opening comment thread for post %s", postID)
	comments, err := s.gw.FetchComments(ctx, postID, s.maxComments)
	if err != nil {
		logrus.Errorf("Failed to fetch comments for post %s: %v", postID, err)
		return err
	}

	commentIDs := make([]string, 0, len(comments))
	for _, c := range comments {
		commentIDs = append(commentIDs, c.ID)
	}

	replies := map[string][]models.Reply{}
	if len(commentIDs) > 0 {
		replies, err = s.gw.FetchReplies(ctx, commentIDs)
		if err != nil {
			logrus.Errorf("Failed to fetch replies for post %s: %v", postID, err)
			return err
		}
	}

	var replyIDs []string
	for _, rs := range replies {
		for _, r := range rs {
			replyIDs = append(replyIDs, r.ID)
		}
	}

	likedComments := map[string]struct{}{}
	likedReplies := map[string]struct{}{}
	if s.sess.SignedIn() {
		if len(commentIDs) > 0 {
			likedComments, err = s.gw.FetchLikedCommentIDs(ctx, s.sess.UserID(), commentIDs)
			if err != nil {
				logrus.Errorf("Failed to fetch liked comment ids: %v", err)
				return err
			}
		}
		if len(replyIDs) > 0 {
			likedReplies, err = s.gw.FetchLikedReplyIDs(ctx, s.sess.UserID(), replyIDs)
			if err != nil {
				logrus.Errorf("Failed to fetch liked reply ids: %v", err)
				return err
			}
		}
	}

	// Тред могли закрыть, пока шла загрузка
	if err := ctx.Err(); err != nil {
		return err
	}

	for i := range comments {
		c := &comments[i]
		c.Collapsed = true // ответы спрятаны, пока тред не развернут
		_, c.Liked = likedComments[c.ID]
		c.Replies = replies[c.ID]
		for j := range c.Replies {
			_, c.Replies[j].Liked = likedReplies[c.Replies[j].ID]
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[postID] = comments
	logrus.Infof("Thread for post %s loaded: %d comments", postID, len(comments))
	return nil
}

// AddComment создает комментарий. В отличие от лайков он НЕ применяется до
// ответа сервера: нужен серверный ID и согласованный снимок автора.
func (s *Store) AddComment(ctx context.Context, postID, text string) (*models.Comment, error) {
	const op = "thread.AddComment"
	if err := s.validateText(op, text); err != nil {
		return nil, err
	}

	p := s.sess.Profile()
	created, err := s.gw.CreateComment(ctx, models.Comment{
		PostID:       postID,
		AuthorID:     s.sess.UserID(),
		Content:      text,
		AuthorName:   p.DisplayName,
		AuthorAvatar: p.AvatarURL,
	})
	if err != nil {
		logrus.Errorf("Failed to create comment on post %s: %v", postID, err)
		return nil, err
	}

	created.Collapsed = true
	s.mu.Lock()
	if t, ok := s.threads[postID]; ok {
		s.threads[postID] = append([]models.Comment{*created}, t...)
	}
	s.mu.Unlock()

	s.sink.IncrementCommentCount(postID)
	if err := s.gw.IncrementPostCounter(ctx, postID, gateway.CounterComments); err != nil {
		// Комментарий уже создан, серверный счётчик отстал
		logrus.Errorf("Comment counter increment failed for post %s: %v", postID, err)
	}
	return created, nil
}

// AddReply создает ответ под комментарием; применяется после ответа сервера
func (s *Store) AddReply(ctx context.Context, postID, commentID, text string) (*models.Reply, error) {
	const op = "thread.AddReply"
	if err := s.validateText(op, text); err != nil {
		return nil, err
	}
	if s.findComment(postID, commentID) < 0 {
		return nil, gateway.E(op, gateway.KindNotFound, errors.New("comment is not loaded"))
	}

	p := s.sess.Profile()
	created, err := s.gw.CreateReply(ctx, models.Reply{
		CommentID:    commentID,
		PostID:       postID,
		AuthorID:     s.sess.UserID(),
		Content:      text,
		AuthorName:   p.DisplayName,
		AuthorAvatar: p.AvatarURL,
	})
	if err != nil {
		logrus.Errorf("Failed to create reply on comment %s: %v", commentID, err)
		return nil, err
	}

	s.mu.Lock()
	if idx := s.findCommentLocked(postID, commentID); idx >= 0 {
		c := &s.threads[postID][idx]
		c.Replies = append(c.Replies, *created)
	}
	s.mu.Unlock()

	s.sink.IncrementCommentCount(postID)
	if err := s.gw.IncrementPostCounter(ctx, postID, gateway.CounterComments); err != nil {
		logrus.Errorf("Comment counter increment failed for post %s: %v", postID, err)
	}
	return created, nil
}

// ToggleCommentLike - оптимистичный лайк комментария, без отката при отказе
func (s *Store) ToggleCommentLike(ctx context.Context, postID, commentID string) error {
	const op = "thread.ToggleCommentLike"
	if !s.sess.SignedIn() {
		return gateway.E(op, gateway.KindValidation, errors.New("not signed in"))
	}
	s.mu.Lock()
	idx := s.findCommentLocked(postID, commentID)
	if idx < 0 {
		s.mu.Unlock()
		return gateway.E(op, gateway.KindNotFound, errors.New("comment is not loaded"))
	}
	c := &s.threads[postID][idx]
	nowLiked := !c.Liked
	c.Liked = nowLiked
	if nowLiked {
		c.LikeCount++
	} else if c.LikeCount > 0 {
		c.LikeCount--
	}
	s.mu.Unlock()

	var err error
	if nowLiked {
		err = s.gw.CreateCommentLike(ctx, commentID, s.sess.UserID())
	} else {
		err = s.gw.DeleteCommentLike(ctx, commentID, s.sess.UserID())
	}
	if err != nil {
		if gateway.IsKind(err, gateway.KindConflict) {
			return nil
		}
		logrus.Errorf("Comment like toggle failed for %s: %v", commentID, err)
		return err
	}
	return nil
}

// ToggleReplyLike - оптимистичный лайк ответа, без отката при отказе
func (s *Store) ToggleReplyLike(ctx context.Context, postID, commentID, replyID string) error {
	const op = "thread.ToggleReplyLike"
	if !s.sess.SignedIn() {
		return gateway.E(op, gateway.KindValidation, errors.New("not signed in"))
	}
	s.mu.Lock()
	idx := s.findCommentLocked(postID, commentID)
	if idx < 0 {
		s.mu.Unlock()
		return gateway.E(op, gateway.KindNotFound, errors.New("comment is not loaded"))
	}
	c := &s.threads[postID][idx]
	var r *models.Reply
	for j := range c.Replies {
		if c.Replies[j].ID == replyID {
			r = &c.Replies[j]
			break
		}
	}
	if r == nil {
		s.mu.Unlock()
		return gateway.E(op, gateway.KindNotFound, errors.New("reply is not loaded"))
	}
	nowLiked := !r.Liked
	r.Liked = nowLiked
	if nowLiked {
		r.LikeCount++
	} else if r.LikeCount > 0 {
		r.LikeCount--
	}
	s.mu.Unlock()

	var err error
	if nowLiked {
		err = s.gw.CreateReplyLike(ctx, replyID, s.sess.UserID())
	} else {
		err = s.gw.DeleteReplyLike(ctx, replyID, s.sess.UserID())
	}
	if err != nil {
		if gateway.IsKind(err, gateway.KindConflict) {
			return nil
		}
		logrus.Errorf("Reply like toggle failed for %s: %v", replyID, err)
		return err
	}
	return nil
}

// ToggleCollapse разворачивает/сворачивает ответы; чисто локальная операция
func (s *Store) ToggleCollapse(postID, commentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.findCommentLocked(postID, commentID)
	if idx < 0 {
		return false
	}
	c := &s.threads[postID][idx]
	c.Collapsed = !c.Collapsed
	return c.Collapsed
}

// DeleteComment удаляет комментарий (только автор) и уменьшает счётчик поста
func (s *Store) DeleteComment(ctx context.Context, postID, commentID string) error {
	const op = "thread.DeleteComment"
	s.mu.RLock()
	idx := s.findCommentLocked(postID, commentID)
	var authorID string
	if idx >= 0 {
		authorID = s.threads[postID][idx].AuthorID
	}
	s.mu.RUnlock()
	if idx < 0 {
		return gateway.E(op, gateway.KindNotFound, errors.New("comment is not loaded"))
	}
	if authorID != s.sess.UserID() {
		return gateway.E(op, gateway.KindForbidden, errors.New("not the comment author"))
	}

	if err := s.gw.DeleteComment(ctx, commentID, s.sess.UserID()); err != nil {
		if gateway.IsKind(err, gateway.KindNotFound) {
			// Уже удалён где-то ещё - убираем устаревшую запись
			s.removeComment(postID, commentID)
			s.sink.DecrementCommentCount(postID)
		}
		logrus.Errorf("Failed to delete comment %s: %v", commentID, err)
		return err
	}

	s.removeComment(postID, commentID)
	s.sink.DecrementCommentCount(postID)
	if err := s.gw.DecrementPostCounter(ctx, postID, gateway.CounterComments); err != nil {
		logrus.Errorf("Comment counter decrement failed for post %s: %v", postID, err)
	}
	return nil
}

// Report отправляет жалобу; локальное состояние не меняется
func (s *Store) Report(ctx context.Context, kind string, targetIDs []string) (string, error) {
	const op = "thread.Report"
	if kind == "" || len(targetIDs) == 0 {
		return "", gateway.E(op, gateway.KindValidation, errors.New("empty report"))
	}
	id, err := s.gw.CreateReport(ctx, kind, targetIDs)
	if err != nil {
		logrus.Errorf("Failed to send report: %v", err)
		return "", err
	}
	logrus.Infof("Report %s sent (%s, %d targets)", id, kind, len(targetIDs))
	return id, nil
}

// Close выбрасывает кэш треда при закрытии представления
func (s *Store) Close(postID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, postID)
}

// Loaded сообщает, загружен ли тред поста
func (s *Store) Loaded(postID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.threads[postID]
	return ok
}

// Snapshot возвращает копию треда для слоя представления
func (s *Store) Snapshot(postID string) ([]models.Comment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[postID]
	if !ok {
		return nil, false
	}
	out := make([]models.Comment, len(t))
	copy(out, t)
	for i := range out {
		rs := make([]models.Reply, len(t[i].Replies))
		copy(rs, t[i].Replies)
		out[i].Replies = rs
	}
	return out, true
}

// Comment возвращает копию комментария по ID
func (s *Store) Comment(postID, commentID string) (models.Comment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.findCommentLocked(postID, commentID)
	if idx < 0 {
		return models.Comment{}, false
	}
	return s.threads[postID][idx], true
}

func (s *Store) validateText(op, text string) error {
	if !s.sess.SignedIn() {
		return gateway.E(op, gateway.KindValidation, errors.New("not signed in"))
	}
	if text == "" {
		return gateway.E(op, gateway.KindValidation, errors.New("empty text"))
	}
	return nil
}

func (s *Store) findComment(postID, commentID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findCommentLocked(postID, commentID)
}

// findCommentLocked ищет комментарий; вызывается только под блокировкой
func (s *Store) findCommentLocked(postID, commentID string) int {
	t, ok := s.threads[postID]
	if !ok {
		return -1
	}
	for i := range t {
		if t[i].ID == commentID {
			return i
		}
	}
	return -1
}

func (s *Store) removeComment(postID, commentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.findCommentLocked(postID, commentID)
	if idx < 0 {
		return
	}
	t := s.threads[postID]
	s.threads[postID] = append(t[:idx], t[idx+1:]...)
}

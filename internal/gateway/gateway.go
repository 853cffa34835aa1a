package gateway

import (
	"context"
	"time"

	"github.com/MosinFAM/feedsync/internal/models"
)

// Поля счётчиков поста, которые разрешено менять через шлюз
const (
	CounterLikes    = "like_count"
	CounterComments = "comment_count"
)

// Gateway - интерфейс доступа к бэкенду (посты, лайки, подписки, комментарии).
// Без кэширования: каждый вызов идёт в сеть и падает с типизированной ошибкой.
type Gateway interface {
	FetchPostsPage(ctx context.Context, before *time.Time, limit int) ([]models.Post, error)
	FetchLikedPostIDs(ctx context.Context, userID string, postIDs []string) (map[string]struct{}, error)
	FetchFollowedIDs(ctx context.Context, userID string) (map[string]struct{}, error)

	CreateLike(ctx context.Context, postID, userID string) error
	DeleteLike(ctx context.Context, postID, userID string) error
	CreateFollow(ctx context.Context, followerID, followedID string) error
	DeleteFollow(ctx context.Context, followerID, followedID string) error

	// Запись счётчика идёт отдельным запросом от записи связи и может
	// отказать независимо: связь уже изменена, счётчик устарел.
	IncrementPostCounter(ctx context.Context, postID, field string) error
	DecrementPostCounter(ctx context.Context, postID, field string) error

	FetchComments(ctx context.Context, postID string, limit int) ([]models.Comment, error)
	FetchReplies(ctx context.Context, commentIDs []string) (map[string][]models.Reply, error)
	FetchLikedCommentIDs(ctx context.Context, userID string, commentIDs []string) (map[string]struct{}, error)
	FetchLikedReplyIDs(ctx context.Context, userID string, replyIDs []string) (map[string]struct{}, error)

	CreateComment(ctx context.Context, comment models.Comment) (*models.Comment, error)
	CreateReply(ctx context.Context, reply models.Reply) (*models.Reply, error)
	DeleteComment(ctx context.Context, commentID, authorID string) error

	CreateCommentLike(ctx context.Context, commentID, userID string) error
	DeleteCommentLike(ctx context.Context, commentID, userID string) error
	CreateReplyLike(ctx context.Context, replyID, userID string) error
	DeleteReplyLike(ctx context.Context, replyID, userID string) error

	DeletePost(ctx context.Context, postID, ownerID string) error
	FetchProfile(ctx context.Context, userID string) (*models.Profile, error)
	CreateReport(ctx context.Context, kind string, targetIDs []string) (string, error)
}

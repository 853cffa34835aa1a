package gateway

import (
	"context"
	"time"

	"github.com/MosinFAM/feedsync/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) FetchPostsPage(ctx context.Context, before *time.Time, limit int) ([]models.Post, error) {
	args := m.Called(ctx, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Post), args.Error(1)
}

func (m *MockGateway) FetchLikedPostIDs(ctx context.Context, userID string, postIDs []string) (map[string]struct{}, error) {
	args := m.Called(ctx, userID, postIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]struct{}), args.Error(1)
}

func (m *MockGateway) FetchFollowedIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]struct{}), args.Error(1)
}

func (m *MockGateway) CreateLike(ctx context.Context, postID, userID string) error {
	args := m.Called(ctx, postID, userID)
	return args.Error(0)
}

func (m *MockGateway) DeleteLike(ctx context.Context, postID, userID string) error {
	args := m.Called(ctx, postID, userID)
	return args.Error(0)
}

func (m *MockGateway) CreateFollow(ctx context.Context, followerID, followedID string) error {
	args := m.Called(ctx, followerID, followedID)
	return args.Error(0)
}

func (m *MockGateway) DeleteFollow(ctx context.Context, followerID, followedID string) error {
	args := m.Called(ctx, followerID, followedID)
	return args.Error(0)
}

func (m *MockGateway) IncrementPostCounter(ctx context.Context, postID, field string) error {
	args := m.Called(ctx, postID, field)
	return args.Error(0)
}

func (m *MockGateway) DecrementPostCounter(ctx context.Context, postID, field string) error {
	args := m.Called(ctx, postID, field)
	return args.Error(0)
}

func (m *MockGateway) FetchComments(ctx context.Context, postID string, limit int) ([]models.Comment, error) {
	args := m.Called(ctx, postID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Comment), args.Error(1)
}

func (m *MockGateway) FetchReplies(ctx context.Context, commentIDs []string) (map[string][]models.Reply, error) {
	args := m.Called(ctx, commentIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]models.Reply), args.Error(1)
}

func (m *MockGateway) FetchLikedCommentIDs(ctx context.Context, userID string, commentIDs []string) (map[string]struct{}, error) {
	args := m.Called(ctx, userID, commentIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]struct{}), args.Error(1)
}

func (m *MockGateway) FetchLikedReplyIDs(ctx context.Context, userID string, replyIDs []string) (map[string]struct{}, error) {
	args := m.Called(ctx, userID, replyIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]struct{}), args.Error(1)
}

func (m *MockGateway) CreateComment(ctx context.Context, comment models.Comment) (*models.Comment, error) {
	args := m.Called(ctx, comment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Comment), args.Error(1)
}

func (m *MockGateway) CreateReply(ctx context.Context, reply models.Reply) (*models.Reply, error) {
	args := m.Called(ctx, reply)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reply), args.Error(1)
}

func (m *MockGateway) DeleteComment(ctx context.Context, commentID, authorID string) error {
	args := m.Called(ctx, commentID, authorID)
	return args.Error(0)
}

func (m *MockGateway) CreateCommentLike(ctx context.Context, commentID, userID string) error {
	args := m.Called(ctx, commentID, userID)
	return args.Error(0)
}

func (m *MockGateway) DeleteCommentLike(ctx context.Context, commentID, userID string) error {
	args := m.Called(ctx, commentID, userID)
	return args.Error(0)
}

func (m *MockGateway) CreateReplyLike(ctx context.Context, replyID, userID string) error {
	args := m.Called(ctx, replyID, userID)
	return args.Error(0)
}

func (m *MockGateway) DeleteReplyLike(ctx context.Context, replyID, userID string) error {
	args := m.Called(ctx, replyID, userID)
	return args.Error(0)
}

func (m *MockGateway) DeletePost(ctx context.Context, postID, ownerID string) error {
	args := m.Called(ctx, postID, ownerID)
	return args.Error(0)
}

func (m *MockGateway) FetchProfile(ctx context.Context, userID string) (*models.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockGateway) CreateReport(ctx context.Context, kind string, targetIDs []string) (string, error) {
	args := m.Called(ctx, kind, targetIDs)
	return args.String(0), args.Error(1)
}

package thread

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MosinFAM/feedsync/internal/feed"
	"github.com/MosinFAM/feedsync/internal/gateway"
	"github.com/MosinFAM/feedsync/internal/identity"
	"github.com/MosinFAM/feedsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// Фейковый приёмник счётчика комментариев
type fakeSink struct {
	delta map[string]int
}

func newFakeSink() *fakeSink {
	return &fakeSink{delta: make(map[string]int)}
}

func (s *fakeSink) IncrementCommentCount(postID string) { s.delta[postID]++ }
func (s *fakeSink) DecrementCommentCount(postID string) { s.delta[postID]-- }

func newTestSession() *identity.Session {
	return identity.NewSession("u1", models.Profile{
		UserID:      "u1",
		DisplayName: "User One",
		AvatarURL:   "http://a/u1.png",
	})
}

func threadFixture() ([]models.Comment, map[string][]models.Reply) {
	now := time.Now()
	comments := []models.Comment{
		{ID: "c1", PostID: "p1", AuthorID: "u2", Content: "newest", CreatedAt: now},
		{ID: "c2", PostID: "p1", AuthorID: "u3", Content: "older", LikeCount: 2, CreatedAt: now.Add(-time.Minute)},
	}
	replies := map[string][]models.Reply{
		"c1": {
			{ID: "r1", CommentID: "c1", PostID: "p1", AuthorID: "u3", Content: "first", CreatedAt: now.Add(-30 * time.Second)},
			{ID: "r2", CommentID: "c1", PostID: "p1", AuthorID: "u2", Content: "second", CreatedAt: now.Add(-10 * time.Second)},
		},
	}
	return comments, replies
}

func openFixture(t *testing.T, mockGw *gateway.MockGateway, store *Store) {
	comments, replies := threadFixture()
	mockGw.On("FetchComments", mock.Anything, "p1", 100).Return(comments, nil).Once()
	mockGw.On("FetchReplies", mock.Anything, []string{"c1", "c2"}).Return(replies, nil).Once()
	mockGw.On("FetchLikedCommentIDs", mock.Anything, "u1", mock.Anything).
		Return(map[string]struct{}{"c2": {}}, nil).Once()
	mockGw.On("FetchLikedReplyIDs", mock.Anything, "u1", mock.Anything).
		Return(map[string]struct{}{}, nil).Once()
	assert.NoError(t, store.Open(context.Background(), "p1"))
}

func TestOpen_LoadsTwoLevelTree(t *testing.T) {
	mockGw := new(gateway.MockGateway)
	store := NewStore(mockGw, newTestSession(), newFakeSink(), 100)

	openFixture(t, mockGw, store)

	comments, ok := store.Snapshot("p1")
	assert.True(t, ok)
	assert.Len(t, comments, 2)
	assert.Equal(t, "c1", comments[0].ID) // свежие первыми
	assert.Len(t, comments[0].Replies, 2)
	assert.Equal(t, "r1", comments[0].Replies[0].ID) // ответы старые первыми
	assert.True(t, comments[0].Collapsed)
	assert.True(t, comments[1].Collapsed)
	assert.False(t, comments[0].Liked)
	assert.True(t, comments[1].Liked)
	mockGw.AssertExpectations(t)
}

func TestOpen_CachedUntilClosed(t *testing.T) {
	mockGw := new(gateway.MockGateway)
	store := NewStore(mockGw, newTestSession(), newFakeSink(), 100)

	openFixture(t, mockGw, store)

	// Повторное открытие идёт из кэша, без сети
	assert.NoError(t, store.Open(context.Background(), "p1"))
	mockGw.AssertNumberOfCalls(t, "FetchComments", 1)

	// После закрытия треда кэш выброшен и загрузка повторяется
	store.Close("p1")
	comments, _ := threadFixture()
	mockGw.On("FetchComments", mock.Anything, "p1", 100).Return(comments[:1], nil).Once()
	mockGw.On("FetchReplies", mock.Anything, []string{"c1"}).Return(map[string][]models.Reply{}, nil).Once()
	mockGw.On("FetchLikedCommentIDs", mock.Anything, "u1", mock.Anything).Return(map[string]struct{}{}, nil).Once()
	assert.NoError(t, store.Open(context.Background(), "p1"))
	mockGw.AssertNumberOfCalls(t, "FetchComments", 2)
}

func TestOpen_FailureLeavesNothingCached(t *testing.T) {
	mockGw := new(gateway.MockGateway)
	store := NewStore(mockGw, newTestSession(), newFakeSink(), 100)

	mockGw.On("FetchComments", mock.Anything, "p1", 100).
		Return(nil, gateway.E("gateway.FetchComments", gateway.KindNetwork, errors.New("timeout"))).Once()

	err := store.Open(context.Background(), "p1")

	assert.Error(t, err)
	assert.False(t, store.Loaded("p1"))

	// Повтор после отказа снова идёт в сеть
	comments, _ := threadFixture()
	mockGw.On("FetchComments", mock.Anything, "p1", 100).Return(comments[1:], nil).Once()
	mockGw.On("FetchReplies", mock.Anything, []string{"c2"}).Return(map[string][]models.Reply{}, nil).Once()
	mockGw.On("FetchLikedCommentIDs", mock.Anything, "u1", mock.Anything).Return(map[string]struct{}{}, nil).Once()
	assert.NoError(t, store.Open(context.Background(), "p1"))
	assert.True(t, store.Loaded("p1"))
}

func TestAddComment_AppliedOnlyAfterConfirm(t *testing.T) {
	mockGw := new(gateway.MockGateway)
	sink := newFakeSink()
	store := NewStore(mockGw, newTestSession(), sink, 100)
	openFixture(t, mockGw, store)

	created := &models.Comment{
		ID:         "c-new",
		PostID:     "p1",
		AuthorID:   "u1",
		Content:    "hello",
		AuthorName: "User One",
		CreatedAt:  time.Now(),
	}
	mockGw.On("CreateComment", mock.Anything, mock.MatchedBy(func(c models.Comment) bool {
		return c.PostID == "p1" && c.AuthorID == "u1" && c.Content == "hello" && c.AuthorName == "User One"
	})).Return(created, nil)
	mockGw.On("IncrementPostCounter", mock.Anything, "p1", gateway.CounterComments).Return(nil)

	got, err := store.AddComment(context.Background(), "p1", "hello")
	assert.NoError(t, err)
	assert.Equal(t, "c-new", got.ID)

	comments, _ := store.Snapshot("p1")
	assert.Len(t, comments, 3)
	assert.Equal(t, "c-new", comments[0].ID) // новый комментарий в голове
	assert.Equal(t, 1, sink.delta["p1"])
}

func TestAddComment_FailureLeavesThreadUntouched(t *testing.T) {
	mockGw := new(gateway.MockGateway)
	sink := newFakeSink()
	store := NewStore(mockGw, newTestSession(), sink, 100)
	openFixture(t, mockGw, store)

	mockGw.On("CreateComment", mock.Anything, mock.Anything).
		Return(nil, gateway.E("gateway.CreateComment", gateway.KindNetwork, errors.New("timeout")))

	_, err := store.AddComment(context.Background(), "p1", "hello")

	// В отличие от лайков комментарий не применяется до подтверждения
	assert.Error(t, err)
	comments, _ := store.Snapshot("p1")
	assert.Len(t, comments, 2)
	assert.Equal(t, 0, sink.delta["p1"])
}

func TestAddComment_EmptyTextRejected(t *testing.T) {
	mockGw := new(gateway.MockGateway)
	store := NewStore(mockGw, newTestSession(), newFakeSink(), 100)

	_, err := store.AddComment(context.Background(), "p1", "")

	assert.Error(t, err)
	assert.Equal(t, gateway.KindValidation, gateway.KindOf(err))
	mockGw.AssertNotCalled(t, "CreateComment", mock.Anything, mock.Anything)
}

func TestToggleCollapseAndAddReply(t *testing.T) {
	mockGw := new(gateway.MockGateway)
	store := NewStore(mockGw, newTestSession(), newFakeSink(), 100)
	openFixture(t, mockGw, store)

	// Разворачивание - чисто локальная операция, ноль сетевых вызовов
	collapsed := store.ToggleCollapse("p1", "c1")
	assert.False(t, collapsed)
	mockGw.AssertNumberOfCalls(t, "FetchComments", 1)

	created := &models.Reply{
		ID:        "r3",
		CommentID: "c1",
		PostID:    "p1",
		AuthorID:  "u1",
		Content:   "hi",
		CreatedAt: time.Now(),
	}
	mockGw.On("CreateReply", mock.Anything, mock.MatchedBy(func(r models.Reply) bool {
		return r.CommentID == "c1" && r.Content == "hi"
	})).Return(created, nil)
	mockGw.On("IncrementPostCounter", mock.Anything, "p1", gateway.CounterComments).Return(nil)

	_, err := store.AddReply(context.Background(), "p1", "c1", "hi")
	assert.NoError(t, err)

	c, _ := store.Comment("p1", "c1")
	assert.Len(t, c.Replies, 3)
	assert.Equal(t, "r3", c.Replies[2].ID) // ответ добавлен в хвост
	assert.False(t, c.Collapsed)           // флаг разворота не трогается
}

func TestAddReply_UnknownComment(t *testing.T) {
	mockGw := new(gateway.MockGateway)
	store := NewStore(mockGw, newTestSession(), newFakeSink(), 100)
	openFixture(t, mockGw, store)

	_, err := store.AddReply(context.Background(), "p1", "ghost", "hi")

	assert.Error(t, err)
	assert.Equal(t, gateway.KindNotFound, gateway.KindOf(err))
	mockGw.AssertNotCalled(t, "CreateReply", mock.Anything, mock.Anything)
}

func TestToggleCommentLike_Involution(t *testing.T) {
	mockGw := new(gateway.MockGateway)
	store := NewStore(mockGw, newTestSession(), newFakeSink(), 100)
	openFixture(t, mockGw, store)

	mockGw.On("CreateCommentLike", mock.Anything, "c1", "u1").Return(nil).Once()
	mockGw.On("DeleteCommentLike", mock.Anything, "c1", "u1").Return(nil).Once()

	assert.NoError(t, store.ToggleCommentLike(context.Background(), "p1", "c1"))
	c, _ := store.Comment("p1", "c1")
	assert.True(t, c.Liked)
	assert.Equal(t, 1, c.LikeCount)

	assert.NoError(t, store.ToggleCommentLike(context.Background(), "p1", "c1"))
	c, _ = store.Comment("p1", "c1")
	assert.False(t, c.Liked)
	assert.Equal(t, 0, c.LikeCount)
	mockGw.AssertExpectations(t)
}

func TestToggleCommentLike_NetworkFailureKeepsOptimisticState(t *testing.T) {
	mockGw := new(gateway.MockGateway)
	store := NewStore(mockGw, newTestSession(), newFakeSink(), 100)
	openFixture(t, mockGw, store)

	mockGw.On("CreateCommentLike", mock.Anything, "c1", "u1").
		Return(gateway.E("gateway.CreateCommentLike", gateway.KindNetwork, errors.New("timeout")))

	err := store.ToggleCommentLike(context.Background(), "p1", "c1")

	// Тот же зафиксированный контракт, что и у лайков постов
	assert.Error(t, err)
	c, _ := store.Comment("p1", "c1")
	assert.True(t, c.Liked)
	assert.Equal(t, 1, c.LikeCount)
}

func TestToggleReplyLike(t *testing.T) {
	mockGw := new(gateway.MockGateway)
	store := NewStore(mockGw, newTestSession(), newFakeSink(), 100)
	openFixture(t, mockGw, store)

	mockGw.On("CreateReplyLike", mock.Anything, "r1", "u1").Return(nil).Once()

	assert.NoError(t, store.ToggleReplyLike(context.Background(), "p1", "c1", "r1"))
	c, _ := store.Comment("p1", "c1")
	assert.True(t, c.Replies[0].Liked)
	assert.Equal(t, 1, c.Replies[0].LikeCount)
}

func TestDeleteComment_AuthorOnly(t *testing.T) {
	mockGw := new(gateway.MockGateway)
	sink := newFakeSink()
	store := NewStore(mockGw, newTestSession(), sink, 100)
	openFixture(t, mockGw, store)

	// c1 написан u2, текущий пользователь - u1
	err := store.DeleteComment(context.Background(), "p1", "c1")

	assert.Error(t, err)
	assert.Equal(t, gateway.KindForbidden, gateway.KindOf(err))
	comments, _ := store.Snapshot("p1")
	assert.Len(t, comments, 2)
	mockGw.AssertNotCalled(t, "DeleteComment", mock.Anything, mock.Anything, mock.Anything)
}

// Счётчик комментариев поста возвращается к исходному после добавления
// и удаления; приёмником выступает настоящая лента
func TestCommentCounterRoundTrip(t *testing.T) {
	mockGw := new(gateway.MockGateway)
	sess := newTestSession()
	feedStore := feed.NewStore(mockGw, sess, 8)
	feedStore.UpsertPost(models.Post{ID: "p1", OwnerID: "o1", CommentCount: 3})
	store := NewStore(mockGw, sess, feedStore, 100)
	openFixture(t, mockGw, store)

	created := &models.Comment{ID: "c-new", PostID: "p1", AuthorID: "u1", Content: "hi", CreatedAt: time.Now()}
	mockGw.On("CreateComment", mock.Anything, mock.Anything).Return(created, nil)
	mockGw.On("IncrementPostCounter", mock.Anything, "p1", gateway.CounterComments).Return(nil)
	mockGw.On("DeleteComment", mock.Anything, "c-new", "u1").Return(nil)
	mockGw.On("DecrementPostCounter", mock.Anything, "p1", gateway.CounterComments).Return(nil)

	_, err := store.AddComment(context.Background(), "p1", "hi")
	assert.NoError(t, err)
	post, _ := feedStore.Post("p1")
	assert.Equal(t, 4, post.CommentCount)

	assert.NoError(t, store.DeleteComment(context.Background(), "p1", "c-new"))
	post, _ = feedStore.Post("p1")
	assert.Equal(t, 3, post.CommentCount)

	comments, _ := store.Snapshot("p1")
	assert.Len(t, comments, 2)
}

func TestReport(t *testing.T) {
	mockGw := new(gateway.MockGateway)
	store := NewStore(mockGw, newTestSession(), newFakeSink(), 100)

	mockGw.On("CreateReport", mock.Anything, "spam", []string{"c1", "r2"}).Return("rep-1", nil)

	id, err := store.Report(context.Background(), "spam", []string{"c1", "r2"})
	assert.NoError(t, err)
	assert.Equal(t, "rep-1", id)
}

func TestReport_EmptyRejected(t *testing.T) {
	mockGw := new(gateway.MockGateway)
	store := NewStore(mockGw, newTestSession(), newFakeSink(), 100)

	_, err := store.Report(context.Background(), "", nil)

	assert.Error(t, err)
	assert.Equal(t, gateway.KindValidation, gateway.KindOf(err))
	mockGw.AssertNotCalled(t, "CreateReport", mock.Anything, mock.Anything, mock.Anything)
}

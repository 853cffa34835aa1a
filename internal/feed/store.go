package feed

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/MosinFAM/feedsync/internal/gateway"
	"github.com/MosinFAM/feedsync/internal/identity"
	"github.com/MosinFAM/feedsync/internal/models"

	"github.com/sirupsen/logrus"
)

// Размер страницы ленты по умолчанию
const DefaultPageSize = 8

// Store - лента постов в памяти.
// Три писателя сходятся в одном хранилище: пагинация, оптимистичные правки
// и realtime-события; все слияния ключуются по ID сущности.
type Store struct {
	gw       gateway.Gateway
	sess     *identity.Session
	pageSize int

	mu               sync.RWMutex
	posts            []models.Post
	likedPostIDs     map[string]struct{}
	followedOwnerIDs map[string]struct{}
	cursor           time.Time // created_at самого старого загруженного поста
	hasMore          bool
	loading          bool // single-flight для LoadMore
}

// Снимок ленты для слоя представления
type Snapshot struct {
	Posts            []models.Post
	LikedPostIDs     map[string]struct{}
	FollowedOwnerIDs map[string]struct{}
	HasMore          bool
}

// NewStore создает пустую ленту
func NewStore(gw gateway.Gateway, sess *identity.Session, pageSize int) *Store {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Store{
		gw:               gw,
		sess:             sess,
		pageSize:         pageSize,
		likedPostIDs:     make(map[string]struct{}),
		followedOwnerIDs: make(map[string]struct{}),
	}
}

// LoadFirstPage загружает самую свежую страницу и полностью замещает ленту
func (s *Store) LoadFirstPage(ctx context.Context) error {
	logrus.Infof("Loading first feed page (limit %d)", s.pageSize)
	page, err := s.gw.FetchPostsPage(ctx, nil, s.pageSize)
	if err != nil {
		logrus.Errorf("Failed to load first page: %v", err)
		return err
	}

	liked := map[string]struct{}{}
	followed := map[string]struct{}{}
	if s.sess.SignedIn() && len(page) > 0 {
		ids := make([]string, 0, len(page))
		for _, p := range page {
			ids = append(ids, p.ID)
		}
		// Одна пакетная проверка на всю страницу, не по посту за раз
		liked, err = s.gw.FetchLikedPostIDs(ctx, s.sess.UserID(), ids)
		if err != nil {
			logrus.Errorf("Failed to fetch liked post ids: %v", err)
			return err
		}
		followed, err = s.gw.FetchFollowedIDs(ctx, s.sess.UserID())
		if err != nil {
			logrus.Errorf("Failed to fetch followed ids: %v", err)
			return err
		}
	}

	// Представление могли закрыть, пока ответ был в пути
	if err := ctx.Err(); err != nil {
		return err
	}

	sortPosts(page)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = page
	s.likedPostIDs = liked
	s.followedOwnerIDs = followed
	s.hasMore = len(page) == s.pageSize
	if len(page) > 0 {
		s.cursor = page[len(page)-1].CreatedAt
	}
	logrus.Infof("First page loaded: %d posts", len(page))
	return nil
}

// LoadMore подгружает страницу строго старее курсора.
// No-op, если страниц больше нет или загрузка уже идёт.
func (s *Store) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if s.loading || !s.hasMore {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	before := s.cursor
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	logrus.Infof("Loading more posts before %s", before.Format(time.RFC3339Nano))
	page, err := s.gw.FetchPostsPage(ctx, &before, s.pageSize)
	if err != nil {
		// Курсор двигается только при успехе
		logrus.Errorf("Failed to load more posts: %v", err)
		return err
	}

	liked := map[string]struct{}{}
	if s.sess.SignedIn() && len(page) > 0 {
		ids := make([]string, 0, len(page))
		for _, p := range page {
			ids = append(ids, p.ID)
		}
		liked, err = s.gw.FetchLikedPostIDs(ctx, s.sess.UserID(), ids)
		if err != nil {
			logrus.Errorf("Failed to fetch liked post ids: %v", err)
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	sortPosts(page)

	s.mu.Lock()
	defer s.mu.Unlock()
	appended := 0
	for _, p := range page {
		// Защита от перекрытия страниц при равных created_at
		if s.indexOf(p.ID) >= 0 {
			continue
		}
		s.posts = append(s.posts, p)
		appended++
	}
	for id := range liked {
		s.likedPostIDs[id] = struct{}{}
	}
	if len(page) > 0 {
		s.cursor = page[len(page)-1].CreatedAt
	}
	s.hasMore = len(page) == s.pageSize
	logrus.Infof("Loaded %d more posts (%d appended)", len(page), appended)
	return nil
}

// ToggleLike - оптимистичное переключение лайка на посте.
// Локальная запись происходит до сетевого вызова; при отказе шлюза
// состояние намеренно не откатывается (см. DESIGN.md).
func (s *Store) ToggleLike(ctx context.Context, postID string) error {
	const op = "feed.ToggleLike"
	if !s.sess.SignedIn() {
		return gateway.E(op, gateway.KindValidation, errors.New("not signed in"))
	}

	s.mu.Lock()
	idx := s.indexOf(postID)
	if idx < 0 {
		s.mu.Unlock()
		return gateway.E(op, gateway.KindNotFound, errors.New("post is not loaded"))
	}
	_, wasLiked := s.likedPostIDs[postID]
	nowLiked := !wasLiked
	if nowLiked {
		s.likedPostIDs[postID] = struct{}{}
		s.posts[idx].LikeCount++
	} else {
		delete(s.likedPostIDs, postID)
		if s.posts[idx].LikeCount > 0 {
			s.posts[idx].LikeCount--
		}
	}
	s.mu.Unlock()

	// Две независимые записи: связь и счётчик; каждая может отказать отдельно
	userID := s.sess.UserID()
	if nowLiked {
		if err := s.gw.CreateLike(ctx, postID, userID); err != nil {
			if !gateway.IsKind(err, gateway.KindConflict) {
				logrus.Errorf("Like create failed for post %s: %v", postID, err)
				return err
			}
			// Связь уже есть (двойной тап) - не ошибка
			logrus.Infof("Like already exists for post %s", postID)
		}
		if err := s.gw.IncrementPostCounter(ctx, postID, gateway.CounterLikes); err != nil {
			logrus.Errorf("Like counter increment failed for post %s: %v", postID, err)
			return err
		}
	} else {
		if err := s.gw.DeleteLike(ctx, postID, userID); err != nil {
			if !gateway.IsKind(err, gateway.KindConflict) {
				logrus.Errorf("Like delete failed for post %s: %v", postID, err)
				return err
			}
			logrus.Infof("Like already absent for post %s", postID)
		}
		if err := s.gw.DecrementPostCounter(ctx, postID, gateway.CounterLikes); err != nil {
			logrus.Errorf("Like counter decrement failed for post %s: %v", postID, err)
			return err
		}
	}
	return nil
}

// ToggleFollow - оптимистичное переключение подписки на владельца поста
func (s *Store) ToggleFollow(ctx context.Context, ownerID string) error {
	const op = "feed.ToggleFollow"
	if !s.sess.SignedIn() {
		return gateway.E(op, gateway.KindValidation, errors.New("not signed in"))
	}
	// Подписка на себя отклоняется до любой локальной записи
	if ownerID == "" || ownerID == s.sess.UserID() {
		return gateway.E(op, gateway.KindValidation, errors.New("invalid follow target"))
	}

	s.mu.Lock()
	_, wasFollowed := s.followedOwnerIDs[ownerID]
	nowFollowed := !wasFollowed
	if nowFollowed {
		s.followedOwnerIDs[ownerID] = struct{}{}
	} else {
		delete(s.followedOwnerIDs, ownerID)
	}
	s.mu.Unlock()

	var err error
	if nowFollowed {
		err = s.gw.CreateFollow(ctx, s.sess.UserID(), ownerID)
	} else {
		err = s.gw.DeleteFollow(ctx, s.sess.UserID(), ownerID)
	}
	if err != nil {
		if gateway.IsKind(err, gateway.KindConflict) {
			logrus.Infof("Follow relation already in target state for %s", ownerID)
			return nil
		}
		logrus.Errorf("Follow toggle failed for %s: %v", ownerID, err)
		return err
	}
	return nil
}

// ApplyOwnerProfileChange вливает свежие поля владельца во все его посты.
// Идемпотентно, повторный вызов безопасен.
func (s *Store) ApplyOwnerProfileChange(ownerID string, p models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.posts {
		if s.posts[i].OwnerID != ownerID {
			continue
		}
		if p.DisplayName != "" {
			s.posts[i].OwnerName = p.DisplayName
		}
		if p.AvatarURL != "" {
			s.posts[i].OwnerAvatar = p.AvatarURL
		}
		if p.Role != "" {
			s.posts[i].OwnerRole = p.Role
		}
	}
}

// UpsertPost добавляет пост в голову ленты; по занятому ID - no-op.
// Первый писатель побеждает: оптимистично созданный пост уже несёт свой
// итоговый ID, и эхо realtime-события для него безопасно игнорируется.
func (s *Store) UpsertPost(post models.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(post.ID) >= 0 {
		return
	}
	s.posts = append([]models.Post{post}, s.posts...)
}

// RemovePost удаляет пост локально; подтверждение прав - забота вызывающего
func (s *Store) RemovePost(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return
	}
	s.posts = append(s.posts[:idx], s.posts[idx+1:]...)
	delete(s.likedPostIDs, id)
}

// DeletePost удаляет пост на сервере (только владелец) и затем локально
func (s *Store) DeletePost(ctx context.Context, postID string) error {
	const op = "feed.DeletePost"
	s.mu.RLock()
	idx := s.indexOf(postID)
	var ownerID string
	if idx >= 0 {
		ownerID = s.posts[idx].OwnerID
	}
	s.mu.RUnlock()
	if idx < 0 {
		return gateway.E(op, gateway.KindNotFound, errors.New("post is not loaded"))
	}
	if ownerID != s.sess.UserID() {
		return gateway.E(op, gateway.KindForbidden, errors.New("not the post owner"))
	}

	if err := s.gw.DeletePost(ctx, postID, s.sess.UserID()); err != nil {
		if gateway.IsKind(err, gateway.KindNotFound) {
			// Пост уже исчез на сервере - убираем устаревшую запись
			s.RemovePost(postID)
		}
		logrus.Errorf("Failed to delete post %s: %v", postID, err)
		return err
	}
	s.RemovePost(postID)
	return nil
}

// IncrementCommentCount увеличивает локальный счётчик комментариев поста
func (s *Store) IncrementCommentCount(postID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexOf(postID); idx >= 0 {
		s.posts[idx].CommentCount++
	}
}

// DecrementCommentCount уменьшает локальный счётчик комментариев, не ниже нуля
func (s *Store) DecrementCommentCount(postID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexOf(postID); idx >= 0 && s.posts[idx].CommentCount > 0 {
		s.posts[idx].CommentCount--
	}
}

// Snapshot возвращает копию читаемой модели ленты
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Posts:            make([]models.Post, len(s.posts)),
		LikedPostIDs:     make(map[string]struct{}, len(s.likedPostIDs)),
		FollowedOwnerIDs: make(map[string]struct{}, len(s.followedOwnerIDs)),
		HasMore:          s.hasMore,
	}
	copy(snap.Posts, s.posts)
	for id := range s.likedPostIDs {
		snap.LikedPostIDs[id] = struct{}{}
	}
	for id := range s.followedOwnerIDs {
		snap.FollowedOwnerIDs[id] = struct{}{}
	}
	return snap
}

// Liked сообщает, лайкнут ли пост текущим пользователем
func (s *Store) Liked(postID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.likedPostIDs[postID]
	return ok
}

// Follows сообщает, подписан ли текущий пользователь на владельца
func (s *Store) Follows(ownerID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.followedOwnerIDs[ownerID]
	return ok
}

// Post возвращает копию поста по ID
func (s *Store) Post(id string) (models.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return models.Post{}, false
	}
	return s.posts[idx], true
}

// HasMore сообщает, остались ли непросмотренные страницы
func (s *Store) HasMore() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasMore
}

// Cursor возвращает метку времени самого старого загруженного поста
func (s *Store) Cursor() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor
}

// indexOf ищет пост по ID; вызывается только под блокировкой
func (s *Store) indexOf(id string) int {
	for i := range s.posts {
		if s.posts[i].ID == id {
			return i
		}
	}
	return -1
}

// sortPosts сортирует по убыванию created_at, при равенстве - по убыванию ID,
// чтобы порядок был детерминирован между перезагрузками
func sortPosts(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID > posts[j].ID
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
}

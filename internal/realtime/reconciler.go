package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/MosinFAM/feedsync/internal/gateway"
	"github.com/MosinFAM/feedsync/internal/models"

	"github.com/sirupsen/logrus"
)

// Таймаут вторичного запроса профиля владельца
const profileFetchTimeout = 5 * time.Second

// Состояние реконсилятора
type State int

const (
	StateDisconnected State = iota
	StateSubscribed
)

// FeedStore - часть ленты, в которую вливаются события
type FeedStore interface {
	UpsertPost(post models.Post)
	ApplyOwnerProfileChange(ownerID string, p models.Profile)
}

// ProfileCache получает свежие профили из событий (кэш аватарок и имён)
type ProfileCache interface {
	PutProfile(p models.Profile)
}

// Reconciler вливает два независимых push-потока в ленту.
// Дубли гасятся слиянием по ID, поэтому эхо собственного оптимистичного
// поста безопасно. Ровно два состояния: disconnected и subscribed;
// подписка, пережившая Stop, - дефект.
type Reconciler struct {
	ch       Channel
	gw       gateway.Gateway
	feed     FeedStore
	profiles ProfileCache

	mu          sync.Mutex
	state       State
	postsSub    *Subscription
	profilesSub *Subscription
}

// NewReconciler создает реконсилятор в состоянии disconnected
func NewReconciler(ch Channel, gw gateway.Gateway, feed FeedStore, profiles ProfileCache) *Reconciler {
	return &Reconciler{ch: ch, gw: gw, feed: feed, profiles: profiles}
}

// Start подписывается на оба топика; повторный вызов - no-op
func (r *Reconciler) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateSubscribed {
		return nil
	}

	postsSub, err := r.ch.Subscribe(TopicPosts, r.handlePostEvent)
	if err != nil {
		logrus.Errorf("Failed to subscribe to %s: %v", TopicPosts, err)
		return err
	}
	profilesSub, err := r.ch.Subscribe(TopicProfiles, r.handleProfileEvent)
	if err != nil {
		// Не оставляем половинчатую подписку
		if uerr := r.ch.Unsubscribe(postsSub); uerr != nil {
			logrus.Errorf("Failed to roll back %s subscription: %v", TopicPosts, uerr)
		}
		logrus.Errorf("Failed to subscribe to %s: %v", TopicProfiles, err)
		return err
	}

	r.postsSub = postsSub
	r.profilesSub = profilesSub
	r.state = StateSubscribed
	logrus.Info("Realtime reconciler subscribed")
	return nil
}

// Stop сворачивает обе подписки и возвращает disconnected
func (r *Reconciler) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateDisconnected {
		return nil
	}

	var firstErr error
	if err := r.ch.Unsubscribe(r.postsSub); err != nil {
		firstErr = err
	}
	if err := r.ch.Unsubscribe(r.profilesSub); err != nil && firstErr == nil {
		firstErr = err
	}
	r.postsSub = nil
	r.profilesSub = nil
	r.state = StateDisconnected
	logrus.Info("Realtime reconciler disconnected")
	return firstErr
}

// State возвращает текущее состояние
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// handlePostEvent вливает событие о новом посте в ленту
func (r *Reconciler) handlePostEvent(ev Event) {
	if ev.Kind != EventInsert {
		return
	}
	p, err := DecodePost(ev)
	if err != nil {
		logrus.Errorf("Dropping malformed post event: %v", err)
		return
	}

	post := models.Post{
		ID:           p.ID,
		OwnerID:      p.OwnerID,
		MediaKind:    p.MediaKind,
		MediaURL:     p.MediaURL,
		Caption:      p.Caption,
		LikeCount:    p.LikeCount,
		CommentCount: p.CommentCount,
		CreatedAt:    p.CreatedAt,
		OwnerName:    p.OwnerName,
	}

	// Вторичный запрос профиля владельца; при not_found остаёмся
	// на денормализованном имени из события
	ctx, cancel := context.WithTimeout(context.Background(), profileFetchTimeout)
	defer cancel()
	profile, err := r.gw.FetchProfile(ctx, p.OwnerID)
	switch {
	case err == nil:
		post.OwnerName = profile.DisplayName
		post.OwnerAvatar = profile.AvatarURL
		post.OwnerRole = profile.Role
	case gateway.IsKind(err, gateway.KindNotFound):
		logrus.Infof("Owner profile %s not found, using event payload", p.OwnerID)
	default:
		logrus.Errorf("Failed to fetch owner profile %s: %v", p.OwnerID, err)
	}

	r.feed.UpsertPost(post)
}

// handleProfileEvent вливает обновление профиля в ленту и кэш
func (r *Reconciler) handleProfileEvent(ev Event) {
	if ev.Kind != EventUpdate && ev.Kind != EventInsert {
		return
	}
	p, err := DecodeProfile(ev)
	if err != nil {
		logrus.Errorf("Dropping malformed profile event: %v", err)
		return
	}

	profile := models.Profile{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		Role:        p.Role,
	}
	r.feed.ApplyOwnerProfileChange(p.UserID, profile)
	// Кэш обновляется даже если у владельца нет загруженных постов
	if r.profiles != nil {
		r.profiles.PutProfile(profile)
	}
}

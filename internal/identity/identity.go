package identity

import (
	"sync"

	"github.com/MosinFAM/feedsync/internal/models"
)

// Session - контекст идентичности текущего пользователя.
// Создаётся явно при входе и передаётся в движок, никаких глобальных синглтонов.
type Session struct {
	userID  string
	profile models.Profile

	mu    sync.RWMutex
	cache map[string]models.Profile // кэш чужих профилей (аватарки, "возможно, знакомы")
}

// NewSession создает контекст идентичности для вошедшего пользователя
func NewSession(userID string, profile models.Profile) *Session {
	return &Session{
		userID:  userID,
		profile: profile,
		cache:   make(map[string]models.Profile),
	}
}

// UserID возвращает ID текущего пользователя
func (s *Session) UserID() string {
	return s.userID
}

// Profile возвращает снимок профиля текущего пользователя
func (s *Session) Profile() models.Profile {
	return s.profile
}

// SignedIn сообщает, есть ли вошедший пользователь
func (s *Session) SignedIn() bool {
	return s.userID != ""
}

// CachedProfile возвращает закэшированный профиль другого пользователя
func (s *Session) CachedProfile(userID string) (models.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.cache[userID]
	return p, ok
}

// PutProfile обновляет кэш профилей; вызывается и из realtime-событий
func (s *Session) PutProfile(p models.Profile) {
	if p.UserID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[p.UserID] = p
}

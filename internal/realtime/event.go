package realtime

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/MosinFAM/feedsync/internal/models"
)

// Вид события из push-канала
type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
)

// Сущность, которую описывает событие
type Entity string

const (
	EntityPost    Entity = "posts"
	EntityProfile Entity = "profiles"
)

// Событие канала: размеченный вариант с сырой нагрузкой.
// Доставка at-least-once, возможны дубли и нарушение порядка.
type Event struct {
	Kind    EventKind       `json:"kind"`
	Entity  Entity          `json:"entity"`
	Payload json.RawMessage `json:"payload"`
}

// Нагрузка события о новом посте. OwnerName денормализован на случай,
// когда профиль владельца не найден вторичным запросом.
type PostPayload struct {
	ID           string           `json:"id"`
	OwnerID      string           `json:"ownerId"`
	MediaKind    models.MediaKind `json:"mediaKind"`
	MediaURL     string           `json:"mediaUrl"`
	Caption      string           `json:"caption"`
	LikeCount    int              `json:"likeCount"`
	CommentCount int              `json:"commentCount"`
	CreatedAt    time.Time        `json:"createdAt"`
	OwnerName    string           `json:"ownerName"`
}

// Нагрузка события об обновлении профиля
type ProfilePayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
	Role        string `json:"role"`
}

// DecodePost валидирует нагрузку события о посте на границе
func DecodePost(ev Event) (*PostPayload, error) {
	if ev.Entity != EntityPost {
		return nil, errors.New("event is not about a post")
	}
	var p PostPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return nil, err
	}
	if p.ID == "" || p.OwnerID == "" {
		return nil, errors.New("post payload is missing id or owner")
	}
	return &p, nil
}

// DecodeProfile валидирует нагрузку события о профиле на границе
func DecodeProfile(ev Event) (*ProfilePayload, error) {
	if ev.Entity != EntityProfile {
		return nil, errors.New("event is not about a profile")
	}
	var p ProfilePayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return nil, err
	}
	if p.UserID == "" {
		return nil, errors.New("profile payload is missing user id")
	}
	return &p, nil
}

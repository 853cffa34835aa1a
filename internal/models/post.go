package models

import "time"

// Тип медиа в посте
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Модель поста в ленте
type Post struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	MediaKind    MediaKind `json:"mediaKind"`
	MediaURL     string    `json:"mediaUrl"`
	Caption      string    `json:"caption"`
	LikeCount    int       `json:"likeCount"`    // счётчик поддерживается клиентской арифметикой
	CommentCount int       `json:"commentCount"` // может отставать от серверного агрегата
	CreatedAt    time.Time `json:"createdAt"`

	// Денормализованные поля владельца, снятые при загрузке
	OwnerName   string `json:"ownerName"`
	OwnerAvatar string `json:"ownerAvatar"`
	OwnerRole   string `json:"ownerRole"`
}

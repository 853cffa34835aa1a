package models

import "time"

// Модель комментария к посту
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"` // ID поста, к которому прикреплён комментарий
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	LikeCount int       `json:"likeCount"`
	CreatedAt time.Time `json:"createdAt"`

	// Денормализованные поля автора, снятые при создании
	AuthorName   string `json:"authorName"`
	AuthorAvatar string `json:"authorAvatar"`

	Replies []Reply `json:"replies"`

	// Клиентские поля, не сохраняются на сервере
	Collapsed bool `json:"-"`
	Liked     bool `json:"-"`
}

// Модель ответа на комментарий (второй уровень, глубже не вкладывается)
type Reply struct {
	ID        string    `json:"id"`
	CommentID string    `json:"commentId"` // ID родительского комментария
	PostID    string    `json:"postId"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	LikeCount int       `json:"likeCount"`
	CreatedAt time.Time `json:"createdAt"`

	AuthorName   string `json:"authorName"`
	AuthorAvatar string `json:"authorAvatar"`

	Liked bool `json:"-"`
}

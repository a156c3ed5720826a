package domain

import "time"

const (
	DefaultPostAvatar = "🎬"
	MaxPostLength     = 500
)

// CommunityPost is a public review or comment.
type CommunityPost struct {
	ID        string    `json:"id" firestore:"-"`
	UserID    string    `json:"userId" firestore:"userId"`
	User      string    `json:"user" firestore:"user"`
	Avatar    string    `json:"avatar" firestore:"avatar"`
	Movie     *string   `json:"movie,omitempty" firestore:"movie,omitempty"`
	Rating    *int      `json:"rating,omitempty" firestore:"rating,omitempty"`
	Content   string    `json:"content" firestore:"content"`
	Likes     int       `json:"likes" firestore:"likes"`
	Replies   int       `json:"replies" firestore:"replies"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
}

// NewPost holds the fields an author supplies when posting.
type NewPost struct {
	Avatar  string  `json:"avatar" validate:"omitempty,max=16"`
	Movie   *string `json:"movie,omitempty" validate:"omitempty,max=200"`
	Rating  *int    `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	Content string  `json:"content" validate:"required,max=500"`
}

package domain

import "time"

// WatchlistItem is a catalog item saved by a user. Identity is (user, ID).
type WatchlistItem struct {
	ID        int       `json:"id" firestore:"id"`
	Title     string    `json:"title" firestore:"title"`
	PosterURL string    `json:"posterUrl" firestore:"poster"`
	Rating    *float64  `json:"rating,omitempty" firestore:"rating,omitempty"`
	Genre     *string   `json:"genre,omitempty" firestore:"genre,omitempty"`
	Year      *int      `json:"year,omitempty" firestore:"year,omitempty"`
	AddedAt   time.Time `json:"addedAt" firestore:"addedAt"`
}

// RecentItem is a catalog item the user opened recently.
type RecentItem struct {
	ID        int       `json:"id" firestore:"id"`
	Title     string    `json:"title" firestore:"title"`
	PosterURL string    `json:"posterUrl" firestore:"poster"`
	Rating    *float64  `json:"rating,omitempty" firestore:"rating,omitempty"`
	Genre     *string   `json:"genre,omitempty" firestore:"genre,omitempty"`
	Year      *int      `json:"year,omitempty" firestore:"year,omitempty"`
	ViewedAt  time.Time `json:"viewedAt" firestore:"viewedAt"`
}

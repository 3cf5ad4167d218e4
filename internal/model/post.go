package model

import "time"

// TimestampLayout is how post and member timestamps are shown in pages.
const TimestampLayout = "2006-01-02 15:04:05"

// Post is a short text post.
//
// Username references the author by name rather than by id, so a username
// that is freed and reused would silently adopt the old posts.
//
// Likes is a denormalized counter. Stores keep it equal to the number of Like
// rows for the post by changing both in the same transaction.
type Post struct {
	ID        string    `json:"id"        db:"id"`
	Title     string    `json:"title"     db:"title"`
	Content   string    `json:"content"   db:"content"`
	Username  string    `json:"username"  db:"username"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	Likes     int       `json:"likes"     db:"likes"`
}

// Timestamp formats CreatedAt for display.
func (p Post) Timestamp() string {
	return p.CreatedAt.Format(TimestampLayout)
}

// Like records that a user liked a post. At most one exists per pair.
type Like struct {
	UserID string `db:"user_id"`
	PostID string `db:"post_id"`
}

// LikeResult is the outcome of toggling a like.
type LikeResult struct {
	Likes int  `json:"likes"`
	Liked bool `json:"liked"`
}

package model

import "time"

// Clip is a short video post with engagement counters.
type Clip struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Caption   string    `json:"caption"`
	Filename  string    `json:"filename"`
	Likes     int       `json:"likes"`
	Shares    int       `json:"shares"`
	// CommentCount is the persisted counter; Comments is populated only by
	// the detail view.
	CommentCount int       `json:"comments_count"`
	Comments     []Comment `json:"comments,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Comment struct {
	ID                string    `json:"id"`
	ClipID            string    `json:"clip_id"`
	Author            string    `json:"author"`
	AuthorDisplayName string    `json:"author_display_name,omitempty"`
	Content           string    `json:"content"`
	Likes             int       `json:"likes"`
	CreatedAt         time.Time `json:"created_at"`
}

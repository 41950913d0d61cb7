package models

import (
	"errors"
	"time"
)

// Post is a published post whose comments are analyzed.
type Post struct {
	PostID     int64     `json:"post_id"`
	UserID     int64     `json:"user_id"`
	Username   string    `json:"username"`
	Caption    string    `json:"caption"`
	PostDate   time.Time `json:"post_date"`
	LikesCount int       `json:"likes_count"`
}

// Validate checks that all post fields are valid
func (p *Post) Validate() error {
	if p.PostID <= 0 {
		return errors.New("post ID must be positive")
	}
	if p.Username == "" {
		return errors.New("post username must not be empty")
	}
	if p.LikesCount < 0 {
		return errors.New("likes count must not be negative")
	}
	return nil
}

// Comment is a single comment left on a post. Label carries the known
// ground truth for generated datasets and is nil when unknown.
type Comment struct {
	CommentID   int64     `json:"comment_id"`
	PostID      int64     `json:"post_id"`
	UserID      int64     `json:"user_id"`
	Username    string    `json:"username"`
	Text        string    `json:"comment_text"`
	CommentDate time.Time `json:"comment_date"`
	Label       *bool     `json:"is_suspicious_actual,omitempty"`
}

// Validate checks that all comment fields are valid
func (c *Comment) Validate() error {
	if c.CommentID <= 0 {
		return errors.New("comment ID must be positive")
	}
	if c.PostID <= 0 {
		return errors.New("comment post ID must be positive")
	}
	if c.Username == "" {
		return errors.New("comment username must not be empty")
	}
	return nil
}

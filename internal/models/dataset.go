// Package models defines the core domain entities for argus: uploaded or
// generated datasets of posts and comments, analysis sessions run over them,
// and the per-comment, per-user and per-post results those sessions produce.
// All models include built-in validation so storage never persists malformed rows.
package models

import (
	"errors"
	"time"
)

// Dataset describes a set of posts and comments submitted for analysis.
type Dataset struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	PostsCount    int       `json:"posts_count"`
	CommentsCount int       `json:"comments_count"`
}

// Validate checks that all dataset fields are valid
func (d *Dataset) Validate() error {
	if d.ID == "" {
		return errors.New("dataset ID must not be empty")
	}
	if d.Name == "" {
		return errors.New("dataset name must not be empty")
	}
	if d.PostsCount < 0 {
		return errors.New("posts count must not be negative")
	}
	if d.CommentsCount < 0 {
		return errors.New("comments count must not be negative")
	}
	if d.CreatedAt.IsZero() {
		return errors.New("created at must be set")
	}
	return nil
}

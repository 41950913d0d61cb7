package models

import (
	"errors"
)

// SuspiciousComment is a comment the detector flagged during a session.
type SuspiciousComment struct {
	SessionID   string   `json:"session_id"`
	CommentID   int64    `json:"comment_id"`
	Username    string   `json:"username"`
	Text        string   `json:"comment_text"`
	Probability float64  `json:"probability"`
	Patterns    []string `json:"detected_patterns"`
}

// Validate checks that all suspicious comment fields are valid
func (c *SuspiciousComment) Validate() error {
	if c.SessionID == "" {
		return errors.New("session ID must not be empty")
	}
	if c.CommentID <= 0 {
		return errors.New("comment ID must be positive")
	}
	if c.Probability < 0.0 || c.Probability > 1.0 {
		return errors.New("probability must be between 0.0 and 1.0")
	}
	return nil
}

// UserBehavior aggregates one user's comments within a session.
type UserBehavior struct {
	SessionID       string   `json:"session_id"`
	Username        string   `json:"username"`
	UserID          int64    `json:"user_id"`
	SuspiciousCount int      `json:"suspicious_comments_count"`
	TotalComments   int      `json:"total_comments"`
	SuspicionScore  float64  `json:"suspicion_score"` // percent of the user's comments flagged
	Patterns        []string `json:"detected_patterns"`
}

// Validate checks that all user behavior fields are valid
func (u *UserBehavior) Validate() error {
	if u.SessionID == "" {
		return errors.New("session ID must not be empty")
	}
	if u.Username == "" {
		return errors.New("username must not be empty")
	}
	if u.TotalComments <= 0 {
		return errors.New("total comments must be positive")
	}
	if u.SuspiciousCount < 0 || u.SuspiciousCount > u.TotalComments {
		return errors.New("suspicious count must be between 0 and total comments")
	}
	if u.SuspicionScore < 0.0 || u.SuspicionScore > 100.0 {
		return errors.New("suspicion score must be between 0 and 100")
	}
	return nil
}

// PostAnalysis aggregates the comments left on one post within a session.
type PostAnalysis struct {
	SessionID       string  `json:"session_id"`
	PostID          int64   `json:"post_id"`
	Caption         string  `json:"caption"`
	Username        string  `json:"username"`
	SuspiciousCount int     `json:"suspicious_comments_count"`
	TotalComments   int     `json:"total_comments"`
	SuspicionRatio  float64 `json:"suspicion_ratio"` // percent of the post's comments flagged
}

// Validate checks that all post analysis fields are valid
func (p *PostAnalysis) Validate() error {
	if p.SessionID == "" {
		return errors.New("session ID must not be empty")
	}
	if p.PostID <= 0 {
		return errors.New("post ID must be positive")
	}
	if p.TotalComments <= 0 {
		return errors.New("total comments must be positive")
	}
	if p.SuspiciousCount < 0 || p.SuspiciousCount > p.TotalComments {
		return errors.New("suspicious count must be between 0 and total comments")
	}
	if p.SuspicionRatio < 0.0 || p.SuspicionRatio > 100.0 {
		return errors.New("suspicion ratio must be between 0 and 100")
	}
	return nil
}

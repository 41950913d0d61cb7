package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/rewired-gh/argus/internal/risk"
)

// Status is the lifecycle state of an analysis session.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// AnalysisSession is one run of the detector over a dataset.
type AnalysisSession struct {
	ID              string    `json:"id"`
	DatasetID       string    `json:"dataset_id"`
	CreatedAt       time.Time `json:"created_at"`
	TotalComments   int       `json:"total_comments"`
	SuspiciousCount int       `json:"suspicious_count"`
	Accuracy        float64   `json:"accuracy"`
	Status          Status    `json:"status"`
}

// SuspiciousPercentage returns the share of suspicious comments in percent,
// or 0 when the session has no comments.
func (s *AnalysisSession) SuspiciousPercentage() float64 {
	if s.TotalComments > 0 {
		return float64(s.SuspiciousCount) / float64(s.TotalComments) * 100
	}
	return 0
}

// Summary converts the session into the input of the risk report builder.
func (s *AnalysisSession) Summary() risk.Summary {
	return risk.Summary{
		TotalComments:        s.TotalComments,
		SuspiciousCount:      s.SuspiciousCount,
		SuspiciousPercentage: s.SuspiciousPercentage(),
		Accuracy:             s.Accuracy,
	}
}

// Validate checks that all session fields are valid
func (s *AnalysisSession) Validate() error {
	if s.ID == "" {
		return errors.New("session ID must not be empty")
	}
	if s.DatasetID == "" {
		return errors.New("dataset ID must not be empty")
	}
	if !s.Status.Valid() {
		return fmt.Errorf("unknown session status %q", s.Status)
	}
	if s.TotalComments < 0 {
		return errors.New("total comments must not be negative")
	}
	if s.SuspiciousCount < 0 || s.SuspiciousCount > s.TotalComments {
		return errors.New("suspicious count must be between 0 and total comments")
	}
	if s.Accuracy < 0.0 || s.Accuracy > 1.0 {
		return errors.New("accuracy must be between 0.0 and 1.0")
	}
	if s.CreatedAt.IsZero() {
		return errors.New("created at must be set")
	}
	return nil
}

func (s *AnalysisSession) String() string {
	return fmt.Sprintf("Analysis %s - %s", s.ID, s.Status)
}

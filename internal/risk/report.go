package risk

import (
	"math"
	"time"
)

// TimestampLayout is the report timestamp format: UTC, millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Summary is a pre-aggregated analysis result handed to the report builder.
type Summary struct {
	TotalComments        int     `json:"total_comments"`
	SuspiciousCount      int     `json:"suspicious_count"`
	SuspiciousPercentage float64 `json:"suspicious_percentage"`
	Accuracy             float64 `json:"accuracy"`
}

// Validate checks the summary invariants. BuildReport does not call it;
// BuildValidated does.
func (s Summary) Validate() error {
	if s.TotalComments < 0 {
		return &ValidationError{Field: "total_comments", Reason: "must not be negative"}
	}
	if s.SuspiciousCount < 0 {
		return &ValidationError{Field: "suspicious_count", Reason: "must not be negative"}
	}
	if s.SuspiciousCount > s.TotalComments {
		return &ValidationError{Field: "suspicious_count", Reason: "must not exceed total_comments"}
	}
	p := s.SuspiciousPercentage
	if math.IsNaN(p) || p < 0 || p > 100 {
		return &ValidationError{Field: "suspicious_percentage", Reason: "must be between 0 and 100"}
	}
	if math.IsNaN(s.Accuracy) || math.IsInf(s.Accuracy, 0) {
		return &ValidationError{Field: "accuracy", Reason: "must be a finite number"}
	}
	return nil
}

// ReportSummary is the reshaped summary block of a Report.
type ReportSummary struct {
	TotalComments   int     `json:"totalComments" yaml:"totalComments"`
	SuspiciousCount int     `json:"suspiciousCount" yaml:"suspiciousCount"`
	DetectionRate   float64 `json:"detectionRate" yaml:"detectionRate"`
	Accuracy        float64 `json:"accuracy" yaml:"accuracy"`
}

// Report combines an analysis summary with its risk classification.
type Report struct {
	Summary   ReportSummary `json:"summary" yaml:"summary"`
	Risks     Assessment    `json:"risks" yaml:"risks"`
	Timestamp string        `json:"timestamp" yaml:"timestamp"`
}

// Builder builds reports using an injectable clock.
type Builder struct {
	Now func() time.Time
}

// NewBuilder returns a Builder reading time from now. A nil now uses time.Now.
func NewBuilder(now func() time.Time) Builder {
	if now == nil {
		now = time.Now
	}
	return Builder{Now: now}
}

// Build composes a report from summary. The detection rate is classified as
// a probability (percentage / 100).
func (b Builder) Build(summary Summary) Report {
	now := b.Now
	if now == nil {
		now = time.Now
	}
	return Report{
		Summary: ReportSummary{
			TotalComments:   summary.TotalComments,
			SuspiciousCount: summary.SuspiciousCount,
			DetectionRate:   summary.SuspiciousPercentage,
			Accuracy:        summary.Accuracy,
		},
		Risks:     Assess(summary.SuspiciousPercentage / 100),
		Timestamp: now().UTC().Format(TimestampLayout),
	}
}

// BuildValidated validates summary before building the report.
func (b Builder) BuildValidated(summary Summary) (Report, error) {
	if err := summary.Validate(); err != nil {
		return Report{}, err
	}
	return b.Build(summary), nil
}

// BuildReport builds a report stamped with the current wall-clock time.
func BuildReport(summary Summary) Report {
	return NewBuilder(nil).Build(summary)
}

// Package risk classifies suspicion probabilities into display risk levels,
// counts detected pattern labels and composes risk reports from an analysis
// summary.
//
// Every function in this package is pure (BuildReport reads the wall clock
// unless a clock is injected through Builder) and safe for concurrent use.
package risk

import (
	"fmt"
	"math"
)

// Level is one of the four fixed risk categories.
type Level string

const (
	LevelSafe   Level = "safe"
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Display color tokens, matching the dashboard's alert styles.
const (
	ColorSuccess = "success"
	ColorInfo    = "info"
	ColorWarning = "warning"
	ColorDanger  = "danger"
)

// Probability thresholds. A probability must be strictly greater than a
// threshold to reach its level; values exactly at a threshold fall to the
// next lower level.
const (
	HighThreshold   = 0.8
	MediumThreshold = 0.6
	LowThreshold    = 0.4
)

// Assessment is the classification of a single probability.
type Assessment struct {
	Level Level  `json:"level" yaml:"level"`
	Color string `json:"color" yaml:"color"`
	Text  string `json:"text" yaml:"text"`
}

var (
	assessmentHigh   = Assessment{Level: LevelHigh, Color: ColorDanger, Text: "Alto Risco"}
	assessmentMedium = Assessment{Level: LevelMedium, Color: ColorWarning, Text: "Risco Médio"}
	assessmentLow    = Assessment{Level: LevelLow, Color: ColorInfo, Text: "Baixo Risco"}
	assessmentSafe   = Assessment{Level: LevelSafe, Color: ColorSuccess, Text: "Seguro"}
)

// Assess classifies a probability. It is total: NaN and out-of-range values
// fall through to LevelSafe or LevelHigh by plain comparison.
func Assess(probability float64) Assessment {
	if probability > HighThreshold {
		return assessmentHigh
	}
	if probability > MediumThreshold {
		return assessmentMedium
	}
	if probability > LowThreshold {
		return assessmentLow
	}
	return assessmentSafe
}

// AssessStrict is Assess with input validation: it rejects NaN and infinite
// probabilities instead of classifying them.
func AssessStrict(probability float64) (Assessment, error) {
	if math.IsNaN(probability) || math.IsInf(probability, 0) {
		return Assessment{}, &ValidationError{
			Field:  "probability",
			Reason: fmt.Sprintf("must be a finite number, got %v", probability),
		}
	}
	return Assess(probability), nil
}

// Rank orders levels from safe (0) to high (3). Unknown levels rank -1.
func (l Level) Rank() int {
	switch l {
	case LevelSafe:
		return 0
	case LevelLow:
		return 1
	case LevelMedium:
		return 2
	case LevelHigh:
		return 3
	default:
		return -1
	}
}

// AtLeast reports whether l is as severe as other.
func (l Level) AtLeast(other Level) bool {
	return l.Rank() >= other.Rank()
}

// ParseLevel converts a level name into a Level.
func ParseLevel(s string) (Level, error) {
	l := Level(s)
	if l.Rank() < 0 {
		return "", fmt.Errorf("invalid risk level: %q", s)
	}
	return l, nil
}

// ValidationError reports an input that the strict entry points refuse.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Package detector flags suspicious comments using a catalog of keyword and
// emoji patterns, then aggregates the flagged comments per user and per post.
//
// Each comment is scored independently:
//
//	p = base + pattern_weight × matched_keywords + child_term_weight × [mentions a child]
//
// clamped to [base, max]. A comment is suspicious when p is strictly greater
// than the configured threshold, the same boundary rule risk.Assess uses.
package detector

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/rewired-gh/argus/internal/logger"
	"github.com/rewired-gh/argus/internal/models"
)

// Category is a named group of suspicious keywords.
type Category struct {
	Name     string
	Keywords []string
}

// Catalog lists the monitored pattern categories in reporting order.
var Catalog = []Category{
	{Name: "emoji_hearts_girls", Keywords: []string{"👧💕", "💜💜", "👧🏻💖", "💕👧", "💖💖", "❤️👧"}},
	{Name: "emoji_spiral_boys", Keywords: []string{"🌀👦", "👦🌀", "💙🌀", "🌀💙", "👦💙", "🌀💙👦"}},
	{Name: "suspicious_text_girls", Keywords: []string{"menina linda", "garotinha fofa", "linda menina", "fofa garotinha"}},
	{Name: "suspicious_text_boys", Keywords: []string{"menino bonito", "garoto lindo", "bonito menino", "lindo garoto"}},
}

// ChildTerms are words that refer to children.
var ChildTerms = []string{"menina", "garotinha", "menino", "garoto", "criança"}

// Config holds the scoring weights.
type Config struct {
	Threshold       float64
	PatternWeight   float64
	ChildTermWeight float64
	BaseProbability float64
	MaxProbability  float64
}

// DefaultConfig returns the weights used when none are configured.
func DefaultConfig() Config {
	return Config{
		Threshold:       0.5,
		PatternWeight:   0.5,
		ChildTermWeight: 0.15,
		BaseProbability: 0.05,
		MaxProbability:  0.95,
	}
}

// Validate checks that the weights describe a usable probability model.
func (c Config) Validate() error {
	if c.Threshold < 0.0 || c.Threshold > 1.0 {
		return fmt.Errorf("threshold must be between 0.0 and 1.0")
	}
	if c.PatternWeight < 0 || c.ChildTermWeight < 0 {
		return fmt.Errorf("weights must not be negative")
	}
	if c.BaseProbability < 0.0 || c.MaxProbability > 1.0 || c.BaseProbability > c.MaxProbability {
		return fmt.Errorf("probabilities must satisfy 0 <= base <= max <= 1")
	}
	return nil
}

// Features describes the pattern content of one comment.
type Features struct {
	CategoryCounts map[string]int
	TextLength     int
	HasChildTerms  bool
	Patterns       []string // matched keywords, in catalog order
}

// Present reports whether any keyword of the category matched.
func (f Features) Present(category string) bool {
	return f.CategoryCounts[category] > 0
}

// ExtractFeatures matches text against the catalog. Matching is a
// case-insensitive substring search.
func ExtractFeatures(text string) Features {
	lower := strings.ToLower(text)
	f := Features{
		CategoryCounts: make(map[string]int, len(Catalog)),
		TextLength:     utf8.RuneCountInString(text),
	}

	for _, cat := range Catalog {
		count := 0
		for _, kw := range cat.Keywords {
			if strings.Contains(text, kw) || strings.Contains(lower, strings.ToLower(kw)) {
				count++
				f.Patterns = append(f.Patterns, kw)
			}
		}
		f.CategoryCounts[cat.Name] = count
	}

	for _, term := range ChildTerms {
		if strings.Contains(lower, term) {
			f.HasChildTerms = true
			break
		}
	}
	return f
}

// Detector scores comments.
type Detector struct {
	cfg Config
}

// New creates a Detector with the given weights.
func New(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector config: %w", err)
	}
	return &Detector{cfg: cfg}, nil
}

// Score returns the suspicion probability of text and the keywords behind it.
func (d *Detector) Score(text string) (float64, []string) {
	f := ExtractFeatures(text)
	p := d.cfg.BaseProbability + d.cfg.PatternWeight*float64(len(f.Patterns))
	if f.HasChildTerms {
		p += d.cfg.ChildTermWeight
	}
	p = math.Max(d.cfg.BaseProbability, math.Min(d.cfg.MaxProbability, p))
	return p, f.Patterns
}

// IsSuspicious applies the threshold to a probability.
func (d *Detector) IsSuspicious(probability float64) bool {
	return probability > d.cfg.Threshold
}

// Result holds per-comment outputs, index-aligned with the input comments.
type Result struct {
	Predictions   []bool
	Probabilities []float64
	Patterns      [][]string
}

// SuspiciousCount returns the number of comments predicted suspicious.
func (r Result) SuspiciousCount() int {
	n := 0
	for _, p := range r.Predictions {
		if p {
			n++
		}
	}
	return n
}

// Detect scores every comment.
func (d *Detector) Detect(comments []models.Comment) Result {
	res := Result{
		Predictions:   make([]bool, len(comments)),
		Probabilities: make([]float64, len(comments)),
		Patterns:      make([][]string, len(comments)),
	}

	withPatterns := 0
	maxSeen := 0.0
	for i, c := range comments {
		p, patterns := d.Score(c.Text)
		res.Probabilities[i] = p
		res.Patterns[i] = patterns
		res.Predictions[i] = d.IsSuspicious(p)
		if len(patterns) > 0 {
			withPatterns++
		}
		if p > maxSeen {
			maxSeen = p
		}
	}

	logger.Debug("Detect: comments=%d, with patterns=%d, suspicious=%d, max_probability=%.4f",
		len(comments), withPatterns, res.SuspiciousCount(), maxSeen)

	return res
}

// Accuracy returns the fraction of labelled comments whose prediction matches
// the label. It returns 0 when no comment carries a label.
func Accuracy(res Result, comments []models.Comment) float64 {
	labelled, correct := 0, 0
	for i, c := range comments {
		if c.Label == nil || i >= len(res.Predictions) {
			continue
		}
		labelled++
		if res.Predictions[i] == *c.Label {
			correct++
		}
	}
	if labelled == 0 {
		return 0
	}
	return float64(correct) / float64(labelled)
}

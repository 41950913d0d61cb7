package risk

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"
)

func TestAssess(t *testing.T) {
	tests := []struct {
		name        string
		probability float64
		wantLevel   Level
		wantColor   string
		wantText    string
	}{
		{"zero", 0.0, LevelSafe, ColorSuccess, "Seguro"},
		{"exactly low threshold", 0.4, LevelSafe, ColorSuccess, "Seguro"},
		{"just above low threshold", 0.41, LevelLow, ColorInfo, "Baixo Risco"},
		{"exactly medium threshold", 0.6, LevelLow, ColorInfo, "Baixo Risco"},
		{"just above medium threshold", 0.61, LevelMedium, ColorWarning, "Risco Médio"},
		{"exactly high threshold", 0.8, LevelMedium, ColorWarning, "Risco Médio"},
		{"just above high threshold", 0.81, LevelHigh, ColorDanger, "Alto Risco"},
		{"one", 1.0, LevelHigh, ColorDanger, "Alto Risco"},
		{"negative", -0.5, LevelSafe, ColorSuccess, "Seguro"},
		{"above one", 42, LevelHigh, ColorDanger, "Alto Risco"},
		{"NaN", math.NaN(), LevelSafe, ColorSuccess, "Seguro"},
		{"positive infinity", math.Inf(1), LevelHigh, ColorDanger, "Alto Risco"},
		{"negative infinity", math.Inf(-1), LevelSafe, ColorSuccess, "Seguro"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Assess(tt.probability)
			if got.Level != tt.wantLevel || got.Color != tt.wantColor || got.Text != tt.wantText {
				t.Errorf("Assess(%v) = %+v, want {%s %s %s}", tt.probability, got, tt.wantLevel, tt.wantColor, tt.wantText)
			}
		})
	}
}

func TestAssess_Deterministic(t *testing.T) {
	for _, p := range []float64{0, 0.25, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9} {
		if Assess(p) != Assess(p) {
			t.Errorf("Assess(%v) returned different results for identical input", p)
		}
	}
}

func TestAssessStrict(t *testing.T) {
	if _, err := AssessStrict(math.NaN()); err == nil {
		t.Error("expected error for NaN probability")
	}
	if _, err := AssessStrict(math.Inf(1)); err == nil {
		t.Error("expected error for infinite probability")
	}

	var verr *ValidationError
	_, err := AssessStrict(math.NaN())
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if verr.Field != "probability" {
		t.Errorf("expected field 'probability', got %q", verr.Field)
	}

	got, err := AssessStrict(0.9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Level != LevelHigh {
		t.Errorf("expected high, got %s", got.Level)
	}
}

func TestLevelOrdering(t *testing.T) {
	ordered := []Level{LevelSafe, LevelLow, LevelMedium, LevelHigh}
	for i := 1; i < len(ordered); i++ {
		if !ordered[i].AtLeast(ordered[i-1]) {
			t.Errorf("%s should be at least %s", ordered[i], ordered[i-1])
		}
		if ordered[i-1].AtLeast(ordered[i]) {
			t.Errorf("%s should not be at least %s", ordered[i-1], ordered[i])
		}
	}
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"safe", "low", "medium", "high"} {
		if _, err := ParseLevel(s); err != nil {
			t.Errorf("ParseLevel(%q) failed: %v", s, err)
		}
	}
	if _, err := ParseLevel("critical"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestAnalyzePatterns(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		want     map[string]int
	}{
		{"nil input", nil, map[string]int{}},
		{"empty input", []string{}, map[string]int{}},
		{"single", []string{"a"}, map[string]int{"a": 1}},
		{"mixed", []string{"a", "b", "a", "a", "c"}, map[string]int{"a": 3, "b": 1, "c": 1}},
		{"emoji labels", []string{"👧💕", "🌀👦", "👧💕"}, map[string]int{"👧💕": 2, "🌀👦": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnalyzePatterns(tt.patterns)
			if got == nil {
				t.Fatal("AnalyzePatterns returned nil map")
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("AnalyzePatterns(%v) = %v, want %v", tt.patterns, got, tt.want)
			}
		})
	}
}

func TestAnalyzePatterns_OrderIndependent(t *testing.T) {
	a := AnalyzePatterns([]string{"x", "y", "x", "z"})
	b := AnalyzePatterns([]string{"z", "x", "x", "y"})
	if !reflect.DeepEqual(a, b) {
		t.Errorf("counts depend on input order: %v vs %v", a, b)
	}
}

func TestRankPatterns(t *testing.T) {
	got := RankPatterns(map[string]int{"b": 2, "a": 2, "c": 5, "d": 1})
	want := []PatternCount{{"c", 5}, {"a", 2}, {"b", 2}, {"d", 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RankPatterns = %v, want %v", got, want)
	}
	if got := RankPatterns(nil); len(got) != 0 {
		t.Errorf("RankPatterns(nil) = %v, want empty", got)
	}
}

func fixedClock() time.Time {
	return time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
}

func TestBuilder_Build(t *testing.T) {
	b := NewBuilder(fixedClock)
	summary := Summary{
		TotalComments:        100,
		SuspiciousCount:      25,
		SuspiciousPercentage: 25.0,
		Accuracy:             0.9,
	}

	report := b.Build(summary)

	if report.Risks != Assess(0.25) {
		t.Errorf("expected risks %+v, got %+v", Assess(0.25), report.Risks)
	}
	if report.Risks.Level != LevelSafe {
		t.Errorf("expected safe, got %s", report.Risks.Level)
	}
	if report.Summary.DetectionRate != 25.0 {
		t.Errorf("expected detection rate 25.0, got %f", report.Summary.DetectionRate)
	}
	if report.Summary.TotalComments != 100 || report.Summary.SuspiciousCount != 25 {
		t.Errorf("unexpected counts: %+v", report.Summary)
	}
	if report.Summary.Accuracy != 0.9 {
		t.Errorf("expected accuracy 0.9, got %f", report.Summary.Accuracy)
	}
	if report.Timestamp != "2024-01-15T10:30:00.000Z" {
		t.Errorf("unexpected timestamp %q", report.Timestamp)
	}
}

func TestBuilder_BuildIdempotent(t *testing.T) {
	b := NewBuilder(fixedClock)
	summary := Summary{TotalComments: 10, SuspiciousCount: 9, SuspiciousPercentage: 90, Accuracy: 0.5}
	original := summary

	first := b.Build(summary)
	second := b.Build(summary)

	if first != second {
		t.Errorf("Build is not idempotent: %+v vs %+v", first, second)
	}
	if summary != original {
		t.Error("Build mutated its input")
	}
	if first.Risks.Level != LevelHigh {
		t.Errorf("expected high for 90%%, got %s", first.Risks.Level)
	}
}

func TestBuilder_TimestampIsUTC(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	b := NewBuilder(func() time.Time {
		return time.Date(2024, 1, 15, 7, 30, 0, 123456789, loc)
	})
	report := b.Build(Summary{})
	if report.Timestamp != "2024-01-15T10:30:00.123Z" {
		t.Errorf("unexpected timestamp %q", report.Timestamp)
	}
}

func TestBuildReport_UsesWallClock(t *testing.T) {
	before := time.Now().UTC().Truncate(time.Millisecond)
	report := BuildReport(Summary{SuspiciousPercentage: 70})
	after := time.Now().UTC()

	ts, err := time.Parse(TimestampLayout, report.Timestamp)
	if err != nil {
		t.Fatalf("timestamp %q does not parse: %v", report.Timestamp, err)
	}
	if ts.Before(before) || ts.After(after) {
		t.Errorf("timestamp %v outside [%v, %v]", ts, before, after)
	}
	if report.Risks.Level != LevelMedium {
		t.Errorf("expected medium for 70%%, got %s", report.Risks.Level)
	}
}

func TestSummaryValidate(t *testing.T) {
	tests := []struct {
		name    string
		summary Summary
		wantErr bool
	}{
		{"valid", Summary{TotalComments: 100, SuspiciousCount: 25, SuspiciousPercentage: 25, Accuracy: 0.9}, false},
		{"empty", Summary{}, false},
		{"negative total", Summary{TotalComments: -1}, true},
		{"negative suspicious", Summary{TotalComments: 1, SuspiciousCount: -1}, true},
		{"suspicious exceeds total", Summary{TotalComments: 1, SuspiciousCount: 2, SuspiciousPercentage: 50}, true},
		{"percentage above 100", Summary{TotalComments: 1, SuspiciousCount: 1, SuspiciousPercentage: 101}, true},
		{"percentage NaN", Summary{SuspiciousPercentage: math.NaN()}, true},
		{"accuracy infinite", Summary{Accuracy: math.Inf(1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.summary.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Summary.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuilder_BuildValidated(t *testing.T) {
	b := NewBuilder(fixedClock)

	if _, err := b.BuildValidated(Summary{TotalComments: 1, SuspiciousCount: 5}); err == nil {
		t.Error("expected validation error")
	}

	report, err := b.BuildValidated(Summary{TotalComments: 4, SuspiciousCount: 2, SuspiciousPercentage: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Risks.Level != LevelLow {
		t.Errorf("expected low for 50%%, got %s", report.Risks.Level)
	}
}

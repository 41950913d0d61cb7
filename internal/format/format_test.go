package format

import (
	"math"
	"testing"
)

func TestNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1234, "1.234"},
		{1234567, "1.234.567"},
		{1234.5, "1.234,5"},
		{0.1234, "0,123"},
		{-2500, "-2.500"},
	}
	for _, tt := range tests {
		if got := Number(tt.in); got != tt.want {
			t.Errorf("Number(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNumberNonFinite(t *testing.T) {
	if got := Number(math.NaN()); got != "NaN" {
		t.Errorf("Number(NaN) = %q", got)
	}
}

func TestInt(t *testing.T) {
	if got := Int(5000); got != "5.000" {
		t.Errorf("Int(5000) = %q, want %q", got, "5.000")
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		in       float64
		decimals int
		want     string
	}{
		{25, 2, "25.00%"},
		{33.333333, 2, "33.33%"},
		{66.666666, 1, "66.7%"},
		{5, 0, "5%"},
		{0.125, -1, "0%"},
		{100, 2, "100.00%"},
	}
	for _, tt := range tests {
		if got := Percentage(tt.in, tt.decimals); got != tt.want {
			t.Errorf("Percentage(%v, %d) = %q, want %q", tt.in, tt.decimals, got, tt.want)
		}
	}
}

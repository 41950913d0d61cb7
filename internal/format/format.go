// Package format renders numbers for dashboards and notifications.
package format

import (
	"math"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Locale is the display locale for counts.
var Locale = language.BrazilianPortuguese

const maxFractionDigits = 3

// Number formats n with pt-BR digit grouping and decimal comma, keeping at
// most three fraction digits: 1234567 → "1.234.567", 1234.5 → "1.234,5".
func Number(n float64) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	p := message.NewPrinter(Locale)
	return p.Sprint(number.Decimal(n, number.MaxFractionDigits(maxFractionDigits)))
}

// Int formats an integer count like Number.
func Int(n int) string {
	return message.NewPrinter(Locale).Sprint(number.Decimal(n))
}

// Percentage formats n with a fixed number of decimals and a trailing "%".
// The decimal separator is always a dot: Percentage(25, 2) → "25.00%".
func Percentage(n float64, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	return strconv.FormatFloat(n, 'f', decimals, 64) + "%"
}

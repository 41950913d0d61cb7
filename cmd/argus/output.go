package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/rewired-gh/argus/internal/format"
	"github.com/rewired-gh/argus/internal/pipeline"
	"github.com/rewired-gh/argus/internal/risk"
)

const (
	topPatterns = 10
	topRows     = 10
	ruleWidth   = 50
)

// riskColor maps a risk color token to a terminal color.
func riskColor(token string) *color.Color {
	switch token {
	case risk.ColorDanger:
		return color.New(color.FgRed, color.Bold)
	case risk.ColorWarning:
		return color.New(color.FgYellow, color.Bold)
	case risk.ColorInfo:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgGreen)
	}
}

func printReport(w io.Writer, r risk.Report) {
	bold := color.New(color.Bold)
	dim := color.New(color.FgHiBlack)

	_, _ = dim.Fprintln(w, strings.Repeat("━", ruleWidth))
	_, _ = bold.Fprintln(w, "RELATÓRIO DE RISCO")
	s := r.Summary
	fmt.Fprintf(w, "  Comentários analisados: %s\n", format.Int(s.TotalComments))
	fmt.Fprintf(w, "  Suspeitos:              %s (%s)\n", format.Int(s.SuspiciousCount), format.Percentage(s.DetectionRate, 2))
	fmt.Fprintf(w, "  Acurácia:               %s\n", format.Percentage(s.Accuracy*100, 2))
	fmt.Fprint(w, "  Nível:                  ")
	_, _ = riskColor(r.Risks.Color).Fprintln(w, r.Risks.Text)
	_, _ = dim.Fprintf(w, "  Gerado em %s\n", r.Timestamp)
}

func printPatterns(w io.Writer, freq map[string]int) {
	if len(freq) == 0 {
		return
	}
	ranked := risk.RankPatterns(freq)
	if len(ranked) > topPatterns {
		ranked = ranked[:topPatterns]
	}
	fmt.Fprintln(w)
	_, _ = color.New(color.Bold).Fprintln(w, "PADRÕES MAIS FREQUENTES")
	for _, p := range ranked {
		fmt.Fprintf(w, "  %-24s %s\n", p.Pattern, format.Int(p.Count))
	}
}

func printOutcome(w io.Writer, out *pipeline.Outcome) {
	bold := color.New(color.Bold)

	fmt.Fprintf(w, "Análise %s · %s\n", out.Session.ID, out.Dataset.Name)
	printReport(w, out.Report)
	printPatterns(w, out.PatternFrequency)

	if len(out.Users) > 0 {
		fmt.Fprintln(w)
		_, _ = bold.Fprintln(w, "USUÁRIOS MAIS SUSPEITOS")
		for _, u := range first(out.Users, topRows) {
			line := fmt.Sprintf("  %-20s %d/%d (%s)", u.Username, u.SuspiciousCount, u.TotalComments, format.Percentage(u.SuspicionScore, 2))
			_, _ = riskColor(risk.Assess(u.SuspicionScore/100).Color).Fprintln(w, line)
		}
	}

	if len(out.Posts) > 0 {
		fmt.Fprintln(w)
		_, _ = bold.Fprintln(w, "POSTS MAIS VISADOS")
		for _, p := range first(out.Posts, topRows) {
			fmt.Fprintf(w, "  #%-6d @%-18s %d/%d (%s)\n", p.PostID, p.Username, p.SuspiciousCount, p.TotalComments, format.Percentage(p.SuspicionRatio, 2))
		}
	}

	if out.ActualSuspicious > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Precisão da detecção: %s (%s de %s rotulados)\n",
			format.Percentage(out.DetectionAccuracy, 2),
			format.Int(out.Session.SuspiciousCount),
			format.Int(out.ActualSuspicious))
	}
	if out.ElapsedSeconds > 0 {
		_, _ = color.New(color.FgHiBlack).Fprintf(w, "Tempo de análise: %s s\n", format.Number(out.ElapsedSeconds))
	}
}

func first[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// Package export writes analysis results for download: flagged comments as
// CSV and risk reports as JSON or YAML.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rewired-gh/argus/internal/models"
	"github.com/rewired-gh/argus/internal/risk"
)

// Format is a supported export format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("Formato não suportado: %q", s)
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatYAML:
		return "application/yaml; charset=utf-8"
	default:
		return "application/json"
	}
}

// SuspiciousCommentsHeader is the CSV header row.
var SuspiciousCommentsHeader = []string{
	"comment_id", "username", "comment_text", "probability",
	"risk_level", "detected_patterns", "analysis_date",
}

const (
	noPatterns = "Nenhum padrão específico"
	dateLayout = "02/01/2006 15:04"
)

// Filename returns the download name for a session's flagged comments.
func Filename(session *models.AnalysisSession, f Format) string {
	return fmt.Sprintf("argus_analysis_%s_suspicious_comments.%s", session.ID, f)
}

// RiskLabel maps a probability to the Portuguese label used in exports.
// Labels follow risk.Assess: above 0.8 is ALTO, above 0.6 is MÉDIO.
func RiskLabel(probability float64) string {
	switch risk.Assess(probability).Level {
	case risk.LevelHigh:
		return "ALTO"
	case risk.LevelMedium:
		return "MÉDIO"
	default:
		return "BAIXO"
	}
}

// WriteSuspiciousCommentsCSV writes one row per flagged comment. The output
// starts with a UTF-8 BOM so spreadsheet tools detect the encoding.
func WriteSuspiciousCommentsCSV(w io.Writer, session *models.AnalysisSession, comments []models.SuspiciousComment) error {
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(SuspiciousCommentsHeader); err != nil {
		return err
	}

	date := session.CreatedAt.UTC().Format(dateLayout)
	for _, c := range comments {
		patterns := noPatterns
		if len(c.Patterns) > 0 {
			patterns = strings.Join(c.Patterns, ", ")
		}
		rec := []string{
			strconv.FormatInt(c.CommentID, 10),
			c.Username,
			c.Text,
			strconv.FormatFloat(c.Probability, 'f', 4, 64),
			RiskLabel(c.Probability),
			patterns,
			date,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("csv: comment %d: %w", c.CommentID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteReportJSON writes report as indented JSON.
func WriteReportJSON(w io.Writer, report risk.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// WriteReportYAML writes report as YAML with the same keys as the JSON form.
func WriteReportYAML(w io.Writer, report risk.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	return enc.Close()
}

// WriteReport writes report in f. CSV is not a report format.
func WriteReport(w io.Writer, report risk.Report, f Format) error {
	switch f {
	case FormatJSON:
		return WriteReportJSON(w, report)
	case FormatYAML:
		return WriteReportYAML(w, report)
	}
	return fmt.Errorf("Formato não suportado: %q", f)
}

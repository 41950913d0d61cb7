package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/argus/internal/dashboardapi"
	"github.com/rewired-gh/argus/internal/export"
	"github.com/rewired-gh/argus/internal/pipeline"
	"github.com/rewired-gh/argus/internal/risk"
)

var (
	reportFormat  string
	reportFromURL string
)

var reportCmd = &cobra.Command{
	Use:   "report <session-id>",
	Short: "Print the risk report of a stored analysis",
	Long: `Report rebuilds the risk report of an analysis session, either from the
local database or from a remote dashboard API.

Examples:
  argus report 3f0c...
  argus report 3f0c... --format yaml
  argus report 3f0c... --from-url http://dashboard:8080`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "text", "Output format (text, json, yaml)")
	reportCmd.Flags().StringVar(&reportFromURL, "from-url", "", "Fetch the report from a dashboard API instead of the local database (default dashboard.base_url)")
}

// reportView is what the text renderer needs from either source.
type reportView struct {
	sessionID string
	status    string
	report    risk.Report
	patterns  map[string]int
}

func runReport(cmd *cobra.Command, args []string) error {
	var f export.Format
	if reportFormat != "text" {
		var err error
		if f, err = export.ParseFormat(reportFormat); err != nil || f == export.FormatCSV {
			return fmt.Errorf("unsupported format %q (text, json, yaml)", reportFormat)
		}
	}

	var (
		view *reportView
		err  error
	)
	if base := dashboardURL(reportFromURL); base != "" {
		view, err = remoteReport(cmd.Context(), base, args[0])
	} else {
		view, err = localReport(cmd.Context(), args[0])
	}
	if err != nil {
		return err
	}

	if f != "" {
		return export.WriteReport(cmd.OutOrStdout(), view.report, f)
	}
	printReportView(cmd.OutOrStdout(), view)
	return nil
}

func localReport(ctx context.Context, sessionID string) (*reportView, error) {
	store, err := openStorage()
	if err != nil {
		return nil, err
	}
	defer closeStorage(store)

	sess, err := store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis: %w", err)
	}
	flagged, err := store.ListSuspiciousComments(ctx, sess.ID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load suspicious comments: %w", err)
	}

	return &reportView{
		sessionID: sess.ID,
		status:    string(sess.Status),
		report:    risk.BuildReport(sess.Summary()),
		patterns:  pipeline.PatternFrequency(flagged),
	}, nil
}

// remoteReport prints the report the dashboard built, labelled with the
// session status from its summary.
func remoteReport(ctx context.Context, baseURL, sessionID string) (*reportView, error) {
	client := dashboardClient(baseURL)

	summary, err := client.FetchSummary(ctx, sessionID)
	if dashboardapi.IsNotFound(err) {
		return nil, fmt.Errorf("Análise não encontrada: %s", sessionID)
	}
	if err != nil {
		return nil, err
	}
	report, err := client.FetchReport(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &reportView{
		sessionID: summary.SessionID,
		status:    summary.Status,
		report:    *report,
	}, nil
}

// dashboardURL returns the flag value, falling back to dashboard.base_url.
// Empty means the local database.
func dashboardURL(flag string) string {
	if flag != "" {
		return flag
	}
	return cfg.Dashboard.BaseURL
}

func dashboardClient(baseURL string) *dashboardapi.Client {
	d := cfg.Dashboard
	return dashboardapi.NewClient(baseURL, d.CSRFToken, d.Timeout, dashboardapi.ClientConfig{MaxRetries: d.MaxRetries})
}

func printReportView(w io.Writer, v *reportView) {
	fmt.Fprintf(w, "Análise %s (%s)\n", v.sessionID, v.status)
	printReport(w, v.report)
	printPatterns(w, v.patterns)
}

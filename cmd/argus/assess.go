package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/argus/internal/format"
	"github.com/rewired-gh/argus/internal/risk"
)

var (
	assessFormat  string
	assessFromURL string
)

var assessCmd = &cobra.Command{
	Use:   "assess <probability>",
	Short: "Classify a suspicion probability into a risk level",
	Long: `Assess maps a probability in [0, 1] to its risk level, locally or through
a dashboard API.

Examples:
  argus assess 0.85
  argus assess 0.7 --format json
  argus assess 0.7 --from-url http://dashboard:8080`,
	Args: cobra.ExactArgs(1),
	RunE: runAssess,
}

func init() {
	assessCmd.Flags().StringVarP(&assessFormat, "format", "f", "text", "Output format (text, json)")
	assessCmd.Flags().StringVar(&assessFromURL, "from-url", "", "Ask a dashboard API instead of classifying locally (default dashboard.base_url)")
}

func runAssess(cmd *cobra.Command, args []string) error {
	if assessFormat != "text" && assessFormat != "json" {
		return fmt.Errorf("unsupported format %q (text, json)", assessFormat)
	}
	p, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid probability %q: %w", args[0], err)
	}

	var a *risk.Assessment
	if base := dashboardURL(assessFromURL); base != "" {
		if a, err = dashboardClient(base).Assess(cmd.Context(), p); err != nil {
			return err
		}
	} else {
		local, err := risk.AssessStrict(p)
		if err != nil {
			return err
		}
		a = &local
	}

	w := cmd.OutOrStdout()
	if assessFormat == "json" {
		return json.NewEncoder(w).Encode(a)
	}
	fmt.Fprintf(w, "Probabilidade %s: ", format.Number(p))
	_, _ = riskColor(a.Color).Fprintln(w, a.Text)
	return nil
}

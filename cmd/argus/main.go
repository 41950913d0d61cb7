package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/argus/internal/config"
	"github.com/rewired-gh/argus/internal/detector"
	"github.com/rewired-gh/argus/internal/logger"
	"github.com/rewired-gh/argus/internal/metrics"
	"github.com/rewired-gh/argus/internal/pipeline"
	"github.com/rewired-gh/argus/internal/storage"
	"github.com/rewired-gh/argus/internal/telegram"
)

// Version info set at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "argus",
	Short: "Suspicious comment detection for social media datasets",
	Long: `ARGUS scores the comments of a posts/comments dataset for predatory
patterns, aggregates the results per user and per post, and reports the
overall risk level of each analysis.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

var versionCmd = &cobra.Command{
	Use:               "version",
	Short:             "Print version information",
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "argus %s\n", version)
		fmt.Fprintf(w, "  commit: %s\n", commit)
		fmt.Fprintf(w, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (defaults and ARGUS_* environment variables when empty)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(assessCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg = c

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if configPath != "" {
		logger.Debug("Configuration loaded from %s", configPath)
	}
	return nil
}

func openStorage() (*storage.Storage, error) {
	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

func closeStorage(store *storage.Storage) {
	if err := store.Close(); err != nil {
		logger.Error("Failed to close storage: %v", err)
	}
}

func newDetector() (*detector.Detector, error) {
	d := cfg.Detector
	return detector.New(detector.Config{
		Threshold:       d.Threshold,
		PatternWeight:   d.PatternWeight,
		ChildTermWeight: d.ChildTermWeight,
		BaseProbability: d.BaseProbability,
		MaxProbability:  d.MaxProbability,
	})
}

// newNotifier returns nil when Telegram is disabled.
func newNotifier(m *metrics.Metrics) (*telegram.Notifier, error) {
	if !cfg.Telegram.Enabled {
		return nil, nil
	}
	t := cfg.Telegram
	n, err := telegram.NewNotifier(t.BotToken, t.ChatID, t.MaxRetries, t.RetryDelayBase, t.MinLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram notifier: %w", err)
	}
	n.SetMetrics(m)
	return n, nil
}

// pipelineOptions builds run options from the configuration, recording into m
// and notifying Telegram when it is enabled.
func pipelineOptions(m *metrics.Metrics) (pipeline.Options, error) {
	opts := pipeline.Options{
		TopUsers:    cfg.Detector.TopUsers,
		TopPosts:    cfg.Detector.TopPosts,
		MaxSessions: cfg.Storage.MaxSessions,
		Metrics:     m,
	}
	notifier, err := newNotifier(m)
	if err != nil {
		return opts, err
	}
	if notifier != nil {
		opts.Notifier = notifier
	}
	return opts, nil
}

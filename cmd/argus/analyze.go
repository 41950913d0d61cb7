package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/rewired-gh/argus/internal/dataset"
	"github.com/rewired-gh/argus/internal/logger"
	"github.com/rewired-gh/argus/internal/models"
	"github.com/rewired-gh/argus/internal/pipeline"
	"github.com/rewired-gh/argus/internal/storage"
)

var (
	analyzePosts       string
	analyzeComments    string
	analyzeName        string
	analyzeDescription string
	analyzeFormat      string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a posts/comments dataset",
	Long: `Analyze reads posts.csv and comments.csv, scores every comment, stores
the session and prints the risk report.

Examples:
  argus analyze --posts posts.csv --comments comments.csv
  argus analyze --posts posts.csv --comments comments.csv --format json`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzePosts, "posts", "", "Path to posts.csv")
	analyzeCmd.Flags().StringVar(&analyzeComments, "comments", "", "Path to comments.csv")
	analyzeCmd.Flags().StringVarP(&analyzeName, "name", "n", "", "Dataset name (default Dataset_N)")
	analyzeCmd.Flags().StringVar(&analyzeDescription, "description", "", "Dataset description")
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", "text", "Output format (text, json)")
	_ = analyzeCmd.MarkFlagRequired("posts")
	_ = analyzeCmd.MarkFlagRequired("comments")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if analyzeFormat != "text" && analyzeFormat != "json" {
		return fmt.Errorf("unsupported format %q (text, json)", analyzeFormat)
	}

	posts, comments, err := readDataset(analyzePosts, analyzeComments)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer closeStorage(store)

	out, err := runPipeline(ctx, cmd.ErrOrStderr(), store, pipeline.Input{
		Name:        analyzeName,
		Description: analyzeDescription,
		Posts:       posts,
		Comments:    comments,
	})
	if err != nil {
		return err
	}

	if analyzeFormat == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	printOutcome(cmd.OutOrStdout(), out)
	return nil
}

func readDataset(postsPath, commentsPath string) ([]models.Post, []models.Comment, error) {
	pf, err := os.Open(postsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open posts: %w", err)
	}
	defer pf.Close()
	posts, err := dataset.ReadPosts(pf)
	if err != nil {
		return nil, nil, err
	}

	cf, err := os.Open(commentsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open comments: %w", err)
	}
	defer cf.Close()
	comments, err := dataset.ReadComments(cf)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("Loaded %d posts and %d comments", len(posts), len(comments))
	return posts, comments, nil
}

// runPipeline analyzes in. Telegram hears about the outcome when enabled.
func runPipeline(ctx context.Context, progress io.Writer, store *storage.Storage, in pipeline.Input) (*pipeline.Outcome, error) {
	det, err := newDetector()
	if err != nil {
		return nil, err
	}
	opts, err := pipelineOptions(nil)
	if err != nil {
		return nil, err
	}

	if in.Name == "" {
		if in.Name, err = pipeline.NextDatasetName(ctx, store, "Dataset"); err != nil {
			return nil, err
		}
	}

	stopSpinner := startSpinner(progress, fmt.Sprintf(" Analisando %d comentários...", len(in.Comments)))
	out, err := pipeline.Run(ctx, store, det, in, opts)
	stopSpinner()
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}
	return out, nil
}

// startSpinner shows a spinner on terminals and returns its stop function.
func startSpinner(w io.Writer, suffix string) func() {
	f, ok := w.(*os.File)
	if !ok || !isatty.IsTerminal(f.Fd()) {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = suffix
	s.Start()
	return s.Stop
}

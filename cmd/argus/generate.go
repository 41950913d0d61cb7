package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rewired-gh/argus/internal/dataset"
	"github.com/rewired-gh/argus/internal/format"
	"github.com/rewired-gh/argus/internal/logger"
	"github.com/rewired-gh/argus/internal/pipeline"
	"github.com/rewired-gh/argus/internal/telegram"
)

var (
	generatePosts    int
	generateComments int
	generateRatio    float64
	generateOut      string
	generateSeed     uint64
	generateAnalyze  bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a labelled synthetic dataset",
	Long: `Generate writes posts.csv and comments.csv with an exact share of
suspicious comments, labelled in the is_suspicious_actual column.

Examples:
  argus generate --out ./data
  argus generate --posts-count 50 --comments-count 500 --ratio 0.1 --analyze`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().IntVar(&generatePosts, "posts-count", 1000, "Number of posts")
	generateCmd.Flags().IntVar(&generateComments, "comments-count", 5000, "Number of comments")
	generateCmd.Flags().Float64Var(&generateRatio, "ratio", 0.05, "Share of suspicious comments (0-1)")
	generateCmd.Flags().StringVarP(&generateOut, "out", "o", ".", "Output directory")
	generateCmd.Flags().Uint64Var(&generateSeed, "seed", 0, "Random seed (0 picks one from the clock)")
	generateCmd.Flags().BoolVar(&generateAnalyze, "analyze", false, "Analyze the generated dataset right away")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	seed := generateSeed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	posts, comments, suspicious, err := dataset.NewGenerator(seed).Generate(generatePosts, generateComments, generateRatio)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(generateOut, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	postsPath := filepath.Join(generateOut, "posts.csv")
	commentsPath := filepath.Join(generateOut, "comments.csv")
	if err := writeCSV(postsPath, func(f *os.File) error { return dataset.WritePosts(f, posts) }); err != nil {
		return err
	}
	if err := writeCSV(commentsPath, func(f *os.File) error { return dataset.WriteComments(f, comments) }); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	_, _ = color.New(color.FgGreen).Fprintln(w, "Dataset gerado com sucesso!")
	fmt.Fprintf(w, "  Posts:       %s (%s)\n", format.Int(len(posts)), postsPath)
	fmt.Fprintf(w, "  Comentários: %s (%s)\n", format.Int(len(comments)), commentsPath)
	fmt.Fprintf(w, "  Suspeitos:   %s (%s)\n", format.Int(suspicious), format.Percentage(suspiciousShare(suspicious, len(comments)), 2))
	fmt.Fprintf(w, "  Semente:     %d\n", seed)

	if !generateAnalyze {
		return notifyGenerated(cmd, len(posts), len(comments), suspicious)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer closeStorage(store)

	out, err := runPipeline(ctx, cmd.ErrOrStderr(), store, pipeline.Input{
		Description: fmt.Sprintf("Dataset com %d posts e %d comentários", len(posts), len(comments)),
		Posts:       posts,
		Comments:    comments,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(w)
	printOutcome(w, out)
	return nil
}

func writeCSV(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func suspiciousShare(suspicious, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(suspicious) / float64(total) * 100
}

func notifyGenerated(cmd *cobra.Command, posts, comments, suspicious int) error {
	n, err := newNotifier(nil)
	if err != nil || n == nil {
		return err
	}
	msg := fmt.Sprintf("Dataset gerado: %d posts, %d comentários, %d suspeitos", posts, comments, suspicious)
	if err := n.Alert(cmd.Context(), telegram.AlertSuccess, msg); err != nil {
		logger.Warn("Failed to send Telegram alert: %v", err)
	}
	return nil
}

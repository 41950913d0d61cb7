// Package pipeline runs a complete analysis over one dataset: it records the
// dataset and a session, scores every comment, aggregates the results per
// user and per post, persists them and builds the risk report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/argus/internal/detector"
	"github.com/rewired-gh/argus/internal/logger"
	"github.com/rewired-gh/argus/internal/metrics"
	"github.com/rewired-gh/argus/internal/models"
	"github.com/rewired-gh/argus/internal/risk"
)

// Store is the persistence the pipeline writes to.
type Store interface {
	AddDataset(ctx context.Context, d *models.Dataset) error
	CountDatasets(ctx context.Context) (int, error)
	AddSession(ctx context.Context, s *models.AnalysisSession) error
	UpdateSession(ctx context.Context, s *models.AnalysisSession) error
	SaveResults(ctx context.Context, s *models.AnalysisSession, comments []models.SuspiciousComment, users []models.UserBehavior, posts []models.PostAnalysis) error
	PruneSessions(ctx context.Context, keep int) (int, error)
}

// Notifier is told about finished runs.
type Notifier interface {
	NotifyReport(ctx context.Context, session *models.AnalysisSession, report risk.Report, patterns map[string]int) (bool, error)
	SendError(ctx context.Context, err error) error
}

// Input is a dataset to analyze.
type Input struct {
	Name        string
	Description string
	Posts       []models.Post
	Comments    []models.Comment
}

// Options tune a run. Zero values mean no limit, the wall clock and no
// notifications.
type Options struct {
	TopUsers    int
	TopPosts    int
	MaxSessions int
	Now         func() time.Time
	Metrics     *metrics.Metrics
	Notifier    Notifier
}

// Outcome is the result of a completed run.
type Outcome struct {
	Session          *models.AnalysisSession `json:"session"`
	Dataset          *models.Dataset         `json:"dataset"`
	Report           risk.Report             `json:"report"`
	PatternFrequency map[string]int          `json:"pattern_frequency"`
	Users            []models.UserBehavior   `json:"users"`
	Posts            []models.PostAnalysis   `json:"posts"`
	ActualSuspicious int                     `json:"actual_suspicious"`
	// DetectionAccuracy is detected/actual suspicious comments in percent,
	// 0 when the dataset has no labelled suspicious comments.
	DetectionAccuracy float64 `json:"detection_accuracy"`
	ElapsedSeconds    float64 `json:"elapsed_seconds"`
}

// PatternFrequency counts the keywords of flagged comments. Reports built
// at analysis time and from storage both use it.
func PatternFrequency(flagged []models.SuspiciousComment) map[string]int {
	var all []string
	for _, c := range flagged {
		all = append(all, c.Patterns...)
	}
	return risk.AnalyzePatterns(all)
}

// NextDatasetName returns "<prefix>_N" where N follows the stored dataset count.
func NextDatasetName(ctx context.Context, store Store, prefix string) (string, error) {
	n, err := store.CountDatasets(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to count datasets: %w", err)
	}
	return fmt.Sprintf("%s_%d", prefix, n+1), nil
}

// Run analyzes in. On failure after the session is created the session is
// marked FAILED, no results are kept and the error is returned. The notifier,
// when set, hears about both outcomes.
func Run(ctx context.Context, store Store, det *detector.Detector, in Input, opts Options) (*Outcome, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if det == nil {
		return nil, errors.New("detector is required")
	}
	if in.Name == "" {
		return nil, errors.New("dataset name is required")
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	started := time.Now()

	dataset := &models.Dataset{
		ID:            uuid.New().String(),
		Name:          in.Name,
		Description:   in.Description,
		CreatedAt:     now(),
		PostsCount:    len(in.Posts),
		CommentsCount: len(in.Comments),
	}
	if err := store.AddDataset(ctx, dataset); err != nil {
		return nil, fmt.Errorf("failed to save dataset: %w", err)
	}

	session := &models.AnalysisSession{
		ID:        uuid.New().String(),
		DatasetID: dataset.ID,
		CreatedAt: now(),
		Status:    models.StatusRunning,
	}
	if err := store.AddSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	logger.Info("Analysis %s started: dataset=%s posts=%d comments=%d",
		session.ID, dataset.Name, len(in.Posts), len(in.Comments))

	out, err := analyze(ctx, store, det, in, session, opts)
	if err != nil {
		session.Status = models.StatusFailed
		// The session row must reflect the failure even when ctx is done.
		if uerr := store.UpdateSession(context.WithoutCancel(ctx), session); uerr != nil {
			logger.Error("Failed to mark analysis %s as failed: %v", session.ID, uerr)
		}
		opts.Metrics.ObserveAnalysis(string(models.StatusFailed), len(in.Comments), 0, 0, time.Since(started))
		logger.Error("Analysis %s failed: %v", session.ID, err)
		if opts.Notifier != nil {
			if nerr := opts.Notifier.SendError(context.WithoutCancel(ctx), err); nerr != nil {
				logger.Warn("Failed to send error notification: %v", nerr)
			}
		}
		return nil, err
	}
	out.Dataset = dataset

	out.Report = risk.NewBuilder(now).Build(session.Summary())
	elapsed := time.Since(started)
	out.ElapsedSeconds = elapsed.Seconds()
	opts.Metrics.ObserveAnalysis(string(session.Status), session.TotalComments, session.SuspiciousCount,
		session.SuspiciousPercentage(), elapsed)
	logger.Info("Analysis %s completed: %d/%d suspicious (%.2f%%), accuracy %.4f, risk %s",
		session.ID, session.SuspiciousCount, session.TotalComments, session.SuspiciousPercentage(),
		session.Accuracy, out.Report.Risks.Level)

	if opts.MaxSessions > 0 {
		removed, err := store.PruneSessions(ctx, opts.MaxSessions)
		if err != nil {
			logger.Warn("Failed to prune old sessions: %v", err)
		} else if removed > 0 {
			logger.Debug("Pruned %d old sessions", removed)
		}
	}

	if opts.Notifier != nil {
		if _, err := opts.Notifier.NotifyReport(ctx, session, out.Report, out.PatternFrequency); err != nil {
			logger.Warn("Failed to send report notification: %v", err)
		}
	}

	return out, nil
}

func analyze(ctx context.Context, store Store, det *detector.Detector, in Input, session *models.AnalysisSession, opts Options) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := det.Detect(in.Comments)

	var flagged []models.SuspiciousComment
	actual := 0
	for i, c := range in.Comments {
		if c.Label != nil && *c.Label {
			actual++
		}
		if !res.Predictions[i] {
			continue
		}
		flagged = append(flagged, models.SuspiciousComment{
			SessionID:   session.ID,
			CommentID:   c.CommentID,
			Username:    c.Username,
			Text:        c.Text,
			Probability: res.Probabilities[i],
			Patterns:    res.Patterns[i],
		})
	}

	users := limit(detector.AnalyzeUserBehavior(in.Comments, res), opts.TopUsers)
	for i := range users {
		users[i].SessionID = session.ID
	}
	posts := limit(detector.AnalyzePostsTargeted(in.Posts, in.Comments, res), opts.TopPosts)
	for i := range posts {
		posts[i].SessionID = session.ID
	}
	logger.Debug("Analysis %s aggregated: flagged=%d users=%d posts=%d", session.ID, len(flagged), len(users), len(posts))

	done := *session
	done.TotalComments = len(in.Comments)
	done.SuspiciousCount = len(flagged)
	done.Accuracy = detector.Accuracy(res, in.Comments)
	done.Status = models.StatusCompleted
	if err := store.SaveResults(ctx, &done, flagged, users, posts); err != nil {
		return nil, fmt.Errorf("failed to save results: %w", err)
	}
	*session = done

	out := &Outcome{
		Session:          session,
		PatternFrequency: PatternFrequency(flagged),
		Users:            users,
		Posts:            posts,
		ActualSuspicious: actual,
	}
	if actual > 0 {
		out.DetectionAccuracy = float64(len(flagged)) / float64(actual) * 100
	}
	return out, nil
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

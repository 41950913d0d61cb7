// Package storage persists datasets, analysis sessions and their results in
// SQLite. Result rows belong to a session and are removed with it. A
// session's results are written together with its final status, and
// PruneSessions bounds how many sessions and datasets are retained.
//
// All inputs are validated before they are written, so rows read back are
// always well formed.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rewired-gh/argus/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS datasets (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL,
  posts_count INTEGER NOT NULL DEFAULT 0,
  comments_count INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS analysis_sessions (
  id TEXT PRIMARY KEY,
  dataset_id TEXT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
  created_at TEXT NOT NULL,
  total_comments INTEGER NOT NULL DEFAULT 0,
  suspicious_count INTEGER NOT NULL DEFAULT 0,
  accuracy REAL NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'PENDING'
);
CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON analysis_sessions(created_at);
CREATE TABLE IF NOT EXISTS suspicious_comments (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id TEXT NOT NULL REFERENCES analysis_sessions(id) ON DELETE CASCADE,
  comment_id INTEGER NOT NULL,
  username TEXT NOT NULL,
  comment_text TEXT NOT NULL,
  probability REAL NOT NULL,
  detected_patterns TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_sc_session ON suspicious_comments(session_id, probability);
CREATE TABLE IF NOT EXISTS user_behaviors (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id TEXT NOT NULL REFERENCES analysis_sessions(id) ON DELETE CASCADE,
  username TEXT NOT NULL,
  user_id INTEGER NOT NULL,
  suspicious_count INTEGER NOT NULL DEFAULT 0,
  total_comments INTEGER NOT NULL DEFAULT 0,
  suspicion_score REAL NOT NULL DEFAULT 0,
  detected_patterns TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_ub_session ON user_behaviors(session_id, suspicion_score);
CREATE TABLE IF NOT EXISTS post_analyses (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id TEXT NOT NULL REFERENCES analysis_sessions(id) ON DELETE CASCADE,
  post_id INTEGER NOT NULL,
  caption TEXT NOT NULL DEFAULT '',
  username TEXT NOT NULL,
  suspicious_count INTEGER NOT NULL DEFAULT 0,
  total_comments INTEGER NOT NULL DEFAULT 0,
  suspicion_ratio REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_pa_session ON post_analyses(session_id, suspicion_ratio);
`

// Storage is a SQLite-backed store. It is safe for concurrent use.
type Storage struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath and applies the
// schema. Use ":memory:" for a throwaway database.
func New(dbPath string) (*Storage, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, errors.New("sqlite path required")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close releases the database.
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// AddDataset inserts a dataset.
func (s *Storage) AddDataset(ctx context.Context, d *models.Dataset) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("invalid dataset: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO datasets (id, name, description, created_at, posts_count, comments_count)
VALUES (?, ?, ?, ?, ?, ?);
`, d.ID, d.Name, d.Description, d.CreatedAt.UTC().Format(timeLayout), d.PostsCount, d.CommentsCount)
	if err != nil {
		return fmt.Errorf("failed to insert dataset %s: %w", d.ID, err)
	}
	return nil
}

// GetDataset retrieves a dataset by ID.
func (s *Storage) GetDataset(ctx context.Context, id string) (*models.Dataset, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, name, description, created_at, posts_count, comments_count
FROM datasets WHERE id = ?;
`, id)
	d, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dataset %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListDatasets returns datasets newest first.
func (s *Storage) ListDatasets(ctx context.Context) ([]models.Dataset, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, description, created_at, posts_count, comments_count
FROM datasets ORDER BY created_at DESC;
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Dataset, 0)
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// CountDatasets returns the number of stored datasets.
func (s *Storage) CountDatasets(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM datasets;`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// AddSession inserts an analysis session. The dataset must exist.
func (s *Storage) AddSession(ctx context.Context, sess *models.AnalysisSession) error {
	if err := sess.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO analysis_sessions (id, dataset_id, created_at, total_comments, suspicious_count, accuracy, status)
VALUES (?, ?, ?, ?, ?, ?, ?);
`, sess.ID, sess.DatasetID, sess.CreatedAt.UTC().Format(timeLayout),
		sess.TotalComments, sess.SuspiciousCount, sess.Accuracy, string(sess.Status))
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", sess.ID, err)
	}
	return nil
}

// UpdateSession updates the counters, accuracy and status of a session.
func (s *Storage) UpdateSession(ctx context.Context, sess *models.AnalysisSession) error {
	if err := sess.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}
	return updateSession(ctx, s.db, sess)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func updateSession(ctx context.Context, db execer, sess *models.AnalysisSession) error {
	res, err := db.ExecContext(ctx, `
UPDATE analysis_sessions
SET total_comments = ?, suspicious_count = ?, accuracy = ?, status = ?
WHERE id = ?;
`, sess.TotalComments, sess.SuspiciousCount, sess.Accuracy, string(sess.Status), sess.ID)
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", sess.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", sess.ID, ErrNotFound)
	}
	return nil
}

// GetSession retrieves a session by ID.
func (s *Storage) GetSession(ctx context.Context, id string) (*models.AnalysisSession, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, dataset_id, created_at, total_comments, suspicious_count, accuracy, status
FROM analysis_sessions WHERE id = ?;
`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// ListSessions returns sessions newest first. A limit <= 0 returns all.
func (s *Storage) ListSessions(ctx context.Context, limit int) ([]models.AnalysisSession, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, dataset_id, created_at, total_comments, suspicious_count, accuracy, status
FROM analysis_sessions ORDER BY created_at DESC, id DESC LIMIT ?;
`, sqlLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.AnalysisSession, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

// PruneSessions deletes the oldest sessions beyond keep, together with their
// results and any dataset left without sessions. It returns the number of
// sessions removed.
func (s *Storage) PruneSessions(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	removed := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
SELECT id, dataset_id FROM analysis_sessions
ORDER BY created_at DESC, id DESC LIMIT -1 OFFSET ?;
`, keep)
		if err != nil {
			return err
		}
		var ids []string
		datasets := make(map[string]struct{})
		for rows.Next() {
			var id, datasetID string
			if err := rows.Scan(&id, &datasetID); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
			datasets[datasetID] = struct{}{}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `DELETE FROM analysis_sessions WHERE id = ?;`, id); err != nil {
				return fmt.Errorf("failed to delete session %s: %w", id, err)
			}
		}
		// Only datasets of the pruned sessions are candidates.
		for id := range datasets {
			if _, err := tx.ExecContext(ctx, `
DELETE FROM datasets
WHERE id = ? AND NOT EXISTS (SELECT 1 FROM analysis_sessions WHERE dataset_id = ?);
`, id, id); err != nil {
				return fmt.Errorf("failed to delete dataset %s: %w", id, err)
			}
		}
		removed = len(ids)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}
	return removed, nil
}

// SaveResults writes the flagged comments, user and post aggregates of a
// session and the session's final counters and status in one transaction.
// Nothing is written when any step fails.
func (s *Storage) SaveResults(ctx context.Context, sess *models.AnalysisSession, comments []models.SuspiciousComment, users []models.UserBehavior, posts []models.PostAnalysis) error {
	if err := sess.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}
	for i := range comments {
		if err := comments[i].Validate(); err != nil {
			return fmt.Errorf("invalid suspicious comment %d: %w", comments[i].CommentID, err)
		}
	}
	for i := range users {
		if err := users[i].Validate(); err != nil {
			return fmt.Errorf("invalid user behavior %s: %w", users[i].Username, err)
		}
	}
	for i := range posts {
		if err := posts[i].Validate(); err != nil {
			return fmt.Errorf("invalid post analysis %d: %w", posts[i].PostID, err)
		}
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertSuspiciousComments(ctx, tx, comments); err != nil {
			return err
		}
		if err := insertUserBehaviors(ctx, tx, users); err != nil {
			return err
		}
		if err := insertPostAnalyses(ctx, tx, posts); err != nil {
			return err
		}
		return updateSession(ctx, tx, sess)
	})
}

func insertSuspiciousComments(ctx context.Context, tx *sql.Tx, comments []models.SuspiciousComment) error {
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO suspicious_comments (session_id, comment_id, username, comment_text, probability, detected_patterns)
VALUES (?, ?, ?, ?, ?, ?);
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range comments {
		patterns, err := encodePatterns(c.Patterns)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, c.SessionID, c.CommentID, c.Username, c.Text, c.Probability, patterns); err != nil {
			return fmt.Errorf("failed to insert suspicious comment %d: %w", c.CommentID, err)
		}
	}
	return nil
}

// ListSuspiciousComments returns a session's flagged comments by probability
// descending. A limit <= 0 returns all.
func (s *Storage) ListSuspiciousComments(ctx context.Context, sessionID string, limit int) ([]models.SuspiciousComment, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT session_id, comment_id, username, comment_text, probability, detected_patterns
FROM suspicious_comments WHERE session_id = ?
ORDER BY probability DESC, comment_id ASC LIMIT ?;
`, sessionID, sqlLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.SuspiciousComment, 0)
	for rows.Next() {
		var c models.SuspiciousComment
		var patterns string
		if err := rows.Scan(&c.SessionID, &c.CommentID, &c.Username, &c.Text, &c.Probability, &patterns); err != nil {
			return nil, err
		}
		if c.Patterns, err = decodePatterns(patterns); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func insertUserBehaviors(ctx context.Context, tx *sql.Tx, behaviors []models.UserBehavior) error {
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO user_behaviors (session_id, username, user_id, suspicious_count, total_comments, suspicion_score, detected_patterns)
VALUES (?, ?, ?, ?, ?, ?, ?);
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range behaviors {
		patterns, err := encodePatterns(b.Patterns)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, b.SessionID, b.Username, b.UserID, b.SuspiciousCount, b.TotalComments, b.SuspicionScore, patterns); err != nil {
			return fmt.Errorf("failed to insert user behavior %s: %w", b.Username, err)
		}
	}
	return nil
}

// ListUserBehaviors returns a session's users by suspicion score descending.
// A limit <= 0 returns all.
func (s *Storage) ListUserBehaviors(ctx context.Context, sessionID string, limit int) ([]models.UserBehavior, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT session_id, username, user_id, suspicious_count, total_comments, suspicion_score, detected_patterns
FROM user_behaviors WHERE session_id = ?
ORDER BY suspicion_score DESC, username ASC LIMIT ?;
`, sessionID, sqlLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.UserBehavior, 0)
	for rows.Next() {
		var b models.UserBehavior
		var patterns string
		if err := rows.Scan(&b.SessionID, &b.Username, &b.UserID, &b.SuspiciousCount, &b.TotalComments, &b.SuspicionScore, &patterns); err != nil {
			return nil, err
		}
		if b.Patterns, err = decodePatterns(patterns); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func insertPostAnalyses(ctx context.Context, tx *sql.Tx, analyses []models.PostAnalysis) error {
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO post_analyses (session_id, post_id, caption, username, suspicious_count, total_comments, suspicion_ratio)
VALUES (?, ?, ?, ?, ?, ?, ?);
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range analyses {
		if _, err := stmt.ExecContext(ctx, p.SessionID, p.PostID, p.Caption, p.Username, p.SuspiciousCount, p.TotalComments, p.SuspicionRatio); err != nil {
			return fmt.Errorf("failed to insert post analysis %d: %w", p.PostID, err)
		}
	}
	return nil
}

// ListPostAnalyses returns a session's posts by suspicion ratio descending.
// A limit <= 0 returns all.
func (s *Storage) ListPostAnalyses(ctx context.Context, sessionID string, limit int) ([]models.PostAnalysis, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT session_id, post_id, caption, username, suspicious_count, total_comments, suspicion_ratio
FROM post_analyses WHERE session_id = ?
ORDER BY suspicion_ratio DESC, post_id ASC LIMIT ?;
`, sessionID, sqlLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.PostAnalysis, 0)
	for rows.Next() {
		var p models.PostAnalysis
		if err := rows.Scan(&p.SessionID, &p.PostID, &p.Caption, &p.Username, &p.SuspiciousCount, &p.TotalComments, &p.SuspicionRatio); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Storage) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDataset(row scanner) (*models.Dataset, error) {
	var d models.Dataset
	var createdAt string
	if err := row.Scan(&d.ID, &d.Name, &d.Description, &createdAt, &d.PostsCount, &d.CommentsCount); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at for dataset %s: %w", d.ID, err)
	}
	d.CreatedAt = t
	return &d, nil
}

func scanSession(row scanner) (*models.AnalysisSession, error) {
	var sess models.AnalysisSession
	var createdAt, status string
	if err := row.Scan(&sess.ID, &sess.DatasetID, &createdAt, &sess.TotalComments, &sess.SuspiciousCount, &sess.Accuracy, &status); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at for session %s: %w", sess.ID, err)
	}
	sess.CreatedAt = t
	sess.Status = models.Status(status)
	return &sess, nil
}

func encodePatterns(patterns []string) (string, error) {
	if patterns == nil {
		patterns = []string{}
	}
	data, err := json.Marshal(patterns)
	if err != nil {
		return "", fmt.Errorf("failed to encode patterns: %w", err)
	}
	return string(data), nil
}

func decodePatterns(raw string) ([]string, error) {
	patterns := []string{}
	if raw == "" {
		return patterns, nil
	}
	if err := json.Unmarshal([]byte(raw), &patterns); err != nil {
		return nil, fmt.Errorf("failed to decode patterns: %w", err)
	}
	return patterns, nil
}

// sqlLimit maps "no limit" onto SQLite's LIMIT -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

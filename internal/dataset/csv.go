// Package dataset reads, writes and generates the posts/comments CSV pairs
// that analyses run over.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rewired-gh/argus/internal/models"
)

// Column sets. The required columns must be present in an uploaded file; the
// rest are read when present.
var (
	PostColumns            = []string{"post_id", "user_id", "username", "caption", "post_date", "likes_count"}
	RequiredPostColumns    = []string{"post_id", "user_id", "username", "caption", "post_date"}
	CommentColumns         = []string{"comment_id", "post_id", "user_id", "username", "comment_text", "comment_date", "is_suspicious_actual"}
	RequiredCommentColumns = []string{"comment_id", "post_id", "user_id", "username", "comment_text"}
)

// DateLayout is the date format used when writing CSV files.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02/01/2006",
}

// MissingColumnsError reports a CSV file that lacks required columns.
type MissingColumnsError struct {
	File    string
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s não tem as colunas necessárias: %s", e.File, strings.Join(e.Missing, ", "))
}

// ReadPosts parses a posts CSV.
func ReadPosts(r io.Reader) ([]models.Post, error) {
	rows, err := readTable(r, "posts.csv", RequiredPostColumns)
	if err != nil {
		return nil, err
	}

	posts := make([]models.Post, 0, len(rows.records))
	for i, rec := range rows.records {
		line := i + 2
		var p models.Post
		if p.PostID, err = rows.integer(rec, "post_id"); err != nil {
			return nil, lineError("posts.csv", line, err)
		}
		if p.UserID, err = rows.integer(rec, "user_id"); err != nil {
			return nil, lineError("posts.csv", line, err)
		}
		p.Username = rows.get(rec, "username")
		p.Caption = rows.get(rec, "caption")
		if p.PostDate, err = rows.date(rec, "post_date"); err != nil {
			return nil, lineError("posts.csv", line, err)
		}
		if rows.has("likes_count") && rows.get(rec, "likes_count") != "" {
			likes, err := rows.integer(rec, "likes_count")
			if err != nil {
				return nil, lineError("posts.csv", line, err)
			}
			p.LikesCount = int(likes)
		}
		if err := p.Validate(); err != nil {
			return nil, lineError("posts.csv", line, err)
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// ReadComments parses a comments CSV. The ground-truth label is kept when the
// is_suspicious_actual column is present and non-empty.
func ReadComments(r io.Reader) ([]models.Comment, error) {
	rows, err := readTable(r, "comments.csv", RequiredCommentColumns)
	if err != nil {
		return nil, err
	}

	comments := make([]models.Comment, 0, len(rows.records))
	for i, rec := range rows.records {
		line := i + 2
		var c models.Comment
		if c.CommentID, err = rows.integer(rec, "comment_id"); err != nil {
			return nil, lineError("comments.csv", line, err)
		}
		if c.PostID, err = rows.integer(rec, "post_id"); err != nil {
			return nil, lineError("comments.csv", line, err)
		}
		if c.UserID, err = rows.integer(rec, "user_id"); err != nil {
			return nil, lineError("comments.csv", line, err)
		}
		c.Username = rows.get(rec, "username")
		c.Text = rows.get(rec, "comment_text")
		if rows.has("comment_date") {
			if c.CommentDate, err = rows.date(rec, "comment_date"); err != nil {
				return nil, lineError("comments.csv", line, err)
			}
		}
		if raw := rows.get(rec, "is_suspicious_actual"); raw != "" {
			label, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, lineError("comments.csv", line, fmt.Errorf("is_suspicious_actual: %w", err))
			}
			c.Label = &label
		}
		if err := c.Validate(); err != nil {
			return nil, lineError("comments.csv", line, err)
		}
		comments = append(comments, c)
	}
	return comments, nil
}

// WritePosts writes posts with the full column set.
func WritePosts(w io.Writer, posts []models.Post) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(PostColumns); err != nil {
		return err
	}
	for _, p := range posts {
		rec := []string{
			strconv.FormatInt(p.PostID, 10),
			strconv.FormatInt(p.UserID, 10),
			p.Username,
			p.Caption,
			formatDate(p.PostDate),
			strconv.Itoa(p.LikesCount),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteComments writes comments with the full column set. Unknown labels are
// left empty.
func WriteComments(w io.Writer, comments []models.Comment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CommentColumns); err != nil {
		return err
	}
	for _, c := range comments {
		label := ""
		if c.Label != nil {
			label = "False"
			if *c.Label {
				label = "True"
			}
		}
		rec := []string{
			strconv.FormatInt(c.CommentID, 10),
			strconv.FormatInt(c.PostID, 10),
			strconv.FormatInt(c.UserID, 10),
			c.Username,
			c.Text,
			formatDate(c.CommentDate),
			label,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type table struct {
	index   map[string]int
	records [][]string
}

func readTable(r io.Reader, name string, required []string) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &MissingColumnsError{File: name, Missing: required}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s header: %w", name, err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		if i == 0 {
			col = strings.TrimPrefix(col, "\ufeff")
		}
		index[strings.TrimSpace(col)] = i
	}

	var missing []string
	for _, col := range required {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{File: name, Missing: missing}
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return &table{index: index, records: records}, nil
}

func (t *table) has(col string) bool {
	_, ok := t.index[col]
	return ok
}

func (t *table) get(rec []string, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func (t *table) integer(rec []string, col string) (int64, error) {
	raw := t.get(rec, col)
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// pandas writes integer columns holding NaN as floats ("12.0").
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || f != float64(int64(f)) {
			return 0, fmt.Errorf("%s: invalid integer %q", col, raw)
		}
		n = int64(f)
	}
	return n, nil
}

func (t *table) date(rec []string, col string) (time.Time, error) {
	raw := t.get(rec, col)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%s: unrecognized date %q", col, raw)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

func lineError(file string, line int, err error) error {
	return fmt.Errorf("%s line %d: %w", file, line, err)
}

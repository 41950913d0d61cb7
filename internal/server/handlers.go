package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rewired-gh/argus/internal/dataset"
	"github.com/rewired-gh/argus/internal/export"
	"github.com/rewired-gh/argus/internal/logger"
	"github.com/rewired-gh/argus/internal/models"
	"github.com/rewired-gh/argus/internal/pipeline"
	"github.com/rewired-gh/argus/internal/risk"
	"github.com/rewired-gh/argus/internal/storage"
)

const (
	msgNotFound          = "Análise não encontrada"
	msgUnsupportedFormat = "Formato não suportado"
	msgBothFiles         = "Ambos os arquivos são necessários"
	msgUploadsDisabled   = "Análise de uploads indisponível"
	maxBodyBytes         = 1 << 20
	maxUploadBytes       = 32 << 20
)

type analysisItem struct {
	models.AnalysisSession
	SuspiciousPercentage float64         `json:"suspicious_percentage"`
	Risk                 risk.Assessment `json:"risk"`
}

type summaryResponse struct {
	SessionID string        `json:"session_id"`
	Status    models.Status `json:"status"`
	risk.Summary
}

type detailResponse struct {
	Session            analysisItem               `json:"session"`
	Dataset            *models.Dataset            `json:"dataset"`
	SuspiciousComments []models.SuspiciousComment `json:"suspicious_comments"`
	Users              []models.UserBehavior      `json:"users"`
	Posts              []models.PostAnalysis      `json:"posts"`
	PatternFrequency   map[string]int             `json:"pattern_frequency"`
}

func newAnalysisItem(s models.AnalysisSession) analysisItem {
	pct := s.SuspiciousPercentage()
	return analysisItem{
		AnalysisSession:      s,
		SuspiciousPercentage: pct,
		Risk:                 risk.Assess(pct / 100),
	}
}

func (s *Server) listDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := s.store.ListDatasets(r.Context())
	if err != nil {
		s.internalError(w, "list datasets", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"datasets": datasets,
		"total":    len(datasets),
	})
}

func (s *Server) listAnalyses(w http.ResponseWriter, r *http.Request) {
	limit := s.pageSize
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, s.pageSize)
	}

	sessions, err := s.store.ListSessions(r.Context(), limit)
	if err != nil {
		s.internalError(w, "list analyses", err)
		return
	}
	items := make([]analysisItem, 0, len(sessions))
	for _, sess := range sessions {
		items = append(items, newAnalysisItem(sess))
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": items})
}

// loadSession writes the error response itself and returns nil when the
// session cannot be served.
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) *models.AnalysisSession {
	sess, err := s.store.GetSession(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgNotFound)
		return nil
	}
	if err != nil {
		s.internalError(w, "load analysis", err)
		return nil
	}
	return sess
}

func (s *Server) analysisDetail(w http.ResponseWriter, r *http.Request) {
	sess := s.loadSession(w, r)
	if sess == nil {
		return
	}
	ctx := r.Context()

	dataset, err := s.store.GetDataset(ctx, sess.DatasetID)
	if err != nil {
		s.internalError(w, "load dataset", err)
		return
	}
	flagged, err := s.store.ListSuspiciousComments(ctx, sess.ID, 0)
	if err != nil {
		s.internalError(w, "list suspicious comments", err)
		return
	}
	users, err := s.store.ListUserBehaviors(ctx, sess.ID, s.pageSize)
	if err != nil {
		s.internalError(w, "list users", err)
		return
	}
	posts, err := s.store.ListPostAnalyses(ctx, sess.ID, s.pageSize)
	if err != nil {
		s.internalError(w, "list posts", err)
		return
	}

	freq := pipeline.PatternFrequency(flagged)
	if len(flagged) > s.pageSize {
		flagged = flagged[:s.pageSize]
	}

	writeJSON(w, http.StatusOK, detailResponse{
		Session:            newAnalysisItem(*sess),
		Dataset:            dataset,
		SuspiciousComments: flagged,
		Users:              users,
		Posts:              posts,
		PatternFrequency:   freq,
	})
}

func (s *Server) analysisReport(w http.ResponseWriter, r *http.Request) {
	sess := s.loadSession(w, r)
	if sess == nil {
		return
	}
	writeJSON(w, http.StatusOK, s.builder.Build(sess.Summary()))
}

func (s *Server) analysisSummary(w http.ResponseWriter, r *http.Request) {
	sess := s.loadSession(w, r)
	if sess == nil {
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		SessionID: sess.ID,
		Status:    sess.Status,
		Summary:   sess.Summary(),
	})
}

// exportAnalysis serves flagged comments as CSV, or the risk report as
// JSON or YAML. The format defaults to csv.
func (s *Server) exportAnalysis(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("format")
	if name == "" {
		name = string(export.FormatCSV)
	}
	f, err := export.ParseFormat(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgUnsupportedFormat)
		return
	}

	sess := s.loadSession(w, r)
	if sess == nil {
		return
	}

	var buf bytes.Buffer
	if f == export.FormatCSV {
		comments, lerr := s.store.ListSuspiciousComments(r.Context(), sess.ID, 0)
		if lerr != nil {
			s.internalError(w, "list suspicious comments", lerr)
			return
		}
		err = export.WriteSuspiciousCommentsCSV(&buf, sess, comments)
	} else {
		err = export.WriteReport(&buf, s.builder.Build(sess.Summary()), f)
	}
	if err != nil {
		s.internalError(w, "export analysis", err)
		return
	}

	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(sess, f)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// uploadAnalysis analyzes a posts_file/comments_file multipart upload and
// answers with the outcome.
func (s *Server) uploadAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.detector == nil {
		writeError(w, http.StatusServiceUnavailable, msgUploadsDisabled)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	in, err := readUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if in.Name == "" {
		if in.Name, err = pipeline.NextDatasetName(ctx, s.store, "Uploaded_Dataset"); err != nil {
			s.internalError(w, "name dataset", err)
			return
		}
	}
	if in.Description == "" {
		in.Description = fmt.Sprintf("Dataset carregado via upload - %d posts, %d comentários", len(in.Posts), len(in.Comments))
	}

	out, err := pipeline.Run(ctx, s.store, s.detector, in, s.pipeline)
	if err != nil {
		s.internalError(w, "analyze upload", err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func readUpload(r *http.Request) (pipeline.Input, error) {
	in := pipeline.Input{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
	}

	pf, _, err := r.FormFile("posts_file")
	if err != nil {
		return in, errors.New(msgBothFiles)
	}
	defer pf.Close()
	cf, _, err := r.FormFile("comments_file")
	if err != nil {
		return in, errors.New(msgBothFiles)
	}
	defer cf.Close()

	if in.Posts, err = dataset.ReadPosts(pf); err != nil {
		return in, err
	}
	if in.Comments, err = dataset.ReadComments(cf); err != nil {
		return in, err
	}
	return in, nil
}

func assessHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Probability *float64 `json:"probability"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Probability == nil {
		writeError(w, http.StatusBadRequest, "probability is required")
		return
	}
	a, err := risk.AssessStrict(*req.Probability)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// reportHandler builds a risk report from a posted summary.
func (s *Server) reportHandler(w http.ResponseWriter, r *http.Request) {
	var summary risk.Summary
	if err := decodeBody(w, r, &summary); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	report, err := s.builder.BuildValidated(summary)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func patternsHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Patterns []string `json:"patterns"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, risk.AnalyzePatterns(req.Patterns))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	logger.Error("Failed to %s: %v", op, err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

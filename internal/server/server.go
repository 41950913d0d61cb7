// Package server exposes stored analyses as a JSON dashboard API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rewired-gh/argus/internal/detector"
	"github.com/rewired-gh/argus/internal/logger"
	"github.com/rewired-gh/argus/internal/metrics"
	"github.com/rewired-gh/argus/internal/models"
	"github.com/rewired-gh/argus/internal/pipeline"
	"github.com/rewired-gh/argus/internal/risk"
)

// Store is the analysis storage the API reads and uploads write to.
type Store interface {
	pipeline.Store
	ListDatasets(ctx context.Context) ([]models.Dataset, error)
	ListSessions(ctx context.Context, limit int) ([]models.AnalysisSession, error)
	GetSession(ctx context.Context, id string) (*models.AnalysisSession, error)
	GetDataset(ctx context.Context, id string) (*models.Dataset, error)
	ListSuspiciousComments(ctx context.Context, sessionID string, limit int) ([]models.SuspiciousComment, error)
	ListUserBehaviors(ctx context.Context, sessionID string, limit int) ([]models.UserBehavior, error)
	ListPostAnalyses(ctx context.Context, sessionID string, limit int) ([]models.PostAnalysis, error)
}

// Config holds server settings.
type Config struct {
	ListenAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PageSize     int
	// Now stamps reports; nil uses the wall clock.
	Now func() time.Time
	// Detector scores uploaded datasets. Uploads are refused when nil.
	Detector *detector.Detector
	// Pipeline tunes uploaded analyses. Its Metrics are replaced by the
	// server's.
	Pipeline pipeline.Options
}

// Server wraps an HTTP server and route handlers.
type Server struct {
	httpServer *http.Server
	store      Store
	metrics    *metrics.Metrics
	builder    risk.Builder
	pageSize   int
	detector   *detector.Detector
	pipeline   pipeline.Options
}

// New creates a configured HTTP server with v1 endpoints. m may be nil.
func New(cfg Config, store Store, m *metrics.Metrics) *Server {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	s := &Server{
		store:    store,
		metrics:  m,
		builder:  risk.NewBuilder(cfg.Now),
		pageSize: cfg.PageSize,
		detector: cfg.Detector,
		pipeline: cfg.Pipeline,
	}
	s.pipeline.Metrics = m
	if s.pipeline.Now == nil {
		s.pipeline.Now = cfg.Now
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /api/v1/datasets", s.listDatasets)
	mux.HandleFunc("GET /api/v1/analyses", s.listAnalyses)
	mux.HandleFunc("POST /api/v1/analyses", s.uploadAnalysis)
	mux.HandleFunc("GET /api/v1/analyses/{id}", s.analysisDetail)
	mux.HandleFunc("GET /api/v1/analyses/{id}/report", s.analysisReport)
	mux.HandleFunc("GET /api/v1/analyses/{id}/summary", s.analysisSummary)
	mux.HandleFunc("GET /api/v1/analyses/{id}/export", s.exportAnalysis)
	mux.HandleFunc("POST /api/v1/risk/assess", assessHandler)
	mux.HandleFunc("POST /api/v1/risk/report", s.reportHandler)
	mux.HandleFunc("POST /api/v1/patterns/analyze", patternsHandler)

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.observe(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server. It returns nil after Shutdown.
func (s *Server) ListenAndServe() error {
	logger.Info("Dashboard API listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveRequest(route, rec.status)
		logger.Debug("%s %s %s %s", r.Method, r.URL.Path, strconv.Itoa(rec.status), time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

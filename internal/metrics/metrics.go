// Package metrics exposes Prometheus collectors for analysis runs and the
// dashboard API. Collectors live on a private registry so tests and multiple
// servers in one process do not collide. A nil *Metrics records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "argus"

// Metrics holds the registered collectors.
type Metrics struct {
	registry *prometheus.Registry

	analyses             *prometheus.CounterVec
	analysisDuration     prometheus.Histogram
	commentsScored       prometheus.Counter
	commentsFlagged      prometheus.Counter
	suspiciousPercentage prometheus.Gauge
	notifications        *prometheus.CounterVec
	httpRequests         *prometheus.CounterVec
}

// New creates a Metrics with all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// Labels: status (COMPLETED, FAILED)
		analyses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Analysis runs by final status",
		}, []string{"status"}),

		analysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "Wall time of an analysis run",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		commentsScored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "comments_scored_total",
			Help:      "Comments scored by the detector",
		}),

		commentsFlagged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "comments_flagged_total",
			Help:      "Comments flagged as suspicious",
		}),

		suspiciousPercentage: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "last_suspicious_percentage",
			Help:      "Suspicious percentage of the most recent completed run",
		}),

		// Labels: kind (report, info, success, warning, danger), status (sent, error)
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "notifications_total",
			Help:      "Telegram notifications by kind and outcome",
		}, []string{"kind", "status"}),

		// Labels: route (mux pattern), code (HTTP status)
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Dashboard API requests by route and status code",
		}, []string{"route", "code"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveAnalysis records one finished analysis run. The suspicious
// percentage gauge only moves for completed runs.
func (m *Metrics) ObserveAnalysis(status string, scored, flagged int, percentage float64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(status).Inc()
	m.analysisDuration.Observe(elapsed.Seconds())
	m.commentsScored.Add(float64(scored))
	m.commentsFlagged.Add(float64(flagged))
	if status == "COMPLETED" {
		m.suspiciousPercentage.Set(percentage)
	}
}

// ObserveNotification records a Telegram send attempt.
func (m *Metrics) ObserveNotification(kind string, err error) {
	if m == nil {
		return
	}
	status := "sent"
	if err != nil {
		status = "error"
	}
	m.notifications.WithLabelValues(kind, status).Inc()
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(route string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Package metrics provides Prometheus instrumentation for the ledger engine
// and the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ReplayDuration tracks how long one full ledger replay takes.
	ReplayDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fundfolio_replay_duration_seconds",
		Help:    "Ledger replay duration in seconds",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
	})

	// ReplayOperations counts ledger operations folded across all replays.
	ReplayOperations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fundfolio_replay_operations_total",
		Help: "Total ledger operations folded by the engine",
	})

	// SeriesPoints tracks the size of the last generated value series.
	SeriesPoints = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fundfolio_series_points",
		Help: "Number of points in the most recently built value series",
	})

	// QuoteRefreshTotal counts quote refresh attempts by provider and outcome.
	QuoteRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fundfolio_quote_refresh_total",
		Help: "Quote refresh attempts",
	}, []string{"provider", "outcome"})

	// AlertTriggersTotal counts alert evaluations that fired.
	AlertTriggersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fundfolio_alert_triggers_total",
		Help: "Alert evaluations that crossed their threshold",
	})

	// ReportCacheHits counts memoized report lookups by result.
	ReportCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fundfolio_report_cache_total",
		Help: "Report cache lookups",
	}, []string{"result"})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fundfolio_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fundfolio_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and duration for every handler it wraps.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Label with the chi route pattern, not the raw path, so label
		// cardinality stays bounded under arbitrary request paths.
		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cockpit_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cockpit_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Scan metrics
	scansStartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cockpit_scans_started_total",
			Help: "Total number of discovery scans started",
		},
	)

	hostsScannedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cockpit_hosts_scanned_total",
			Help: "Total hosts scanned by outcome",
		},
		[]string{"outcome"},
	)

	// Git metrics
	gitOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cockpit_git_operations_total",
			Help: "Total Git operations by kind and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// Cache metrics
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cockpit_cache_lookups_total",
			Help: "Total cache lookups by result",
		},
		[]string{"result"},
	)

	// SMS metrics
	smsRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cockpit_sms_requests_total",
			Help: "Total requests against the source-of-truth system",
		},
		[]string{"kind", "outcome"},
	)

	// Error metrics
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cockpit_errors_total",
			Help: "Total number of errors by type",
		},
		[]string{"type"},
	)
)

// Metrics returns a middleware that records Prometheus metrics.
func Metrics() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.status)
			path := normalizePath(r)

			httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)

			if wrapped.status >= 400 {
				errorType := "client_error"
				if wrapped.status >= 500 {
					errorType = "server_error"
				}
				errorsTotal.WithLabelValues(errorType).Inc()
			}
		})
	}
}

type metricsResponseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.status = code
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(code)
}

// normalizePath uses the chi route pattern so per-id paths don't blow
// up metric cardinality.
func normalizePath(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return r.URL.Path
}

// IncrementScansStarted records a new discovery scan.
func IncrementScansStarted() {
	scansStartedTotal.Inc()
}

// RecordHostOutcome records one scanned host's terminal outcome.
func RecordHostOutcome(outcome string) {
	hostsScannedTotal.WithLabelValues(outcome).Inc()
}

// RecordGitOperation records a Git operation's outcome.
func RecordGitOperation(operation string, success bool) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	gitOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordSMSRequest records a request against the source-of-truth
// system.
func RecordSMSRequest(kind string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	smsRequestsTotal.WithLabelValues(kind, outcome).Inc()
}

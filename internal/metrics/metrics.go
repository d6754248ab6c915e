package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skypass_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skypass_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	catalogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "skypass_tle_catalog_size",
		Help: "Number of element sets in the current catalog.",
	})

	catalogAgeSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "skypass_tle_catalog_age_seconds",
		Help: "Seconds since the current catalog was fetched.",
	})

	catalogRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skypass_tle_refreshes_total",
			Help: "Catalog refresh attempts by result.",
		},
		[]string{"result"},
	)

	propagationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "skypass_propagation_batch_duration_seconds",
		Help:    "Wall time of one batch propagation over the catalog.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	})

	propagationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skypass_propagations_total",
			Help: "Satellites propagated in batches, by result.",
		},
		[]string{"result"},
	)

	passSearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skypass_pass_search_duration_seconds",
			Help:    "Wall time of a single next-pass search.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"outcome"},
	)

	staleResults = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skypass_tracker_stale_results_total",
		Help: "Pass search results dropped because a newer request superseded them.",
	})

	streamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "skypass_streams_active",
		Help: "Open position streams.",
	})

	streamMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skypass_stream_messages_total",
		Help: "SSE messages sent.",
	})

	streamBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skypass_stream_bytes_total",
		Help: "Bytes written to position streams.",
	})

	streamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skypass_stream_errors_total",
			Help: "Stream failures by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		catalogSize,
		catalogAgeSeconds,
		catalogRefreshes,
		propagationDuration,
		propagationsTotal,
		passSearchDuration,
		staleResults,
		streamsActive,
		streamMessages,
		streamBytes,
		streamErrors,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetCatalogSize records the number of element sets loaded.
func SetCatalogSize(n int) {
	catalogSize.Set(float64(n))
}

// SetCatalogAge records the age of the current catalog.
func SetCatalogAge(seconds float64) {
	catalogAgeSeconds.Set(seconds)
}

// RecordCatalogRefresh counts one refresh attempt.
func RecordCatalogRefresh(ok bool) {
	if ok {
		catalogRefreshes.WithLabelValues("success").Inc()
		return
	}
	catalogRefreshes.WithLabelValues("error").Inc()
}

// RecordPropagation records one batch propagation.
func RecordPropagation(d time.Duration, success, errors int) {
	propagationDuration.Observe(d.Seconds())
	propagationsTotal.WithLabelValues("success").Add(float64(success))
	propagationsTotal.WithLabelValues("error").Add(float64(errors))
}

// Pass search outcomes.
const (
	OutcomeFound     = "found"
	OutcomeNone      = "none"
	OutcomeCancelled = "cancelled"
)

// SearchOutcome classifies a finished search. A found pass counts as found
// even if the search was superseded after it returned; cancelled is only
// consulted when nothing was found.
func SearchOutcome(found bool, cancelled func() bool) string {
	switch {
	case found:
		return OutcomeFound
	case cancelled != nil && cancelled():
		return OutcomeCancelled
	default:
		return OutcomeNone
	}
}

// RecordPassSearch records one next-pass search with its outcome.
func RecordPassSearch(d time.Duration, outcome string) {
	passSearchDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// IncStaleResults counts a superseded pass result.
func IncStaleResults() {
	staleResults.Inc()
}

// StaleResults returns the superseded-result counter.
func StaleResults() prometheus.Counter {
	return staleResults
}

// IncStreamsActive counts an opened stream.
func IncStreamsActive() { streamsActive.Inc() }

// DecStreamsActive counts a closed stream.
func DecStreamsActive() { streamsActive.Dec() }

// RecordStreamMessage counts one sent message of n bytes.
func RecordStreamMessage(n int) {
	streamMessages.Inc()
	streamBytes.Add(float64(n))
}

// AddStreamBytes counts bytes that are not a message, such as keepalives.
func AddStreamBytes(n int) {
	streamBytes.Add(float64(n))
}

// IncStreamErrors counts a stream failure.
func IncStreamErrors(reason string) {
	streamErrors.WithLabelValues(reason).Inc()
}

// StreamErrors returns the stream failure counter.
func StreamErrors() *prometheus.CounterVec {
	return streamErrors
}

// knownRoutes are the exact paths served by the API.
var knownRoutes = map[string]bool{
	"/healthz":             true,
	"/readyz":              true,
	"/metrics":             true,
	"/api/v1/tle/metadata": true,
	"/api/v1/tle/refresh":  true,
	"/api/v1/positions":    true,
}

// normalizeRoute collapses parameterized paths so the path label has
// bounded cardinality. Unknown paths become "other".
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}

	for _, prefix := range []string{"/api/v1/position/", "/api/v1/passes/", "/api/v1/stream/position/"} {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok {
			continue
		}
		id, tail, _ := strings.Cut(rest, "/")
		if _, err := strconv.Atoi(id); err != nil {
			return "other"
		}
		switch {
		case tail == "":
			return prefix + "{norad_id}"
		case tail == "next" && prefix == "/api/v1/passes/":
			return prefix + "{norad_id}/next"
		}
		return "other"
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets streaming handlers flush through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := normalizeRoute(r.URL.Path)
		httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rw.statusCode)).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// Package api serves positions, passes and catalog status over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/skypass/internal/auth"
	"github.com/star/skypass/internal/config"
	"github.com/star/skypass/internal/health"
	"github.com/star/skypass/internal/httputil"
	"github.com/star/skypass/internal/metrics"
	"github.com/star/skypass/internal/propagation"
	"github.com/star/skypass/internal/stream"
	"github.com/star/skypass/internal/tle"
	"github.com/star/skypass/internal/tracker"
)

// Deps are the components the handlers read from.
type Deps struct {
	Store      *tle.Store
	Loader     *tle.Loader // nil disables POST /api/v1/tle/refresh
	Propagator *propagation.Propagator
	Tracker    *tracker.Tracker
	Stream     *stream.Handler // nil disables the position stream
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(cfg config.Config, logger *slog.Logger, d Deps) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           NewHandler(cfg, logger, d),
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			// Synchronous pass searches over long windows take a while.
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed handler with the middleware chain
// metrics -> logging -> auth -> mux.
func NewHandler(cfg config.Config, logger *slog.Logger, d Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(func() bool { return d.Store.Get() != nil }))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/tle/metadata", metadataHandler(d.Store))
	mux.HandleFunc("POST /api/v1/tle/refresh", refreshHandler(logger, d.Loader))
	mux.HandleFunc("GET /api/v1/positions", positionsHandler(logger, d.Propagator))
	mux.HandleFunc("GET /api/v1/position/{norad_id}", positionHandler(d.Propagator))
	mux.HandleFunc("GET /api/v1/passes/{norad_id}", passesHandler(cfg, d.Store))
	mux.HandleFunc("POST /api/v1/passes/{norad_id}/next", nextPassRequestHandler(logger, d.Store, d.Tracker))
	mux.HandleFunc("GET /api/v1/passes/{norad_id}/next", nextPassStatusHandler(d.Tracker))
	if d.Stream != nil {
		mux.HandleFunc("GET /api/v1/stream/position/{norad_id}", d.Stream.HandlePosition)
	}

	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger, cfg.HTTP.TrustProxy)(handler)
	handler = metrics.Middleware(handler)
	return handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// healthPath reports whether path is a health or readiness check, which is not logged at INFO.
func healthPath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			level := slog.LevelInfo
			if healthPath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}

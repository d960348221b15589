package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/trendpulse/trendpulse/internal/config"
	"github.com/trendpulse/trendpulse/internal/services"
)

// Version is reported by the banner endpoints.
const Version = "1.0.0"

// RequestIDHeader carries the per-request identifier on every response.
const RequestIDHeader = "X-Request-ID"

// RouterOptions tunes the REST front end.
type RouterOptions struct {
	AllowedOrigins []string
	MaxBodyBytes   int64
	AccessLog      bool
}

// NewRouter wires the REST routes around service and wraps them in the
// request-id, recovery, CORS and access-log middleware.
func NewRouter(service *services.TrendService, opts RouterOptions, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}

	h := &restHandler{service: service, logger: logger, maxBody: opts.MaxBodyBytes}

	r := mux.NewRouter()
	r.HandleFunc("/", h.banner).Methods(http.MethodGet)
	r.HandleFunc("/api", h.banner).Methods(http.MethodGet)
	r.HandleFunc("/api", h.dispatch).Methods(http.MethodPost)
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/analyze", h.analyze).Methods(http.MethodPost)
	r.HandleFunc("/api/analyze", h.analyze).Methods(http.MethodPost)
	r.HandleFunc("/batch-analyze", h.batch).Methods(http.MethodPost)
	r.HandleFunc("/api/batch", h.batch).Methods(http.MethodPost)
	r.HandleFunc("/api/demo", h.demo).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	var handler http.Handler = r
	if opts.AccessLog {
		handler = logRequests(logger, handler)
	}
	handler = handlers.CORS(
		handlers.AllowedOrigins(opts.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(handler)
	handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{logger}),
		handlers.PrintRecoveryStack(false),
	)(handler)
	return withRequestID(handler)
}

// NewHTTPServer builds the REST listener from server settings.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func logRequests(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rw.status),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", w.Header().Get(RequestIDHeader)),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type recoveryLogger struct {
	logger *slog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("panic recovered", slog.String("panic", fmt.Sprint(v...)))
}

// Package api provides the HTTP API for the interview scheduling service.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/recruitflow/scheduler/pkg/observability"
)

// Server is the HTTP API server for the scheduler.
type Server struct {
	mux     *http.ServeMux
	server  *http.Server
	logger  *slog.Logger
	handler *SchedulingHandler
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "0.0.0.0:8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewServer creates a new scheduling API server.
func NewServer(cfg ServerConfig, handler *SchedulingHandler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	s := &Server{
		mux:     mux,
		logger:  logger,
		handler: handler,
	}

	// Register routes
	s.registerRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      requestLogging(logger)(s.mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// registerRoutes sets up the API routes.
func (s *Server) registerRoutes() {
	// Health check
	s.mux.HandleFunc("GET /health", s.handler.Health)

	// Scheduling API v1
	s.mux.HandleFunc("POST /api/v1/interviews/propose", s.handler.Propose)
	s.mux.HandleFunc("POST /api/v1/interviews/hold", s.handler.Hold)
	s.mux.HandleFunc("POST /api/v1/interviews/confirm", s.handler.Confirm)
	s.mux.HandleFunc("GET /api/v1/interviews/{bookingID}", s.handler.GetBooking)
	s.mux.HandleFunc("DELETE /api/v1/interviews/{bookingID}", s.handler.Cancel)
	s.mux.HandleFunc("POST /api/v1/interviews/{bookingID}/reschedule", s.handler.Reschedule)

	// Interviewer directory
	s.mux.HandleFunc("PUT /api/v1/interviewers/{interviewerID}", s.handler.UpsertInterviewer)
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info("starting scheduling API server",
		"addr", s.server.Addr,
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down scheduling API server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the routed mux, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := observability.NewRequestContext(r.Context(), r.Header.Get("X-Correlation-ID"))
			next.ServeHTTP(w, r.WithContext(ctx))
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				observability.CorrelationIDKey, observability.CorrelationIDFromContext(ctx),
				observability.DurationKey, time.Since(start).Milliseconds(),
			)
		})
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Log error but can't do much at this point
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}

// APIError represents an API error.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Package server provides the HTTP API that accepts resume uploads and returns generated
// portfolio layouts.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/portfolio-pipeline/internal/db"
	"github.com/jonathan/portfolio-pipeline/internal/metrics"
	"github.com/jonathan/portfolio-pipeline/internal/pipeline"
	"github.com/jonathan/portfolio-pipeline/internal/recovery"
)

// Processor runs a single upload through the pipeline
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) *pipeline.Result
}

// SubmissionStore reads back persisted submissions
type SubmissionStore interface {
	GetSubmission(ctx context.Context, id uuid.UUID) (*db.Submission, error)
	ListComponents(ctx context.Context, submissionID uuid.UUID) ([]db.Component, error)
}

// Pinger reports whether a backing service is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	processor   Processor
	submissions SubmissionStore
	metrics     *metrics.Metrics
	pingers     map[string]Pinger
	logger      *slog.Logger
	maxUpload   int64
	trusted     []netip.Prefix
}

// Config holds server configuration
type Config struct {
	Port      int
	Processor Processor
	// Submissions is optional; without it the submission endpoint answers 503
	Submissions SubmissionStore
	// Metrics is optional; when set /metrics is served and requests are instrumented
	Metrics *metrics.Metrics
	// Pingers are checked by /health, keyed by dependency name
	Pingers map[string]Pinger
	Logger  *slog.Logger
	// MaxUploadBytes bounds the multipart body; zero uses DefaultMaxUploadBytes
	MaxUploadBytes int64
	// TrustedProxies lists proxy IPs or CIDR ranges whose X-Forwarded-For header is believed
	TrustedProxies []string
}

// DefaultMaxUploadBytes leaves headroom above the 10 MiB file limit for multipart framing
const DefaultMaxUploadBytes = 11 << 20

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	if cfg.Processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	trusted, err := ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	s := &Server{
		processor:   cfg.Processor,
		submissions: cfg.Submissions,
		metrics:     cfg.Metrics,
		pingers:     cfg.Pingers,
		logger:      cfg.Logger,
		maxUpload:   cfg.MaxUploadBytes,
		trusted:     trusted,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.maxUpload <= 0 {
		s.maxUpload = DefaultMaxUploadBytes
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // Long timeout for pipeline runs
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the routed and instrumented handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /portfolio", s.handleProcess)
	mux.HandleFunc("POST /portfolio/stream", s.handleProcessStream)
	mux.HandleFunc("GET /submissions/{id}", s.handleGetSubmission)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	var h http.Handler = mux
	h = cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	})(h)
	h = middleware.Recoverer(s.withLogging(h))
	if s.metrics != nil {
		h = s.metrics.Middleware(h)
	}
	return h
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) clientID(r *http.Request) string {
	return ClientIdentifier(r, s.trusted)
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"client", s.clientID(r),
			"duration", time.Since(start))
	})
}

// handleHealth returns server health status, including each configured dependency
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{"status": "ok"}

	for name, p := range s.pingers {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := p.Ping(ctx)
		cancel()
		if err != nil {
			s.logger.Warn("health check failed", "dependency", name, "error", err)
			body[name] = "unavailable"
			body["status"] = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		body[name] = "ok"
	}

	s.jsonResponse(w, status, body)
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", "error", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, code, message string) {
	s.jsonResponse(w, status, ErrorResponse{Success: false, ErrorCode: code, Error: message})
}

// backendError reports a failed call to a backing service. Retryable failures answer 503; the raw
// error is only exposed when debug logging is on.
func (s *Server) backendError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	body := recovery.Describe(err, operation, s.logger.Enabled(r.Context(), slog.LevelDebug))
	status := http.StatusInternalServerError
	if recovery.Classify(err).IsRetryable() {
		status = http.StatusServiceUnavailable
	}
	s.jsonResponse(w, status, ErrorResponse{
		Success:   false,
		ErrorCode: body.Code,
		Error:     body.Message,
		Operation: body.Operation,
		Details:   body.Details,
	})
}

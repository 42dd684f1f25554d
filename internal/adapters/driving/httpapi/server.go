// Package httpapi exposes the answering service over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/quillworks/driveanswer/internal/core/ports/driven"
	"github.com/quillworks/driveanswer/internal/core/ports/driving"
	"github.com/quillworks/driveanswer/internal/logger"
)

// Default configuration values.
const (
	DefaultAddr            = ":8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 10 * time.Minute
	DefaultShutdownTimeout = 15 * time.Second
)

// Config holds configuration for the HTTP server.
type Config struct {
	// Addr is the listen address (default: :8080).
	Addr string

	// ReadTimeout bounds request reading (default: 30s).
	ReadTimeout time.Duration

	// WriteTimeout bounds response writing. Answering a question can
	// take minutes when many documents are involved (default: 10m).
	WriteTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown (default: 15s).
	ShutdownTimeout time.Duration
}

// Server serves the query and history endpoints.
type Server struct {
	answers driving.AnswerService
	history driven.AnswerStore
	cfg     Config
	httpSrv *http.Server
}

// NewServer creates an HTTP server around the answering service.
// The history store may be nil, in which case /history returns 404.
func NewServer(answers driving.AnswerService, history driven.AnswerStore, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	s := &Server{
		answers: answers,
		history: history,
		cfg:     cfg,
	}
	s.httpSrv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the route multiplexer.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening on %s", s.cfg.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()

	logger.Info("http server shutting down")
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

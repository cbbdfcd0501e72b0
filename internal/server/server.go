package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
)

// Server manages the HTTP server lifecycle.
//
// It wraps an http.Server with configuration and ties its lifetime to a
// context so it can run inside an errgroup next to the other workers.
type Server struct {
	config *Config
	server *http.Server
	logger *slog.Logger
}

// New creates a new server instance.
//
// Parameters:
//   - config: server configuration (timeouts, address, size limits)
//   - logger: structured logger instance
//
// Returns a new Server instance.
func New(config *Config, logger *slog.Logger) *Server {
	return &Server{
		config: config,
		server: &http.Server{
			Addr:           config.Addr(),
			ReadTimeout:    config.ReadTimeout,
			WriteTimeout:   config.WriteTimeout,
			IdleTimeout:    config.IdleTimeout,
			MaxHeaderBytes: config.MaxHeaderBytes,
		},
		logger: logger,
	}
}

// RegisterHandler sets the HTTP handler for the server.
//
// This should be called before starting the server.
func (s *Server) RegisterHandler(handler http.Handler) {
	s.server.Handler = handler
}

// Run listens on the configured address and serves until ctx is cancelled,
// then shuts down gracefully within the configured shutdown timeout.
//
// Returns nil after a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener. Tests use it with a port-0 listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Debug("Starting HTTP server", "addr", ln.Addr().String())
		errCh <- s.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
//
// It waits for active connections to finish, up to the deadline of ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Debug("Shutting down server")
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Server forced to shutdown", "error", err)
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Debug("Server stopped gracefully")
	return nil
}

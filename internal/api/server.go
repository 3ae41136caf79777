package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"proofbuild/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// Server runs the HTTP surface on a TCP listener.
type Server struct {
	bind   string
	logger *slog.Logger
	server *http.Server
}

// NewServer wraps handler in an http.Server bound to bind.
func NewServer(bind string, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Listen opens the TCP listener so the bound address is known before Serve.
func (s *Server) Listen() (net.Listener, error) {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return nil, fmt.Errorf("api listen: %w", err)
	}
	return listener, nil
}

// Serve blocks serving listener until ctx is done, then shuts down
// gracefully. A clean shutdown returns nil.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(listener)
	}()
	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	s.logger.Info("api server stopped")
	return nil
}

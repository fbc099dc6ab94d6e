package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	coreconfig "github.com/m3rciful/tiffinbot/core/config"
	"github.com/m3rciful/tiffinbot/core/logger"
)

const shutdownTimeout = 5 * time.Second

// Server exposes a Registry over HTTP until its context is cancelled.
type Server struct {
	cfg   coreconfig.MetricsConfig
	reg   *Registry
	ready chan struct{}
	addr  net.Addr
}

// NewServer binds nothing yet; call Serve.
func NewServer(cfg coreconfig.MetricsConfig, reg *Registry) *Server {
	if cfg.Path == "" {
		cfg.Path = "/metrics"
	}
	return &Server{cfg: cfg, reg: reg, ready: make(chan struct{})}
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr is the resolved listen address; valid after Ready.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Serve blocks until ctx is done, then shuts the listener down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("metrics: listen %s: %w", s.cfg.Listen, err)
	}
	s.addr = ln.Addr()
	close(s.ready)

	mux := http.NewServeMux()
	mux.Handle(s.cfg.Path, s.reg.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Metrics.Info("metrics listening",
		slog.String("event", "metrics.listen"),
		slog.String("listen", s.addr.String()),
		slog.String("path", s.cfg.Path),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Metrics.Warn("metrics shutdown failed",
			slog.String("event", "metrics.shutdown"),
			slog.String("err", err.Error()),
		)
		return err
	}
	logger.Metrics.Info("metrics stopped", slog.String("event", "metrics.shutdown"))
	return nil
}

package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dtn-bard/bard/internal/logger"
	"github.com/dtn-bard/bard/pkg/bard"
)

// Server provides an HTTP server exposing BARD's command surface over
// the routes built by NewRouter. It supports graceful shutdown with a
// configurable timeout.
type Server struct {
	server       *http.Server
	owner        *bard.BARD
	config       APIConfig
	shutdownOnce sync.Once
}

// NewServer creates a new API HTTP server in a stopped state. Call
// Start to begin serving requests.
func NewServer(config APIConfig, owner *bard.BARD) *Server {
	config.applyDefaults()

	router := NewRouter(owner)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{
		server: server,
		owner:  owner,
		config: config,
	}
}

// Start starts the API HTTP server and blocks until ctx is cancelled or
// an error occurs, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "port", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call multiple times and
// concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("API server shutdown initiated")
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", "error", err)
		} else {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is listening on.
func (s *Server) Port() int {
	return s.config.Port
}

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/brandonecarr/amosmiller-sub003/internal/config"
	"github.com/brandonecarr/amosmiller-sub003/internal/pkg/logger"
)

// Server wraps the HTTP server and its router.
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer creates the API server around the configured handlers.
func NewServer(cfg config.ServerConfig, h *Handlers, cronSecret string) *Server {
	return &Server{
		config:  cfg,
		handler: SetupRoutes(h, cronSecret),
	}
}

// ListenAndServe starts the HTTP server on addr and blocks until it stops.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	logger.Info("http server listening", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/config"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/service/imports"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/service/schema"
)

// Server represents the API server
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// Deps are the services the API exposes. Health and Metrics may be nil.
type Deps struct {
	Imports *imports.Service
	Schemas *schema.Registry
	Health  *HealthChecker
	Metrics http.Handler
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	h := NewHandlers(deps.Imports)
	templates := NewTemplateHandler(deps.Schemas)
	return &Server{
		config:  cfg,
		handler: SetupRoutes(cfg, h, templates, deps.Health, deps.Metrics),
	}
}

// Addr is the listen address from config.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.GetHost(), s.config.Port)
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.server = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// Analyze downloads and parses the whole workbook in-request.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}

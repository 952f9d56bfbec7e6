package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/config"
)

// SetupRoutes configures all routes. Everything under /api requires an
// admin identity.
func SetupRoutes(cfg config.ServerConfig, h *Handlers, templates *TemplateHandler, health *HealthChecker, metrics http.Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", HeaderAdminUID, HeaderAdminRole},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health and metrics (no identity required)
	if health != nil {
		r.Get("/health", health.HandleHealth)
		r.Get("/health/live", health.HandleLiveness)
		r.Get("/health/ready", health.HandleReadiness)
	}
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(RequireAdmin(cfg.RequireAdminRole))

		r.Route("/imports", func(r chi.Router) {
			r.Post("/", h.CreateImport)
			r.Get("/{id}", h.GetImport)
			r.Post("/{id}/analyze", h.AnalyzeImport)
			r.Post("/{id}/commit", h.CommitImport)
		})

		r.Get("/templates", templates.HandleDownloadTemplate)
	})

	return r
}

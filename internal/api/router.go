package api

import (
	"net/http"

	"github.com/dvloznov/sie-import/internal/api/handlers"
	"github.com/dvloznov/sie-import/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// RouterConfig holds the handlers and middleware settings for NewRouter.
type RouterConfig struct {
	Documents *handlers.DocumentsHandler
	Imports   *handlers.ImportsHandler
	Jobs      *handlers.JobsHandler
	Periods   *handlers.PeriodsHandler

	// RateLimiter is optional; nil disables rate limiting.
	RateLimiter *middleware.RateLimiter
	Log         zerolog.Logger
}

// NewRouter wires the HTTP routes. Handlers left nil are not mounted.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Log))
	r.Use(middleware.CORS)
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Handler)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", handlers.Health)

	r.Route("/api", func(r chi.Router) {
		if cfg.Documents != nil {
			r.Route("/sie/documents", func(r chi.Router) {
				r.Post("/", cfg.Documents.UploadDocument)
				r.Get("/{id}", cfg.Documents.GetDocument)
				r.Get("/{id}/periods", cfg.Documents.GetPeriods)
				r.Post("/{id}/import", cfg.Documents.ImportDocument)
			})
		}

		if cfg.Imports != nil {
			r.Post("/imports", cfg.Imports.EnqueueImport)
		}

		if cfg.Jobs != nil {
			r.Get("/jobs", cfg.Jobs.ListJobs)
			r.Get("/jobs/{id}", cfg.Jobs.GetJob)
		}

		if cfg.Periods != nil {
			r.Get("/tenants/{tenantID}/periods", cfg.Periods.ListPeriods)
		}
	})

	return r
}

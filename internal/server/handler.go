package server

import (
	"net/http"
	"time"

	"github.com/emrgen/docgen/internal/metrics"
	"github.com/emrgen/docgen/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// Handler serves the HTTP API.
type Handler struct {
	templates *service.TemplateService
	generator *service.Generator
	documents *service.DocumentService

	origins []string
	timeout time.Duration
}

func NewHandler(templates *service.TemplateService, generator *service.Generator, documents *service.DocumentService) *Handler {
	return &Handler{
		templates: templates,
		generator: generator,
		documents: documents,
		origins:   []string{"*"},
		timeout:   time.Minute,
	}
}

// WithCORS sets the origins allowed by the CORS handler.
func (h *Handler) WithCORS(origins []string) *Handler {
	if len(origins) > 0 {
		h.origins = origins
	}
	return h
}

// WithTimeout bounds the duration of API requests.
func (h *Handler) WithTimeout(timeout time.Duration) *Handler {
	if timeout > 0 {
		h.timeout = timeout
	}
	return h
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(metrics.HTTP)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/v1", func(r chi.Router) {
		r.Use(ActorMiddleware)
		r.Use(requestLogger)
		r.Use(middleware.Timeout(h.timeout))

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", h.generate)
			r.Get("/", h.listDocuments)
			r.Get("/{id}", h.getDocument)
			r.Post("/{id}/token", h.issueToken)
			r.Get("/{id}/download", h.download)
			r.Get("/{id}/access-logs", h.listAccessLogs)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Use(requirePrivileged)
			r.Get("/", h.listTemplates)
			r.Post("/", h.createTemplate)
			r.Get("/{id}", h.getTemplate)
			r.Patch("/{id}", h.updateTemplate)
			r.Delete("/{id}", h.deleteTemplate)
			r.Get("/{id}/versions", h.listVersions)
			r.Post("/{id}/versions/{versionID}/restore", h.restoreVersion)
			r.Post("/{id}/duplicate", h.duplicateTemplate)
			r.Post("/{id}/preview", h.previewTemplate)
		})

		r.With(requirePrivileged).Post("/cache/templates/clear", h.clearTemplateCache)
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   h.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type", headerActorID, headerActorRole},
		ExposedHeaders:   []string{"Content-Disposition", headerPreviewCache},
		AllowCredentials: true,
	})

	return c.Handler(router)
}

package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/harbor-analytics/claimlens/internal/api"
	"github.com/harbor-analytics/claimlens/internal/api/handlers"
	"github.com/harbor-analytics/claimlens/internal/api/middleware"
)

type RouterConfig struct {
	SearchHandler    *handlers.SearchHandler
	DocumentsHandler *handlers.DocumentsHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/search", cfg.SearchHandler.Search)
		r.Get("/documents", cfg.DocumentsHandler.List)
	})

	return r
}

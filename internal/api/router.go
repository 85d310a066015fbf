// Package api is the HTTP intake API over the capture pipeline.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/raphaelgruber/vaultbot/internal/service"
)

// NewRouter creates a chi router with all API routes mounted. /healthz is
// outside authentication and rate limiting.
func NewRouter(app *service.App) (chi.Router, error) {
	limit, err := RateLimit(app.Config.HTTP.Rate)
	if err != nil {
		return nil, err
	}
	h := NewHandler(app)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(app.Logger))

	r.Get("/healthz", h.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(app.Config.HTTP.Token))
		r.Use(limit)

		r.Post("/messages", h.CreateMessage)
		r.Post("/ingest", h.StartIngest)
		r.Get("/jobs", h.ListJobs)
		r.Get("/jobs/{id}", h.GetJob)
		r.Get("/jobs/{id}/watch", h.WatchJob)
		r.Get("/folders", h.ListFolders)
		r.Get("/notes/related", h.Related)
		r.Get("/notes/search", h.Search)
		r.Get("/stats", h.Stats)
	})
	return r, nil
}

// NewServer wraps the router in an http.Server listening on addr.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

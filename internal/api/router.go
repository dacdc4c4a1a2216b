package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/discovery"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *discovery.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/search", h.Search)
	r.Get("/timeline", h.Timeline)

	r.Get("/notes/{id}", h.ReadNote)
	r.Get("/related/{id}", h.Related)
	r.Get("/graph/{id}", h.LinkGraph)

	r.Get("/orphans", h.Orphans)
	r.Get("/stats", h.Stats)
	r.Get("/tags", h.TagCloud)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}

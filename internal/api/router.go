package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts every route. Mutations require a member; reads are
// open to guests, who see the discovery sections only.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/posts", func(r chi.Router) {
		r.Use(WithViewer)

		r.Get("/feed", h.GetFeed)
		r.Get("/search", h.SearchPosts)

		r.Group(func(r chi.Router) {
			r.Use(requireMember)
			r.Post("/", h.CreatePost)
			r.Patch("/{id}", h.UpdatePost)
			r.Delete("/{id}", h.DeletePost)
			r.Post("/{id}/comments", h.AddComment)
			r.Patch("/{id}/comments/{cid}", h.EditComment)
			r.Post("/{id}/vote", h.Vote)
		})
	})
	return r
}

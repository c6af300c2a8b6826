// Package httpapi exposes the pipeline over HTTP. It is a thin layer: all
// domain decisions live in the usecase package.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/videos", func(r chi.Router) {
			r.Post("/upload", h.Upload)
			r.Get("/{video_id}", h.Status)
			r.Post("/{video_id}/transcribe", h.Transcribe)
			r.Get("/{video_id}/analysis", h.Analysis)
		})

		r.Route("/shorts", func(r chi.Router) {
			r.Post("/identify/{video_id}", h.Identify)
			r.Post("/generate/{video_id}", h.Generate)
			r.Get("/{short_id}", h.Download)
		})
	})

	return r
}

package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/", h.HandleGetLatest)
		r.Get("/summary", h.HandleGetSummary)
		r.Route("/snapshots", func(r chi.Router) {
			r.Get("/", h.HandleListSnapshots)
			r.Get("/{id}", h.HandleGetSnapshot)
		})
	})
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HealthHandler reports liveness and bot readiness.
type HealthHandler struct {
	ready func() bool
}

// NewHealthHandler creates a health handler backed by a readiness predicate.
func NewHealthHandler(ready func() bool) *HealthHandler {
	return &HealthHandler{ready: ready}
}

// RegisterRoutes registers the health route.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/health", h.Health)
}

// Health always answers 200; readiness is reported in the body.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"botReady": h.ready(),
	})
}

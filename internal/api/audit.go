package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/roleportal/internal/identity"
	"github.com/ashureev/roleportal/internal/store"
)

// AuditHandler exposes a user's mutation history.
type AuditHandler struct {
	repo store.Repository
}

// NewAuditHandler creates an audit handler. A nil repo means auditing is
// disabled and the route answers 404.
func NewAuditHandler(repo store.Repository) *AuditHandler {
	return &AuditHandler{repo: repo}
}

// RegisterRoutes registers the audit route.
func (h *AuditHandler) RegisterRoutes(r chi.Router) {
	r.With(identity.Middleware).Get("/api/user/{userID}/audit", h.ListMutations)
}

// ListMutations returns the user's most recent mutation attempts.
func (h *AuditHandler) ListMutations(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		Error(w, http.StatusNotFound, "Audit trail is disabled")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			Error(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	userID := identity.UserIDFromContext(r.Context())
	mutations, err := h.repo.ListMutations(r.Context(), userID, limit)
	if err != nil {
		respondError(w, err, "Failed to fetch audit trail")
		return
	}

	JSON(w, http.StatusOK, map[string]any{"mutations": mutations})
}

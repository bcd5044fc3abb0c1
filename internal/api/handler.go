// Package api provides HTTP handlers for the role portal API.
//
//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/roleportal/internal/domain"
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// errorCase maps a sentinel error to an HTTP status and response body.
type errorCase struct {
	Err     error
	Status  int
	Message string
	Extra   map[string]any
}

// errorCases is the single status mapping for domain errors. Anything not
// listed is a transient platform failure.
var errorCases = []errorCase{
	{Err: domain.ErrNotReady, Status: http.StatusServiceUnavailable, Message: "Bot is not ready yet"},
	{Err: domain.ErrNotAMember, Status: http.StatusNotFound, Message: "User is not a member of the server"},
	{Err: domain.ErrRoleNotFound, Status: http.StatusNotFound, Message: "Role not found"},
	{Err: domain.ErrAlreadyMember, Status: http.StatusConflict, Message: "User is already a member of the server",
		Extra: map[string]any{"alreadyMember": true}},
	{Err: domain.ErrMissingAccessToken, Status: http.StatusBadRequest, Message: "Access token is required"},
}

// statusFor returns the HTTP status err maps to.
func statusFor(err error) int {
	for _, c := range errorCases {
		if errors.Is(err, c.Err) {
			return c.Status
		}
	}
	return http.StatusInternalServerError
}

// respondError writes the mapped response for err. summary is used as the
// error field of unmapped failures, with the cause in message.
func respondError(w http.ResponseWriter, err error, summary string) {
	for _, c := range errorCases {
		if !errors.Is(err, c.Err) {
			continue
		}
		body := map[string]any{"error": c.Message}
		for k, v := range c.Extra {
			body[k] = v
		}
		JSON(w, c.Status, body)
		return
	}

	JSON(w, http.StatusInternalServerError, map[string]string{
		"error":   summary,
		"message": err.Error(),
	})
}

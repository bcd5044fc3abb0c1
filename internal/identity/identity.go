// Package identity validates the platform user ID carried in request paths.
package identity

import (
	"context"
	"net"
	"net/http"

	"github.com/disgoorg/snowflake/v2"
	"github.com/go-chi/chi/v5"
)

// URLParam is the chi route parameter holding the user ID.
const URLParam = "userID"

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// Valid reports whether id is a platform snowflake.
func Valid(id string) bool {
	if id == "" {
		return false
	}
	_, err := snowflake.Parse(id)
	return err == nil
}

// Middleware rejects requests whose {userID} path parameter is not a
// snowflake and stores the validated ID in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, URLParam)
		if !Valid(userID) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid user id"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// IPFromRequest returns a normalized remote IP.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("explicit origin gets credentials", func(t *testing.T) {
		h := CORS([]string{"https://portal.example"})(ok)
		req := httptest.NewRequest(http.MethodGet, "/api/roles", nil)
		req.Header.Set("Origin", "https://portal.example")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://portal.example" {
			t.Errorf("unexpected allow-origin %q", got)
		}
		if rr.Header().Get("Access-Control-Allow-Credentials") != "true" {
			t.Error("expected credentials for explicit origin")
		}
	})

	t.Run("wildcard echoes without credentials", func(t *testing.T) {
		h := CORS([]string{"*"})(ok)
		req := httptest.NewRequest(http.MethodGet, "/api/roles", nil)
		req.Header.Set("Origin", "https://elsewhere.example")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://elsewhere.example" {
			t.Errorf("unexpected allow-origin %q", got)
		}
		if rr.Header().Get("Access-Control-Allow-Credentials") != "" {
			t.Error("wildcard match must not allow credentials")
		}
	})

	t.Run("unlisted origin", func(t *testing.T) {
		h := CORS([]string{"https://portal.example"})(ok)
		req := httptest.NewRequest(http.MethodGet, "/api/roles", nil)
		req.Header.Set("Origin", "https://evil.example")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		if rr.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("expected no allow-origin for unlisted origin")
		}
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		called := false
		h := CORS([]string{"*"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		req := httptest.NewRequest(http.MethodOptions, "/api/user/1/roles/2", nil)
		req.Header.Set("Origin", "https://portal.example")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		if called {
			t.Error("preflight must not reach the handler")
		}
		if rr.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rr.Code)
		}
	})
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func headerKey(r *http.Request) (string, bool) {
	key := r.Header.Get("X-User")
	return key, key != ""
}

func TestRateLimiterRejectsAfterBurst(t *testing.T) {
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 2, headerKey, nil)
	rl.now = func() time.Time { return now }

	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-User", user)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < 2; i++ {
		if rr := do("alice"); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rr.Code)
		}
	}

	rr := do("alice")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "1" {
		t.Errorf("expected Retry-After 1, got %q", got)
	}

	if rr := do("bob"); rr.Code != http.StatusOK {
		t.Fatalf("expected other users to be unaffected, got %d", rr.Code)
	}

	now = now.Add(time.Second)
	if rr := do("alice"); rr.Code != http.StatusOK {
		t.Fatalf("expected token refill after 1s, got %d", rr.Code)
	}
}

func TestRateLimiterPassesUnidentifiedRequests(t *testing.T) {
	rl := NewRateLimiter(1, 1, headerKey, nil)
	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200 without identifier, got %d", rr.Code)
		}
	}
	if rl.Len() != 0 {
		t.Errorf("expected no tracked keys, got %d", rl.Len())
	}
}

func TestRateLimiterSweep(t *testing.T) {
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1, headerKey, nil)
	rl.now = func() time.Time { return now }

	rl.reserve("old")
	now = now.Add(10 * time.Minute)
	rl.reserve("fresh")

	if removed := rl.Sweep(5 * time.Minute); removed != 1 {
		t.Fatalf("expected 1 key removed, got %d", removed)
	}
	if rl.Len() != 1 {
		t.Fatalf("expected 1 remaining key, got %d", rl.Len())
	}
}

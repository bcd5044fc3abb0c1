package discord

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
)

func restError(status, code int) error {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: status, Status: http.StatusText(status)},
		Message:  &discordgo.APIErrorMessage{Code: code, Message: "test"},
	}
}

func TestIsUnknownMember(t *testing.T) {
	if !IsUnknownMember(restError(http.StatusNotFound, discordgo.ErrCodeUnknownMember)) {
		t.Error("expected 10007 to be unknown member")
	}
	wrapped := fmt.Errorf("fetch member: %w", restError(http.StatusNotFound, discordgo.ErrCodeUnknownMember))
	if !IsUnknownMember(wrapped) {
		t.Error("expected wrapped 10007 to be unknown member")
	}
	if IsUnknownMember(restError(http.StatusNotFound, discordgo.ErrCodeUnknownRole)) {
		t.Error("expected unknown role not to be unknown member")
	}
	if IsUnknownMember(errors.New("dial tcp: timeout")) {
		t.Error("expected plain error not to be unknown member")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit error", &discordgo.RateLimitError{RateLimit: &discordgo.RateLimit{
			TooManyRequests: &discordgo.TooManyRequests{RetryAfter: time.Second},
		}}, true},
		{"429 rest error", restError(http.StatusTooManyRequests, 0), true},
		{"502", restError(http.StatusBadGateway, 0), true},
		{"403", restError(http.StatusForbidden, discordgo.ErrCodeMissingPermissions), false},
		{"404 member", restError(http.StatusNotFound, discordgo.ErrCodeUnknownMember), false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("%s: IsRetryable = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRetryAfter(t *testing.T) {
	err := fmt.Errorf("call: %w", &discordgo.RateLimitError{RateLimit: &discordgo.RateLimit{
		TooManyRequests: &discordgo.TooManyRequests{RetryAfter: 1500 * time.Millisecond},
		URL:             "https://discord.com/api/v9/guilds/1",
	}})
	if got := RetryAfter(err); got != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s, got %v", got)
	}
	if got := RetryAfter(restError(http.StatusBadGateway, 0)); got != 0 {
		t.Fatalf("expected no hint for 502, got %v", got)
	}
}

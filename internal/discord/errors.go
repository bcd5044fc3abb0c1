package discord

import (
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
)

// APICode returns the platform JSON error code carried by err, or 0.
func APICode(err error) int {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		return restErr.Message.Code
	}
	return 0
}

// StatusCode returns the HTTP status of a failed REST call, or 0.
func StatusCode(err error) int {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return restErr.Response.StatusCode
	}
	return 0
}

// IsUnknownMember reports whether err is the platform's "Unknown Member" response.
func IsUnknownMember(err error) bool {
	return APICode(err) == discordgo.ErrCodeUnknownMember
}

// IsRateLimited reports whether err is a 429 from the platform.
func IsRateLimited(err error) bool {
	var rateErr *discordgo.RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	return StatusCode(err) == http.StatusTooManyRequests
}

// IsRetryable reports whether a later attempt of the same call may succeed.
// Rate limits and server-side failures are retryable; client errors are not.
func IsRetryable(err error) bool {
	if IsRateLimited(err) {
		return true
	}
	return StatusCode(err) >= http.StatusInternalServerError
}

// RetryAfter returns the platform-provided wait for a rate-limited call.
func RetryAfter(err error) time.Duration {
	var rateErr *discordgo.RateLimitError
	if errors.As(err, &rateErr) && rateErr.RateLimit != nil && rateErr.TooManyRequests != nil {
		return rateErr.RetryAfter
	}
	return 0
}

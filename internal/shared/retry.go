// Package shared provides common utilities used across the codebase.
//
//nolint:revive // "shared" is an intentional package name for cross-cutting helpers.
package shared

import (
	"context"
	"log/slog"
	"time"
)

// RetryPolicy configures Retry.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// Retryable reports whether err may succeed on a later attempt.
	Retryable func(err error) bool

	// Hint returns a server-provided wait (e.g. retry_after). When larger
	// than the computed backoff it replaces it. May be nil.
	Hint func(err error) time.Duration

	// Sleep waits for d or until ctx ends. Defaults to a timer select.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Retry runs op until it succeeds, returns a non-retryable error, or
// MaxAttempts is reached. The delay doubles every attempt: base, 2*base, 4*base...
func Retry(ctx context.Context, policy RetryPolicy, op string, fn func(ctx context.Context) error) error {
	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	sleep := policy.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	for i := 0; i < maxAttempts; i++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if policy.Retryable == nil || !policy.Retryable(err) || i == maxAttempts-1 {
			return err
		}

		delay := policy.BaseDelay * time.Duration(1<<i)
		if policy.Hint != nil {
			if hint := policy.Hint(err); hint > delay {
				delay = hint
			}
		}
		slog.Debug("Retrying after transient error",
			"op", op,
			"attempt", i+1,
			"delay", delay,
			"error", err)

		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}

	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

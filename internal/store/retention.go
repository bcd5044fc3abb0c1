package store

import (
	"context"
	"log/slog"
	"time"
)

const retentionWorkerInterval = time.Hour

// StartRetentionWorker runs a background goroutine that periodically deletes
// audit records older than retention.
func StartRetentionWorker(ctx context.Context, repo Repository, retention time.Duration) {
	startRetentionWorker(ctx, repo, retention, retentionWorkerInterval, time.Now)
}

func startRetentionWorker(ctx context.Context, repo Repository, retention, interval time.Duration, now func() time.Time) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Retention worker started", "interval", interval, "retention", retention)

		for {
			select {
			case <-ticker.C:
				pruneMutations(ctx, repo, now().Add(-retention))
			case <-ctx.Done():
				slog.Info("Retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func pruneMutations(ctx context.Context, repo Repository, cutoff time.Time) {
	deleted, err := repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("Retention worker failed to prune mutations", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Retention worker pruned mutations", "count", deleted, "cutoff", cutoff)
	}
}

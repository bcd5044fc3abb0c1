// Package store persists the mutation audit trail.
package store

import (
	"context"
	"time"

	"github.com/ashureev/roleportal/internal/domain"
)

// Repository defines the interface for persisting mutation audit records.
// Records are append-only; they are never read to answer membership or role
// queries, which always go to the platform.
type Repository interface {
	// RecordMutation appends one audit record.
	RecordMutation(ctx context.Context, m *domain.Mutation) error

	// ListMutations returns up to limit records for userID, newest first.
	ListMutations(ctx context.Context, userID string, limit int) ([]*domain.Mutation, error)

	// DeleteOlderThan removes records created before cutoff and returns the count.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

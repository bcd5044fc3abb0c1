package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ashureev/roleportal/internal/domain"
	"github.com/ashureev/roleportal/internal/shared"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	retry shared.RetryPolicy
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL lets the audit writer and readers proceed concurrently.
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{
		db: db,
		retry: shared.RetryPolicy{
			MaxAttempts: 3,
			BaseDelay:   50 * time.Millisecond,
			Retryable:   shared.IsSQLiteConflictError,
		},
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS mutations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		role_id TEXT NOT NULL DEFAULT '',
		role_name TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		outcome TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_mutations_user_created ON mutations(user_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_mutations_created ON mutations(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RecordMutation appends one audit record. Busy or locked databases are
// retried with backoff.
func (s *SQLiteStore) RecordMutation(ctx context.Context, m *domain.Mutation) error {
	if m.ID == "" {
		return fmt.Errorf("record mutation: id is required")
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	query := `
	INSERT INTO mutations (id, user_id, role_id, role_name, action, outcome, error, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	err := shared.Retry(ctx, s.retry, "record_mutation", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query,
			m.ID, m.UserID, m.RoleID, m.RoleName,
			string(m.Action), string(m.Outcome), m.Error,
			m.CreatedAt.UnixMilli(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert mutation: %w", err)
	}
	return nil
}

// ListMutations returns the newest records for userID. A non-positive limit
// uses the default; limits above the maximum are capped.
func (s *SQLiteStore) ListMutations(ctx context.Context, userID string, limit int) ([]*domain.Mutation, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := `
		SELECT id, user_id, role_id, role_name, action, outcome, error, created_at
		FROM mutations
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query mutations: %w", err)
	}
	defer rows.Close()

	mutations := make([]*domain.Mutation, 0)
	for rows.Next() {
		var m domain.Mutation
		var action, outcome string
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.UserID, &m.RoleID, &m.RoleName, &action, &outcome, &m.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("scan mutation row: %w", err)
		}
		m.Action = domain.MutationAction(action)
		m.Outcome = domain.MutationOutcome(outcome)
		m.CreatedAt = time.UnixMilli(createdAt)
		mutations = append(mutations, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mutation rows: %w", err)
	}
	return mutations, nil
}

// DeleteOlderThan removes records created before cutoff.
func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := shared.Retry(ctx, s.retry, "delete_mutations", func(ctx context.Context) error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM mutations WHERE created_at < ?`, cutoff.UnixMilli())
		if err != nil {
			return err
		}
		deleted, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete old mutations: %w", err)
	}
	return deleted, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/roleportal/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "audit.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mutation(id, userID string, at time.Time) *domain.Mutation {
	return &domain.Mutation{
		ID:        id,
		UserID:    userID,
		RoleID:    "r1",
		RoleName:  "Artist",
		Action:    domain.ActionAssign,
		Outcome:   domain.OutcomeOK,
		CreatedAt: at,
	}
}

func TestRecordAndListMutations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := s.RecordMutation(ctx, mutation(fmt.Sprintf("m%d", i), "u1", base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("RecordMutation failed: %v", err)
		}
	}
	failed := mutation("other", "u2", base)
	failed.Action = domain.ActionJoin
	failed.Outcome = domain.OutcomeError
	failed.Error = "user is already a member of the server"
	if err := s.RecordMutation(ctx, failed); err != nil {
		t.Fatalf("RecordMutation failed: %v", err)
	}

	got, err := s.ListMutations(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("ListMutations failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 mutations for u1, got %d", len(got))
	}
	if got[0].ID != "m2" || got[2].ID != "m0" {
		t.Errorf("expected newest first, got %s..%s", got[0].ID, got[2].ID)
	}
	if !got[0].CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("unexpected created_at %v", got[0].CreatedAt)
	}

	limited, err := s.ListMutations(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("ListMutations failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected limit to apply, got %d", len(limited))
	}

	other, err := s.ListMutations(ctx, "u2", 10)
	if err != nil {
		t.Fatalf("ListMutations failed: %v", err)
	}
	if len(other) != 1 || other[0].Outcome != domain.OutcomeError || other[0].Action != domain.ActionJoin {
		t.Fatalf("unexpected records for u2: %+v", other)
	}
}

func TestListMutationsEmpty(t *testing.T) {
	s := newTestStore(t)

	got, err := s.ListMutations(context.Background(), "nobody", 10)
	if err != nil {
		t.Fatalf("ListMutations failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestRecordMutationRequiresID(t *testing.T) {
	s := newTestStore(t)

	if err := s.RecordMutation(context.Background(), &domain.Mutation{UserID: "u1"}); err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestRecordMutationConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.RecordMutation(ctx, mutation(fmt.Sprintf("c%d", i), "u1", time.Now()))
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent RecordMutation failed: %v", err)
		}
	}
	got, _ := s.ListMutations(ctx, "u1", maxListLimit)
	if len(got) != 20 {
		t.Fatalf("expected 20 records, got %d", len(got))
	}
}

func TestDeleteOlderThan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_ = s.RecordMutation(ctx, mutation("old", "u1", now.Add(-48*time.Hour)))
	_ = s.RecordMutation(ctx, mutation("new", "u1", now.Add(-time.Hour)))

	deleted, err := s.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}

	got, _ := s.ListMutations(ctx, "u1", 10)
	if len(got) != 1 || got[0].ID != "new" {
		t.Fatalf("expected only the recent record to remain, got %+v", got)
	}
}

func TestRetentionWorkerPrunes(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_ = s.RecordMutation(ctx, mutation("old", "u1", now.Add(-2*time.Hour)))
	_ = s.RecordMutation(ctx, mutation("new", "u1", now))

	startRetentionWorker(ctx, s, time.Hour, 10*time.Millisecond, func() time.Time { return now })

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := s.ListMutations(ctx, "u1", 10)
		if err != nil {
			t.Fatalf("ListMutations failed: %v", err)
		}
		if len(got) == 1 {
			if got[0].ID != "new" {
				t.Fatalf("expected recent record to survive, got %s", got[0].ID)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("retention worker did not prune old records")
}

package outbox

import (
	"context"
	"testing"
	"time"

	"claimflow/db/dbtest"
)

func TestPGRepository_LeaseSkipsLeasedRows_Integration(t *testing.T) {
	pool := dbtest.Pool(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	// far in the past so these rows are leased before anything else in the table
	base := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	q := NewQueue(repo).WithClock(func() time.Time { return base })
	for i := 0; i < 3; i++ {
		if err := q.Enqueue(ctx, TopicTaxCalculated, map[string]int{"n": i}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	now := time.Now().UTC()
	first, err := repo.Lease(ctx, now, time.Minute, 2)
	if err != nil {
		t.Fatalf("lease: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 leased messages, got %d", len(first))
	}
	second, err := repo.Lease(ctx, now, time.Minute, 10)
	if err != nil {
		t.Fatalf("second lease: %v", err)
	}
	for _, m := range second {
		for _, f := range first {
			if m.ID == f.ID {
				t.Fatalf("message %s leased twice", m.ID)
			}
		}
	}

	if err := repo.MarkProcessed(ctx, first[0].ID, now); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	if err := repo.MarkFailed(ctx, first[1].ID, 8, now, "boom", true); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	dead, err := repo.List(ctx, StatusDead, 500)
	if err != nil {
		t.Fatalf("list dead: %v", err)
	}
	found := false
	for _, m := range dead {
		if m.ID == first[1].ID {
			found = m.LastError == "boom" && m.Attempts == 8
		}
	}
	if !found {
		t.Fatalf("dead-lettered message missing from list")
	}
}

package db_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"claimflow/db"
	"claimflow/db/dbtest"
	"claimflow/outbox"
)

func TestMemoryTransactor_RollbackUndoesInReverse(t *testing.T) {
	var steps []string
	boom := errors.New("boom")

	err := db.NewMemoryTransactor().InTx(context.Background(), func(ctx context.Context) error {
		db.OnRollback(ctx, func() { steps = append(steps, "first") })
		db.OnRollback(ctx, func() { steps = append(steps, "second") })
		db.AfterCommit(ctx, func() { steps = append(steps, "published") })
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if len(steps) != 2 || steps[0] != "second" || steps[1] != "first" {
		t.Fatalf("unexpected steps %v", steps)
	}
}

func TestMemoryTransactor_CommitRunsAfterCommitOnly(t *testing.T) {
	var steps []string
	err := db.NewMemoryTransactor().InTx(context.Background(), func(ctx context.Context) error {
		db.OnRollback(ctx, func() { steps = append(steps, "undo") })
		db.AfterCommit(ctx, func() { steps = append(steps, "published") })
		if len(steps) != 0 {
			t.Fatalf("after-commit step ran inside the unit")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("in tx: %v", err)
	}
	if len(steps) != 1 || steps[0] != "published" {
		t.Fatalf("unexpected steps %v", steps)
	}
}

func TestMemoryTransactor_NestedCallJoinsOuterUnit(t *testing.T) {
	tx := db.NewMemoryTransactor()
	var undone bool
	boom := errors.New("boom")

	err := tx.InTx(context.Background(), func(ctx context.Context) error {
		if err := tx.InTx(ctx, func(ctx context.Context) error {
			db.OnRollback(ctx, func() { undone = true })
			return nil
		}); err != nil {
			return err
		}
		if undone {
			t.Fatalf("inner unit committed on its own")
		}
		return boom
	})
	if !errors.Is(err, boom) || !undone {
		t.Fatalf("outer failure must undo inner writes: err=%v undone=%v", err, undone)
	}
}

func TestOutsideUnit_AfterCommitRunsAtOnce(t *testing.T) {
	ctx := context.Background()
	if db.InTransaction(ctx) {
		t.Fatalf("plain context reported a unit of work")
	}
	ran := false
	db.AfterCommit(ctx, func() { ran = true })
	db.OnRollback(ctx, func() { t.Fatalf("undo step ran outside a unit") })
	if !ran {
		t.Fatalf("after-commit step did not run outside a unit")
	}
}

func TestPGTransactor_RollbackDiscardsOutboxRow_Integration(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	repo := outbox.NewRepository(pool)
	tx := db.NewTransactor(pool)
	now := time.Now().UTC()

	insert := func(ctx context.Context, id string) error {
		return repo.Insert(ctx, outbox.Message{
			ID:            id,
			Topic:         outbox.TopicClaimStatusChanged,
			Payload:       []byte(`{"claimReferenceId":"CL-TX"}`),
			Status:        outbox.StatusPending,
			NextAttemptAt: now,
			CreatedAt:     now,
		})
	}
	count := func(id string) int {
		var n int
		if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE id = $1::uuid`, id).Scan(&n); err != nil {
			t.Fatalf("count: %v", err)
		}
		return n
	}

	rolledBack := uuid.NewString()
	boom := errors.New("boom")
	err := tx.InTx(ctx, func(ctx context.Context) error {
		if err := insert(ctx, rolledBack); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if n := count(rolledBack); n != 0 {
		t.Fatalf("rolled back insert is visible: %d rows", n)
	}

	committed := uuid.NewString()
	published := false
	if err := tx.InTx(ctx, func(ctx context.Context) error {
		db.AfterCommit(ctx, func() { published = true })
		return insert(ctx, committed)
	}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if n := count(committed); n != 1 || !published {
		t.Fatalf("committed insert: rows=%d published=%v", n, published)
	}
}

package claim

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"claimflow/db/dbtest"
)

func newIntegrationClaim(now time.Time) Claim {
	return Claim{
		ReferenceID:  NewReferenceID(),
		ClaimantID:   "C-" + uuid.NewString()[:8],
		ClaimantName: "Jane Doe",
		FilingDate:   now,
		Status:       StatusReceived,
		History:      []HistoryEntry{{Status: StatusReceived, Reason: InitialReason, Actor: SystemActor, At: now}},
		EmploymentRecords: []EmploymentRecord{{
			EmployerID:   "EMP001",
			EmployerName: "Acme Industries",
			StartDate:    time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
			EndDate:      time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC),
			Wages:        decimal.RequireFromString("14000.50"),
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestPGRepository_CreateAndIdempotency_Integration(t *testing.T) {
	pool := dbtest.Pool(t)
	repo := NewRepository(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	key := "it-" + uuid.NewString()
	created, err := repo.Create(ctx, newIntegrationClaim(now), key)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != StatusReceived || len(created.History) != 1 || created.History[0].Seq != 1 {
		t.Fatalf("unexpected created claim: %+v", created)
	}
	if len(created.EmploymentRecords) != 1 || !created.EmploymentRecords[0].Wages.Equal(decimal.RequireFromString("14000.50")) {
		t.Fatalf("wages not preserved: %+v", created.EmploymentRecords)
	}

	if _, err := repo.Create(ctx, newIntegrationClaim(now), key); !errors.Is(err, ErrDuplicateIdempotencyKey) {
		t.Fatalf("expected duplicate key, got %v", err)
	}
	replay, err := repo.FindByIdempotencyKey(ctx, key)
	if err != nil || replay.ReferenceID != created.ReferenceID {
		t.Fatalf("replay = %s, %v", replay.ReferenceID, err)
	}
	if _, err := repo.Get(ctx, "CL-MISSING000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPGRepository_UpdateStatusCompareAndSwap_Integration(t *testing.T) {
	pool := dbtest.Pool(t)
	repo := NewRepository(pool)
	ctx := context.Background()
	now := time.Now().UTC()

	c, err := repo.Create(ctx, newIntegrationClaim(now), "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const racers = 6
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.UpdateStatus(ctx, c.ReferenceID, StatusReceived, HistoryEntry{Status: StatusProcessing, Actor: "racer", At: now})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrStaleStatus) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}

	history, err := repo.History(ctx, c.ReferenceID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	got, _ := repo.Get(ctx, c.ReferenceID)
	if got.Status != StatusProcessing {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestPGRepository_ListFilters_Integration(t *testing.T) {
	pool := dbtest.Pool(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	c, err := repo.Create(ctx, newIntegrationClaim(time.Now().UTC()), "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	items, total, err := repo.List(ctx, ListFilter{ClaimantID: c.ClaimantID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].ReferenceID != c.ReferenceID {
		t.Fatalf("list = %d %+v", total, items)
	}
}

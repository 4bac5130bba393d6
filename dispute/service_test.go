package dispute

import (
	"context"
	"errors"
	"testing"
	"time"

	"claimflow/apperr"
)

func TestOpenListResolve(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	svc := NewService(NewMemoryRepository()).WithClock(func() time.Time { return now })
	ctx := context.Background()

	rec, err := svc.Open(ctx, "CL-00000000AA", "5b0e7d2c-5d6f-4f0e-9a53-4b8f0f4f7c11", "wages overstated")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if rec.Status != StatusUnderReview || rec.ResolvedAt != nil {
		t.Fatalf("unexpected new record %+v", rec)
	}
	if _, err := svc.Open(ctx, "CL-00000000BB", "", "separation reason"); err != nil {
		t.Fatalf("open second: %v", err)
	}

	list, err := svc.List(ctx, "CL-00000000AA")
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one dispute for claim, got %d %v", len(list), err)
	}
	all, _ := svc.List(ctx, "")
	if len(all) != 2 {
		t.Fatalf("expected two disputes overall, got %d", len(all))
	}

	resolved, err := svc.Resolve(ctx, rec.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != StatusResolved || resolved.ResolvedAt == nil || !resolved.ResolvedAt.Equal(now) {
		t.Fatalf("unexpected resolved record %+v", resolved)
	}

	if _, err := svc.Resolve(ctx, rec.ID); !errors.Is(err, ErrBadStatus) || !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected bad status on second resolve, got %v", err)
	}
}

func TestResolveUnknown(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	if _, err := svc.Resolve(ctx, "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for malformed id, got %v", err)
	}
	if _, err := svc.Resolve(ctx, "0f8fad5b-d9cb-469f-a165-70867728950e"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.Open(ctx, " ", "", ""); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

package claim

import (
	"context"

	"claimflow/apperr"
)

var (
	// ErrNotFound is returned when no claim exists for a reference id.
	ErrNotFound = apperr.New(apperr.ErrNotFound, "claim: not found")
	// ErrDuplicateReference guards the uniqueness of reference ids.
	ErrDuplicateReference = apperr.New(apperr.ErrConflict, "claim: duplicate reference id")
	// ErrDuplicateIdempotencyKey signals a filing replay raced the first call.
	ErrDuplicateIdempotencyKey = apperr.New(apperr.ErrConflict, "claim: duplicate idempotency key")
	// ErrStaleStatus is returned by UpdateStatus when the stored status moved underneath the caller.
	ErrStaleStatus = apperr.New(apperr.ErrConflict, "claim: status changed concurrently")
	// ErrRecordsLocked is returned when employment records are added after the claim left received.
	ErrRecordsLocked = apperr.New(apperr.ErrPrecondition, "claim: employment records are locked once processing starts")
)

// Store persists claims. Implementations must make UpdateStatus a
// compare-and-swap on the expected status and append the history entry in
// the same atomic step.
type Store interface {
	// Create stores c with its first history entry and employment records.
	// A non-empty idempotencyKey is reserved in the same step.
	Create(ctx context.Context, c Claim, idempotencyKey string) (Claim, error)
	Get(ctx context.Context, referenceID string) (Claim, error)
	// FindByIdempotencyKey returns ErrNotFound when the key was never used.
	FindByIdempotencyKey(ctx context.Context, key string) (Claim, error)
	List(ctx context.Context, filter ListFilter) ([]Claim, int, error)
	History(ctx context.Context, referenceID string) ([]HistoryEntry, error)
	AddEmploymentRecord(ctx context.Context, referenceID string, rec EmploymentRecord) (EmploymentRecord, error)
	// UpdateStatus sets the status to entry.Status when the stored status equals
	// expected, appending entry with the next sequence number.
	UpdateStatus(ctx context.Context, referenceID string, expected Status, entry HistoryEntry) (Claim, error)
}

package verification

import (
	"context"
	"time"

	"claimflow/apperr"
)

var (
	ErrNotFound         = apperr.New(apperr.ErrNotFound, "verification: request not found")
	ErrDuplicateRequest = apperr.New(apperr.ErrConflict, "verification: claim already has an open request")
	ErrAlreadyCompleted = apperr.New(apperr.ErrConflict, "verification: request already completed")
	ErrCancelled        = apperr.New(apperr.ErrConflict, "verification: request was cancelled")
	ErrClaimNotAwaiting = apperr.New(apperr.ErrPrecondition, "verification: claim is not awaiting employer verification")
)

// Store persists requests. Create must reject a second pending request for
// the same claim and Complete must succeed at most once per request.
type Store interface {
	Create(ctx context.Context, req Request) (Request, error)
	Get(ctx context.Context, id string) (Request, error)
	Complete(ctx context.Context, id string, resp Response, at time.Time) (Request, error)
	ListByClaim(ctx context.Context, claimRef string) ([]Request, error)
	ListByEmployer(ctx context.Context, employerID string) ([]Request, error)
	// ListOverdue returns pending requests last notified before cutoff, oldest
	// first. Requests of finalized or rejected claims are left out.
	ListOverdue(ctx context.Context, cutoff time.Time, limit int) ([]Request, error)
	MarkNotified(ctx context.Context, id string, at time.Time) error
	// Cancel closes a pending request without a response.
	Cancel(ctx context.Context, id string, at time.Time) (Request, error)
}

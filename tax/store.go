package tax

import (
	"context"

	"claimflow/apperr"
)

var (
	ErrNoRate          = apperr.New(apperr.ErrPrecondition, "tax: no tax rate configured")
	ErrNotCalculated   = apperr.New(apperr.ErrNotFound, "tax: no calculation for claim")
	ErrNotReady        = apperr.New(apperr.ErrPrecondition, "tax: claim wages are not verified")
	ErrRateOutOfBounds = apperr.New(apperr.ErrValidation, "tax: rates must be in [0, 1) with at most five decimals")
)

// Store persists rates and calculations.
type Store interface {
	CurrentRate(ctx context.Context) (Rate, error)
	InsertRate(ctx context.Context, rate Rate) (Rate, error)
	// UpsertCalculation replaces any previous calculation of the same claim.
	UpsertCalculation(ctx context.Context, calc Calculation) (Calculation, error)
	GetCalculation(ctx context.Context, claimRef string) (Calculation, error)
	// RecentCalculations returns the newest calculations first.
	RecentCalculations(ctx context.Context, limit int) ([]Calculation, error)
}

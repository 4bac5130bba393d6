// Package tax computes withholding for verified claims from the current rate table.
package tax

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"claimflow/apperr"
	"claimflow/claim"
	"claimflow/outbox"
	"claimflow/workflow"
)

// DefaultCalculatedBy identifies this service in tax.calculated payloads.
const DefaultCalculatedBy = "tax-services"

var (
	DefaultStateRate   = decimal.RequireFromString("0.02")
	DefaultFederalRate = decimal.RequireFromString("0.006")
)

type Workflow interface {
	WithClaim(ctx context.Context, referenceID string, fn func(ctx context.Context, tx *workflow.Tx) error) error
}

// WageSource reports wages confirmed by an employer. ok is false when none were reported.
type WageSource interface {
	VerifiedWages(ctx context.Context, claimRef string) (wages decimal.Decimal, ok bool, err error)
}

type Notifier interface {
	Enqueue(ctx context.Context, topic string, payload any) error
}

type Calculator struct {
	store         Store
	workflow      Workflow
	notifier      Notifier
	wages         WageSource
	log           logrus.FieldLogger
	calculatedBy  string
	autoCalculate bool
	now           func() time.Time
}

func NewCalculator(store Store, wf Workflow, notifier Notifier, log logrus.FieldLogger) *Calculator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Calculator{
		store:        store,
		workflow:     wf,
		notifier:     notifier,
		log:          log,
		calculatedBy: DefaultCalculatedBy,
		now:          time.Now,
	}
}

// WithWageSource prefers employer-verified wages over the claim's own records.
func (c *Calculator) WithWageSource(src WageSource) *Calculator {
	c.wages = src
	return c
}

func (c *Calculator) WithCalculatedBy(name string) *Calculator {
	if name != "" {
		c.calculatedBy = name
	}
	return c
}

// WithAutoCalculate runs Calculate whenever a claim enters verified.
func (c *Calculator) WithAutoCalculate(enabled bool) *Calculator {
	c.autoCalculate = enabled
	return c
}

func (c *Calculator) WithClock(now func() time.Time) *Calculator {
	c.now = now
	return c
}

// Calculate computes and stores the claim's tax. Repeating it with unchanged
// rates and wages yields the same amounts. A verified claim moves to tax_calculated.
func (c *Calculator) Calculate(ctx context.Context, claimRef string) (Calculation, error) {
	if strings.TrimSpace(claimRef) == "" {
		return Calculation{}, apperr.Validation("tax: claim reference required")
	}

	var calc Calculation
	err := c.workflow.WithClaim(ctx, claimRef, func(ctx context.Context, tx *workflow.Tx) error {
		cl := tx.Claim()
		if !cl.Status.Reached(claim.StatusVerified) {
			return fmt.Errorf("tax: claim %s is %s: %w", cl.ReferenceID, cl.Status, ErrNotReady)
		}

		rate, err := c.store.CurrentRate(ctx)
		if err != nil {
			return err
		}
		base, err := c.wageBase(ctx, cl)
		if err != nil {
			return err
		}

		state, federal, total := Compute(base, rate)
		calc, err = c.store.UpsertCalculation(ctx, Calculation{
			ClaimRef:     cl.ReferenceID,
			WageBase:     base,
			StateRate:    rate.StateRate,
			FederalRate:  rate.FederalRate,
			StateTax:     state,
			FederalTax:   federal,
			Total:        total,
			CalculatedBy: c.calculatedBy,
			CalculatedAt: c.now().UTC(),
		})
		if err != nil {
			return err
		}

		if cl.Status == claim.StatusVerified {
			if _, err := tx.Transition(ctx, claim.StatusTaxCalculated, "Tax calculated", c.calculatedBy); err != nil {
				return err
			}
		}
		return c.notify(ctx, calc)
	})
	if err != nil {
		return Calculation{}, err
	}

	c.log.WithFields(logrus.Fields{
		"claim_ref": calc.ClaimRef,
		"wage_base": calc.WageBase.StringFixed(2),
		"total_tax": calc.Total.StringFixed(2),
	}).Info("tax calculated")
	return calc, nil
}

func (c *Calculator) wageBase(ctx context.Context, cl claim.Claim) (decimal.Decimal, error) {
	if c.wages != nil {
		wages, ok, err := c.wages.VerifiedWages(ctx, cl.ReferenceID)
		if err != nil {
			return decimal.Zero, fmt.Errorf("tax: verified wages: %w", err)
		}
		if ok {
			return wages, nil
		}
	}
	return cl.TotalWages(), nil
}

func (c *Calculator) notify(ctx context.Context, calc Calculation) error {
	if c.notifier == nil {
		return nil
	}
	if err := c.notifier.Enqueue(ctx, outbox.TopicTaxCalculated, NewCalculatedPayload(calc)); err != nil {
		return fmt.Errorf("tax: enqueue result: %w", err)
	}
	return nil
}

func (c *Calculator) Get(ctx context.Context, claimRef string) (Calculation, error) {
	return c.store.GetCalculation(ctx, claimRef)
}

func (c *Calculator) Recent(ctx context.Context, limit int) ([]Calculation, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return c.store.RecentCalculations(ctx, limit)
}

func (c *Calculator) CurrentRate(ctx context.Context) (Rate, error) {
	return c.store.CurrentRate(ctx)
}

// SetRate appends a new current rate. Earlier calculations keep the rate they were made with.
func (c *Calculator) SetRate(ctx context.Context, state, federal decimal.Decimal, updatedBy string) (Rate, error) {
	if !validRate(state) || !validRate(federal) {
		return Rate{}, ErrRateOutOfBounds
	}
	if strings.TrimSpace(updatedBy) == "" {
		updatedBy = claim.SystemActor
	}
	rate, err := c.store.InsertRate(ctx, Rate{
		StateRate:   state,
		FederalRate: federal,
		UpdatedBy:   updatedBy,
		UpdatedAt:   c.now().UTC(),
	})
	if err != nil {
		return Rate{}, err
	}
	c.log.WithFields(logrus.Fields{"state_rate": state.String(), "federal_rate": federal.String(), "updated_by": updatedBy}).
		Info("tax rate updated")
	return rate, nil
}

// EnsureDefaultRate seeds state and federal when no rate exists yet.
func (c *Calculator) EnsureDefaultRate(ctx context.Context, state, federal decimal.Decimal) (Rate, error) {
	rate, err := c.store.CurrentRate(ctx)
	if err == nil {
		return rate, nil
	}
	if !errors.Is(err, ErrNoRate) {
		return Rate{}, err
	}
	return c.SetRate(ctx, state, federal, claim.SystemActor)
}

// OnStatusChanged is a workflow subscriber that calculates tax when a claim becomes verified.
func (c *Calculator) OnStatusChanged(ctx context.Context, ev workflow.Event) {
	if !c.autoCalculate || ev.Next != claim.StatusVerified {
		return
	}
	if _, err := c.Calculate(ctx, ev.ClaimRef); err != nil {
		c.log.WithError(err).WithField("claim_ref", ev.ClaimRef).Warn("automatic tax calculation failed")
	}
}

// validRate accepts rates in [0, 1) with at most five decimals, the precision of the rate columns.
func validRate(r decimal.Decimal) bool {
	return !r.IsNegative() && r.LessThan(decimal.NewFromInt(1)) && r.Equal(r.Truncate(5))
}

package tax

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Rate is one row of the rate table. The most recently inserted row is current.
type Rate struct {
	ID          int64
	StateRate   decimal.Decimal
	FederalRate decimal.Decimal
	UpdatedBy   string
	UpdatedAt   time.Time
}

// Calculation is the stored tax result of a claim. There is at most one per claim.
type Calculation struct {
	ClaimRef     string
	WageBase     decimal.Decimal
	StateRate    decimal.Decimal
	FederalRate  decimal.Decimal
	StateTax     decimal.Decimal
	FederalTax   decimal.Decimal
	Total        decimal.Decimal
	CalculatedBy string
	CalculatedAt time.Time
}

// CalculatedPayload is sent to the claims system after each calculation.
// Amounts are JSON numbers with exactly two decimals, rates are bare JSON numbers.
type CalculatedPayload struct {
	ClaimID          string      `json:"claimId"`
	StateTaxAmount   json.Number `json:"stateTaxAmount"`
	FederalTaxAmount json.Number `json:"federalTaxAmount"`
	TotalTaxAmount   json.Number `json:"totalTaxAmount"`
	StateTaxRate     json.Number `json:"stateTaxRate"`
	FederalTaxRate   json.Number `json:"federalTaxRate"`
	CalculatedBy     string      `json:"calculatedBy"`
	CalculatedAt     time.Time   `json:"calculatedAt"`
}

func NewCalculatedPayload(calc Calculation) CalculatedPayload {
	return CalculatedPayload{
		ClaimID:          calc.ClaimRef,
		StateTaxAmount:   Cents(calc.StateTax),
		FederalTaxAmount: Cents(calc.FederalTax),
		TotalTaxAmount:   Cents(calc.Total),
		StateTaxRate:     json.Number(calc.StateRate.String()),
		FederalTaxRate:   json.Number(calc.FederalRate.String()),
		CalculatedBy:     calc.CalculatedBy,
		CalculatedAt:     calc.CalculatedAt,
	}
}

// Cents renders an amount as a JSON number with two decimals, 280 becoming 280.00.
func Cents(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

// Compute applies rate to wages. Each amount is rounded half-up to cents on its own
// and the total is the sum of the rounded parts.
func Compute(wages decimal.Decimal, rate Rate) (state, federal, total decimal.Decimal) {
	state = wages.Mul(rate.StateRate).Round(2)
	federal = wages.Mul(rate.FederalRate).Round(2)
	total = state.Add(federal).Round(2)
	return state, federal, total
}

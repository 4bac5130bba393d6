package tax

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"claimflow/db"
)

// PGRepository implements Store on tax_rates and tax_calculations. Numeric
// columns travel as text so no precision is lost on the way through pgx.
type PGRepository struct {
	pool db.DB
}

func NewRepository(pool db.DB) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) CurrentRate(ctx context.Context) (Rate, error) {
	var (
		rate           Rate
		state, federal string
	)
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, state_rate::text, federal_rate::text, updated_by, updated_at
		FROM tax_rates
		ORDER BY updated_at DESC, id DESC
		LIMIT 1
	`).Scan(&rate.ID, &state, &federal, &rate.UpdatedBy, &rate.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rate{}, ErrNoRate
		}
		return Rate{}, fmt.Errorf("tax: current rate: %w", err)
	}
	if rate.StateRate, err = decimal.NewFromString(state); err != nil {
		return Rate{}, fmt.Errorf("tax: parse state rate: %w", err)
	}
	if rate.FederalRate, err = decimal.NewFromString(federal); err != nil {
		return Rate{}, fmt.Errorf("tax: parse federal rate: %w", err)
	}
	return rate, nil
}

func (r *PGRepository) InsertRate(ctx context.Context, rate Rate) (Rate, error) {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO tax_rates (state_rate, federal_rate, updated_by, updated_at)
		VALUES ($1::numeric, $2::numeric, $3, $4)
		RETURNING id
	`, rate.StateRate.String(), rate.FederalRate.String(), rate.UpdatedBy, rate.UpdatedAt).Scan(&rate.ID)
	if err != nil {
		return Rate{}, fmt.Errorf("tax: insert rate: %w", err)
	}
	return rate, nil
}

func (r *PGRepository) UpsertCalculation(ctx context.Context, calc Calculation) (Calculation, error) {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO tax_calculations (claim_ref, wage_base, state_rate, federal_rate, state_tax, federal_tax, total_tax,
		                              calculated_by, calculated_at)
		VALUES ($1, $2::numeric, $3::numeric, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8, $9)
		ON CONFLICT (claim_ref) DO UPDATE SET
			wage_base     = EXCLUDED.wage_base,
			state_rate    = EXCLUDED.state_rate,
			federal_rate  = EXCLUDED.federal_rate,
			state_tax     = EXCLUDED.state_tax,
			federal_tax   = EXCLUDED.federal_tax,
			total_tax     = EXCLUDED.total_tax,
			calculated_by = EXCLUDED.calculated_by,
			calculated_at = EXCLUDED.calculated_at
	`, calc.ClaimRef, calc.WageBase.String(), calc.StateRate.String(), calc.FederalRate.String(),
		calc.StateTax.String(), calc.FederalTax.String(), calc.Total.String(), calc.CalculatedBy, calc.CalculatedAt)
	if err != nil {
		return Calculation{}, fmt.Errorf("tax: upsert calculation: %w", err)
	}
	return calc, nil
}

const calculationColumns = `claim_ref, wage_base::text, state_rate::text, federal_rate::text,
	state_tax::text, federal_tax::text, total_tax::text, calculated_by, calculated_at`

func (r *PGRepository) GetCalculation(ctx context.Context, claimRef string) (Calculation, error) {
	calc, err := scanCalculation(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+calculationColumns+` FROM tax_calculations WHERE claim_ref = $1`, claimRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Calculation{}, ErrNotCalculated
		}
		return Calculation{}, fmt.Errorf("tax: get calculation: %w", err)
	}
	return calc, nil
}

func (r *PGRepository) RecentCalculations(ctx context.Context, limit int) ([]Calculation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+calculationColumns+` FROM tax_calculations
		ORDER BY calculated_at DESC, claim_ref ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("tax: list calculations: %w", err)
	}
	defer rows.Close()

	out := make([]Calculation, 0, limit)
	for rows.Next() {
		calc, err := scanCalculation(rows)
		if err != nil {
			return nil, fmt.Errorf("tax: scan: %w", err)
		}
		out = append(out, calc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tax: iterate: %w", err)
	}
	return out, nil
}

func scanCalculation(row pgx.Row) (Calculation, error) {
	var (
		calc  Calculation
		nums  [6]string
		dests = []*decimal.Decimal{&calc.WageBase, &calc.StateRate, &calc.FederalRate, &calc.StateTax, &calc.FederalTax, &calc.Total}
	)
	if err := row.Scan(&calc.ClaimRef, &nums[0], &nums[1], &nums[2], &nums[3], &nums[4], &nums[5],
		&calc.CalculatedBy, &calc.CalculatedAt); err != nil {
		return Calculation{}, err
	}
	for i, raw := range nums {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return Calculation{}, fmt.Errorf("parse amount %q: %w", raw, err)
		}
		*dests[i] = d
	}
	return calc, nil
}

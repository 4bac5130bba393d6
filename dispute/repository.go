package dispute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"claimflow/apperr"
	"claimflow/db"
)

var (
	ErrNotFound  = apperr.New(apperr.ErrNotFound, "dispute: not found")
	ErrBadStatus = apperr.New(apperr.ErrConflict, "dispute: invalid status transition")
)

// Repository persists dispute records.
type Repository interface {
	Create(ctx context.Context, rec Record) (Record, error)
	List(ctx context.Context, claimRef string) ([]Record, error)
	Resolve(ctx context.Context, id string, at time.Time) (Record, error)
}

// PGRepository implements Repository on the disputes table.
type PGRepository struct {
	pool db.DB
}

func NewRepository(pool db.DB) *PGRepository {
	return &PGRepository{pool: pool}
}

const recordColumns = `id::text, claim_ref, COALESCE(verification_request_id::text, ''), status, reason, created_at, updated_at, resolved_at`

func (r *PGRepository) List(ctx context.Context, claimRef string) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM disputes`
	args := []any{}
	if claimRef != "" {
		query += " WHERE claim_ref = $1"
		args = append(args, claimRef)
	}
	query += " ORDER BY created_at DESC"

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("dispute: list: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, 8)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("dispute: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate: %w", err)
	}
	return out, nil
}

func (r *PGRepository) Create(ctx context.Context, rec Record) (Record, error) {
	var requestID *string
	if rec.RequestID != "" {
		requestID = &rec.RequestID
	}
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO disputes (id, claim_ref, verification_request_id, status, reason, created_at, updated_at)
		VALUES ($1,$2,$3::uuid,$4,$5,$6,$6)
		RETURNING `+recordColumns,
		rec.ID, rec.ClaimRef, requestID, string(rec.Status), rec.Reason, rec.CreatedAt)

	created, err := scanRecord(row)
	if err != nil {
		return Record{}, fmt.Errorf("dispute: create: %w", err)
	}
	return created, nil
}

func (r *PGRepository) Resolve(ctx context.Context, id string, at time.Time) (Record, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE disputes
		SET status = 'resolved', resolved_at = $2, updated_at = $2
		WHERE id = $1::uuid AND status <> 'resolved'
		RETURNING `+recordColumns, id, at)

	rec, err := scanRecord(row)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("dispute: resolve: %w", err)
	}

	var status string
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT status FROM disputes WHERE id = $1::uuid`, id).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("dispute: resolve fetch: %w", err)
	}
	if Status(status) == StatusResolved {
		return Record{}, ErrBadStatus
	}
	return Record{}, ErrNotFound
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec    Record
		status string
	)
	if err := row.Scan(&rec.ID, &rec.ClaimRef, &rec.RequestID, &status, &rec.Reason, &rec.CreatedAt, &rec.UpdatedAt, &rec.ResolvedAt); err != nil {
		return Record{}, err
	}
	rec.Status = Status(status)
	return rec, nil
}

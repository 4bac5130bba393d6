package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"claimflow/db"
)

// PGRepository implements Store on verification_requests. The partial unique
// index on (claim_ref) WHERE status = 'pending' enforces one open request per claim.
type PGRepository struct {
	pool db.DB
}

func NewRepository(pool db.DB) *PGRepository {
	return &PGRepository{pool: pool}
}

const requestColumns = `id::text, claim_ref, employer_id, claimant_name, claimant_ssn_last4, last_employer,
	period_start, period_end, status, response::text, created_at, completed_at, notify_count, last_notified_at`

const qualifiedColumns = `v.id::text, v.claim_ref, v.employer_id, v.claimant_name, v.claimant_ssn_last4, v.last_employer,
	v.period_start, v.period_end, v.status, v.response::text, v.created_at, v.completed_at, v.notify_count, v.last_notified_at`

func (r *PGRepository) Create(ctx context.Context, req Request) (Request, error) {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO verification_requests (id, claim_ref, employer_id, claimant_name, claimant_ssn_last4, last_employer,
		                                   period_start, period_end, status, created_at, last_notified_at)
		VALUES ($1::uuid,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, req.ID, req.ClaimRef, req.EmployerID, req.ClaimantName, req.ClaimantSSNLast4, req.LastEmployer,
		req.PeriodStart, req.PeriodEnd, string(req.Status), req.CreatedAt, req.LastNotifiedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Request{}, ErrDuplicateRequest
		}
		return Request{}, fmt.Errorf("verification: insert: %w", err)
	}
	return req, nil
}

func (r *PGRepository) Get(ctx context.Context, id string) (Request, error) {
	req, err := scanRequest(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+requestColumns+` FROM verification_requests WHERE id = $1::uuid`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, fmt.Errorf("verification: get: %w", err)
	}
	return req, nil
}

func (r *PGRepository) Complete(ctx context.Context, id string, resp Response, at time.Time) (Request, error) {
	body, err := json.Marshal(resp)
	if err != nil {
		return Request{}, fmt.Errorf("verification: encode response: %w", err)
	}

	req, err := scanRequest(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE verification_requests
		SET status = 'completed', response = $2::jsonb, completed_at = $3
		WHERE id = $1::uuid AND status = 'pending'
		RETURNING `+requestColumns, id, string(body), at))
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Request{}, fmt.Errorf("verification: complete: %w", err)
	}

	return Request{}, r.notPending(ctx, id)
}

func (r *PGRepository) Cancel(ctx context.Context, id string, at time.Time) (Request, error) {
	req, err := scanRequest(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE verification_requests
		SET status = 'cancelled', completed_at = $2
		WHERE id = $1::uuid AND status = 'pending'
		RETURNING `+requestColumns, id, at))
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Request{}, fmt.Errorf("verification: cancel: %w", err)
	}
	return Request{}, r.notPending(ctx, id)
}

// notPending explains why a conditional update on a pending request matched no row.
func (r *PGRepository) notPending(ctx context.Context, id string) error {
	req, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if req.Status == StatusCancelled {
		return ErrCancelled
	}
	return ErrAlreadyCompleted
}

func (r *PGRepository) ListByClaim(ctx context.Context, claimRef string) ([]Request, error) {
	return r.list(ctx, `SELECT `+requestColumns+` FROM verification_requests WHERE claim_ref = $1 ORDER BY created_at ASC`, claimRef)
}

func (r *PGRepository) ListByEmployer(ctx context.Context, employerID string) ([]Request, error) {
	return r.list(ctx, `SELECT `+requestColumns+` FROM verification_requests WHERE employer_id = $1 ORDER BY created_at ASC`, employerID)
}

func (r *PGRepository) ListOverdue(ctx context.Context, cutoff time.Time, limit int) ([]Request, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.list(ctx, `
		SELECT `+qualifiedColumns+` FROM verification_requests v
		JOIN claims c ON c.reference_id = v.claim_ref
		WHERE v.status = 'pending' AND v.last_notified_at < $1
		  AND c.status NOT IN ('finalized','rejected')
		ORDER BY v.last_notified_at ASC
		LIMIT $2
	`, cutoff, limit)
}

func (r *PGRepository) MarkNotified(ctx context.Context, id string, at time.Time) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE verification_requests SET notify_count = notify_count + 1, last_notified_at = $2 WHERE id = $1::uuid
	`, id, at)
	if err != nil {
		return fmt.Errorf("verification: mark notified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) list(ctx context.Context, query string, args ...any) ([]Request, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("verification: list: %w", err)
	}
	defer rows.Close()

	out := make([]Request, 0, 4)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("verification: scan: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("verification: iterate: %w", err)
	}
	return out, nil
}

func scanRequest(row pgx.Row) (Request, error) {
	var (
		req      Request
		status   string
		response *string
	)
	err := row.Scan(&req.ID, &req.ClaimRef, &req.EmployerID, &req.ClaimantName, &req.ClaimantSSNLast4, &req.LastEmployer,
		&req.PeriodStart, &req.PeriodEnd, &status, &response, &req.CreatedAt, &req.CompletedAt, &req.NotifyCount, &req.LastNotifiedAt)
	if err != nil {
		return Request{}, err
	}
	req.Status = Status(status)
	if response != nil {
		var resp Response
		if err := json.Unmarshal([]byte(*response), &resp); err != nil {
			return Request{}, fmt.Errorf("decode response: %w", err)
		}
		req.Response = &resp
	}
	return req, nil
}

package claim

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"claimflow/db"
)

// PGRepository implements Store on PostgreSQL.
type PGRepository struct {
	pool db.DB
}

func NewRepository(pool db.DB) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Create(ctx context.Context, c Claim, idempotencyKey string) (Claim, error) {
	tx, err := db.Conn(ctx, r.pool).Begin(ctx)
	if err != nil {
		return Claim{}, fmt.Errorf("claim: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO claims (reference_id, claimant_id, claimant_name, claimant_ssn_last4, filing_date,
		                    status, separation_reason, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
	`, c.ReferenceID, c.ClaimantID, c.ClaimantName, c.ClaimantSSNLast4, c.FilingDate,
		string(c.Status), c.SeparationReason, c.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Claim{}, ErrDuplicateReference
		}
		return Claim{}, fmt.Errorf("claim: insert: %w", err)
	}

	if idempotencyKey != "" {
		if _, err := tx.Exec(ctx, `INSERT INTO claim_idempotency (key, claim_ref) VALUES ($1,$2)`, idempotencyKey, c.ReferenceID); err != nil {
			if db.IsUniqueViolation(err) {
				return Claim{}, ErrDuplicateIdempotencyKey
			}
			return Claim{}, fmt.Errorf("claim: insert idempotency key: %w", err)
		}
	}

	for i, entry := range c.History {
		entry.Seq = i + 1
		if err := insertHistory(ctx, tx, c.ReferenceID, entry); err != nil {
			return Claim{}, err
		}
	}
	for _, rec := range c.EmploymentRecords {
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = c.CreatedAt
		}
		if _, err := insertRecord(ctx, tx, c.ReferenceID, rec); err != nil {
			return Claim{}, err
		}
	}

	created, err := load(ctx, tx, c.ReferenceID)
	if err != nil {
		return Claim{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Claim{}, fmt.Errorf("claim: commit create: %w", err)
	}
	return created, nil
}

func (r *PGRepository) Get(ctx context.Context, referenceID string) (Claim, error) {
	tx, err := db.Conn(ctx, r.pool).Begin(ctx)
	if err != nil {
		return Claim{}, fmt.Errorf("claim: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	return load(ctx, tx, referenceID)
}

func (r *PGRepository) FindByIdempotencyKey(ctx context.Context, key string) (Claim, error) {
	var ref string
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT claim_ref FROM claim_idempotency WHERE key = $1`, key).Scan(&ref)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Claim{}, ErrNotFound
		}
		return Claim{}, fmt.Errorf("claim: query idempotency key: %w", err)
	}
	return r.Get(ctx, ref)
}

func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Claim, int, error) {
	filter = filter.Normalized()

	where := " WHERE 1=1"
	args := []any{}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.ClaimantID != "" {
		args = append(args, filter.ClaimantID)
		where += fmt.Sprintf(" AND claimant_id = $%d", len(args))
	}

	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM claims`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("claim: count: %w", err)
	}

	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)
	query := `SELECT ` + claimColumns + ` FROM claims` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("claim: list: %w", err)
	}
	defer rows.Close()

	out := make([]Claim, 0, filter.PageSize)
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("claim: iterate: %w", err)
	}
	return out, total, nil
}

func (r *PGRepository) History(ctx context.Context, referenceID string) ([]HistoryEntry, error) {
	var exists bool
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM claims WHERE reference_id = $1)`, referenceID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("claim: check exists: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return queryHistory(ctx, db.Conn(ctx, r.pool), referenceID)
}

func (r *PGRepository) AddEmploymentRecord(ctx context.Context, referenceID string, rec EmploymentRecord) (EmploymentRecord, error) {
	tx, err := db.Conn(ctx, r.pool).Begin(ctx)
	if err != nil {
		return EmploymentRecord{}, fmt.Errorf("claim: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := lockStatus(ctx, tx, referenceID)
	if err != nil {
		return EmploymentRecord{}, err
	}
	if current != StatusReceived {
		return EmploymentRecord{}, ErrRecordsLocked
	}

	created, err := insertRecord(ctx, tx, referenceID, rec)
	if err != nil {
		return EmploymentRecord{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return EmploymentRecord{}, fmt.Errorf("claim: commit employment record: %w", err)
	}
	return created, nil
}

func (r *PGRepository) UpdateStatus(ctx context.Context, referenceID string, expected Status, entry HistoryEntry) (Claim, error) {
	tx, err := db.Conn(ctx, r.pool).Begin(ctx)
	if err != nil {
		return Claim{}, fmt.Errorf("claim: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := lockStatus(ctx, tx, referenceID)
	if err != nil {
		return Claim{}, err
	}
	if current != expected {
		return Claim{}, ErrStaleStatus
	}

	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(seq),0)+1 FROM claim_status_history WHERE claim_ref = $1`, referenceID).Scan(&entry.Seq); err != nil {
		return Claim{}, fmt.Errorf("claim: next history seq: %w", err)
	}
	if err := insertHistory(ctx, tx, referenceID, entry); err != nil {
		return Claim{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE claims SET status = $1, updated_at = $2 WHERE reference_id = $3`,
		string(entry.Status), entry.At, referenceID); err != nil {
		return Claim{}, fmt.Errorf("claim: update status: %w", err)
	}

	updated, err := load(ctx, tx, referenceID)
	if err != nil {
		return Claim{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Claim{}, fmt.Errorf("claim: commit transition: %w", err)
	}
	return updated, nil
}

const claimColumns = `reference_id, claimant_id, claimant_name, claimant_ssn_last4, filing_date,
	status, separation_reason, created_at, updated_at`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func load(ctx context.Context, q querier, referenceID string) (Claim, error) {
	c, err := scanClaim(q.QueryRow(ctx, `SELECT `+claimColumns+` FROM claims WHERE reference_id = $1`, referenceID))
	if err != nil {
		return Claim{}, err
	}
	if c.History, err = queryHistory(ctx, q, referenceID); err != nil {
		return Claim{}, err
	}
	if c.EmploymentRecords, err = queryRecords(ctx, q, referenceID); err != nil {
		return Claim{}, err
	}
	return c, nil
}

func lockStatus(ctx context.Context, tx pgx.Tx, referenceID string) (Status, error) {
	var current string
	err := tx.QueryRow(ctx, `SELECT status FROM claims WHERE reference_id = $1 FOR UPDATE`, referenceID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("claim: fetch current status: %w", err)
	}
	return Status(current), nil
}

func scanClaim(row pgx.Row) (Claim, error) {
	var (
		c      Claim
		status string
	)
	err := row.Scan(&c.ReferenceID, &c.ClaimantID, &c.ClaimantName, &c.ClaimantSSNLast4, &c.FilingDate,
		&status, &c.SeparationReason, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Claim{}, ErrNotFound
		}
		return Claim{}, fmt.Errorf("claim: scan: %w", err)
	}
	c.Status = Status(status)
	return c, nil
}

func queryHistory(ctx context.Context, q querier, referenceID string) ([]HistoryEntry, error) {
	rows, err := q.Query(ctx, `
		SELECT seq, status, reason, actor, created_at
		FROM claim_status_history
		WHERE claim_ref = $1
		ORDER BY seq ASC
	`, referenceID)
	if err != nil {
		return nil, fmt.Errorf("claim: query history: %w", err)
	}
	defer rows.Close()

	out := make([]HistoryEntry, 0, 8)
	for rows.Next() {
		var (
			entry  HistoryEntry
			status string
		)
		if err := rows.Scan(&entry.Seq, &status, &entry.Reason, &entry.Actor, &entry.At); err != nil {
			return nil, fmt.Errorf("claim: scan history: %w", err)
		}
		entry.Status = Status(status)
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim: iterate history: %w", err)
	}
	return out, nil
}

func queryRecords(ctx context.Context, q querier, referenceID string) ([]EmploymentRecord, error) {
	rows, err := q.Query(ctx, `
		SELECT id, employer_id, employer_name, start_date, end_date, wages::text, position, created_at
		FROM employment_records
		WHERE claim_ref = $1
		ORDER BY id ASC
	`, referenceID)
	if err != nil {
		return nil, fmt.Errorf("claim: query employment records: %w", err)
	}
	defer rows.Close()

	out := make([]EmploymentRecord, 0, 4)
	for rows.Next() {
		var (
			rec   EmploymentRecord
			wages string
		)
		if err := rows.Scan(&rec.ID, &rec.EmployerID, &rec.EmployerName, &rec.StartDate, &rec.EndDate, &wages, &rec.Position, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("claim: scan employment record: %w", err)
		}
		if rec.Wages, err = decimal.NewFromString(wages); err != nil {
			return nil, fmt.Errorf("claim: parse wages: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim: iterate employment records: %w", err)
	}
	return out, nil
}

func insertHistory(ctx context.Context, tx pgx.Tx, referenceID string, entry HistoryEntry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO claim_status_history (claim_ref, seq, status, reason, actor, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, referenceID, entry.Seq, string(entry.Status), entry.Reason, entry.Actor, entry.At)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrStaleStatus
		}
		return fmt.Errorf("claim: insert history: %w", err)
	}
	return nil
}

func insertRecord(ctx context.Context, tx pgx.Tx, referenceID string, rec EmploymentRecord) (EmploymentRecord, error) {
	err := tx.QueryRow(ctx, `
		INSERT INTO employment_records (claim_ref, employer_id, employer_name, start_date, end_date, wages, position, created_at)
		VALUES ($1,$2,$3,$4,$5,$6::numeric,$7,$8)
		RETURNING id
	`, referenceID, rec.EmployerID, rec.EmployerName, rec.StartDate, rec.EndDate, rec.Wages.String(), rec.Position, rec.CreatedAt).Scan(&rec.ID)
	if err != nil {
		return EmploymentRecord{}, fmt.Errorf("claim: insert employment record: %w", err)
	}
	return rec, nil
}

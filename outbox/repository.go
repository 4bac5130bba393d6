package outbox

import (
	"context"
	"fmt"
	"time"

	"claimflow/db"
)

// PGRepository implements Store on the outbox table.
type PGRepository struct {
	pool db.DB
}

func NewRepository(pool db.DB) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Insert(ctx context.Context, msg Message) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO outbox (id, topic, payload, status, attempts, next_attempt_at, created_at)
		VALUES ($1,$2,$3::jsonb,$4,$5,$6,$7)
	`, msg.ID, msg.Topic, string(msg.Payload), string(msg.Status), msg.Attempts, msg.NextAttemptAt, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("outbox: insert: %w", err)
	}
	return nil
}

// Lease claims due rows with SKIP LOCKED so parallel relays never share a message.
func (r *PGRepository) Lease(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]Message, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		UPDATE outbox
		SET next_attempt_at = $2
		WHERE id IN (
			SELECT id FROM outbox
			WHERE status = 'pending' AND next_attempt_at <= $1
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
			LIMIT $3
		)
		RETURNING id::text, topic, payload::text, status, attempts, next_attempt_at, last_error, created_at, processed_at
	`, now, now.Add(lease), limit)
	if err != nil {
		return nil, fmt.Errorf("outbox: lease: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0, limit)
	for rows.Next() {
		var (
			msg     Message
			payload string
			status  string
		)
		if err := rows.Scan(&msg.ID, &msg.Topic, &payload, &status, &msg.Attempts, &msg.NextAttemptAt, &msg.LastError, &msg.CreatedAt, &msg.ProcessedAt); err != nil {
			return nil, fmt.Errorf("outbox: scan: %w", err)
		}
		msg.Payload = []byte(payload)
		msg.Status = Status(status)
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox: iterate: %w", err)
	}
	return out, nil
}

func (r *PGRepository) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	if _, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE outbox SET status = 'processed', attempts = attempts + 1, processed_at = $2 WHERE id = $1
	`, id, at); err != nil {
		return fmt.Errorf("outbox: mark processed: %w", err)
	}
	return nil
}

func (r *PGRepository) MarkFailed(ctx context.Context, id string, attempts int, next time.Time, lastErr string, dead bool) error {
	status := StatusPending
	if dead {
		status = StatusDead
	}
	if _, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE outbox SET status = $2, attempts = $3, next_attempt_at = $4, last_error = $5 WHERE id = $1
	`, id, string(status), attempts, next, lastErr); err != nil {
		return fmt.Errorf("outbox: mark failed: %w", err)
	}
	return nil
}

func (r *PGRepository) List(ctx context.Context, status Status, limit int) ([]Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}

	query := `SELECT id::text, topic, payload::text, status, attempts, next_attempt_at, last_error, created_at, processed_at FROM outbox`
	args := []any{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, string(status))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("outbox: list: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0, 16)
	for rows.Next() {
		var (
			msg     Message
			payload string
			st      string
		)
		if err := rows.Scan(&msg.ID, &msg.Topic, &payload, &st, &msg.Attempts, &msg.NextAttemptAt, &msg.LastError, &msg.CreatedAt, &msg.ProcessedAt); err != nil {
			return nil, fmt.Errorf("outbox: scan: %w", err)
		}
		msg.Payload = []byte(payload)
		msg.Status = Status(st)
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox: iterate: %w", err)
	}
	return out, nil
}

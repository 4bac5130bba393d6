package employer

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"claimflow/apperr"
	"claimflow/db"
)

// ErrNotFound signals the requested employer does not exist.
var ErrNotFound = apperr.New(apperr.ErrNotFound, "employer: not found")

// Repository provides access to employer profiles stored in PostgreSQL.
type Repository struct {
	pool db.DB
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool db.DB) *Repository {
	return &Repository{pool: pool}
}

// GetByID fetches an employer profile by its primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (Profile, error) {
	const query = `
		SELECT id, name, fein, verified, created_at
		FROM employers
		WHERE id = $1
	`

	var profile Profile
	err := db.Conn(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&profile.ID,
		&profile.Name,
		&profile.Fein,
		&profile.Verified,
		&profile.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("employer: query by id: %w", err)
	}

	return profile, nil
}

// List fetches up to limit employer profiles ordered by name.
func (r *Repository) List(ctx context.Context, limit int) ([]Profile, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	const query = `
		SELECT id, name, fein, verified, created_at
		FROM employers
		ORDER BY name ASC
		LIMIT $1
	`

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("employer: list: %w", err)
	}
	defer rows.Close()

	profiles := make([]Profile, 0, limit)
	for rows.Next() {
		var profile Profile
		if err := rows.Scan(&profile.ID, &profile.Name, &profile.Fein, &profile.Verified, &profile.CreatedAt); err != nil {
			return nil, fmt.Errorf("employer: scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("employer: iterate profiles: %w", err)
	}

	return profiles, nil
}

// Upsert inserts or refreshes a profile. Used to load the seed file into PostgreSQL.
func (r *Repository) Upsert(ctx context.Context, p Profile) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO employers (id, name, fein, verified, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, fein = EXCLUDED.fein, verified = EXCLUDED.verified
	`, p.ID, p.Name, p.Fein, p.Verified, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("employer: upsert: %w", err)
	}
	return nil
}

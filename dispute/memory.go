package dispute

import (
	"context"
	"sort"
	"sync"
	"time"

	"claimflow/db"
)

type MemoryRepository struct {
	mu   sync.Mutex
	rows map[string]Record
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]Record)}
}

func (r *MemoryRepository) Create(ctx context.Context, rec Record) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.UpdatedAt = rec.CreatedAt
	r.rows[rec.ID] = rec
	db.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.rows, rec.ID)
	})
	return rec, nil
}

func (r *MemoryRepository) List(_ context.Context, claimRef string) ([]Record, error) {
	r.mu.Lock()
	out := make([]Record, 0, len(r.rows))
	for _, rec := range r.rows {
		if claimRef != "" && rec.ClaimRef != claimRef {
			continue
		}
		out = append(out, rec)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) Resolve(ctx context.Context, id string, at time.Time) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.rows[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	if prev.Status == StatusResolved {
		return Record{}, ErrBadStatus
	}
	db.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.rows[id] = prev
	})
	rec := prev
	rec.Status = StatusResolved
	rec.UpdatedAt = at
	rec.ResolvedAt = &at
	r.rows[id] = rec
	return rec, nil
}

package verification

import (
	"context"
	"sort"
	"sync"
	"time"

	"claimflow/db"
)

type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]Request
	open map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows: make(map[string]Request),
		open: make(map[string]string),
	}
}

func (s *MemoryStore) Create(ctx context.Context, req Request) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.open[req.ClaimRef]; ok {
		return Request{}, ErrDuplicateRequest
	}
	s.rows[req.ID] = req
	s.open[req.ClaimRef] = req.ID
	db.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.rows, req.ID)
		delete(s.open, req.ClaimRef)
	})
	return req, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.rows[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return req, nil
}

func (s *MemoryStore) Complete(ctx context.Context, id string, resp Response, at time.Time) (Request, error) {
	return s.close(ctx, id, at, func(req *Request) {
		req.Status = StatusCompleted
		req.Response = &resp
	})
}

func (s *MemoryStore) Cancel(ctx context.Context, id string, at time.Time) (Request, error) {
	return s.close(ctx, id, at, func(req *Request) {
		req.Status = StatusCancelled
	})
}

// close moves a pending request to its final state.
func (s *MemoryStore) close(ctx context.Context, id string, at time.Time, apply func(*Request)) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.rows[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	switch prev.Status {
	case StatusCompleted:
		return Request{}, ErrAlreadyCompleted
	case StatusCancelled:
		return Request{}, ErrCancelled
	}
	req := prev
	apply(&req)
	req.CompletedAt = &at
	s.rows[id] = req
	delete(s.open, req.ClaimRef)
	db.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.rows[id] = prev
		s.open[prev.ClaimRef] = id
	})
	return req, nil
}

func (s *MemoryStore) ListByClaim(_ context.Context, claimRef string) ([]Request, error) {
	return s.filter(func(r Request) bool { return r.ClaimRef == claimRef }), nil
}

func (s *MemoryStore) ListByEmployer(_ context.Context, employerID string) ([]Request, error) {
	return s.filter(func(r Request) bool { return r.EmployerID == employerID }), nil
}

// ListOverdue has no view of claim status; the sweep re-checks it under the claim lock.
func (s *MemoryStore) ListOverdue(_ context.Context, cutoff time.Time, limit int) ([]Request, error) {
	out := s.filter(func(r Request) bool {
		return r.Status == StatusPending && r.LastNotifiedAt.Before(cutoff)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastNotifiedAt.Before(out[j].LastNotifiedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkNotified(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.rows[id]
	if !ok {
		return ErrNotFound
	}
	req := prev
	req.NotifyCount++
	req.LastNotifiedAt = at
	s.rows[id] = req
	db.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.rows[id] = prev
	})
	return nil
}

// filter returns matches ordered by creation time.
func (s *MemoryStore) filter(keep func(Request) bool) []Request {
	s.mu.RLock()
	out := make([]Request, 0, 4)
	for _, r := range s.rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

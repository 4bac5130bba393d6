package claim

import (
	"context"
	"sort"
	"sync"

	"claimflow/db"
)

// MemoryStore keeps claims in id-indexed tables guarded by a single RWMutex.
// Rows are never removed, so an index handed out stays valid. A create that
// is rolled back leaves its row masked in dropped.
type MemoryStore struct {
	mu          sync.RWMutex
	rows        []Claim
	byRef       map[string]int
	idempotency map[string]int
	dropped     map[int]bool
	nextRecord  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byRef:       make(map[string]int),
		idempotency: make(map[string]int),
		dropped:     make(map[int]bool),
	}
}

func (s *MemoryStore) Create(ctx context.Context, c Claim, idempotencyKey string) (Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byRef[c.ReferenceID]; ok {
		return Claim{}, ErrDuplicateReference
	}
	if idempotencyKey != "" {
		if _, ok := s.idempotency[idempotencyKey]; ok {
			return Claim{}, ErrDuplicateIdempotencyKey
		}
	}

	row := clone(c)
	for i := range row.History {
		row.History[i].Seq = i + 1
	}
	for i := range row.EmploymentRecords {
		s.nextRecord++
		row.EmploymentRecords[i].ID = s.nextRecord
		if row.EmploymentRecords[i].CreatedAt.IsZero() {
			row.EmploymentRecords[i].CreatedAt = c.CreatedAt
		}
	}

	s.rows = append(s.rows, row)
	idx := len(s.rows) - 1
	s.byRef[c.ReferenceID] = idx
	if idempotencyKey != "" {
		s.idempotency[idempotencyKey] = idx
	}
	db.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.byRef, c.ReferenceID)
		if idempotencyKey != "" {
			delete(s.idempotency, idempotencyKey)
		}
		s.dropped[idx] = true
	})
	return clone(row), nil
}

func (s *MemoryStore) Get(_ context.Context, referenceID string) (Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byRef[referenceID]
	if !ok {
		return Claim{}, ErrNotFound
	}
	return clone(s.rows[idx]), nil
}

func (s *MemoryStore) FindByIdempotencyKey(_ context.Context, key string) (Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.idempotency[key]
	if !ok {
		return Claim{}, ErrNotFound
	}
	return clone(s.rows[idx]), nil
}

func (s *MemoryStore) List(_ context.Context, filter ListFilter) ([]Claim, int, error) {
	filter = filter.Normalized()

	s.mu.RLock()
	matched := make([]Claim, 0, len(s.rows))
	for i, row := range s.rows {
		if s.dropped[i] {
			continue
		}
		if filter.Status != "" && row.Status != filter.Status {
			continue
		}
		if filter.ClaimantID != "" && row.ClaimantID != filter.ClaimantID {
			continue
		}
		matched = append(matched, summary(row))
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (filter.Page - 1) * filter.PageSize
	if start >= total {
		return []Claim{}, total, nil
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *MemoryStore) History(_ context.Context, referenceID string) ([]HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byRef[referenceID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]HistoryEntry(nil), s.rows[idx].History...), nil
}

func (s *MemoryStore) AddEmploymentRecord(ctx context.Context, referenceID string, rec EmploymentRecord) (EmploymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byRef[referenceID]
	if !ok {
		return EmploymentRecord{}, ErrNotFound
	}
	row := &s.rows[idx]
	if row.Status != StatusReceived {
		return EmploymentRecord{}, ErrRecordsLocked
	}

	s.nextRecord++
	rec.ID = s.nextRecord
	row.EmploymentRecords = append(row.EmploymentRecords, rec)
	db.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		r := &s.rows[idx]
		for i := range r.EmploymentRecords {
			if r.EmploymentRecords[i].ID == rec.ID {
				r.EmploymentRecords = append(r.EmploymentRecords[:i:i], r.EmploymentRecords[i+1:]...)
				break
			}
		}
	})
	return rec, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, referenceID string, expected Status, entry HistoryEntry) (Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byRef[referenceID]
	if !ok {
		return Claim{}, ErrNotFound
	}
	row := &s.rows[idx]
	if row.Status != expected {
		return Claim{}, ErrStaleStatus
	}

	prev := clone(*row)
	entry.Seq = len(row.History) + 1
	row.History = append(row.History, entry)
	row.Status = entry.Status
	row.UpdatedAt = entry.At
	db.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		r := &s.rows[idx]
		r.Status = prev.Status
		r.UpdatedAt = prev.UpdatedAt
		r.History = prev.History
	})
	return clone(*row), nil
}

func clone(c Claim) Claim {
	c.History = append([]HistoryEntry(nil), c.History...)
	c.EmploymentRecords = append([]EmploymentRecord(nil), c.EmploymentRecords...)
	return c
}

func summary(c Claim) Claim {
	c.History = nil
	c.EmploymentRecords = nil
	return c
}

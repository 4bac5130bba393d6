package outbox

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"claimflow/db"
)

// MemoryStore keeps messages in insertion order. A message inserted inside a
// unit of work becomes visible when the unit commits and is dropped if it fails.
type MemoryStore struct {
	mu   sync.Mutex
	rows []Message
	byID map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]int)}
}

func (s *MemoryStore) Insert(ctx context.Context, msg Message) error {
	s.mu.Lock()
	_, dup := s.byID[msg.ID]
	s.mu.Unlock()
	if dup {
		return fmt.Errorf("outbox: duplicate message id %s", msg.ID)
	}

	msg.Payload = append([]byte(nil), msg.Payload...)
	db.AfterCommit(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.rows = append(s.rows, msg)
		s.byID[msg.ID] = len(s.rows) - 1
	})
	return nil
}

func (s *MemoryStore) Lease(_ context.Context, now time.Time, lease time.Duration, limit int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, 0, limit)
	for i := range s.rows {
		if len(out) == limit {
			break
		}
		row := &s.rows[i]
		if row.Status != StatusPending || row.NextAttemptAt.After(now) {
			continue
		}
		row.NextAttemptAt = now.Add(lease)
		out = append(out, *row)
	}
	return out, nil
}

func (s *MemoryStore) MarkProcessed(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("outbox: unknown message %s", id)
	}
	s.rows[idx].Status = StatusProcessed
	s.rows[idx].Attempts++
	s.rows[idx].ProcessedAt = &at
	return nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, id string, attempts int, next time.Time, lastErr string, dead bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("outbox: unknown message %s", id)
	}
	row := &s.rows[idx]
	row.Attempts = attempts
	row.NextAttemptAt = next
	row.LastError = lastErr
	if dead {
		row.Status = StatusDead
	}
	return nil
}

func (s *MemoryStore) List(_ context.Context, status Status, limit int) ([]Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}

	s.mu.Lock()
	out := make([]Message, 0, len(s.rows))
	for _, row := range s.rows {
		if status != "" && row.Status != status {
			continue
		}
		out = append(out, row)
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

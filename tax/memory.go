package tax

import (
	"context"
	"sort"
	"sync"

	"claimflow/db"
)

type MemoryStore struct {
	mu    sync.RWMutex
	rates []Rate
	calcs map[string]Calculation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{calcs: make(map[string]Calculation)}
}

func (s *MemoryStore) CurrentRate(_ context.Context) (Rate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.rates) == 0 {
		return Rate{}, ErrNoRate
	}
	return s.rates[len(s.rates)-1], nil
}

func (s *MemoryStore) InsertRate(_ context.Context, rate Rate) (Rate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rate.ID = int64(len(s.rates) + 1)
	s.rates = append(s.rates, rate)
	return rate, nil
}

func (s *MemoryStore) UpsertCalculation(ctx context.Context, calc Calculation) (Calculation, error) {
	s.mu.Lock()
	prev, existed := s.calcs[calc.ClaimRef]
	s.calcs[calc.ClaimRef] = calc
	s.mu.Unlock()

	db.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existed {
			s.calcs[calc.ClaimRef] = prev
		} else {
			delete(s.calcs, calc.ClaimRef)
		}
	})
	return calc, nil
}

func (s *MemoryStore) GetCalculation(_ context.Context, claimRef string) (Calculation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	calc, ok := s.calcs[claimRef]
	if !ok {
		return Calculation{}, ErrNotCalculated
	}
	return calc, nil
}

func (s *MemoryStore) RecentCalculations(_ context.Context, limit int) ([]Calculation, error) {
	s.mu.RLock()
	out := make([]Calculation, 0, len(s.calcs))
	for _, c := range s.calcs {
		out = append(out, c)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CalculatedAt.Equal(out[j].CalculatedAt) {
			return out[i].ClaimRef < out[j].ClaimRef
		}
		return out[i].CalculatedAt.After(out[j].CalculatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

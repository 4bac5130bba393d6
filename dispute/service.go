package dispute

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"claimflow/apperr"
)

type Service struct {
	repo        Repository
	idGenerator func() string
	now         func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo:        repo,
		idGenerator: uuid.NewString,
		now:         time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Open records a dispute against a claim, optionally tied to the verification request that raised it.
func (s *Service) Open(ctx context.Context, claimRef, requestID, reason string) (Record, error) {
	if strings.TrimSpace(claimRef) == "" {
		return Record{}, apperr.Validation("dispute: claim reference required")
	}
	return s.repo.Create(ctx, Record{
		ID:        s.idGenerator(),
		ClaimRef:  claimRef,
		RequestID: requestID,
		Status:    StatusUnderReview,
		Reason:    strings.TrimSpace(reason),
		CreatedAt: s.now().UTC(),
	})
}

func (s *Service) List(ctx context.Context, claimRef string) ([]Record, error) {
	return s.repo.List(ctx, claimRef)
}

func (s *Service) Resolve(ctx context.Context, id string) (Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Record{}, ErrNotFound
	}
	return s.repo.Resolve(ctx, id, s.now().UTC())
}

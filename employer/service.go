package employer

import (
	"context"
	"fmt"
)

// ProfileStore abstracts repository operations for the service.
type ProfileStore interface {
	GetByID(ctx context.Context, id string) (Profile, error)
	List(ctx context.Context, limit int) ([]Profile, error)
	Upsert(ctx context.Context, p Profile) error
}

// Service exposes the employer directory.
type Service struct {
	repo ProfileStore
}

// NewService builds a Service using the provided store.
func NewService(repo ProfileStore) *Service {
	return &Service{repo: repo}
}

// GetByID returns the employer profile for the given identifier.
func (s *Service) GetByID(ctx context.Context, id string) (Profile, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns up to limit employer profiles.
func (s *Service) List(ctx context.Context, limit int) ([]Profile, error) {
	return s.repo.List(ctx, limit)
}

// Seed stores every profile, replacing existing entries with the same id.
func (s *Service) Seed(ctx context.Context, profiles []Profile) error {
	for _, p := range profiles {
		if err := s.repo.Upsert(ctx, p); err != nil {
			return fmt.Errorf("employer: seed %s: %w", p.ID, err)
		}
	}
	return nil
}

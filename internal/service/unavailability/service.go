// Package unavailability manages staff-declared closures.
package unavailability

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"consultorio/backend/internal/domain"
	"consultorio/backend/internal/service"
	"consultorio/backend/internal/store"
)

type Service struct {
	repo store.UnavailabilityRepository
}

func NewService(repo store.UnavailabilityRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, date string, period domain.Period) (domain.UnavailabilityBlock, error) {
	date = strings.TrimSpace(date)
	if _, err := domain.ParseDate(date); err != nil {
		return domain.UnavailabilityBlock{}, service.Validation(err.Error())
	}
	if !period.Valid() {
		return domain.UnavailabilityBlock{}, service.Validation("period must be morning, afternoon or full")
	}

	b, err := s.repo.Create(ctx, domain.UnavailabilityBlock{Date: date, Period: period})
	if errors.Is(err, store.ErrConflict) {
		return domain.UnavailabilityBlock{}, service.Conflict("Ya existe un bloqueo para esa fecha y período")
	}
	return b, err
}

// List returns every block, or only those of date when it is set.
func (s *Service) List(ctx context.Context, date string) ([]domain.UnavailabilityBlock, error) {
	date = strings.TrimSpace(date)
	if date != "" {
		if _, err := domain.ParseDate(date); err != nil {
			return nil, service.Validation(err.Error())
		}
	}
	return s.repo.List(ctx, date)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) (domain.UnavailabilityBlock, error) {
	if id == uuid.Nil {
		return domain.UnavailabilityBlock{}, service.Validation("id is required")
	}
	return s.repo.Delete(ctx, id)
}

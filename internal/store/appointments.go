package store

import (
	"context"

	"github.com/google/uuid"

	"consultorio/backend/internal/domain"
)

type ListFilter struct {
	Date   string
	Status domain.Status
}

// AppointmentRepository persists regular appointments. Create is a single
// conditional insert: a second active appointment at the same (date, time)
// fails with ErrConflict.
type AppointmentRepository interface {
	Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Appointment, error)
	ListActiveByDate(ctx context.Context, date string) ([]domain.Appointment, error)
	ExistsAt(ctx context.Context, date, time string) (bool, error)
	ExistsExternalEvent(ctx context.Context, eventID string) (bool, error)
	Update(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	SetExternalEventID(ctx context.Context, id uuid.UUID, eventID string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// OverturnRepository persists overturns. Create fails with ErrConflict when an
// active overturn already holds (date, number).
type OverturnRepository interface {
	Create(ctx context.Context, o domain.Overturn) (domain.Overturn, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Overturn, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Overturn, error)
	ListActiveByDate(ctx context.Context, date string) ([]domain.Overturn, error)
	ExistsAt(ctx context.Context, date, time string) (bool, error)
	ExistsExternalEvent(ctx context.Context, eventID string) (bool, error)
	Update(ctx context.Context, o domain.Overturn) (domain.Overturn, error)
	SetExternalEventID(ctx context.Context, id uuid.UUID, eventID string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type UnavailabilityRepository interface {
	Create(ctx context.Context, b domain.UnavailabilityBlock) (domain.UnavailabilityBlock, error)
	List(ctx context.Context, date string) ([]domain.UnavailabilityBlock, error)
	Delete(ctx context.Context, id uuid.UUID) (domain.UnavailabilityBlock, error)
}

type SettingsRepository interface {
	Get(ctx context.Context, key string) (domain.Setting, error)
	Put(ctx context.Context, key, value string) (domain.Setting, error)
}

// Store bundles the repositories a backend provides.
type Store struct {
	Appointments   AppointmentRepository
	Overturns      OverturnRepository
	Unavailability UnavailabilityRepository
	Settings       SettingsRepository
	Ping           func(ctx context.Context) error
	Close          func() error
}

// Package memory is an in-process store with the same uniqueness rules as the
// postgres schema. It backs tests and the "memory" database driver.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"consultorio/backend/internal/domain"
	"consultorio/backend/internal/store"
)

type DB struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]domain.Appointment
	overturns    map[uuid.UUID]domain.Overturn
	blocks       map[uuid.UUID]domain.UnavailabilityBlock
	settings     map[string]domain.Setting
	now          func() time.Time
}

func New() *DB {
	return &DB{
		appointments: make(map[uuid.UUID]domain.Appointment),
		overturns:    make(map[uuid.UUID]domain.Overturn),
		blocks:       make(map[uuid.UUID]domain.UnavailabilityBlock),
		settings:     make(map[string]domain.Setting),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (db *DB) Store() store.Store {
	return store.Store{
		Appointments:   (*appointmentRepo)(db),
		Overturns:      (*overturnRepo)(db),
		Unavailability: (*unavailabilityRepo)(db),
		Settings:       (*settingsRepo)(db),
		Ping:           func(ctx context.Context) error { return ctx.Err() },
		Close:          func() error { return nil },
	}
}

func newID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

func matches(date string, status domain.Status, filter store.ListFilter) bool {
	if filter.Date != "" && date != filter.Date {
		return false
	}
	if filter.Status != "" && status != filter.Status {
		return false
	}
	return true
}

type appointmentRepo DB

func (r *appointmentRepo) occupied(a domain.Appointment) bool {
	if !a.Status.Active() {
		return false
	}
	for id, other := range r.appointments {
		if id != a.ID && other.Status.Active() && other.Date == a.Date && other.Time == a.Time {
			return true
		}
	}
	return false
}

func (r *appointmentRepo) Create(ctx context.Context, a domain.Appointment) (domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = newID()
	}
	if _, ok := r.appointments[a.ID]; ok {
		return domain.Appointment{}, store.ErrConflict
	}
	if r.occupied(a) {
		return domain.Appointment{}, store.ErrConflict
	}
	now := r.now()
	a.CreatedAt, a.UpdatedAt = now, now
	r.appointments[a.ID] = a
	return a, nil
}

func (r *appointmentRepo) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return a, nil
}

func (r *appointmentRepo) List(ctx context.Context, filter store.ListFilter) ([]domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Appointment, 0)
	for _, a := range r.appointments {
		if matches(a.Date, a.Status, filter) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

func (r *appointmentRepo) ListActiveByDate(ctx context.Context, date string) ([]domain.Appointment, error) {
	all, err := r.List(ctx, store.ListFilter{Date: date})
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, a := range all {
		if a.Status.Active() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *appointmentRepo) ExistsAt(ctx context.Context, date, clock string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.appointments {
		if a.Status.Active() && a.Date == date && a.Time == clock {
			return true, nil
		}
	}
	return false, nil
}

func (r *appointmentRepo) ExistsExternalEvent(ctx context.Context, eventID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.appointments {
		if a.ExternalEventID == eventID {
			return true, nil
		}
	}
	return false, nil
}

func (r *appointmentRepo) Update(ctx context.Context, a domain.Appointment) (domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.appointments[a.ID]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	if r.occupied(a) {
		return domain.Appointment{}, store.ErrConflict
	}
	a.CreatedAt = cur.CreatedAt
	a.UpdatedAt = r.now()
	r.appointments[a.ID] = a
	return a, nil
}

func (r *appointmentRepo) SetExternalEventID(ctx context.Context, id uuid.UUID, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return store.ErrNotFound
	}
	a.ExternalEventID = eventID
	a.UpdatedAt = r.now()
	r.appointments[id] = a
	return nil
}

func (r *appointmentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.appointments[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.appointments, id)
	return nil
}

type overturnRepo DB

func (r *overturnRepo) occupied(o domain.Overturn) bool {
	if !o.Status.Active() {
		return false
	}
	for id, other := range r.overturns {
		if id != o.ID && other.Status.Active() && other.Date == o.Date && other.Number == o.Number {
			return true
		}
	}
	return false
}

func (r *overturnRepo) Create(ctx context.Context, o domain.Overturn) (domain.Overturn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if o.ID == uuid.Nil {
		o.ID = newID()
	}
	if _, ok := r.overturns[o.ID]; ok {
		return domain.Overturn{}, store.ErrConflict
	}
	if r.occupied(o) {
		return domain.Overturn{}, store.ErrConflict
	}
	now := r.now()
	o.CreatedAt, o.UpdatedAt = now, now
	r.overturns[o.ID] = o
	return o, nil
}

func (r *overturnRepo) Get(ctx context.Context, id uuid.UUID) (domain.Overturn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.overturns[id]
	if !ok {
		return domain.Overturn{}, store.ErrNotFound
	}
	return o, nil
}

func (r *overturnRepo) List(ctx context.Context, filter store.ListFilter) ([]domain.Overturn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Overturn, 0)
	for _, o := range r.overturns {
		if matches(o.Date, o.Status, filter) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Number < out[j].Number
	})
	return out, nil
}

func (r *overturnRepo) ListActiveByDate(ctx context.Context, date string) ([]domain.Overturn, error) {
	all, err := r.List(ctx, store.ListFilter{Date: date})
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, o := range all {
		if o.Status.Active() {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *overturnRepo) ExistsAt(ctx context.Context, date, clock string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range r.overturns {
		if o.Status.Active() && o.Date == date && o.Time == clock {
			return true, nil
		}
	}
	return false, nil
}

func (r *overturnRepo) ExistsExternalEvent(ctx context.Context, eventID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range r.overturns {
		if o.ExternalEventID == eventID {
			return true, nil
		}
	}
	return false, nil
}

func (r *overturnRepo) Update(ctx context.Context, o domain.Overturn) (domain.Overturn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.overturns[o.ID]
	if !ok {
		return domain.Overturn{}, store.ErrNotFound
	}
	if r.occupied(o) {
		return domain.Overturn{}, store.ErrConflict
	}
	o.CreatedAt = cur.CreatedAt
	o.UpdatedAt = r.now()
	r.overturns[o.ID] = o
	return o, nil
}

func (r *overturnRepo) SetExternalEventID(ctx context.Context, id uuid.UUID, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.overturns[id]
	if !ok {
		return store.ErrNotFound
	}
	o.ExternalEventID = eventID
	o.UpdatedAt = r.now()
	r.overturns[id] = o
	return nil
}

func (r *overturnRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.overturns[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.overturns, id)
	return nil
}

type unavailabilityRepo DB

func (r *unavailabilityRepo) Create(ctx context.Context, b domain.UnavailabilityBlock) (domain.UnavailabilityBlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, other := range r.blocks {
		if other.Date == b.Date && other.Period == b.Period {
			return domain.UnavailabilityBlock{}, store.ErrConflict
		}
	}
	if b.ID == uuid.Nil {
		b.ID = newID()
	}
	b.CreatedAt = r.now()
	r.blocks[b.ID] = b
	return b, nil
}

func (r *unavailabilityRepo) List(ctx context.Context, date string) ([]domain.UnavailabilityBlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.UnavailabilityBlock, 0)
	for _, b := range r.blocks {
		if date == "" || b.Date == date {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Period < out[j].Period
	})
	return out, nil
}

func (r *unavailabilityRepo) Delete(ctx context.Context, id uuid.UUID) (domain.UnavailabilityBlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.blocks[id]
	if !ok {
		return domain.UnavailabilityBlock{}, store.ErrNotFound
	}
	delete(r.blocks, id)
	return b, nil
}

type settingsRepo DB

func (r *settingsRepo) Get(ctx context.Context, key string) (domain.Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.settings[key]
	if !ok {
		return domain.Setting{}, store.ErrNotFound
	}
	return s, nil
}

func (r *settingsRepo) Put(ctx context.Context, key, value string) (domain.Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := domain.Setting{Key: key, Value: value, UpdatedAt: r.now()}
	r.settings[key] = s
	return s, nil
}

package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"consultorio/backend/internal/domain"
	"consultorio/backend/internal/store"
)

// EventDuration is the length of every mirrored event.
const EventDuration = 15 * time.Minute

type MirrorConfig struct {
	// Timeout bounds every single call to the external calendar.
	Timeout time.Duration
	// PushRetries is the number of attempts for outbound writes.
	PushRetries   uint
	RetryInterval time.Duration
}

type Mirror struct {
	client       Client
	appointments store.AppointmentRepository
	overturns    store.OverturnRepository
	gate         Gate
	zone         *domain.Zone
	log          *slog.Logger
	cfg          MirrorConfig
}

func NewMirror(client Client, st store.Store, zone *domain.Zone, gate Gate, log *slog.Logger, cfg MirrorConfig) *Mirror {
	if client == nil {
		client = Disabled{}
	}
	if gate == nil {
		gate = AlwaysGate{}
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.PushRetries == 0 {
		cfg.PushRetries = 3
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 200 * time.Millisecond
	}
	return &Mirror{
		client:       client,
		appointments: st.Appointments,
		overturns:    st.Overturns,
		gate:         gate,
		zone:         zone,
		log:          log.With(slog.String("component", "calendar_mirror")),
		cfg:          cfg,
	}
}

func (m *Mirror) Enabled() bool {
	_, disabled := m.client.(Disabled)
	return !disabled
}

func (m *Mirror) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()
	return m.client.Ping(ctx)
}

type SyncResult struct {
	Date     string `json:"date"`
	Fetched  int    `json:"fetched"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
}

// Refresh runs a gated inbound sync for date on behalf of a read. It never
// fails: errors are logged and the caller keeps reading from the store.
func (m *Mirror) Refresh(ctx context.Context, date string) {
	if !m.Enabled() {
		return
	}
	ok, err := m.gate.Acquire(ctx, date)
	if err != nil {
		m.log.Warn("sync gate unavailable, syncing anyway", slog.Any("err", err), slog.String("date", date))
		ok = true
	}
	if !ok {
		return
	}
	res, err := m.SyncDate(ctx, date)
	if err != nil {
		m.log.Warn("inbound sync failed", slog.Any("err", err), slog.String("date", date))
		if err := m.gate.Release(context.WithoutCancel(ctx), date); err != nil {
			m.log.Warn("release sync gate", slog.Any("err", err), slog.String("date", date))
		}
		return
	}
	if res.Imported > 0 {
		m.log.Info("inbound sync imported events",
			slog.String("date", date),
			slog.Int("fetched", res.Fetched),
			slog.Int("imported", res.Imported),
		)
	}
}

// SyncDate imports the external events of date that have no local
// reservation yet. Running it twice imports nothing the second time.
func (m *Mirror) SyncDate(ctx context.Context, date string) (SyncResult, error) {
	date, err := domain.CanonicalDate(date)
	if err != nil {
		return SyncResult{}, err
	}
	res := SyncResult{Date: date}
	from, to, err := m.zone.DayBounds(date)
	if err != nil {
		return res, err
	}

	listCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	events, err := m.client.ListEvents(listCtx, from, to)
	cancel()
	if err != nil {
		return res, err
	}

	for _, ev := range events {
		res.Fetched++
		if !ev.Timed() {
			res.Skipped++
			continue
		}
		evDate, clock := m.zone.Split(ev.Start)
		if evDate != date {
			res.Skipped++
			continue
		}
		imported, err := m.importEvent(ctx, ev, evDate, clock.String())
		if err != nil {
			return res, fmt.Errorf("import event %s: %w", ev.ID, err)
		}
		if imported {
			res.Imported++
		} else {
			res.Skipped++
		}
	}
	return res, nil
}

func (m *Mirror) importEvent(ctx context.Context, ev Event, date, clock string) (bool, error) {
	if ev.ID != "" {
		known, err := m.knownEvent(ctx, ev.ID)
		if err != nil || known {
			return false, err
		}
	}
	taken, err := m.appointments.ExistsAt(ctx, date, clock)
	if err != nil || taken {
		return false, err
	}
	taken, err = m.overturns.ExistsAt(ctx, date, clock)
	if err != nil || taken {
		return false, err
	}

	d := EventDetails(ev)
	_, err = m.appointments.Create(ctx, domain.Appointment{
		ClientName:      d.ClientName,
		SocialWork:      d.SocialWork,
		Phone:           d.Phone,
		Email:           d.Email,
		Date:            date,
		Time:            clock,
		Description:     ev.Description,
		Status:          domain.StatusConfirmed,
		ExternalEventID: ev.ID,
	})
	if errors.Is(err, store.ErrConflict) {
		// A booking or a concurrent sync got there first.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (m *Mirror) knownEvent(ctx context.Context, eventID string) (bool, error) {
	known, err := m.appointments.ExistsExternalEvent(ctx, eventID)
	if err != nil || known {
		return known, err
	}
	return m.overturns.ExistsExternalEvent(ctx, eventID)
}

// Push creates the external event for a freshly committed reservation. It
// returns the event id, or "" when the mirror is disabled or failed.
func (m *Mirror) Push(ctx context.Context, r domain.Reservation) string {
	if !m.Enabled() {
		return ""
	}
	ev, err := m.eventFor(r)
	if err != nil {
		m.log.Warn("outbound push skipped", slog.Any("err", err), slog.String("id", r.ID.String()))
		return ""
	}

	var eventID string
	err = m.retry(ctx, func(ctx context.Context) error {
		id, err := m.client.Insert(ctx, ev)
		eventID = id
		return err
	})
	if err != nil {
		m.log.Warn("outbound push failed", slog.Any("err", err), slog.String("kind", string(r.Kind)), slog.String("id", r.ID.String()))
		return ""
	}
	return eventID
}

// Update rewrites the external event of r, creating it when r was never
// mirrored.
func (m *Mirror) Update(ctx context.Context, r domain.Reservation, eventID string) string {
	if eventID == "" {
		return m.Push(ctx, r)
	}
	if !m.Enabled() {
		return eventID
	}
	ev, err := m.eventFor(r)
	if err != nil {
		m.log.Warn("outbound update skipped", slog.Any("err", err), slog.String("id", r.ID.String()))
		return eventID
	}
	err = m.retry(ctx, func(ctx context.Context) error {
		return m.client.Update(ctx, eventID, ev)
	})
	if err != nil {
		m.log.Warn("outbound update failed", slog.Any("err", err), slog.String("event_id", eventID))
	}
	return eventID
}

func (m *Mirror) Remove(ctx context.Context, eventID string) {
	if eventID == "" || !m.Enabled() {
		return
	}
	err := m.retry(ctx, func(ctx context.Context) error {
		return m.client.Delete(ctx, eventID)
	})
	if err != nil {
		m.log.Warn("outbound delete failed", slog.Any("err", err), slog.String("event_id", eventID))
	}
}

func (m *Mirror) eventFor(r domain.Reservation) (Event, error) {
	c, err := domain.ParseClock(r.Time)
	if err != nil {
		return Event{}, err
	}
	start, err := m.zone.At(r.Date, c)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Summary:       Summary(r.ClientName),
		Description:   FormatDescription(r),
		Start:         start,
		End:           start.Add(EventDuration),
		AttendeeEmail: r.Email,
		Metadata:      reservationMetadata(r),
	}, nil
}

func (m *Mirror) retry(ctx context.Context, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.cfg.RetryInterval
	b.MaxInterval = 10 * m.cfg.RetryInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
		return struct{}{}, fn(attemptCtx)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(m.cfg.PushRetries))
	return err
}

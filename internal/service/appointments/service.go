package appointments

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"consultorio/backend/internal/domain"
	"consultorio/backend/internal/events"
	"consultorio/backend/internal/service"
	"consultorio/backend/internal/store"
)

const (
	msgSlotTaken     = "El horario seleccionado no está disponible"
	msgOverturnTaken = "Ya existe un sobreturno para ese número y fecha"
)

func validationError(msg string) error {
	return service.Validation(msg)
}

// Mirror is the outbound side of the external calendar. Calls never fail the
// caller; an empty event id means nothing was mirrored.
type Mirror interface {
	Push(ctx context.Context, r domain.Reservation) string
	Update(ctx context.Context, r domain.Reservation, eventID string) string
	Remove(ctx context.Context, eventID string)
}

type noMirror struct{}

func (noMirror) Push(context.Context, domain.Reservation) string { return "" }

func (noMirror) Update(_ context.Context, _ domain.Reservation, eventID string) string {
	return eventID
}

func (noMirror) Remove(context.Context, string) {}

type Service struct {
	appointments store.AppointmentRepository
	overturns    store.OverturnRepository
	mirror       Mirror
	events       events.Publisher
	log          *slog.Logger
}

func NewService(st store.Store, mirror Mirror, pub events.Publisher, log *slog.Logger) *Service {
	if mirror == nil {
		mirror = noMirror{}
	}
	if pub == nil {
		pub = events.Noop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		appointments: st.Appointments,
		overturns:    st.Overturns,
		mirror:       mirror,
		events:       pub,
		log:          log.With(slog.String("component", "booking")),
	}
}

type CreateAppointmentInput struct {
	ClientName  string
	SocialWork  string
	Phone       string
	Email       string
	Date        string
	Time        string
	Description string
}

// CreateAppointment books a regular slot. The insert itself is the
// availability check: a concurrent booking of the same slot loses with a
// ConflictError.
func (s *Service) CreateAppointment(ctx context.Context, in CreateAppointmentInput) (domain.Appointment, error) {
	c, err := normalizeContact(in.ClientName, in.SocialWork, in.Phone, in.Email)
	if err != nil {
		return domain.Appointment{}, err
	}
	if _, err := domain.ParseDate(in.Date); err != nil {
		return domain.Appointment{}, validationError(err.Error())
	}
	clock, err := bookingClock(in.Time)
	if err != nil {
		return domain.Appointment{}, err
	}

	appt, err := s.appointments.Create(ctx, domain.Appointment{
		ClientName:  c.name,
		SocialWork:  c.socialWork,
		Phone:       c.phone,
		Email:       c.email,
		Date:        strings.TrimSpace(in.Date),
		Time:        clock.String(),
		Description: strings.TrimSpace(in.Description),
		Status:      domain.StatusConfirmed,
	})
	if errors.Is(err, store.ErrConflict) {
		return domain.Appointment{}, service.Conflict(msgSlotTaken)
	}
	if err != nil {
		return domain.Appointment{}, err
	}

	// The booking is committed; the mirror and the event bus only follow it.
	appt.ExternalEventID = s.recordEventID(ctx, appt.Reservation(), "", s.mirror.Push(context.WithoutCancel(ctx), appt.Reservation()))
	s.publish(ctx, events.AppointmentCreated, appt.ID, appt)
	return appt, nil
}

// CreateOverturnAt books the overturn whose fixed time is in.Time, for
// booking requests flagged as sobreturno. The result lives under the
// overturn routes, not the appointment ones.
func (s *Service) CreateOverturnAt(ctx context.Context, in CreateAppointmentInput) (domain.Overturn, error) {
	clock, err := bookingClock(in.Time)
	if err != nil {
		return domain.Overturn{}, err
	}
	number, ok := domain.OverturnNumberAt(clock)
	if !ok {
		return domain.Overturn{}, validationError("time " + clock.String() + " is not a sobreturno time")
	}
	return s.CreateOverturn(ctx, CreateOverturnInput{
		Number:      number,
		Date:        in.Date,
		ClientName:  in.ClientName,
		SocialWork:  in.SocialWork,
		Phone:       in.Phone,
		Email:       in.Email,
		Description: in.Description,
	})
}

type CreateOverturnInput struct {
	Number      int
	Date        string
	ClientName  string
	SocialWork  string
	Phone       string
	Email       string
	Description string
}

func (s *Service) CreateOverturn(ctx context.Context, in CreateOverturnInput) (domain.Overturn, error) {
	c, err := normalizeContact(in.ClientName, in.SocialWork, in.Phone, in.Email)
	if err != nil {
		return domain.Overturn{}, err
	}
	if _, err := domain.ParseDate(in.Date); err != nil {
		return domain.Overturn{}, validationError(err.Error())
	}
	clock, err := domain.OverturnTime(in.Number)
	if err != nil {
		return domain.Overturn{}, validationError(err.Error())
	}

	o, err := s.overturns.Create(ctx, domain.Overturn{
		Number:      in.Number,
		ClientName:  c.name,
		SocialWork:  c.socialWork,
		Phone:       c.phone,
		Email:       c.email,
		Date:        strings.TrimSpace(in.Date),
		Time:        clock.String(),
		Description: strings.TrimSpace(in.Description),
		Status:      domain.StatusConfirmed,
	})
	if errors.Is(err, store.ErrConflict) {
		return domain.Overturn{}, service.Conflict(msgOverturnTaken)
	}
	if err != nil {
		return domain.Overturn{}, err
	}

	o.ExternalEventID = s.recordEventID(ctx, o.Reservation(), "", s.mirror.Push(context.WithoutCancel(ctx), o.Reservation()))
	s.publish(ctx, events.OverturnCreated, o.ID, o)
	return o, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("id is required")
	}
	return s.appointments.Get(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, filter store.ListFilter) ([]domain.Appointment, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	return s.appointments.List(ctx, filter)
}

// UpdateAppointmentInput is a partial update: nil fields are left unchanged.
type UpdateAppointmentInput struct {
	ClientName  *string
	SocialWork  *string
	Phone       *string
	Email       *string
	Date        *string
	Time        *string
	Description *string
	Status      *domain.Status
	Attended    *bool
	IsPaid      *bool
}

func (s *Service) UpdateAppointment(ctx context.Context, id uuid.UUID, in UpdateAppointmentInput) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("id is required")
	}
	cur, err := s.appointments.Get(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}

	next := cur
	p := patch{ClientName: in.ClientName, SocialWork: in.SocialWork, Phone: in.Phone, Email: in.Email, Description: in.Description}
	if err := p.apply(&next.ClientName, &next.SocialWork, &next.Phone, &next.Email, &next.Description); err != nil {
		return domain.Appointment{}, err
	}
	if in.Date != nil {
		if _, err := domain.ParseDate(*in.Date); err != nil {
			return domain.Appointment{}, validationError(err.Error())
		}
		next.Date = strings.TrimSpace(*in.Date)
	}
	if in.Time != nil {
		clock, err := bookingClock(*in.Time)
		if err != nil {
			return domain.Appointment{}, err
		}
		next.Time = clock.String()
	}
	att, err := attendance(domain.Attendance{Status: cur.Status, Attended: cur.Attended}, in.Status, in.Attended)
	if err != nil {
		return domain.Appointment{}, err
	}
	next.Status, next.Attended = att.Status, att.Attended
	if in.IsPaid != nil {
		next.IsPaid = *in.IsPaid
	}

	updated, err := s.appointments.Update(ctx, next)
	if errors.Is(err, store.ErrConflict) {
		return domain.Appointment{}, service.Conflict(msgSlotTaken)
	}
	if err != nil {
		return domain.Appointment{}, err
	}

	eventID := s.syncMirror(ctx, cur.Reservation(), updated.Reservation(), cur.Status, updated.Status, cur.ExternalEventID)
	updated.ExternalEventID = s.recordEventID(ctx, updated.Reservation(), cur.ExternalEventID, eventID)
	s.publish(ctx, events.AppointmentUpdated, updated.ID, updated)
	return updated, nil
}

func (s *Service) SetPayment(ctx context.Context, id uuid.UUID, paid bool) (domain.Appointment, error) {
	return s.UpdateAppointment(ctx, id, UpdateAppointmentInput{IsPaid: &paid})
}

func (s *Service) SetDescription(ctx context.Context, id uuid.UUID, description string) (domain.Appointment, error) {
	return s.UpdateAppointment(ctx, id, UpdateAppointmentInput{Description: &description})
}

func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return validationError("id is required")
	}
	cur, err := s.appointments.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.appointments.Delete(ctx, id); err != nil {
		return err
	}
	s.mirror.Remove(context.WithoutCancel(ctx), cur.ExternalEventID)
	s.publish(ctx, events.AppointmentDeleted, cur.ID, cur)
	return nil
}

func (s *Service) GetOverturn(ctx context.Context, id uuid.UUID) (domain.Overturn, error) {
	if id == uuid.Nil {
		return domain.Overturn{}, validationError("id is required")
	}
	return s.overturns.Get(ctx, id)
}

func (s *Service) ListOverturns(ctx context.Context, filter store.ListFilter) ([]domain.Overturn, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	return s.overturns.List(ctx, filter)
}

// UpdateOverturnInput is a partial update. An overturn's date and number
// are fixed; rebooking means cancelling and creating a new one.
type UpdateOverturnInput struct {
	ClientName  *string
	SocialWork  *string
	Phone       *string
	Email       *string
	Description *string
	Status      *domain.Status
	Attended    *bool
	IsPaid      *bool
}

func (s *Service) UpdateOverturn(ctx context.Context, id uuid.UUID, in UpdateOverturnInput) (domain.Overturn, error) {
	if id == uuid.Nil {
		return domain.Overturn{}, validationError("id is required")
	}
	cur, err := s.overturns.Get(ctx, id)
	if err != nil {
		return domain.Overturn{}, err
	}

	next := cur
	p := patch{ClientName: in.ClientName, SocialWork: in.SocialWork, Phone: in.Phone, Email: in.Email, Description: in.Description}
	if err := p.apply(&next.ClientName, &next.SocialWork, &next.Phone, &next.Email, &next.Description); err != nil {
		return domain.Overturn{}, err
	}
	att, err := attendance(domain.Attendance{Status: cur.Status, Attended: cur.Attended}, in.Status, in.Attended)
	if err != nil {
		return domain.Overturn{}, err
	}
	next.Status, next.Attended = att.Status, att.Attended
	if in.IsPaid != nil {
		next.IsPaid = *in.IsPaid
	}

	updated, err := s.overturns.Update(ctx, next)
	if errors.Is(err, store.ErrConflict) {
		return domain.Overturn{}, service.Conflict(msgOverturnTaken)
	}
	if err != nil {
		return domain.Overturn{}, err
	}

	eventID := s.syncMirror(ctx, cur.Reservation(), updated.Reservation(), cur.Status, updated.Status, cur.ExternalEventID)
	updated.ExternalEventID = s.recordEventID(ctx, updated.Reservation(), cur.ExternalEventID, eventID)
	s.publish(ctx, events.OverturnUpdated, updated.ID, updated)
	return updated, nil
}

func (s *Service) UpdateOverturnStatus(ctx context.Context, id uuid.UUID, status *domain.Status, attended *bool) (domain.Overturn, error) {
	if status == nil && attended == nil {
		return domain.Overturn{}, validationError("status or attended is required")
	}
	return s.UpdateOverturn(ctx, id, UpdateOverturnInput{Status: status, Attended: attended})
}

func (s *Service) DeleteOverturn(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return validationError("id is required")
	}
	cur, err := s.overturns.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.overturns.Delete(ctx, id); err != nil {
		return err
	}
	s.mirror.Remove(context.WithoutCancel(ctx), cur.ExternalEventID)
	s.publish(ctx, events.OverturnDeleted, cur.ID, cur)
	return nil
}

// syncMirror brings the external event in line with a committed update and
// returns the event id to report.
func (s *Service) syncMirror(ctx context.Context, before, after domain.Reservation, from, to domain.Status, eventID string) string {
	ctx = context.WithoutCancel(ctx)
	switch {
	case to == domain.StatusCancelled:
		if from != domain.StatusCancelled {
			s.mirror.Remove(ctx, eventID)
		}
		return eventID
	case before != after || eventID == "":
		return s.mirror.Update(ctx, after, eventID)
	}
	return eventID
}

// recordEventID stores a newly mirrored event id and returns the id the
// record now carries.
func (s *Service) recordEventID(ctx context.Context, r domain.Reservation, prev, next string) string {
	if next == "" || next == prev {
		return prev
	}
	ctx = context.WithoutCancel(ctx)
	var err error
	if r.Kind == domain.KindOverturn {
		err = s.overturns.SetExternalEventID(ctx, r.ID, next)
	} else {
		err = s.appointments.SetExternalEventID(ctx, r.ID, next)
	}
	if err != nil {
		s.log.Warn("store external event id failed", slog.Any("err", err), slog.String("id", r.ID.String()), slog.String("event_id", next))
		return prev
	}
	return next
}

func (s *Service) publish(ctx context.Context, t events.Type, id uuid.UUID, payload any) {
	if err := s.events.Publish(context.WithoutCancel(ctx), events.New(t, id, payload)); err != nil {
		s.log.Warn("event publish failed", slog.Any("err", err), slog.String("event_type", string(t)), slog.String("id", id.String()))
	}
}

// attendance applies the status/attended coupling. Cancelled is terminal.
func attendance(cur domain.Attendance, status *domain.Status, attended *bool) (domain.Attendance, error) {
	if status != nil && !status.Valid() {
		return domain.Attendance{}, validationError("invalid status")
	}
	next := domain.ApplyAttendance(cur, status, attended)
	if cur.Status == domain.StatusCancelled && next.Status != domain.StatusCancelled {
		return domain.Attendance{}, validationError("a cancelled reservation cannot be reopened")
	}
	return next, nil
}

func bookingClock(raw string) (domain.Clock, error) {
	clock, err := domain.ParseClock(raw)
	if err != nil {
		return 0, validationError(err.Error())
	}
	if !domain.WithinBookingHours(clock) {
		return 0, validationError("time must be between 08:00 and 22:00")
	}
	return clock, nil
}

func validateFilter(filter store.ListFilter) error {
	if filter.Date != "" {
		if _, err := domain.ParseDate(filter.Date); err != nil {
			return validationError(err.Error())
		}
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return validationError("invalid status")
	}
	return nil
}

type contact struct {
	name       string
	socialWork domain.SocialWork
	phone      string
	email      string
}

func normalizeContact(name, socialWork, phone, email string) (contact, error) {
	c := contact{
		name:  strings.TrimSpace(name),
		phone: strings.TrimSpace(phone),
		email: strings.TrimSpace(email),
	}
	if c.name == "" {
		return contact{}, validationError("clientName is required")
	}
	if c.phone == "" {
		return contact{}, validationError("phone is required")
	}
	if err := checkEmail(c.email); err != nil {
		return contact{}, err
	}
	sw, ok := domain.ParseSocialWork(socialWork)
	if !ok {
		return contact{}, validationError("invalid socialWork")
	}
	c.socialWork = sw
	return c, nil
}

func checkEmail(email string) error {
	if email == "" {
		return nil
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t") {
		return validationError("invalid email")
	}
	return nil
}

type patch struct {
	ClientName  *string
	SocialWork  *string
	Phone       *string
	Email       *string
	Description *string
}

func (p patch) apply(name *string, socialWork *domain.SocialWork, phone, email, description *string) error {
	if p.ClientName != nil {
		v := strings.TrimSpace(*p.ClientName)
		if v == "" {
			return validationError("clientName is required")
		}
		*name = v
	}
	if p.SocialWork != nil {
		sw, ok := domain.ParseSocialWork(*p.SocialWork)
		if !ok {
			return validationError("invalid socialWork")
		}
		*socialWork = sw
	}
	if p.Phone != nil {
		v := strings.TrimSpace(*p.Phone)
		if v == "" {
			return validationError("phone is required")
		}
		*phone = v
	}
	if p.Email != nil {
		v := strings.TrimSpace(*p.Email)
		if err := checkEmail(v); err != nil {
			return err
		}
		*email = v
	}
	if p.Description != nil {
		*description = strings.TrimSpace(*p.Description)
	}
	return nil
}

// Package availability computes which slots and overturn numbers of a day can
// still be booked.
package availability

import (
	"context"
	"fmt"
	"sort"

	"consultorio/backend/internal/domain"
	"consultorio/backend/internal/service"
	"consultorio/backend/internal/store"
)

// Refresher pulls external calendar events into the store before a read.
// Implementations must not fail the read.
type Refresher interface {
	Refresh(ctx context.Context, date string)
}

type noRefresh struct{}

func (noRefresh) Refresh(context.Context, string) {}

type Resolver struct {
	appointments store.AppointmentRepository
	overturns    store.OverturnRepository
	blocks       store.UnavailabilityRepository
	mirror       Refresher
	zone         *domain.Zone
	hours        domain.BusinessHours
}

func NewResolver(st store.Store, mirror Refresher, zone *domain.Zone, hours domain.BusinessHours) *Resolver {
	if mirror == nil {
		mirror = noRefresh{}
	}
	return &Resolver{
		appointments: st.Appointments,
		overturns:    st.Overturns,
		blocks:       st.Unavailability,
		mirror:       mirror,
		zone:         zone,
		hours:        hours,
	}
}

type DaySlots struct {
	Morning   []domain.TimeSlot `json:"morning"`
	Afternoon []domain.TimeSlot `json:"afternoon"`
}

// Empty reports whether no regular slot is left, in which case callers
// should offer overturns instead.
func (d DaySlots) Empty() bool {
	return len(d.Morning) == 0 && len(d.Afternoon) == 0
}

func validDate(date string) (string, error) {
	canonical, err := domain.CanonicalDate(date)
	if err != nil {
		return "", service.Validation(err.Error())
	}
	return canonical, nil
}

// AvailableSlots lists the regular slots of date. Booked slots are reported
// as unavailable; slots already elapsed today and slots covered by an
// unavailability block are left out.
func (r *Resolver) AvailableSlots(ctx context.Context, date string) (DaySlots, error) {
	date, err := validDate(date)
	if err != nil {
		return DaySlots{}, err
	}
	r.mirror.Refresh(ctx, date)

	grid, err := domain.GenerateSlots(date, r.hours)
	if err != nil {
		return DaySlots{}, service.Validation(err.Error())
	}
	booked, err := r.bookedTimes(ctx, date)
	if err != nil {
		return DaySlots{}, err
	}
	blocks, err := r.blocks.List(ctx, date)
	if err != nil {
		return DaySlots{}, fmt.Errorf("list unavailability: %w", err)
	}

	out := DaySlots{Morning: []domain.TimeSlot{}, Afternoon: []domain.TimeSlot{}}
	for _, c := range grid {
		if r.zone.Elapsed(date, c) || blocked(blocks, c.Half()) {
			continue
		}
		status := domain.SlotAvailable
		if _, ok := booked[c.String()]; ok {
			status = domain.SlotUnavailable
		}
		slot := domain.NewTimeSlot(c, status)
		if c.Half() == domain.PeriodMorning {
			out.Morning = append(out.Morning, slot)
		} else {
			out.Afternoon = append(out.Afternoon, slot)
		}
	}
	return out, nil
}

func blocked(blocks []domain.UnavailabilityBlock, half domain.Period) bool {
	for _, b := range blocks {
		if b.Period.Covers(half) {
			return true
		}
	}
	return false
}

func (r *Resolver) bookedTimes(ctx context.Context, date string) (map[string]struct{}, error) {
	appts, err := r.appointments.ListActiveByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	booked := make(map[string]struct{}, len(appts))
	for _, a := range appts {
		booked[a.Time] = struct{}{}
	}
	return booked, nil
}

type ReservedTime struct {
	Time string `json:"time"`
}

// ReservedTimes returns the times held by active appointments on date.
func (r *Resolver) ReservedTimes(ctx context.Context, date string) ([]ReservedTime, error) {
	date, err := validDate(date)
	if err != nil {
		return nil, err
	}
	r.mirror.Refresh(ctx, date)

	booked, err := r.bookedTimes(ctx, date)
	if err != nil {
		return nil, err
	}
	out := make([]ReservedTime, 0, len(booked))
	for t := range booked {
		out = append(out, ReservedTime{Time: t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

type OverturnSlot struct {
	Number int           `json:"sobreturnoNumber"`
	Time   string        `json:"horario"`
	Period domain.Period `json:"turno"`
}

// AvailableOverturns lists the overturn numbers of date without an active
// booking, in ascending order.
func (r *Resolver) AvailableOverturns(ctx context.Context, date string) ([]OverturnSlot, error) {
	date, err := validDate(date)
	if err != nil {
		return nil, err
	}
	taken, err := r.takenOverturns(ctx, date)
	if err != nil {
		return nil, err
	}
	out := make([]OverturnSlot, 0, domain.OverturnCount)
	for n := 1; n <= domain.OverturnCount; n++ {
		if _, ok := taken[n]; ok {
			continue
		}
		c, _ := domain.OverturnTime(n)
		out = append(out, OverturnSlot{Number: n, Time: c.String(), Period: domain.OverturnPeriod(n)})
	}
	return out, nil
}

func (r *Resolver) OverturnAvailable(ctx context.Context, date string, number int) (bool, error) {
	date, err := validDate(date)
	if err != nil {
		return false, err
	}
	if !domain.ValidOverturnNumber(number) {
		return false, service.Validation(domain.ErrInvalidOverturnNumber.Error())
	}
	taken, err := r.takenOverturns(ctx, date)
	if err != nil {
		return false, err
	}
	_, ok := taken[number]
	return !ok, nil
}

func (r *Resolver) takenOverturns(ctx context.Context, date string) (map[int]struct{}, error) {
	list, err := r.overturns.ListActiveByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list overturns: %w", err)
	}
	taken := make(map[int]struct{}, len(list))
	for _, o := range list {
		taken[o.Number] = struct{}{}
	}
	return taken, nil
}

// CreationTimes is the staff creation grid of date with every slot's
// status. Nothing is filtered out so staff can see the full day.
func (r *Resolver) CreationTimes(ctx context.Context, date string) ([]domain.TimeSlot, error) {
	date, err := validDate(date)
	if err != nil {
		return nil, err
	}
	booked, err := r.bookedTimes(ctx, date)
	if err != nil {
		return nil, err
	}
	grid, _ := domain.GenerateSlots(date, domain.CreationHours)
	out := make([]domain.TimeSlot, 0, len(grid))
	for _, c := range grid {
		status := domain.SlotAvailable
		if _, ok := booked[c.String()]; ok {
			status = domain.SlotUnavailable
		}
		out = append(out, domain.NewTimeSlot(c, status))
	}
	return out, nil
}

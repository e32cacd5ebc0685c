package domain

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

const DefaultTimezone = "America/Argentina/Buenos_Aires"

var (
	ErrInvalidDate           = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidClock          = errors.New("invalid time, expected HH:MM")
	ErrInvalidOverturnNumber = errors.New("sobreturno number must be between 1 and 10")
)

// Clock is a time of day in minutes since midnight.
type Clock int

func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

func ParseClock(s string) (Clock, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 {
		return 0, ErrInvalidClock
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, ErrInvalidClock
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, ErrInvalidClock
	}
	return NewClock(h, m), nil
}

func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(fmt.Sprintf("domain: bad clock %q", s))
	}
	return c
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// Half returns the half-day a slot belongs to: before noon is morning.
func (c Clock) Half() Period {
	if c.Hour() < 12 {
		return PeriodMorning
	}
	return PeriodAfternoon
}

var (
	EarliestBooking = NewClock(8, 0)
	LatestBooking   = NewClock(22, 0)
)

// WithinBookingHours reports whether c falls in [08:00, 22:00], both ends included.
func WithinBookingHours(c Clock) bool {
	return c >= EarliestBooking && c <= LatestBooking
}

func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

// CanonicalDate parses s and returns it in DateLayout, the form dates are
// stored and compared in.
func CanonicalDate(s string) (string, error) {
	d, err := ParseDate(s)
	if err != nil {
		return "", err
	}
	return d.Format(DateLayout), nil
}

// Window is a run of slots from First to Last, both included.
type Window struct {
	First Clock
	Last  Clock
}

type BusinessHours struct {
	Name    string
	Windows []Window
	Step    time.Duration
}

// ListingHours is the grid offered by the availability listing: 8 morning and
// 12 afternoon slots.
var ListingHours = BusinessHours{
	Name: "listing",
	Windows: []Window{
		{First: NewClock(10, 0), Last: NewClock(11, 45)},
		{First: NewClock(17, 0), Last: NewClock(19, 45)},
	},
	Step: 15 * time.Minute,
}

// CreationHours is the wider grid staff pick from when creating appointments
// by hand.
var CreationHours = BusinessHours{
	Name: "creation",
	Windows: []Window{
		{First: NewClock(10, 0), Last: NewClock(12, 0)},
		{First: NewClock(17, 0), Last: NewClock(20, 0)},
	},
	Step: 15 * time.Minute,
}

func BusinessHoursByName(name string) (BusinessHours, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ListingHours.Name:
		return ListingHours, true
	case CreationHours.Name:
		return CreationHours, true
	}
	return BusinessHours{}, false
}

func (h BusinessHours) Slots() []Clock {
	step := Clock(h.Step / time.Minute)
	if step <= 0 {
		return nil
	}
	seen := make(map[Clock]struct{})
	out := make([]Clock, 0, 24)
	for _, w := range h.Windows {
		for c := w.First; c <= w.Last; c += step {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// GenerateSlots returns the ordered bookable positions of date under hours.
func GenerateSlots(date string, hours BusinessHours) ([]Clock, error) {
	if _, err := ParseDate(date); err != nil {
		return nil, err
	}
	return hours.Slots(), nil
}

const OverturnCount = 10

var overturnTimes = [OverturnCount]Clock{
	NewClock(11, 0), NewClock(11, 15), NewClock(11, 30), NewClock(11, 45), NewClock(12, 0),
	NewClock(19, 0), NewClock(19, 15), NewClock(19, 30), NewClock(19, 45), NewClock(20, 0),
}

func ValidOverturnNumber(n int) bool {
	return n >= 1 && n <= OverturnCount
}

func OverturnTime(n int) (Clock, error) {
	if !ValidOverturnNumber(n) {
		return 0, ErrInvalidOverturnNumber
	}
	return overturnTimes[n-1], nil
}

func OverturnPeriod(n int) Period {
	if n <= 5 {
		return PeriodMorning
	}
	return PeriodAfternoon
}

// OverturnNumberAt is the inverse of OverturnTime.
func OverturnNumberAt(c Clock) (int, bool) {
	for i, t := range overturnTimes {
		if t == c {
			return i + 1, true
		}
	}
	return 0, false
}

type SlotStatus string

const (
	SlotAvailable   SlotStatus = "available"
	SlotUnavailable SlotStatus = "unavailable"
)

type TimeSlot struct {
	DisplayTime string     `json:"displayTime"`
	Time        string     `json:"time"`
	Status      SlotStatus `json:"status"`
}

func NewTimeSlot(c Clock, status SlotStatus) TimeSlot {
	s := c.String()
	return TimeSlot{DisplayTime: s, Time: s, Status: status}
}

// Zone pins "now" and "today" to the clinic's timezone instead of the
// caller's local clock.
type Zone struct {
	loc *time.Location
	now func() time.Time
}

func LoadZone(name string) (*Zone, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return NewZone(loc, time.Now), nil
}

func NewZone(loc *time.Location, now func() time.Time) *Zone {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Zone{loc: loc, now: now}
}

func (z *Zone) Location() *time.Location { return z.loc }

func (z *Zone) Now() time.Time { return z.now().In(z.loc) }

func (z *Zone) Today() string { return z.Now().Format(DateLayout) }

func (z *Zone) At(date string, c Clock) (time.Time, error) {
	d, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), 0, 0, z.loc), nil
}

// DayBounds returns [00:00, next day 00:00) of date in the zone.
func (z *Zone) DayBounds(date string) (time.Time, time.Time, error) {
	start, err := z.At(date, 0)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.AddDate(0, 0, 1), nil
}

func (z *Zone) Split(t time.Time) (string, Clock) {
	local := t.In(z.loc)
	return local.Format(DateLayout), NewClock(local.Hour(), local.Minute())
}

// Elapsed reports whether slot c of date is today and no longer in the
// future (hour:minute not after the current one).
func (z *Zone) Elapsed(date string, c Clock) bool {
	now := z.Now()
	if now.Format(DateLayout) != date {
		return false
	}
	return c <= NewClock(now.Hour(), now.Minute())
}

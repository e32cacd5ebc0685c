// Package calendar mirrors reservations to and from an external calendar.
package calendar

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("calendar mirror disabled")

// Event is the provider-neutral shape of a mirrored calendar event.
type Event struct {
	ID          string
	Summary     string
	Description string
	// Start is zero for all-day events.
	Start         time.Time
	End           time.Time
	AttendeeEmail string
	// Metadata is stored out-of-band by providers that support custom fields.
	Metadata map[string]string
}

func (e Event) Timed() bool {
	return !e.Start.IsZero()
}

type Client interface {
	ListEvents(ctx context.Context, from, to time.Time) ([]Event, error)
	Insert(ctx context.Context, ev Event) (string, error)
	Update(ctx context.Context, id string, ev Event) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// Disabled is used when no calendar is configured.
type Disabled struct{}

func (Disabled) ListEvents(context.Context, time.Time, time.Time) ([]Event, error) {
	return nil, ErrDisabled
}

func (Disabled) Insert(context.Context, Event) (string, error) { return "", ErrDisabled }

func (Disabled) Update(context.Context, string, Event) error { return ErrDisabled }

func (Disabled) Delete(context.Context, string) error { return ErrDisabled }

func (Disabled) Ping(context.Context) error { return ErrDisabled }

package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	emailReminder = 24 * 60
	popupReminder = 60
)

type GoogleConfig struct {
	CalendarID      string
	CredentialsFile string
	Location        *time.Location
}

// GoogleClient talks to a single Google calendar with a service account.
type GoogleClient struct {
	svc        *gcal.Service
	calendarID string
	loc        *time.Location
}

func NewGoogleClient(ctx context.Context, cfg GoogleConfig) (*GoogleClient, error) {
	if strings.TrimSpace(cfg.CalendarID) == "" {
		return nil, errors.New("calendar id is required")
	}
	opts := []option.ClientOption{option.WithScopes(gcal.CalendarScope)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &GoogleClient{svc: svc, calendarID: cfg.CalendarID, loc: loc}, nil
}

func (c *GoogleClient) ListEvents(ctx context.Context, from, to time.Time) ([]Event, error) {
	var out []Event
	call := c.svc.Events.List(c.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")
	err := call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			if item.Status == "cancelled" {
				continue
			}
			ev, err := fromGoogle(item)
			if err != nil {
				return err
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return out, nil
}

func (c *GoogleClient) Insert(ctx context.Context, ev Event) (string, error) {
	created, err := c.svc.Events.Insert(c.calendarID, c.toGoogle(ev)).
		SendUpdates(sendUpdates(ev)).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return created.Id, nil
}

func (c *GoogleClient) Update(ctx context.Context, id string, ev Event) error {
	_, err := c.svc.Events.Update(c.calendarID, id, c.toGoogle(ev)).
		SendUpdates(sendUpdates(ev)).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update event %s: %w", id, err)
	}
	return nil
}

// Delete treats an event that is already gone as deleted.
func (c *GoogleClient) Delete(ctx context.Context, id string) error {
	err := c.svc.Events.Delete(c.calendarID, id).Context(ctx).Do()
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	return nil
}

func (c *GoogleClient) Ping(ctx context.Context) error {
	if _, err := c.svc.Calendars.Get(c.calendarID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("get calendar: %w", err)
	}
	return nil
}

func sendUpdates(ev Event) string {
	if ev.AttendeeEmail != "" {
		return "all"
	}
	return "none"
}

func (c *GoogleClient) toGoogle(ev Event) *gcal.Event {
	tz := c.loc.String()
	out := &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       &gcal.EventDateTime{DateTime: ev.Start.In(c.loc).Format(time.RFC3339), TimeZone: tz},
		End:         &gcal.EventDateTime{DateTime: ev.End.In(c.loc).Format(time.RFC3339), TimeZone: tz},
		Reminders: &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: "email", Minutes: emailReminder},
				{Method: "popup", Minutes: popupReminder},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
	if len(ev.Metadata) > 0 {
		out.ExtendedProperties = &gcal.EventExtendedProperties{Private: ev.Metadata}
	}
	if ev.AttendeeEmail != "" {
		out.Attendees = []*gcal.EventAttendee{{Email: ev.AttendeeEmail}}
	}
	return out
}

func fromGoogle(item *gcal.Event) (Event, error) {
	ev := Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
	}
	if item.ExtendedProperties != nil {
		ev.Metadata = item.ExtendedProperties.Private
	}
	if item.Start != nil && item.Start.DateTime != "" {
		start, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			return Event{}, fmt.Errorf("event %s start: %w", item.Id, err)
		}
		ev.Start = start
	}
	if item.End != nil && item.End.DateTime != "" {
		if end, err := time.Parse(time.RFC3339, item.End.DateTime); err == nil {
			ev.End = end
		}
	}
	return ev, nil
}

package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether a reservation in this status still occupies its slot.
func (s Status) Active() bool {
	return s != StatusCancelled
}

type SocialWork string

const (
	SocialWorkINSSSEP      SocialWork = "INSSSEP"
	SocialWorkSwissMedical SocialWork = "Swiss Medical"
	SocialWorkOSDE         SocialWork = "OSDE"
	SocialWorkGaleno       SocialWork = "Galeno"
	SocialWorkParticular   SocialWork = "CONSULTA PARTICULAR"
)

var socialWorks = []SocialWork{
	SocialWorkINSSSEP,
	SocialWorkSwissMedical,
	SocialWorkOSDE,
	SocialWorkGaleno,
	SocialWorkParticular,
}

// ParseSocialWork maps free text onto a known social work, case-insensitively.
// Empty input yields the private consultation default.
func ParseSocialWork(s string) (SocialWork, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SocialWorkParticular, true
	}
	for _, sw := range socialWorks {
		if strings.EqualFold(string(sw), s) {
			return sw, true
		}
	}
	return "", false
}

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID              uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	ClientName      string     `bun:"client_name,notnull" json:"clientName"`
	SocialWork      SocialWork `bun:"social_work,notnull" json:"socialWork"`
	Phone           string     `bun:"phone,notnull" json:"phone"`
	Email           string     `bun:"email" json:"email,omitempty"`
	Date            string     `bun:"date,notnull" json:"date"`
	Time            string     `bun:"time,notnull" json:"time"`
	Description     string     `bun:"description" json:"description,omitempty"`
	Status          Status     `bun:"status,notnull" json:"status"`
	Attended        bool       `bun:"attended,notnull" json:"attended"`
	IsPaid          bool       `bun:"is_paid,notnull" json:"isPaid"`
	ExternalEventID string     `bun:"external_event_id" json:"externalEventId,omitempty"`
	CreatedAt       time.Time  `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt       time.Time  `bun:"updated_at,notnull" json:"updatedAt"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	stampModel(query, &a.ID, &a.CreatedAt, &a.UpdatedAt)
	return nil
}

func (a *Appointment) Reservation() Reservation {
	return Reservation{
		Kind:        KindAppointment,
		ID:          a.ID,
		ClientName:  a.ClientName,
		SocialWork:  a.SocialWork,
		Phone:       a.Phone,
		Email:       a.Email,
		Date:        a.Date,
		Time:        a.Time,
		Description: a.Description,
	}
}

// Overturn is an extra numbered booking outside the regular grid.
type Overturn struct {
	bun.BaseModel `bun:"table:overturns"`

	ID              uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Number          int        `bun:"overturn_number,notnull" json:"sobreturnoNumber"`
	ClientName      string     `bun:"client_name,notnull" json:"clientName"`
	SocialWork      SocialWork `bun:"social_work,notnull" json:"socialWork"`
	Phone           string     `bun:"phone,notnull" json:"phone"`
	Email           string     `bun:"email" json:"email,omitempty"`
	Date            string     `bun:"date,notnull" json:"date"`
	Time            string     `bun:"time,notnull" json:"time"`
	Description     string     `bun:"description" json:"description,omitempty"`
	Status          Status     `bun:"status,notnull" json:"status"`
	Attended        bool       `bun:"attended,notnull" json:"attended"`
	IsPaid          bool       `bun:"is_paid,notnull" json:"isPaid"`
	ExternalEventID string     `bun:"external_event_id" json:"externalEventId,omitempty"`
	CreatedAt       time.Time  `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt       time.Time  `bun:"updated_at,notnull" json:"updatedAt"`
}

func (o *Overturn) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	stampModel(query, &o.ID, &o.CreatedAt, &o.UpdatedAt)
	return nil
}

func (o *Overturn) Reservation() Reservation {
	return Reservation{
		Kind:        KindOverturn,
		ID:          o.ID,
		Number:      o.Number,
		ClientName:  o.ClientName,
		SocialWork:  o.SocialWork,
		Phone:       o.Phone,
		Email:       o.Email,
		Date:        o.Date,
		Time:        o.Time,
		Description: o.Description,
	}
}

type Kind string

const (
	KindAppointment Kind = "appointment"
	KindOverturn    Kind = "overturn"
)

// Reservation is the part of an appointment or overturn that is mirrored to
// the external calendar.
type Reservation struct {
	Kind        Kind
	ID          uuid.UUID
	Number      int
	ClientName  string
	SocialWork  SocialWork
	Phone       string
	Email       string
	Date        string
	Time        string
	Description string
}

// Attendance holds the coupled status/attended pair. Marking a reservation as
// attended confirms it, and confirming it marks it as attended. A pending
// reservation is never attended.
type Attendance struct {
	Status   Status
	Attended bool
}

// ApplyAttendance merges a requested status and attended flag into the
// current pair. Nil means "leave unchanged".
func ApplyAttendance(cur Attendance, status *Status, attended *bool) Attendance {
	next := cur
	if status != nil {
		next.Status = *status
		if *status == StatusConfirmed {
			next.Attended = true
		}
	}
	if attended != nil {
		if *attended {
			next.Attended = true
			next.Status = StatusConfirmed
		} else if status == nil || *status != StatusConfirmed {
			next.Attended = false
		}
	}
	if next.Status == StatusPending {
		next.Attended = false
	}
	return next
}

func stampModel(query bun.Query, id *uuid.UUID, createdAt, updatedAt *time.Time) {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if *id == uuid.Nil {
			if v, err := uuid.NewV7(); err == nil {
				*id = v
			} else {
				*id = uuid.New()
			}
		}
		if createdAt.IsZero() {
			*createdAt = now
		}
		if updatedAt.IsZero() {
			*updatedAt = now
		}
	case *bun.UpdateQuery:
		*updatedAt = now
	}
}

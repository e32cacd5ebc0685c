package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Period string

const (
	PeriodMorning   Period = "morning"
	PeriodAfternoon Period = "afternoon"
	PeriodFull      Period = "full"
)

func (p Period) Valid() bool {
	switch p {
	case PeriodMorning, PeriodAfternoon, PeriodFull:
		return true
	}
	return false
}

// Covers reports whether a block for p removes slots of the given half-day.
func (p Period) Covers(half Period) bool {
	return p == PeriodFull || p == half
}

type UnavailabilityBlock struct {
	bun.BaseModel `bun:"table:unavailability_blocks"`

	ID        uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Date      string    `bun:"date,notnull" json:"date"`
	Period    Period    `bun:"period,notnull" json:"period"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
}

func (b *UnavailabilityBlock) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	var updatedAt time.Time
	stampModel(query, &b.ID, &b.CreatedAt, &updatedAt)
	return nil
}

const SettingBotEnabled = "bot_enabled"

type Setting struct {
	bun.BaseModel `bun:"table:settings"`

	Key       string    `bun:"key,pk" json:"key"`
	Value     string    `bun:"value,notnull" json:"value"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

func (s *Setting) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery, *bun.UpdateQuery:
		s.UpdatedAt = time.Now().UTC()
	}
	return nil
}

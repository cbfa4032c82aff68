package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const DefaultSlotGranularityMinutes = 30

type Business struct {
	bun.BaseModel `bun:"table:businesses"`

	ID                 uuid.UUID `bun:"id,pk,type:uuid"`
	Name               string    `bun:"name,notnull"`
	Timezone           string    `bun:"timezone,notnull"`
	Currency           string    `bun:"currency,notnull"`
	GranularityMinutes int       `bun:"granularity_minutes,notnull"`
	CreatedAt          time.Time `bun:"created_at,notnull"`
	UpdatedAt          time.Time `bun:"updated_at,notnull"`
}

// SlotStep returns the candidate step size in minutes, falling back to the
// default when the business has no explicit granularity configured.
func (b Business) SlotStep() int {
	if b.GranularityMinutes > 0 {
		return b.GranularityMinutes
	}
	return DefaultSlotGranularityMinutes
}

// Location resolves the business's IANA timezone, defaulting to UTC when the
// stored value does not load.
func (b Business) Location() *time.Location {
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (b *Business) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if b.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			b.ID = id
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		if b.UpdatedAt.IsZero() {
			b.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		b.UpdatedAt = now
	}
	return nil
}

// BusinessHours is one operating window per (business, weekday). Weekday
// follows time.Weekday numbering: 0 is Sunday.
type BusinessHours struct {
	bun.BaseModel `bun:"table:business_hours"`

	ID             uuid.UUID `bun:"id,pk,type:uuid"`
	BusinessID     uuid.UUID `bun:"business_id,notnull,type:uuid"`
	Weekday        int       `bun:"weekday,notnull"`
	OpensAtMinute  int       `bun:"opens_at_minute,notnull"`
	ClosesAtMinute int       `bun:"closes_at_minute,notnull"`
	IsClosed       bool      `bun:"is_closed,notnull"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
	UpdatedAt      time.Time `bun:"updated_at,notnull"`
}

func (h *BusinessHours) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if h.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			h.ID = id
		}
		if h.CreatedAt.IsZero() {
			h.CreatedAt = now
		}
		if h.UpdatedAt.IsZero() {
			h.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		h.UpdatedAt = now
	}
	return nil
}

type Service struct {
	bun.BaseModel `bun:"table:services"`

	ID              uuid.UUID `bun:"id,pk,type:uuid"`
	BusinessID      uuid.UUID `bun:"business_id,notnull,type:uuid"`
	Name            string    `bun:"name,notnull"`
	DurationMinutes int       `bun:"duration_minutes,notnull"`
	IsActive        bool      `bun:"is_active,notnull"`
	CreatedAt       time.Time `bun:"created_at,notnull"`
	UpdatedAt       time.Time `bun:"updated_at,notnull"`
}

func (s *Service) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if s.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			s.ID = id
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		if s.UpdatedAt.IsZero() {
			s.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		s.UpdatedAt = now
	}
	return nil
}

type Staff struct {
	bun.BaseModel `bun:"table:staff"`

	ID         uuid.UUID `bun:"id,pk,type:uuid"`
	BusinessID uuid.UUID `bun:"business_id,notnull,type:uuid"`
	Name       string    `bun:"name,notnull"`
	IsActive   bool      `bun:"is_active,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

func (s *Staff) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if s.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			s.ID = id
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		if s.UpdatedAt.IsZero() {
			s.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		s.UpdatedAt = now
	}
	return nil
}

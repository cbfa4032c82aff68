package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
)

// BlocksSlot reports whether an appointment in this status still occupies its
// interval. Cancelled and no-show appointments free the slot.
func (s AppointmentStatus) BlocksSlot() bool {
	switch s {
	case AppointmentStatusPending, AppointmentStatusConfirmed, AppointmentStatusCompleted:
		return true
	default:
		return false
	}
}

// BlockingStatuses are the statuses that count toward the overlap invariant.
var BlockingStatuses = []AppointmentStatus{
	AppointmentStatusPending,
	AppointmentStatusConfirmed,
	AppointmentStatusCompleted,
}

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID            uuid.UUID         `bun:"id,pk,type:uuid"`
	BusinessID    uuid.UUID         `bun:"business_id,notnull,type:uuid"`
	StaffID       *uuid.UUID        `bun:"staff_id,type:uuid"`
	ServiceID     uuid.UUID         `bun:"service_id,notnull,type:uuid"`
	Date          time.Time         `bun:"date,notnull,type:date"`
	StartMinute   int               `bun:"start_minute,notnull"`
	EndMinute     int               `bun:"end_minute,notnull"`
	Status        AppointmentStatus `bun:"status,notnull"`
	CustomerName  string            `bun:"customer_name,notnull"`
	CustomerEmail string            `bun:"customer_email"`
	CustomerPhone string            `bun:"customer_phone"`
	CancelReason  string            `bun:"cancel_reason"`
	CancelledAt   *time.Time        `bun:"cancelled_at"`
	CreatedAt     time.Time         `bun:"created_at,notnull"`
	UpdatedAt     time.Time         `bun:"updated_at,notnull"`
}

// Interval returns the occupied [start, end) minute range.
func (a Appointment) Interval() Interval {
	return Interval{StartMinute: a.StartMinute, EndMinute: a.EndMinute}
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

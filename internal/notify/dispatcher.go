package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types follow the <domain>.<aggregate>.<action>.<version> convention.
const (
	EventAppointmentBooked      = "booking.appointment.booked.v1"
	EventAppointmentCancelled   = "booking.appointment.cancelled.v1"
	EventAppointmentRescheduled = "booking.appointment.rescheduled.v1"
	EventAppointmentConfirmed   = "booking.appointment.confirmed.v1"
)

type Event struct {
	Type          string     `json:"type"`
	AppointmentID uuid.UUID  `json:"appointment_id"`
	BusinessID    uuid.UUID  `json:"business_id"`
	StaffID       *uuid.UUID `json:"staff_id,omitempty"`
	ServiceID     uuid.UUID  `json:"service_id"`
	Date          string     `json:"date"`
	StartTime     string     `json:"start_time"`
	EndTime       string     `json:"end_time"`
	Status        string     `json:"status"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// Dispatcher informs external collaborators about booking lifecycle changes.
// Dispatch is best-effort and must never block or fail the booking that
// triggered it.
type Dispatcher interface {
	Dispatch(ctx context.Context, evt Event)
}

// NopDispatcher drops every event. Used when no brokers are configured.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(context.Context, Event) {}

package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bookly/internal/domain"
)

// ScheduleStore is the durable record of businesses, hours, staff, services,
// and committed appointments. Reads run with ordinary read-committed
// consistency; they are advisory. Authority lives in InDayTransaction.
type ScheduleStore interface {
	GetBusiness(ctx context.Context, businessID uuid.UUID) (domain.Business, error)
	GetService(ctx context.Context, businessID, serviceID uuid.UUID) (domain.Service, error)
	GetStaff(ctx context.Context, businessID, staffID uuid.UUID) (domain.Staff, error)

	// HoursForWeekday returns the operating window for the weekday. A missing
	// row reports ok=false; callers treat that the same as a closed day.
	HoursForWeekday(ctx context.Context, businessID uuid.UUID, weekday time.Weekday) (domain.BusinessHours, bool, error)

	// ListDayAppointments returns the non-cancelled appointments for the
	// business on the given date. When staffID is set the result is scoped to
	// that staff member plus business-wide rows (staff_id IS NULL), since a
	// business-wide booking reserves every staff member's time.
	ListDayAppointments(ctx context.Context, businessID uuid.UUID, date time.Time, staffID *uuid.UUID) ([]domain.Appointment, error)

	GetAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)

	// InDayTransaction runs fn inside a transaction that holds an exclusive
	// per-(business, date) lock, serializing every writer that could touch
	// overlapping state on that day. Returning an error rolls back.
	InDayTransaction(ctx context.Context, businessID uuid.UUID, date time.Time, fn func(ctx context.Context, tx ScheduleTx) error) error

	// ExpireStalePending cancels pending appointments created before the
	// cutoff and returns how many were expired.
	ExpireStalePending(ctx context.Context, cutoff time.Time) (int64, error)
}

// ScheduleTx is the write surface available inside InDayTransaction. Every
// method observes the transaction's snapshot, which includes all appointments
// committed before the day lock was granted.
type ScheduleTx interface {
	ListDayAppointments(ctx context.Context, businessID uuid.UUID, date time.Time, staffID *uuid.UUID) ([]domain.Appointment, error)
	CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	GetAppointmentForUpdate(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)

	// MoveAppointment rewrites the appointment's date and interval in place.
	MoveAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)

	UpdateAppointmentStatus(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
}

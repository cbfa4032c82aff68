package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookly/internal/domain"
	"bookly/internal/notify"
	"bookly/internal/store"
)

// Service is the booking coordinator: it computes availability, runs the
// admission protocol for new and moved reservations, and drives appointment
// lifecycle transitions. It holds no mutable state between calls; all shared
// state lives in the ScheduleStore.
type Service struct {
	store    store.ScheduleStore
	notifier notify.Dispatcher
	now      func() time.Time
}

func NewService(st store.ScheduleStore, notifier notify.Dispatcher) *Service {
	if notifier == nil {
		notifier = notify.NopDispatcher{}
	}
	return &Service{
		store:    st,
		notifier: notifier,
		now:      time.Now,
	}
}

// WithClock overrides the time source used for past-booking checks.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type SlotsInput struct {
	BusinessID      uuid.UUID
	Date            time.Time
	DurationMinutes int
	StaffID         *uuid.UUID
}

// AvailableSlots computes the ordered candidate start times for one day.
// A closed day or a weekday without configured hours yields an empty list,
// never an error: both are the same observable outcome to a caller.
//
// The result is advisory. Booking re-validates against live, locked state.
func (s *Service) AvailableSlots(ctx context.Context, in SlotsInput) ([]domain.TimeSlot, error) {
	if in.BusinessID == uuid.Nil {
		return nil, validationError("business_id is required")
	}
	if in.Date.IsZero() {
		return nil, validationError("date is required")
	}
	if in.DurationMinutes <= 0 || in.DurationMinutes > domain.MinutesPerDay {
		return nil, validationError("duration_minutes must be a positive number of minutes within one day")
	}

	business, err := s.store.GetBusiness(ctx, in.BusinessID)
	if err != nil {
		return nil, refError(err, "unknown business")
	}

	date := dayOf(in.Date)
	hours, ok, err := s.store.HoursForWeekday(ctx, in.BusinessID, date.Weekday())
	if err != nil {
		return nil, err
	}
	if !ok || hours.IsClosed {
		return []domain.TimeSlot{}, nil
	}

	appts, err := s.store.ListDayAppointments(ctx, in.BusinessID, date, in.StaffID)
	if err != nil {
		return nil, err
	}

	slots := domain.ComputeSlots(hours, domain.BusyIntervals(appts, nil), in.DurationMinutes, business.SlotStep())
	if slots == nil {
		slots = []domain.TimeSlot{}
	}
	return slots, nil
}

type ConflictInput struct {
	BusinessID           uuid.UUID
	StaffID              *uuid.UUID
	Date                 time.Time
	StartMinute          int
	EndMinute            int
	ExcludeAppointmentID *uuid.UUID
}

// CheckConflict reports whether the interval overlaps any blocking
// appointment for the resource. "Has conflict" is a normal outcome, not an
// error. This read is advisory; the authoritative check runs inside the
// booking transaction.
func (s *Service) CheckConflict(ctx context.Context, in ConflictInput) (bool, error) {
	if in.BusinessID == uuid.Nil {
		return false, validationError("business_id is required")
	}
	if in.Date.IsZero() {
		return false, validationError("date is required")
	}
	if err := validateInterval(in.StartMinute, in.EndMinute); err != nil {
		return false, err
	}

	appts, err := s.store.ListDayAppointments(ctx, in.BusinessID, dayOf(in.Date), in.StaffID)
	if err != nil {
		return false, err
	}

	busy := domain.BusyIntervals(appts, excludeID(in.ExcludeAppointmentID))
	return domain.HasOverlap(in.StartMinute, in.EndMinute, busy), nil
}

type CustomerInfo struct {
	Name  string
	Email string
	Phone string
}

type BookInput struct {
	BusinessID     uuid.UUID
	StaffID        *uuid.UUID
	ServiceID      uuid.UUID
	Date           time.Time
	StartMinute    int
	Customer       CustomerInfo
	IdempotencyKey string
}

// Book admits a new reservation. The naive read-then-write races under
// concurrency, so the conflict check is re-run inside a transaction that
// holds the per-(business, date) lock; the database's exclusion constraint
// backstops the insert. Among concurrent attempts on overlapping intervals
// exactly one commits, the rest observe store.ErrConflict.
func (s *Service) Book(ctx context.Context, in BookInput) (domain.Appointment, error) {
	name := strings.TrimSpace(in.Customer.Name)
	if name == "" {
		return domain.Appointment{}, validationError("customer name is required")
	}
	if in.BusinessID == uuid.Nil {
		return domain.Appointment{}, validationError("business_id is required")
	}
	if in.ServiceID == uuid.Nil {
		return domain.Appointment{}, validationError("service_id is required")
	}
	if in.Date.IsZero() {
		return domain.Appointment{}, validationError("date is required")
	}

	business, err := s.store.GetBusiness(ctx, in.BusinessID)
	if err != nil {
		return domain.Appointment{}, refError(err, "unknown business")
	}

	svc, err := s.store.GetService(ctx, in.BusinessID, in.ServiceID)
	if err != nil {
		return domain.Appointment{}, refError(err, "unknown service")
	}
	if !svc.IsActive {
		return domain.Appointment{}, validationError("service is inactive")
	}
	if svc.DurationMinutes <= 0 {
		return domain.Appointment{}, validationError("service has no usable duration")
	}

	if in.StaffID != nil {
		staff, err := s.store.GetStaff(ctx, in.BusinessID, *in.StaffID)
		if err != nil {
			return domain.Appointment{}, refError(err, "unknown staff")
		}
		if !staff.IsActive {
			return domain.Appointment{}, validationError("staff member is inactive")
		}
	}

	date := dayOf(in.Date)
	start := in.StartMinute
	end := start + svc.DurationMinutes
	if err := validateInterval(start, end); err != nil {
		return domain.Appointment{}, err
	}

	if err := s.ensureOpenAndFuture(ctx, business, date, start, end); err != nil {
		return domain.Appointment{}, err
	}

	appt := domain.Appointment{
		BusinessID:    in.BusinessID,
		StaffID:       in.StaffID,
		ServiceID:     in.ServiceID,
		Date:          date,
		StartMinute:   start,
		EndMinute:     end,
		Status:        domain.AppointmentStatusPending,
		CustomerName:  name,
		CustomerEmail: strings.TrimSpace(in.Customer.Email),
		CustomerPhone: strings.TrimSpace(in.Customer.Phone),
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > 256 {
			return domain.Appointment{}, validationError("idempotency_key too long")
		}
		appt.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("bookly:book:"+in.BusinessID.String()+":"+key))
	}

	var out domain.Appointment
	err = s.store.InDayTransaction(ctx, in.BusinessID, date, func(ctx context.Context, tx store.ScheduleTx) error {
		appts, err := tx.ListDayAppointments(ctx, in.BusinessID, date, in.StaffID)
		if err != nil {
			return err
		}
		if domain.HasOverlap(start, end, domain.BusyIntervals(appts, nil)) {
			return store.ErrConflict
		}
		created, err := tx.CreateAppointment(ctx, appt)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	s.notifier.Dispatch(context.WithoutCancel(ctx), s.event(notify.EventAppointmentBooked, out))
	return out, nil
}

type RescheduleInput struct {
	AppointmentID  uuid.UUID
	NewDate        time.Time
	NewStartMinute int
}

// Reschedule moves an appointment through the full admission protocol
// against the new time, excluding the appointment itself from the conflict
// check so it may land on or overlap its own current interval.
func (s *Service) Reschedule(ctx context.Context, in RescheduleInput) (domain.Appointment, error) {
	if in.AppointmentID == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	if in.NewDate.IsZero() {
		return domain.Appointment{}, validationError("new date is required")
	}

	appt, err := s.store.GetAppointment(ctx, in.AppointmentID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if appt.Status != domain.AppointmentStatusPending && appt.Status != domain.AppointmentStatusConfirmed {
		return domain.Appointment{}, validationError("only pending or confirmed appointments can be rescheduled")
	}

	business, err := s.store.GetBusiness(ctx, appt.BusinessID)
	if err != nil {
		return domain.Appointment{}, err
	}

	duration := appt.EndMinute - appt.StartMinute
	date := dayOf(in.NewDate)
	start := in.NewStartMinute
	end := start + duration
	if err := validateInterval(start, end); err != nil {
		return domain.Appointment{}, err
	}

	if err := s.ensureOpenAndFuture(ctx, business, date, start, end); err != nil {
		return domain.Appointment{}, err
	}

	var out domain.Appointment
	err = s.store.InDayTransaction(ctx, appt.BusinessID, date, func(ctx context.Context, tx store.ScheduleTx) error {
		current, err := tx.GetAppointmentForUpdate(ctx, in.AppointmentID)
		if err != nil {
			return err
		}
		if current.Status != domain.AppointmentStatusPending && current.Status != domain.AppointmentStatusConfirmed {
			return validationError("only pending or confirmed appointments can be rescheduled")
		}

		appts, err := tx.ListDayAppointments(ctx, current.BusinessID, date, current.StaffID)
		if err != nil {
			return err
		}
		busy := domain.BusyIntervals(appts, excludeID(&in.AppointmentID))
		if domain.HasOverlap(start, end, busy) {
			return store.ErrConflict
		}

		current.Date = date
		current.StartMinute = start
		current.EndMinute = end
		moved, err := tx.MoveAppointment(ctx, current)
		if err != nil {
			return err
		}
		out = moved
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	s.notifier.Dispatch(context.WithoutCancel(ctx), s.event(notify.EventAppointmentRescheduled, out))
	return out, nil
}

type CancelInput struct {
	AppointmentID uuid.UUID
	Reason        string
}

// Cancel frees the appointment's slot. Freeing is always safe, so no
// conflict check runs. Cancelling an already-cancelled appointment is a
// no-op returning the current row.
func (s *Service) Cancel(ctx context.Context, in CancelInput) (domain.Appointment, error) {
	if in.AppointmentID == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}

	appt, err := s.store.GetAppointment(ctx, in.AppointmentID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if appt.Status == domain.AppointmentStatusCancelled {
		return appt, nil
	}

	var out domain.Appointment
	err = s.store.InDayTransaction(ctx, appt.BusinessID, appt.Date, func(ctx context.Context, tx store.ScheduleTx) error {
		current, err := tx.GetAppointmentForUpdate(ctx, in.AppointmentID)
		if err != nil {
			return err
		}
		if current.Status == domain.AppointmentStatusCancelled {
			out = current
			return nil
		}

		now := s.now().UTC()
		current.Status = domain.AppointmentStatusCancelled
		current.CancelReason = strings.TrimSpace(in.Reason)
		current.CancelledAt = &now
		updated, err := tx.UpdateAppointmentStatus(ctx, current)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	s.notifier.Dispatch(context.WithoutCancel(ctx), s.event(notify.EventAppointmentCancelled, out))
	return out, nil
}

// Confirm transitions a pending appointment to confirmed. The slot is
// already held by the pending row, so no conflict check is needed.
func (s *Service) Confirm(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	if appointmentID == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}

	appt, err := s.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if appt.Status == domain.AppointmentStatusConfirmed {
		return appt, nil
	}
	if appt.Status != domain.AppointmentStatusPending {
		return domain.Appointment{}, validationError("only pending appointments can be confirmed")
	}

	var out domain.Appointment
	err = s.store.InDayTransaction(ctx, appt.BusinessID, appt.Date, func(ctx context.Context, tx store.ScheduleTx) error {
		current, err := tx.GetAppointmentForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if current.Status == domain.AppointmentStatusConfirmed {
			out = current
			return nil
		}
		if current.Status != domain.AppointmentStatusPending {
			return validationError("only pending appointments can be confirmed")
		}

		current.Status = domain.AppointmentStatusConfirmed
		updated, err := tx.UpdateAppointmentStatus(ctx, current)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	s.notifier.Dispatch(context.WithoutCancel(ctx), s.event(notify.EventAppointmentConfirmed, out))
	return out, nil
}

// GetAppointment exposes a single appointment lookup for the transport layer.
func (s *Service) GetAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	if appointmentID == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	return s.store.GetAppointment(ctx, appointmentID)
}

// ensureOpenAndFuture validates the interval against the weekday's operating
// window (ErrClosed) and rejects starts already in the past, measured in the
// business's own timezone.
func (s *Service) ensureOpenAndFuture(ctx context.Context, business domain.Business, date time.Time, start, end int) error {
	hours, ok, err := s.store.HoursForWeekday(ctx, business.ID, date.Weekday())
	if err != nil {
		return err
	}
	if !ok || hours.IsClosed {
		return ErrClosed
	}
	if start < hours.OpensAtMinute || end > hours.ClosesAtMinute {
		return ErrClosed
	}

	loc := business.Location()
	startLocal := time.Date(date.Year(), date.Month(), date.Day(), start/60, start%60, 0, 0, loc)
	if startLocal.Before(s.now().In(loc)) {
		return validationError("start time is in the past")
	}
	return nil
}

func (s *Service) event(eventType string, appt domain.Appointment) notify.Event {
	return notify.Event{
		Type:          eventType,
		AppointmentID: appt.ID,
		BusinessID:    appt.BusinessID,
		StaffID:       appt.StaffID,
		ServiceID:     appt.ServiceID,
		Date:          appt.Date.Format("2006-01-02"),
		StartTime:     domain.FormatClock(appt.StartMinute),
		EndTime:       domain.FormatClock(appt.EndMinute),
		Status:        string(appt.Status),
		OccurredAt:    s.now().UTC(),
	}
}

func validateInterval(start, end int) error {
	if start < 0 || start >= domain.MinutesPerDay {
		return validationError("start time must fall within the day")
	}
	if end <= start {
		return validationError("end time must be after start time")
	}
	if end > domain.MinutesPerDay {
		return validationError("appointment must end on the same day")
	}
	return nil
}

// refError converts a missing referenced entity into a validation error;
// infrastructure errors pass through unchanged.
func refError(err error, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return validationError(msg)
	}
	return err
}

func excludeID(id *uuid.UUID) func(domain.Appointment) bool {
	if id == nil {
		return nil
	}
	return func(a domain.Appointment) bool { return a.ID == *id }
}

// dayOf normalizes a date to midnight UTC so date-only comparisons and the
// store's DATE column agree.
func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

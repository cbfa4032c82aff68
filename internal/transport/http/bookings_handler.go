package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"bookly/internal/domain"
	"bookly/internal/service/booking"
)

type slotItem struct {
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	IsAvailable bool   `json:"is_available"`
}

type slotsResponse struct {
	Date  string     `json:"date"`
	Slots []slotItem `json:"slots"`
}

type conflictResponse struct {
	Conflict bool `json:"conflict"`
}

type customerPayload struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone"`
}

type bookRequest struct {
	BusinessID string          `json:"business_id" validate:"required,uuid"`
	StaffID    string          `json:"staff_id" validate:"omitempty,uuid"`
	ServiceID  string          `json:"service_id" validate:"required,uuid"`
	Date       string          `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime  string          `json:"start_time" validate:"required"`
	Customer   customerPayload `json:"customer" validate:"required"`
}

type rescheduleRequest struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type appointmentResponse struct {
	ID            string `json:"id"`
	BusinessID    string `json:"business_id"`
	StaffID       string `json:"staff_id,omitempty"`
	ServiceID     string `json:"service_id"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email,omitempty"`
	CustomerPhone string `json:"customer_phone,omitempty"`
	CancelReason  string `json:"cancel_reason,omitempty"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func (s *BookingServer) Slots(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	log := s.log.With(slog.String("route", "Slots"))

	businessID, err := uuid.Parse(ps.ByName("business_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "business_id must be a UUID")
		return
	}

	q := r.URL.Query()
	date, err := time.Parse("2006-01-02", strings.TrimSpace(q.Get("date")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	duration, err := strconv.Atoi(strings.TrimSpace(q.Get("duration_minutes")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "duration_minutes must be an integer")
		return
	}
	staffID, ok := optionalUUID(q.Get("staff_id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "staff_id must be a UUID")
		return
	}

	slots, err := s.svc.AvailableSlots(r.Context(), booking.SlotsInput{
		BusinessID:      businessID,
		Date:            date,
		DurationMinutes: duration,
		StaffID:         staffID,
	})
	if err != nil {
		s.writeServiceError(w, log, err)
		return
	}

	items := make([]slotItem, 0, len(slots))
	for _, slot := range slots {
		items = append(items, slotItem{
			StartTime:   domain.FormatClock(slot.StartMinute),
			EndTime:     domain.FormatClock(slot.StartMinute + duration),
			IsAvailable: slot.Available,
		})
	}

	log.Debug(
		"slots computed",
		slog.String("business_id", businessID.String()),
		slog.String("date", date.Format("2006-01-02")),
		slog.Int("count", len(items)),
	)
	writeJSON(w, http.StatusOK, slotsResponse{Date: date.Format("2006-01-02"), Slots: items})
}

func (s *BookingServer) Conflict(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	log := s.log.With(slog.String("route", "Conflict"))

	businessID, err := uuid.Parse(ps.ByName("business_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "business_id must be a UUID")
		return
	}

	q := r.URL.Query()
	date, err := time.Parse("2006-01-02", strings.TrimSpace(q.Get("date")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	start, err := domain.ParseClock(strings.TrimSpace(q.Get("start_time")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_time must be HH:MM")
		return
	}
	end, err := domain.ParseClock(strings.TrimSpace(q.Get("end_time")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_time must be HH:MM")
		return
	}
	staffID, ok := optionalUUID(q.Get("staff_id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "staff_id must be a UUID")
		return
	}
	excludeID, ok := optionalUUID(q.Get("exclude_appointment_id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "exclude_appointment_id must be a UUID")
		return
	}

	conflict, err := s.svc.CheckConflict(r.Context(), booking.ConflictInput{
		BusinessID:           businessID,
		StaffID:              staffID,
		Date:                 date,
		StartMinute:          start,
		EndMinute:            end,
		ExcludeAppointmentID: excludeID,
	})
	if err != nil {
		s.writeServiceError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, conflictResponse{Conflict: conflict})
}

func (s *BookingServer) Book(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	log := s.log.With(slog.String("route", "Book"))

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		log.Warn("invalid request", slog.Any("err", err))
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	businessID, _ := uuid.Parse(req.BusinessID)
	serviceID, _ := uuid.Parse(req.ServiceID)
	staffID, _ := optionalUUID(req.StaffID)
	date, _ := time.Parse("2006-01-02", req.Date)
	start, err := domain.ParseClock(req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_time must be HH:MM")
		return
	}

	appt, err := s.svc.Book(r.Context(), booking.BookInput{
		BusinessID:  businessID,
		StaffID:     staffID,
		ServiceID:   serviceID,
		Date:        date,
		StartMinute: start,
		Customer: booking.CustomerInfo{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		s.writeServiceError(w, log, err)
		return
	}

	log.Info(
		"appointment booked",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("business_id", appt.BusinessID.String()),
		slog.String("date", appt.Date.Format("2006-01-02")),
		slog.String("start_time", domain.FormatClock(appt.StartMinute)),
	)
	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (s *BookingServer) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	log := s.log.With(slog.String("route", "Get"))

	id, err := uuid.Parse(ps.ByName("appointment_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "appointment_id must be a UUID")
		return
	}

	appt, err := s.svc.GetAppointment(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (s *BookingServer) Reschedule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	log := s.log.With(slog.String("route", "Reschedule"))

	id, err := uuid.Parse(ps.ByName("appointment_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "appointment_id must be a UUID")
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		log.Warn("invalid request", slog.Any("err", err))
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	date, _ := time.Parse("2006-01-02", req.Date)
	start, err := domain.ParseClock(req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_time must be HH:MM")
		return
	}

	appt, err := s.svc.Reschedule(r.Context(), booking.RescheduleInput{
		AppointmentID:  id,
		NewDate:        date,
		NewStartMinute: start,
	})
	if err != nil {
		s.writeServiceError(w, log, err)
		return
	}

	log.Info(
		"appointment rescheduled",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("date", appt.Date.Format("2006-01-02")),
		slog.String("start_time", domain.FormatClock(appt.StartMinute)),
	)
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (s *BookingServer) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	log := s.log.With(slog.String("route", "Cancel"))

	id, err := uuid.Parse(ps.ByName("appointment_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "appointment_id must be a UUID")
		return
	}

	var req cancelRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
	}

	appt, err := s.svc.Cancel(r.Context(), booking.CancelInput{AppointmentID: id, Reason: req.Reason})
	if err != nil {
		s.writeServiceError(w, log, err)
		return
	}

	log.Info("appointment cancelled", slog.String("appointment_id", appt.ID.String()))
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (s *BookingServer) Confirm(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	log := s.log.With(slog.String("route", "Confirm"))

	id, err := uuid.Parse(ps.ByName("appointment_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "appointment_id must be a UUID")
		return
	}

	appt, err := s.svc.Confirm(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, log, err)
		return
	}

	log.Info("appointment confirmed", slog.String("appointment_id", appt.ID.String()))
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func toAppointmentResponse(a domain.Appointment) appointmentResponse {
	resp := appointmentResponse{
		ID:            a.ID.String(),
		BusinessID:    a.BusinessID.String(),
		ServiceID:     a.ServiceID.String(),
		Date:          a.Date.Format("2006-01-02"),
		StartTime:     domain.FormatClock(a.StartMinute),
		EndTime:       domain.FormatClock(a.EndMinute),
		Status:        string(a.Status),
		CustomerName:  a.CustomerName,
		CustomerEmail: a.CustomerEmail,
		CustomerPhone: a.CustomerPhone,
		CancelReason:  a.CancelReason,
		CreatedAt:     a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     a.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if a.StaffID != nil {
		resp.StaffID = a.StaffID.String()
	}
	if a.CancelledAt != nil {
		resp.CancelledAt = a.CancelledAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func idempotencyKey(r *http.Request) string {
	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		key = r.Header.Get("X-Idempotency-Key")
	}
	return strings.TrimSpace(key)
}

// optionalUUID parses a possibly-empty id; ok is false only on a malformed
// value.
func optionalUUID(raw string) (*uuid.UUID, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, false
	}
	return &id, true
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"bookly/internal/domain"
	"bookly/internal/service/booking"
	"bookly/internal/store"
)

// bookingService is the slice of the booking coordinator the transport needs.
type bookingService interface {
	AvailableSlots(ctx context.Context, in booking.SlotsInput) ([]domain.TimeSlot, error)
	CheckConflict(ctx context.Context, in booking.ConflictInput) (bool, error)
	Book(ctx context.Context, in booking.BookInput) (domain.Appointment, error)
	Reschedule(ctx context.Context, in booking.RescheduleInput) (domain.Appointment, error)
	Cancel(ctx context.Context, in booking.CancelInput) (domain.Appointment, error)
	Confirm(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
	GetAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
}

type pinger interface {
	PingContext(ctx context.Context) error
}

type BookingServer struct {
	svc      bookingService
	db       pinger
	log      *slog.Logger
	validate *validator.Validate
}

func NewBookingServer(svc bookingService, db pinger, log *slog.Logger) *BookingServer {
	if log == nil {
		log = slog.Default()
	}
	return &BookingServer{
		svc:      svc,
		db:       db,
		log:      log.With(slog.String("component", "http.bookings")),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *BookingServer) Router() *httprouter.Router {
	router := httprouter.New()

	router.GET("/v1/businesses/:business_id/slots", s.Slots)
	router.GET("/v1/businesses/:business_id/conflict", s.Conflict)
	router.POST("/v1/appointments", s.Book)
	router.GET("/v1/appointments/:appointment_id", s.Get)
	router.POST("/v1/appointments/:appointment_id/reschedule", s.Reschedule)
	router.POST("/v1/appointments/:appointment_id/cancel", s.Cancel)
	router.POST("/v1/appointments/:appointment_id/confirm", s.Confirm)

	router.GET("/health", s.Health)
	router.GET("/ready", s.Ready)

	return router
}

func (s *BookingServer) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *BookingServer) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		s.log.Error("readiness check failed", slog.Any("err", err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": "error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "database": "ok"})
}

// WithRequestTimeout bounds every request that does not already carry a
// deadline, so a booking attempt resolves or fails quickly instead of
// hanging on a store-level lock.
func WithRequestTimeout(next http.Handler, timeout time.Duration) http.Handler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Deadline(); ok {
			next.ServeHTTP(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps the booking error taxonomy onto HTTP statuses. A
// conflict and a store outage must never be conflated: the first tells the
// customer someone just took the slot, the second tells them to retry.
func (s *BookingServer) writeServiceError(w http.ResponseWriter, log *slog.Logger, err error) {
	var vErr *booking.ValidationError
	switch {
	case errors.As(err, &vErr):
		log.Warn("invalid request", slog.Any("err", err))
		writeError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, booking.ErrClosed):
		log.Info("request outside business hours")
		writeError(w, http.StatusUnprocessableEntity, "The business is closed at the requested time. Pick a different time.")
	case errors.Is(err, store.ErrConflict):
		log.Info("booking conflict")
		writeError(w, http.StatusConflict, "That time was just booked. Refresh availability and pick a different slot.")
	case errors.Is(err, store.ErrIdempotencyConflict):
		log.Info("idempotency key conflict")
		writeError(w, http.StatusConflict, "This request key was already used for a different booking.")
	case errors.Is(err, store.ErrNotFound):
		log.Info("appointment not found")
		writeError(w, http.StatusNotFound, "appointment not found")
	case errors.Is(err, store.ErrUnavailable):
		log.Error("store unavailable", slog.Any("err", err))
		writeError(w, http.StatusServiceUnavailable, "Temporarily unavailable. Please try again.")
	default:
		log.Error("request failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

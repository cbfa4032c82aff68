package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"bookly/internal/domain"
	"bookly/internal/service/booking"
	"bookly/internal/store"
)

var (
	testBusinessID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	testServiceID  = uuid.MustParse("00000000-0000-0000-0000-000000000002")
	testApptID     = uuid.MustParse("00000000-0000-0000-0000-000000000004")
)

type fakeBookingService struct {
	availableSlotsFn func(ctx context.Context, in booking.SlotsInput) ([]domain.TimeSlot, error)
	checkConflictFn  func(ctx context.Context, in booking.ConflictInput) (bool, error)
	bookFn           func(ctx context.Context, in booking.BookInput) (domain.Appointment, error)
	rescheduleFn     func(ctx context.Context, in booking.RescheduleInput) (domain.Appointment, error)
	cancelFn         func(ctx context.Context, in booking.CancelInput) (domain.Appointment, error)
	confirmFn        func(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
	getFn            func(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
}

func (f *fakeBookingService) AvailableSlots(ctx context.Context, in booking.SlotsInput) ([]domain.TimeSlot, error) {
	if f.availableSlotsFn == nil {
		panic("AvailableSlots not configured")
	}
	return f.availableSlotsFn(ctx, in)
}

func (f *fakeBookingService) CheckConflict(ctx context.Context, in booking.ConflictInput) (bool, error) {
	if f.checkConflictFn == nil {
		panic("CheckConflict not configured")
	}
	return f.checkConflictFn(ctx, in)
}

func (f *fakeBookingService) Book(ctx context.Context, in booking.BookInput) (domain.Appointment, error) {
	if f.bookFn == nil {
		panic("Book not configured")
	}
	return f.bookFn(ctx, in)
}

func (f *fakeBookingService) Reschedule(ctx context.Context, in booking.RescheduleInput) (domain.Appointment, error) {
	if f.rescheduleFn == nil {
		panic("Reschedule not configured")
	}
	return f.rescheduleFn(ctx, in)
}

func (f *fakeBookingService) Cancel(ctx context.Context, in booking.CancelInput) (domain.Appointment, error) {
	if f.cancelFn == nil {
		panic("Cancel not configured")
	}
	return f.cancelFn(ctx, in)
}

func (f *fakeBookingService) Confirm(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	if f.confirmFn == nil {
		panic("Confirm not configured")
	}
	return f.confirmFn(ctx, appointmentID)
}

func (f *fakeBookingService) GetAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	if f.getFn == nil {
		panic("GetAppointment not configured")
	}
	return f.getFn(ctx, appointmentID)
}

func newTestServer(svc bookingService) *httptest.Server {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httptest.NewServer(NewBookingServer(svc, nil, log).Router())
}

func sampleAppointment() domain.Appointment {
	return domain.Appointment{
		ID:           testApptID,
		BusinessID:   testBusinessID,
		ServiceID:    testServiceID,
		Date:         time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		StartMinute:  600,
		EndMinute:    660,
		Status:       domain.AppointmentStatusPending,
		CustomerName: "Ada",
		CreatedAt:    time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
	}
}

func validBookBody() string {
	return `{
		"business_id": "` + testBusinessID.String() + `",
		"service_id": "` + testServiceID.String() + `",
		"date": "2026-09-01",
		"start_time": "10:00",
		"customer": {"name": "Ada"}
	}`
}

func TestSlots_RendersClockTimes(t *testing.T) {
	svc := &fakeBookingService{
		availableSlotsFn: func(ctx context.Context, in booking.SlotsInput) ([]domain.TimeSlot, error) {
			require.Equal(t, testBusinessID, in.BusinessID)
			require.Equal(t, 60, in.DurationMinutes)
			return []domain.TimeSlot{
				{StartMinute: 540, Available: true},
				{StartMinute: 600, Available: false},
			}, nil
		},
	}
	srv := newTestServer(svc)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/businesses/" + testBusinessID.String() + "/slots?date=2026-09-01&duration_minutes=60")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body slotsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "2026-09-01", body.Date)
	require.Len(t, body.Slots, 2)
	require.Equal(t, slotItem{StartTime: "09:00", EndTime: "10:00", IsAvailable: true}, body.Slots[0])
	require.Equal(t, slotItem{StartTime: "10:00", EndTime: "11:00", IsAvailable: false}, body.Slots[1])
}

func TestSlots_RejectsBadQuery(t *testing.T) {
	srv := newTestServer(&fakeBookingService{})
	defer srv.Close()

	for _, url := range []string{
		"/v1/businesses/not-a-uuid/slots?date=2026-09-01&duration_minutes=60",
		"/v1/businesses/" + testBusinessID.String() + "/slots?date=september&duration_minutes=60",
		"/v1/businesses/" + testBusinessID.String() + "/slots?date=2026-09-01&duration_minutes=sixty",
	} {
		resp, err := http.Get(srv.URL + url)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, url)
	}
}

func TestConflict_ReportsOutcome(t *testing.T) {
	svc := &fakeBookingService{
		checkConflictFn: func(ctx context.Context, in booking.ConflictInput) (bool, error) {
			require.Equal(t, 600, in.StartMinute)
			require.Equal(t, 660, in.EndMinute)
			return true, nil
		},
	}
	srv := newTestServer(svc)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/businesses/" + testBusinessID.String() + "/conflict?date=2026-09-01&start_time=10:00&end_time=11:00")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body conflictResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.True(t, body.Conflict)
}

func TestBook_Created(t *testing.T) {
	var got booking.BookInput
	svc := &fakeBookingService{
		bookFn: func(ctx context.Context, in booking.BookInput) (domain.Appointment, error) {
			got = in
			return sampleAppointment(), nil
		},
	}
	srv := newTestServer(svc)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/appointments", strings.NewReader(validBookBody()))
	require.NoError(t, err)
	req.Header.Set("Idempotency-Key", "req-42")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.Equal(t, testBusinessID, got.BusinessID)
	require.Equal(t, testServiceID, got.ServiceID)
	require.Equal(t, 600, got.StartMinute)
	require.Equal(t, "Ada", got.Customer.Name)
	require.Equal(t, "req-42", got.IdempotencyKey)
	require.Nil(t, got.StaffID)

	var body appointmentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, testApptID.String(), body.ID)
	require.Equal(t, "2026-09-01", body.Date)
	require.Equal(t, "10:00", body.StartTime)
	require.Equal(t, "11:00", body.EndTime)
	require.Equal(t, "pending", body.Status)
	require.Empty(t, body.StaffID)
}

func TestBook_StatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &booking.ValidationError{}, http.StatusBadRequest},
		{"closed", booking.ErrClosed, http.StatusUnprocessableEntity},
		{"conflict", store.ErrConflict, http.StatusConflict},
		{"idempotency conflict", store.ErrIdempotencyConflict, http.StatusConflict},
		{"not found", store.ErrNotFound, http.StatusNotFound},
		{"unavailable", store.ErrUnavailable, http.StatusServiceUnavailable},
		{"unknown", context.Canceled, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeBookingService{
				bookFn: func(ctx context.Context, in booking.BookInput) (domain.Appointment, error) {
					return domain.Appointment{}, tc.err
				},
			}
			srv := newTestServer(svc)
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/v1/appointments", "application/json", strings.NewReader(validBookBody()))
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, tc.want, resp.StatusCode)

			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			require.Contains(t, body, "error")
		})
	}
}

func TestBook_RejectsMalformedBody(t *testing.T) {
	srv := newTestServer(&fakeBookingService{})
	defer srv.Close()

	for name, body := range map[string]string{
		"not json":       "{",
		"missing fields": `{"business_id": "` + testBusinessID.String() + `"}`,
		"bad date":       strings.Replace(validBookBody(), "2026-09-01", "tomorrow", 1),
		"bad start":      strings.Replace(validBookBody(), "10:00", "10am", 1),
	} {
		resp, err := http.Post(srv.URL+"/v1/appointments", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, name)
	}
}

func TestGet_NotFound(t *testing.T) {
	svc := &fakeBookingService{
		getFn: func(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
			return domain.Appointment{}, store.ErrNotFound
		},
	}
	srv := newTestServer(svc)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/appointments/" + testApptID.String())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReschedule_MovesAppointment(t *testing.T) {
	var got booking.RescheduleInput
	svc := &fakeBookingService{
		rescheduleFn: func(ctx context.Context, in booking.RescheduleInput) (domain.Appointment, error) {
			got = in
			moved := sampleAppointment()
			moved.StartMinute, moved.EndMinute = 840, 900
			return moved, nil
		},
	}
	srv := newTestServer(svc)
	defer srv.Close()

	resp, err := http.Post(
		srv.URL+"/v1/appointments/"+testApptID.String()+"/reschedule",
		"application/json",
		strings.NewReader(`{"date": "2026-09-01", "start_time": "14:00"}`),
	)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Equal(t, testApptID, got.AppointmentID)
	require.Equal(t, 840, got.NewStartMinute)

	var body appointmentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "14:00", body.StartTime)
	require.Equal(t, "15:00", body.EndTime)
}

func TestCancel_AcceptsEmptyBody(t *testing.T) {
	svc := &fakeBookingService{
		cancelFn: func(ctx context.Context, in booking.CancelInput) (domain.Appointment, error) {
			require.Equal(t, testApptID, in.AppointmentID)
			require.Empty(t, in.Reason)
			cancelled := sampleAppointment()
			cancelled.Status = domain.AppointmentStatusCancelled
			return cancelled, nil
		},
	}
	srv := newTestServer(svc)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/appointments/"+testApptID.String()+"/cancel", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body appointmentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "cancelled", body.Status)
}

func TestConfirm_ReturnsAppointment(t *testing.T) {
	svc := &fakeBookingService{
		confirmFn: func(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
			confirmed := sampleAppointment()
			confirmed.Status = domain.AppointmentStatusConfirmed
			return confirmed, nil
		},
	}
	srv := newTestServer(svc)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/appointments/"+testApptID.String()+"/confirm", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(&fakeBookingService{})
	defer srv.Close()

	for _, path := range []string{"/health", "/ready"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestWithRequestTimeout_AddsDeadline(t *testing.T) {
	var hadDeadline bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadDeadline = r.Context().Deadline()
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(WithRequestTimeout(inner, 5*time.Second))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.True(t, hadDeadline)
}

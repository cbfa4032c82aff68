package sweeper

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"bookly/internal/domain"
	"bookly/internal/store"
)

type fakeStore struct {
	expireFn func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (f *fakeStore) GetBusiness(context.Context, uuid.UUID) (domain.Business, error) {
	panic("not used")
}

func (f *fakeStore) GetService(context.Context, uuid.UUID, uuid.UUID) (domain.Service, error) {
	panic("not used")
}

func (f *fakeStore) GetStaff(context.Context, uuid.UUID, uuid.UUID) (domain.Staff, error) {
	panic("not used")
}

func (f *fakeStore) HoursForWeekday(context.Context, uuid.UUID, time.Weekday) (domain.BusinessHours, bool, error) {
	panic("not used")
}

func (f *fakeStore) ListDayAppointments(context.Context, uuid.UUID, time.Time, *uuid.UUID) ([]domain.Appointment, error) {
	panic("not used")
}

func (f *fakeStore) GetAppointment(context.Context, uuid.UUID) (domain.Appointment, error) {
	panic("not used")
}

func (f *fakeStore) InDayTransaction(context.Context, uuid.UUID, time.Time, func(context.Context, store.ScheduleTx) error) error {
	panic("not used")
}

func (f *fakeStore) ExpireStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	if f.expireFn == nil {
		panic("ExpireStalePending not configured")
	}
	return f.expireFn(ctx, cutoff)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweep_UsesTTLCutoff(t *testing.T) {
	var gotCutoff time.Time
	st := &fakeStore{
		expireFn: func(ctx context.Context, cutoff time.Time) (int64, error) {
			gotCutoff = cutoff
			return 2, nil
		},
	}

	ttl := 15 * time.Minute
	s := New(st, discardLogger(), ttl, time.Minute)

	before := time.Now().UTC().Add(-ttl)
	s.sweep()
	after := time.Now().UTC().Add(-ttl)

	if gotCutoff.Before(before) || gotCutoff.After(after) {
		t.Fatalf("cutoff = %v, want within [%v, %v]", gotCutoff, before, after)
	}
}

func TestStart_DisabledWithoutTTL(t *testing.T) {
	st := &fakeStore{
		expireFn: func(ctx context.Context, cutoff time.Time) (int64, error) {
			t.Fatal("sweep must not run when the TTL is zero")
			return 0, nil
		},
	}

	s := New(st, discardLogger(), 0, time.Millisecond)
	s.Start()
	defer s.Stop()

	if s.cron != nil {
		t.Fatalf("cron scheduler should not be created when disabled")
	}
	time.Sleep(10 * time.Millisecond)
}

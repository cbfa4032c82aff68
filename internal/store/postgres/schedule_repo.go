package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"bookly/internal/domain"
	"bookly/internal/store"
)

// overlapConstraint is the exclusion constraint backing the no-double-booking
// invariant. It only covers rows sharing a staff bucket; the advisory-lock
// transaction handles the cross-bucket policy.
const overlapConstraint = "appointments_no_overlap"

type ScheduleRepo struct {
	db *bun.DB
}

func NewScheduleRepo(db *bun.DB) *ScheduleRepo {
	return &ScheduleRepo{db: db}
}

type scheduleTx struct {
	tx bun.Tx
}

func (r *ScheduleRepo) GetBusiness(ctx context.Context, businessID uuid.UUID) (domain.Business, error) {
	var b domain.Business
	err := r.db.NewSelect().
		Model(&b).
		Where("id = ?", businessID).
		Scan(ctx)
	if err != nil {
		return domain.Business{}, mapError(err)
	}
	return b, nil
}

func (r *ScheduleRepo) GetService(ctx context.Context, businessID, serviceID uuid.UUID) (domain.Service, error) {
	var s domain.Service
	err := r.db.NewSelect().
		Model(&s).
		Where("id = ?", serviceID).
		Where("business_id = ?", businessID).
		Scan(ctx)
	if err != nil {
		return domain.Service{}, mapError(err)
	}
	return s, nil
}

func (r *ScheduleRepo) GetStaff(ctx context.Context, businessID, staffID uuid.UUID) (domain.Staff, error) {
	var s domain.Staff
	err := r.db.NewSelect().
		Model(&s).
		Where("id = ?", staffID).
		Where("business_id = ?", businessID).
		Scan(ctx)
	if err != nil {
		return domain.Staff{}, mapError(err)
	}
	return s, nil
}

func (r *ScheduleRepo) HoursForWeekday(ctx context.Context, businessID uuid.UUID, weekday time.Weekday) (domain.BusinessHours, bool, error) {
	var h domain.BusinessHours
	err := r.db.NewSelect().
		Model(&h).
		Where("business_id = ?", businessID).
		Where("weekday = ?", int(weekday)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BusinessHours{}, false, nil
		}
		return domain.BusinessHours{}, false, classifyInfra(err)
	}
	return h, true, nil
}

func (r *ScheduleRepo) ListDayAppointments(ctx context.Context, businessID uuid.UUID, date time.Time, staffID *uuid.UUID) ([]domain.Appointment, error) {
	rows, err := listDayAppointments(ctx, r.db, businessID, date, staffID)
	if err != nil {
		return nil, classifyInfra(err)
	}
	return rows, nil
}

func (r *ScheduleRepo) GetAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	var a domain.Appointment
	err := r.db.NewSelect().
		Model(&a).
		Where("id = ?", appointmentID).
		Scan(ctx)
	if err != nil {
		return domain.Appointment{}, mapError(err)
	}
	return a, nil
}

// InDayTransaction serializes writers per (business, date) with a transaction-
// scoped advisory lock, so unrelated businesses and days never contend. The
// lock covers the whole business-day because a business-wide booking conflicts
// with every staff member's appointments.
func (r *ScheduleRepo) InDayTransaction(ctx context.Context, businessID uuid.UUID, date time.Time, fn func(ctx context.Context, tx store.ScheduleTx) error) error {
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockBusinessDay(ctx, tx, businessID, date); err != nil {
			return classifyInfra(err)
		}
		return fn(ctx, scheduleTx{tx: tx})
	})
	return classifyInfra(err)
}

func (r *ScheduleRepo) ExpireStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC()
	res, err := r.db.NewUpdate().
		Model((*domain.Appointment)(nil)).
		Set("status = ?", domain.AppointmentStatusCancelled).
		Set("cancel_reason = ?", "pending hold expired").
		Set("cancelled_at = ?", now).
		Set("updated_at = ?", now).
		Where("status = ?", domain.AppointmentStatusPending).
		Where("created_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, classifyInfra(err)
	}
	return res.RowsAffected()
}

func lockBusinessDay(ctx context.Context, tx bun.Tx, businessID uuid.UUID, date time.Time) error {
	key := businessID.String() + ":" + date.Format("2006-01-02")
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", key).Exec(ctx)
	return err
}

func (r scheduleTx) ListDayAppointments(ctx context.Context, businessID uuid.UUID, date time.Time, staffID *uuid.UUID) ([]domain.Appointment, error) {
	return listDayAppointments(ctx, r.tx, businessID, date, staffID)
}

// CreateAppointment inserts under a savepoint: a constraint violation aborts
// only the savepoint, leaving the enclosing transaction usable for the
// idempotency lookup.
func (r scheduleTx) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	if _, err := r.tx.NewRaw("SAVEPOINT create_appointment").Exec(ctx); err != nil {
		return domain.Appointment{}, classifyInfra(err)
	}
	_, err := r.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		if _, rbErr := r.tx.NewRaw("ROLLBACK TO SAVEPOINT create_appointment").Exec(ctx); rbErr != nil {
			return domain.Appointment{}, classifyInfra(rbErr)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23P01" && pgErr.ConstraintName == overlapConstraint {
				return domain.Appointment{}, store.ErrConflict
			}
			if pgErr.Code == "23505" {
				return r.resolveIdempotentInsert(ctx, appt, m.ID, err)
			}
		}
		return domain.Appointment{}, classifyInfra(err)
	}
	if _, err := r.tx.NewRaw("RELEASE SAVEPOINT create_appointment").Exec(ctx); err != nil {
		return domain.Appointment{}, classifyInfra(err)
	}
	return m, nil
}

// resolveIdempotentInsert handles a duplicate primary key: an identical
// replayed request returns the committed row, anything else is a key reuse.
func (r scheduleTx) resolveIdempotentInsert(ctx context.Context, appt domain.Appointment, id uuid.UUID, insertErr error) (domain.Appointment, error) {
	var existing domain.Appointment
	err := r.tx.NewSelect().
		Model(&existing).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Appointment{}, classifyInfra(insertErr)
	}

	if existing.BusinessID != appt.BusinessID ||
		!uuidPtrEqual(existing.StaffID, appt.StaffID) ||
		existing.ServiceID != appt.ServiceID ||
		!existing.Date.Equal(appt.Date) ||
		existing.StartMinute != appt.StartMinute ||
		existing.EndMinute != appt.EndMinute {
		return domain.Appointment{}, store.ErrIdempotencyConflict
	}
	return existing, nil
}

func (r scheduleTx) GetAppointmentForUpdate(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	var a domain.Appointment
	err := r.tx.NewSelect().
		Model(&a).
		Where("id = ?", appointmentID).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		return domain.Appointment{}, mapError(err)
	}
	return a, nil
}

func (r scheduleTx) MoveAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	res, err := r.tx.NewUpdate().
		Model(&m).
		Column("date", "start_minute", "end_minute", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23P01" && pgErr.ConstraintName == overlapConstraint {
			return domain.Appointment{}, store.ErrConflict
		}
		return domain.Appointment{}, classifyInfra(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 0 {
		return domain.Appointment{}, store.ErrNotFound
	}
	return m, nil
}

func (r scheduleTx) UpdateAppointmentStatus(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	res, err := r.tx.NewUpdate().
		Model(&m).
		Column("status", "cancel_reason", "cancelled_at", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23P01" && pgErr.ConstraintName == overlapConstraint {
			return domain.Appointment{}, store.ErrConflict
		}
		return domain.Appointment{}, classifyInfra(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 0 {
		return domain.Appointment{}, store.ErrNotFound
	}
	return m, nil
}

func listDayAppointments(ctx context.Context, db bun.IDB, businessID uuid.UUID, date time.Time, staffID *uuid.UUID) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	q := db.NewSelect().
		Model(&rows).
		Where("business_id = ?", businessID).
		Where("date = ?", date.Format("2006-01-02")).
		Where("status IN (?)", bun.In(domain.BlockingStatuses)).
		OrderExpr("start_minute ASC")
	if staffID != nil {
		// Business-wide rows (staff_id IS NULL) reserve every staff member's
		// time, so a staff-scoped read must see them too.
		q = q.Where("(staff_id = ? OR staff_id IS NULL)", *staffID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

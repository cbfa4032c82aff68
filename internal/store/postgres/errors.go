package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"bookly/internal/store"
)

// mapError translates driver errors on single-row reads into store sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return classifyInfra(err)
}

// classifyInfra marks infrastructure failures (timeouts, lost connections,
// exhausted pools) as store.ErrUnavailable so callers can retry with backoff
// instead of misreading them as conflicts. Everything else passes through.
func classifyInfra(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrConflict) ||
		errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, store.ErrIdempotencyConflict) ||
		errors.Is(err, store.ErrUnavailable) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exceptions; class 53: insufficient resources;
		// class 57: operator intervention (shutdown, cancel).
		switch {
		case strings.HasPrefix(pgErr.Code, "08"),
			strings.HasPrefix(pgErr.Code, "53"),
			strings.HasPrefix(pgErr.Code, "57"):
			return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}
	}

	return err
}

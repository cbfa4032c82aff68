package store

import "errors"

var (
	// ErrConflict means the requested interval overlaps a blocking appointment
	// for the resource, detected either by the in-transaction check or by the
	// database's own exclusion constraint.
	ErrConflict = errors.New("conflict")

	ErrNotFound = errors.New("not found")

	ErrIdempotencyConflict = errors.New("idempotency key conflict")

	// ErrUnavailable means the store could not complete the unit of work for
	// infrastructure reasons. Retryable with backoff; never a conflict.
	ErrUnavailable = errors.New("store unavailable")
)

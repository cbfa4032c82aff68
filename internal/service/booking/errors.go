package booking

import "errors"

// ErrClosed means the requested time falls outside the business's operating
// hours or on a closed day. Not retryable with the same input.
var ErrClosed = errors.New("business is closed at the requested time")

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

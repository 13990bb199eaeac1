package errs

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the services. Handlers translate these to HTTP
// status codes; anything that doesn't match is reported as an internal failure
// with a generic message.
var (
	// ErrUnauthorized means the caller presented no credential or an invalid one.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound covers both a missing resource and a resource owned by another
	// user. The two causes are deliberately indistinguishable to the caller.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyCheckedIn is the domain conflict raised when a habit already has
	// a completed log for the current day.
	ErrAlreadyCheckedIn = errors.New("already checked in today")

	// ErrValidation marks malformed input, rejected before any store mutation.
	ErrValidation = errors.New("validation failed")
)

// Validation wraps ErrValidation with a human-readable reason.
func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

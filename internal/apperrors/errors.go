// Package apperrors defines the sentinel errors shared across the service.
// Repositories and services return these (wrapped with context via fmt.Errorf
// and %w); handlers match them with errors.Is to choose an HTTP status.
package apperrors

import "errors"

var (
	// ErrValidation marks malformed input: non-positive capacity or spots,
	// invalid phone format, missing required form fields. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrForbidden marks a ban match, a cross-school access attempt, or a
	// role mismatch. Never retried.
	ErrForbidden = errors.New("operation is forbidden")

	// ErrNotFound marks a missing event, table, or registration.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate marks a second non-cancelled registration for the same
	// normalized phone number within one event.
	ErrDuplicate = errors.New("already registered")

	// ErrRetryableConflict marks a serialization failure reported by the
	// transaction manager. The caller may retry with backoff; it is distinct
	// from a legitimate WAITLIST outcome, which is a result, not an error.
	ErrRetryableConflict = errors.New("transaction conflict, retry")

	// ErrAlreadyCancelled marks a cancellation attempt against a registration
	// that is already CANCELLED. CANCELLED is terminal.
	ErrAlreadyCancelled = errors.New("registration already cancelled")

	// ErrDeadlineExceeded marks a customer cancellation attempted closer to
	// the event start than the event's cancellation deadline allows.
	ErrDeadlineExceeded = errors.New("cancellation deadline passed")

	// ErrInvalidToken marks a capability token that failed verification.
	ErrInvalidToken = errors.New("invalid or expired token")
)

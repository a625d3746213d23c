package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repo and service functions when the requested
// (product, owner, key) triple does not exist in current state.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is the sentinel all input validation failures unwrap to.
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrUnauthorized is returned when an operation requires an authenticated
// identity and none is present. Handlers should map this to HTTP 401.
var ErrUnauthorized = errors.New("authentication required")

// ErrConflict is returned when a create loses the race against a concurrent
// create of the same triple (unique constraint violation), or when a
// defensive row-count check inside a write transaction fails.
var ErrConflict = errors.New("conflict")

// ErrInconsistent is returned when a mutation affected an impossible number
// of rows. It signals a provably inconsistent outcome and maps to HTTP 503;
// the surrounding transaction is always rolled back.
var ErrInconsistent = errors.New("inconsistent mutation outcome")

// FieldError is a validation failure tied to a single input field.
// It unwraps to ErrValidation so callers can branch on the class while
// the message stays actionable.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

// Is makes errors.Is(err, ErrValidation) true for every FieldError.
func (e *FieldError) Is(target error) bool {
	return target == ErrValidation
}

// VersionMismatchError reports an optimistic-concurrency loss.
// Expected is the version the client submitted; Actual is the version
// currently stored, so the client knows the next version to submit is
// Actual+1.
type VersionMismatchError struct {
	Expected int
	Actual   int
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("version mismatch: submitted version %d, current version is %d (next version must be %d)",
		e.Expected, e.Actual, e.Actual+1)
}

// OwnerMismatchError reports that an authenticated identity tried to touch a
// namespace it does not own. Per API convention this is a 422, not a 401 —
// the caller is authenticated, just aiming at the wrong owner.
type OwnerMismatchError struct {
	Owner    string
	Identity string
}

func (e *OwnerMismatchError) Error() string {
	return fmt.Sprintf("owner should be %q or '' for public, but %q is authenticated", e.Owner, e.Identity)
}

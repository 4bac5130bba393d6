// Package apperr defines the error kinds shared by every claimflow component.
//
// Domain packages declare their own sentinels with New so callers can match
// either the precise condition (claim.ErrNotFound) or its kind (apperr.ErrNotFound).
package apperr

import "errors"

var (
	// ErrValidation marks malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks an unknown identifier.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a duplicate request, an invalid transition or a repeated completion.
	ErrConflict = errors.New("conflict")
	// ErrPrecondition marks an operation attempted from the wrong claim state.
	ErrPrecondition = errors.New("precondition failed")
	// ErrUpstreamNotification marks a failed outward notification. Never fatal to local state.
	ErrUpstreamNotification = errors.New("upstream notification failed")
)

// Error carries a kind, a message and an optional cause.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

// Is reports a match against the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an error of the given kind.
func New(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap returns an error of the given kind wrapping err.
func Wrap(kind error, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Validation is shorthand for a validation error with the given message.
func Validation(msg string) *Error {
	return New(ErrValidation, msg)
}

// KindOf returns the kind of err, or nil when err carries none.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrPrecondition, ErrUpstreamNotification} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

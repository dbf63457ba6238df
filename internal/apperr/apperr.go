// Package apperr defines the application error taxonomy surfaced to clients.
// Every expected failure carries a kind so transports can map it to an ack
// or HTTP status without string matching.
package apperr

import "errors"

// Kind classifies an application error.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation means malformed or missing input.
	KindValidation
	// KindConflict means a state precondition was violated (poll already
	// running, poll ended, duplicate vote).
	KindConflict
	// KindNotFound means a referenced poll, option or student does not exist.
	KindNotFound
	// KindForbidden means a role-gated action was attempted by the wrong role.
	KindForbidden
)

// Error is an expected application failure with a client-safe message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Validation creates a KindValidation error.
func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }

// Conflict creates a KindConflict error.
func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

// NotFound creates a KindNotFound error.
func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

// Forbidden creates a KindForbidden error.
func Forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }

// KindOf returns the kind of err, or KindUnknown for unexpected errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// MessageOf returns a client-safe message for err. Unexpected errors get the
// fallback so internals never leak to clients.
func MessageOf(err error, fallback string) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return fallback
}

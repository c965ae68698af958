// Package roomerr defines the typed error kinds the core surfaces to
// the socket dispatcher (spec.md §7). The dispatcher maps a Kind to an
// outbound error{error, message} event and never forwards anything else.
package roomerr

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds spec.md §7 enumerates.
type Kind string

const (
	Validation        Kind = "ValidationError"
	NotFound          Kind = "NotFound"
	Forbidden         Kind = "Forbidden"
	Conflict          Kind = "Conflict"
	IllegalTransition Kind = "IllegalTransition"
	GraceExpired      Kind = "GraceExpired"
	CapacityExceeded  Kind = "CapacityExceeded"
)

// Error is a typed domain error. Message is safe to send to clients
// verbatim; it must never embed internal details (stack traces, SQL,
// file paths).
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is allows errors.Is(err, roomerr.NotFound) style matching against a
// bare Kind sentinel created via New(kind, "").
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind, keeping cause for internal
// logging via %v/errors.Unwrap without exposing it in Message.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf extracts the Kind from err, defaulting to "" if err is not (or
// does not wrap) a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MessageOf extracts the client-safe Message from err, defaulting to
// err.Error() if err is not (or does not wrap) a *Error. Callers that
// forward errors to a socket client must use this, not err.Error(),
// since Error() prefixes the Kind and may append an internal cause.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// Convenience sentinels for errors.Is comparisons against a known kind.
var (
	ErrNotFound          = New(NotFound, "")
	ErrForbidden         = New(Forbidden, "")
	ErrValidation        = New(Validation, "")
	ErrConflict          = New(Conflict, "")
	ErrIllegalTransition = New(IllegalTransition, "")
	ErrGraceExpired      = New(GraceExpired, "")
	ErrCapacityExceeded  = New(CapacityExceeded, "")
)

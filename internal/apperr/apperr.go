// Package apperr defines the error taxonomy shared by the store, queue,
// cron, admission, and HTTP layers. Callers use errors.Is/errors.As against
// the sentinel kinds below rather than matching on message text.
package apperr

import "errors"

// Kind classifies an error for HTTP status mapping and logging.
// KindBadInput and KindValidation both surface as client errors but map to
// different statuses (spec.md §6): KindValidation is for schema-shaped
// rejections a request never should have passed in the first place (an
// unknown HTTP method, a malformed URL scheme) and maps to 422, the same
// split the original FastAPI app drew between Pydantic's automatic 422 on
// bad enum/field values and its own explicit HTTPException(400) for a bad
// cron expression (KindBadInput, still 400).
type Kind int

const (
	KindUnknown Kind = iota
	KindBadInput
	KindValidation
	KindAuthRequired
	KindNotFound
	KindConflict
	KindTransport
	KindRegistry
	KindQueue
)

// Error wraps an underlying cause with a Kind and a user-facing message.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind around cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err, or KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err (or any error it wraps) has the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Convenience constructors matching spec.md §7's taxonomy.

func BadInput(message string) *Error { return New(KindBadInput, message) }

// Validation builds a schema/field-validation error (spec.md §6 "422 bad
// method/schema") — distinct from BadInput, which stays 400.
func Validation(message string) *Error { return New(KindValidation, message) }

func AuthRequired(message string) *Error { return New(KindAuthRequired, message) }

func NotFound(message string) *Error { return New(KindNotFound, message) }

func Conflict(message string) *Error { return New(KindConflict, message) }

func Transport(message string, cause error) *Error {
	return Wrap(KindTransport, message, cause)
}

func Registry(message string, cause error) *Error {
	return Wrap(KindRegistry, message, cause)
}

func Queue(message string, cause error) *Error {
	return Wrap(KindQueue, message, cause)
}

package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure into the gateway's error taxonomy. Handlers map
// a Kind to an HTTP status and a stable status discriminator.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindAuthentication
	KindGeofence
	KindDuplicate
	KindStateConflict
	KindRPC
)

// Error is a classified gateway error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error    { return New(KindValidation, message) }
func NotFound(message string) *Error      { return New(KindNotFound, message) }
func Unauthorized(message string) *Error  { return New(KindAuthentication, message) }
func Geofence(message string) *Error      { return New(KindGeofence, message) }
func Duplicate(message string) *Error     { return New(KindDuplicate, message) }
func StateConflict(message string) *Error { return New(KindStateConflict, message) }

// KindOf extracts the taxonomy kind from an error chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error to the response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindGeofence:
		return http.StatusForbidden
	case KindDuplicate, KindStateConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// StatusLabel returns the stable discriminator included in error envelopes.
func StatusLabel(err error) string {
	switch KindOf(err) {
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	case KindAuthentication:
		return "authentication_error"
	case KindGeofence:
		return "geofence_violation"
	case KindDuplicate:
		return "duplicate"
	case KindStateConflict:
		return "state_conflict"
	case KindRPC:
		return "rpc_error"
	default:
		return "internal_error"
	}
}

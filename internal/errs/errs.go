package errs

import (
	"errors"
	"net/http"
)

// Kind classifies an error for callers and for HTTP mapping.
type Kind int

const (
	Internal Kind = iota
	InvalidInput
	NotFound
	Unauthorized
	Forbidden
	InsufficientFunds
	InvalidState
	ExternalFailure
)

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

func (e *Error) Unwrap() error {
	return e.Err
}

func E(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or Internal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Code returns the stable machine-readable code for a kind, used in
// error response bodies.
func Code(kind Kind) string {
	switch kind {
	case InvalidInput:
		return "invalid_request"
	case NotFound:
		return "not_found"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case InsufficientFunds:
		return "insufficient_funds"
	case InvalidState:
		return "invalid_state"
	case ExternalFailure:
		return "external_failure"
	default:
		return "internal_error"
	}
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case InvalidInput:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case InsufficientFunds:
		return http.StatusBadRequest
	case InvalidState:
		return http.StatusConflict
	case ExternalFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Package ojerr defines the wire error taxonomy shared by every HTTP handler.
package ojerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is one of the seven wire-level error reasons.
type Code int

const (
	InvalidArgument Code = iota + 1
	InvalidState
	NotFound
	RateLimit
	External
	Internal
	Forbidden
)

func (c Code) String() string {
	switch c {
	case InvalidArgument:
		return "ERR_INVALID_ARGUMENT"
	case InvalidState:
		return "ERR_INVALID_STATE"
	case NotFound:
		return "ERR_NOT_FOUND"
	case RateLimit:
		return "ERR_RATE_LIMIT"
	case External:
		return "ERR_EXTERNAL"
	case Internal:
		return "ERR_INTERNAL"
	case Forbidden:
		return "ERR_FORBIDDEN"
	default:
		return "ERR_INTERNAL"
	}
}

// HTTPStatus maps a Code to the status written on the response.
func (c Code) HTTPStatus() int {
	switch c {
	case InvalidArgument, InvalidState, RateLimit:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Forbidden:
		return http.StatusForbidden
	case External, Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error is a typed sentinel carrying a wire Code, following the same
// wrap-once-unwrap-at-the-boundary idiom as the teacher's ErrSubmissionNotPending.
type Error struct {
	code    Code
	message string
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{code: code, message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Code() Code { return e.code }

// As extracts the Code and message from err if it (transitively) wraps an
// *Error, defaulting to ERR_INTERNAL for anything else.
func As(err error) (Code, string) {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.code, typed.message
	}
	return Internal, err.Error()
}

// Package apperr provides the error taxonomy shared by the REST API and
// the MCP gateway. Only the outermost HTTP/MCP boundary converts an
// *Error into a wire response; everything inside the service passes
// *Error values (or wraps them with errors.As-compatible chains).
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is one of the error kinds named in the error-handling design.
type Code string

const (
	BadInput            Code = "bad_input"
	Unauthenticated     Code = "unauthenticated"
	AccessDenied        Code = "access_denied"
	NotFound            Code = "not_found"
	ProviderUnavailable Code = "provider_unavailable"
	StoreUnavailable    Code = "store_unavailable"
	ProjectionFailed    Code = "projection_failed"
	Internal            Code = "internal"
)

// HTTPStatus maps a Code to the status code the REST boundary must use.
func (c Code) HTTPStatus() int {
	switch c {
	case BadInput:
		return http.StatusBadRequest
	case Unauthenticated:
		return http.StatusUnauthorized
	case AccessDenied:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case ProviderUnavailable, StoreUnavailable, ProjectionFailed, Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error is the carrier type every internal operation returns on failure.
type Error struct {
	Code    Code
	Message string
	Details interface{}
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a fresh *Error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a fresh *Error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Code and message to an underlying error.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// WithDetails attaches structured details (e.g. validation fields).
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// CodeOf extracts the Code of err if it is (or wraps) an *Error, else
// returns Internal.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return Internal
}

// Detail renders the human-readable message an HTTP/MCP boundary should
// surface to the caller, without leaking internal cause chains.
func Detail(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "internal error"
}

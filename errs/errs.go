// Package errs defines the error taxonomy used by rpapi. Every request failure is
// reduced to one of eight kinds, each with a fixed HTTP status code.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a classified request error. The package-level sentinels define the kinds;
// New and Wrap create instances of a kind.
type Error struct {
	Name       string // Kind name, e.g. "BadRequestError"
	StatusCode int    // HTTP status code of the kind
	Message    string // Client facing message
	Err        error  // Underlying cause, if any
}

var (
	ErrInternalServerError = &Error{Name: "InternalServerError", StatusCode: http.StatusInternalServerError}
	ErrNotImplemented      = &Error{Name: "NotImplementedError", StatusCode: http.StatusNotImplemented}
	ErrUnavailable         = &Error{Name: "UnavailableError", StatusCode: http.StatusServiceUnavailable}
	ErrBadRequest          = &Error{Name: "BadRequestError", StatusCode: http.StatusBadRequest}
	ErrUnauthorized        = &Error{Name: "UnauthorizedError", StatusCode: http.StatusUnauthorized}
	ErrForbidden           = &Error{Name: "ForbiddenError", StatusCode: http.StatusForbidden}
	ErrNotFound            = &Error{Name: "NotFoundError", StatusCode: http.StatusNotFound}
	ErrConflict            = &Error{Name: "ConflictError", StatusCode: http.StatusConflict}
)

// Kinds lists every sentinel in the taxonomy.
var Kinds = []*Error{
	ErrInternalServerError,
	ErrNotImplemented,
	ErrUnavailable,
	ErrBadRequest,
	ErrUnauthorized,
	ErrForbidden,
	ErrNotFound,
	ErrConflict,
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Name
	}
	return e.Name + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of e's kind, so that
// errors.Is(err, errs.ErrNotFound) matches any NotFound instance.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Name == e.Name && t.Message == "" && t.Err == nil
}

// New creates an instance of e's kind with a formatted message.
func (e *Error) New(format string, args ...any) *Error {
	return &Error{
		Name:       e.Name,
		StatusCode: e.StatusCode,
		Message:    fmt.Sprintf(format, args...),
	}
}

// Wrap creates an instance of e's kind caused by err. The message is err's text.
func (e *Error) Wrap(err error) *Error {
	if err == nil {
		return e.New("")
	}
	return &Error{
		Name:       e.Name,
		StatusCode: e.StatusCode,
		Message:    err.Error(),
		Err:        err,
	}
}

func BadRequest(format string, args ...any) *Error   { return ErrBadRequest.New(format, args...) }
func Unauthorized(format string, args ...any) *Error { return ErrUnauthorized.New(format, args...) }
func Forbidden(format string, args ...any) *Error    { return ErrForbidden.New(format, args...) }
func NotFound(format string, args ...any) *Error     { return ErrNotFound.New(format, args...) }
func Conflict(format string, args ...any) *Error     { return ErrConflict.New(format, args...) }
func NotImplemented(format string, args ...any) *Error {
	return ErrNotImplemented.New(format, args...)
}
func Unavailable(format string, args ...any) *Error { return ErrUnavailable.New(format, args...) }
func InternalServerError(format string, args ...any) *Error {
	return ErrInternalServerError.New(format, args...)
}

// From returns err as an *Error. Errors that carry no classification become
// InternalServerError. From(nil) is nil.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternalServerError.Wrap(err)
}

// StatusCode returns the HTTP status for err, 500 when it is unclassified.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return From(err).StatusCode
}

// RequiredError reports a missing construction parameter.
type RequiredError struct {
	Property string
}

func (e *RequiredError) Error() string {
	return e.Property + " is required."
}

// Required returns a RequiredError for property.
func Required(property string) error {
	return &RequiredError{Property: property}
}

// Package apperr carries client-facing errors with an HTTP status. The
// message is returned to the caller verbatim, so it must never include
// storage details.
package apperr

import (
	"errors"
	"net/http"
)

type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) HTTPStatus() int { return e.Status }

func New(status int, msg string) *Error {
	return &Error{Status: status, Message: msg}
}

func BadRequest(msg string) *Error      { return New(http.StatusBadRequest, msg) }
func Unauthorized(msg string) *Error    { return New(http.StatusUnauthorized, msg) }
func Forbidden(msg string) *Error       { return New(http.StatusForbidden, msg) }
func NotFound(msg string) *Error        { return New(http.StatusNotFound, msg) }
func Conflict(msg string) *Error        { return New(http.StatusConflict, msg) }
func TooManyRequests(msg string) *Error { return New(http.StatusTooManyRequests, msg) }

// StatusCoder is implemented by every error that knows its HTTP status.
type StatusCoder interface {
	error
	HTTPStatus() int
}

// Status reports the HTTP status carried by err, or 500 when err is not a
// client error.
func Status(err error) (int, bool) {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus(), true
	}
	return http.StatusInternalServerError, false
}

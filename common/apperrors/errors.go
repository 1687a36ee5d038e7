package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error the way callers need to react to it.
type Kind int

const (
	KindInvalidArgument Kind = iota + 1
	KindNotFound
	KindFailedPrecondition
	KindAlreadyExists
	KindPermissionDenied
	KindUnauthenticated
	KindSecurity
	KindInternal
)

// Error represents an application error with a machine-readable kind.
type Error struct {
	Kind    Kind   `json:"-"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status maps the error kind to an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindFailedPrecondition:
		return http.StatusPreconditionFailed
	case KindAlreadyExists:
		return http.StatusConflict
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func InvalidArgument(message string) *Error    { return New(KindInvalidArgument, message) }
func NotFound(message string) *Error           { return New(KindNotFound, message) }
func FailedPrecondition(message string) *Error { return New(KindFailedPrecondition, message) }
func AlreadyExists(message string) *Error      { return New(KindAlreadyExists, message) }
func PermissionDenied(message string) *Error   { return New(KindPermissionDenied, message) }
func Internal(message string, err error) *Error {
	return Wrap(KindInternal, message, err)
}

// Security marks an error as security-fatal (e.g. vendor attribution
// mismatch). These abort the surrounding transaction and are logged at
// elevated severity by the caller.
func Security(message string) *Error { return New(KindSecurity, message) }

// KindOf returns the kind of err if it is (or wraps) an *Error, KindInternal
// otherwise.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// From converts any error into an *Error, wrapping unknown errors as
// internal.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("internal error", err)
}

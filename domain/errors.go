package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so transports can pick a status code or decide
// to report the failure in-band.
type ErrorKind string

const (
	KindValidation      ErrorKind = "ValidationError"
	KindAccessDenied    ErrorKind = "AccessDenied"
	KindDisabled        ErrorKind = "Disabled"
	KindNotFound        ErrorKind = "NotFound"
	KindUnsupported     ErrorKind = "Unsupported"
	KindProvider        ErrorKind = "ProviderError"
	KindResourceLimit   ErrorKind = "ResourceLimit"
	KindExecutionFailed ErrorKind = "ExecutionFailed"
	KindInternal        ErrorKind = "InternalError"
)

// Error is the error type shared by every component of the core.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func ValidationError(format string, args ...any) *Error {
	return newError(KindValidation, nil, format, args...)
}

func AccessDenied(format string, args ...any) *Error {
	return newError(KindAccessDenied, nil, format, args...)
}

func Disabled(format string, args ...any) *Error {
	return newError(KindDisabled, nil, format, args...)
}

func NotFound(err error, format string, args ...any) *Error {
	return newError(KindNotFound, err, format, args...)
}

func Unsupported(format string, args ...any) *Error {
	return newError(KindUnsupported, nil, format, args...)
}

func ProviderError(err error, format string, args ...any) *Error {
	return newError(KindProvider, err, format, args...)
}

func ResourceLimit(format string, args ...any) *Error {
	return newError(KindResourceLimit, nil, format, args...)
}

func ExecutionFailed(err error, format string, args ...any) *Error {
	return newError(KindExecutionFailed, err, format, args...)
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

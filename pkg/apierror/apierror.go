// Package apierror defines the error taxonomy raised by the data-access
// layer: bad request, not found, and conflict. Storage errors that do not
// fit the taxonomy are always re-raised unchanged.
package apierror

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind int

const (
	KindBadRequest Kind = iota
	KindNotFound
	KindConflict
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad request"
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	}
	return "unknown"
}

// Error is a classified, user-visible error. Cause, when set, carries the
// original storage error as context.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// BadRequest returns a bad-request error.
func BadRequest(format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

// BadRequestWrap returns a bad-request error carrying cause.
func BadRequestWrap(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// NotFound returns a not-found error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// NotFoundWrap returns a not-found error carrying cause.
func NotFoundWrap(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Conflict returns a conflict error for a duplicate resource, carrying the
// storage error that reported the uniqueness violation.
func Conflict(model string, cause error) *Error {
	return &Error{
		Kind:    KindConflict,
		Message: fmt.Sprintf("Resource `%s` already exists.", model),
		Cause:   cause,
	}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsBadRequest reports whether err is a bad-request error.
func IsBadRequest(err error) bool { return IsKind(err, KindBadRequest) }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return IsKind(err, KindNotFound) }

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool { return IsKind(err, KindConflict) }

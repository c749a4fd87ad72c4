// Package apperr defines the recoverable error kinds surfaced by the domain
// services. Every kind maps to a 4xx response at the HTTP boundary; callers
// branch on the kind with Is/As rather than matching message text.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies a category of recoverable domain failure.
type Kind string

const (
	KindNotFound               Kind = "NOT_FOUND"
	KindInvalidActor           Kind = "INVALID_ACTOR"
	KindPermissionDenied       Kind = "PERMISSION_DENIED"
	KindInvalidStateTransition Kind = "INVALID_STATE_TRANSITION"
	KindBlocked                Kind = "BLOCKED"
	KindDuplicateRequest       Kind = "DUPLICATE_REQUEST"
	KindDuplicateBlock         Kind = "DUPLICATE_BLOCK"
	KindDuplicateReport        Kind = "DUPLICATE_REPORT"
	KindValidation             Kind = "VALIDATION_ERROR"
)

// Error is a domain failure with a machine-readable kind and a human message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New creates an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing entity.
func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

// InvalidActor reports a self-targeting operation.
func InvalidActor(format string, args ...interface{}) *Error {
	return New(KindInvalidActor, format, args...)
}

// PermissionDenied reports an actor that is not allowed to act on the entity.
func PermissionDenied(format string, args ...interface{}) *Error {
	return New(KindPermissionDenied, format, args...)
}

// InvalidStateTransition reports a state machine violation.
func InvalidStateTransition(format string, args ...interface{}) *Error {
	return New(KindInvalidStateTransition, format, args...)
}

// Blocked reports that a block relation gates the operation.
func Blocked(format string, args ...interface{}) *Error {
	return New(KindBlocked, format, args...)
}

// Validation reports a size or blank-content constraint violation.
func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, and ""
// otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

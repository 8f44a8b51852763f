// Package domain holds the error taxonomy and small shared value types used by
// every layer of the service.
package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain error. Kinds are strings so they serialize
// naturally into API responses and log fields.
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindNotFound         ErrorKind = "not_found"
	KindForbidden        ErrorKind = "forbidden"
	KindConflict         ErrorKind = "conflict"
	KindStoreUnavailable ErrorKind = "store_unavailable"
	KindInternal         ErrorKind = "internal"
)

// Error is the typed error every core operation returns.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error of the same kind, so errors.Is(err, &Error{Kind: KindConflict}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Retryable reports whether the caller may safely retry the same request.
func (e *Error) Retryable() bool {
	return e.Kind == KindStoreUnavailable
}

// NewValidationError reports malformed or missing input.
func NewValidationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// NewForbiddenError reports an authorization failure.
func NewForbiddenError(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

// NewConflictError reports an entity in a state incompatible with the request.
func NewConflictError(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// NewInvalidStateError reports a forbidden state transition. It is a conflict.
func NewInvalidStateError(from, to string) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf("cannot transition from %s to %s", from, to)}
}

// NewStoreUnavailableError wraps a persistence connectivity failure.
func NewStoreUnavailableError(cause error) *Error {
	return &Error{Kind: KindStoreUnavailable, Message: "record store unavailable", cause: cause}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msg, cause: cause}
}

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

func IsValidation(err error) bool       { return KindOf(err) == KindValidation }
func IsNotFound(err error) bool         { return KindOf(err) == KindNotFound }
func IsForbidden(err error) bool        { return KindOf(err) == KindForbidden }
func IsConflict(err error) bool         { return KindOf(err) == KindConflict }
func IsStoreUnavailable(err error) bool { return KindOf(err) == KindStoreUnavailable }

// AsDomainError converts any error into a *Error, wrapping untyped errors as internal.
func AsDomainError(err error) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return NewInternalError("unexpected error", err)
}

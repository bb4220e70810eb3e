// Package apperrors defines the error taxonomy shared by services and controllers.
package apperrors

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindDuplicate
	KindInvalidState
	KindForbidden
	KindNotFound
	KindCapacity
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDuplicate:
		return "duplicate"
	case KindInvalidState:
		return "invalid_state"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindCapacity:
		return "capacity_exceeded"
	}
	return "internal"
}

// Error is a domain error. Code narrows Kind to a specific condition.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Field   string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Is matches by Code when the target carries one, otherwise by Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" {
		return t.Code == e.Code
	}
	return t.Kind == e.Kind
}

// Kind-level sentinels, for errors.Is(err, ErrNotFound) style checks.
var (
	ErrValidation   = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrDuplicate    = &Error{Kind: KindDuplicate, Message: "already exists"}
	ErrInvalidState = &Error{Kind: KindInvalidState, Message: "operation not allowed in the current status"}
	ErrForbidden    = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrNotFound     = &Error{Kind: KindNotFound, Message: "not found"}
)

// Specific conditions.
var (
	ErrDuplicateRoute       = &Error{Kind: KindDuplicate, Code: "duplicate_route", Message: "a route with this name already exists"}
	ErrDuplicateApplication = &Error{Kind: KindDuplicate, Code: "duplicate_application", Message: "you already have an active or pending application for this route"}
	ErrDuplicateUsername    = &Error{Kind: KindDuplicate, Code: "duplicate_username", Message: "username already taken"}
	ErrEmptyMessage         = &Error{Kind: KindValidation, Code: "empty_message", Message: "Empty message", Field: "message"}
	ErrRouteInUse           = &Error{Kind: KindInvalidState, Code: "route_in_use", Message: "route has applications and cannot be deleted"}
	ErrCapacityExceeded     = &Error{Kind: KindCapacity, Code: "capacity_exceeded", Message: "no seats left on this route"}
	ErrInvalidAction        = &Error{Kind: KindValidation, Code: "invalid_action", Message: "action must be allocate or reject", Field: "action"}
	ErrInvalidCredentials   = &Error{Kind: KindForbidden, Code: "invalid_credentials", Message: "invalid username or password"}
)

// Validation builds a field level validation error.
func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Message: message, Field: field}
}

// NotFound builds a not-found error naming the missing entity.
func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found"}
}

// InvalidState builds an invalid-state error with a specific message.
func InvalidState(message string) *Error {
	return &Error{Kind: KindInvalidState, Message: message}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// FieldOf returns the offending field of a validation error, if any.
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}

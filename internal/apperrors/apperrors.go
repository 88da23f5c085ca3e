// Package apperrors defines the error taxonomy of the chat core. Handlers map
// kinds to HTTP statuses; internal storage errors are never exposed raw.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindNotFound       Kind = "NOT_FOUND"
	KindForbidden      Kind = "FORBIDDEN"
	KindInvalidType    Kind = "INVALID_TYPE"
	KindInvalidStatus  Kind = "INVALID_STATUS"
	KindAlreadyExists  Kind = "ALREADY_EXISTS"
	KindAlreadyMember  Kind = "ALREADY_MEMBER"
	KindNotAMember     Kind = "NOT_A_MEMBER"
	KindInvalidPayload Kind = "INVALID_PAYLOAD"
	KindInternal       Kind = "INTERNAL"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap keeps the cause for logs while the client sees only kind and message.
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Internal wraps an unexpected storage or infrastructure error.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }

// HTTPStatus maps a kind to the transport status the admin API responds with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidType, KindInvalidStatus, KindInvalidPayload:
		return http.StatusBadRequest
	case KindAlreadyExists, KindAlreadyMember, KindNotAMember:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

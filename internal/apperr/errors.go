// Package apperr is the error taxonomy shared by the services and the HTTP
// contract layer. Every Error carries a user-safe Message; Cause is for logs
// only and must never reach a response body.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation     Kind = "VALIDATION_FAILED"
	KindConflict       Kind = "CONFLICT"
	KindAuthentication Kind = "AUTHENTICATION_FAILED"
	KindNotFound       Kind = "NOT_FOUND"
	KindForbidden      Kind = "FORBIDDEN"
	KindRateLimited    Kind = "RATE_LIMITED"
	KindStore          Kind = "STORE_ERROR"
)

type Error struct {
	Kind    Kind
	Message string
	Status  int
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrConflict)
// works regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Cause == nil
}

// Kind-only sentinels for errors.Is.
var (
	ErrValidation     = &Error{Kind: KindValidation}
	ErrConflict       = &Error{Kind: KindConflict}
	ErrAuthentication = &Error{Kind: KindAuthentication}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrForbidden      = &Error{Kind: KindForbidden}
	ErrRateLimited    = &Error{Kind: KindRateLimited}
	ErrStore          = &Error{Kind: KindStore}
)

func Validation(message string, cause error) *Error {
	return &Error{Kind: KindValidation, Message: message, Status: http.StatusBadRequest, Cause: cause}
}

func Conflict(message string, cause error) *Error {
	return &Error{Kind: KindConflict, Message: message, Status: http.StatusBadRequest, Cause: cause}
}

func Authentication(message string, cause error) *Error {
	return &Error{Kind: KindAuthentication, Message: message, Status: http.StatusUnauthorized, Cause: cause}
}

func NotFound(message string, cause error) *Error {
	return &Error{Kind: KindNotFound, Message: message, Status: http.StatusNotFound, Cause: cause}
}

func Forbidden(message string, cause error) *Error {
	return &Error{Kind: KindForbidden, Message: message, Status: http.StatusForbidden, Cause: cause}
}

func RateLimited(message string, cause error) *Error {
	return &Error{Kind: KindRateLimited, Message: message, Status: http.StatusTooManyRequests, Cause: cause}
}

func Store(message string, cause error) *Error {
	return &Error{Kind: KindStore, Message: message, Status: http.StatusInternalServerError, Cause: cause}
}

// GenericStoreMessage is what callers see for any unexpected failure.
const GenericStoreMessage = "internal server error"

// From returns err as *Error, turning anything unclassified into a StoreError.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Store(GenericStoreMessage, err)
}

func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return From(err).Kind
}

func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return From(err).Status
}

package shopapi

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies backend call failures so callers can pick a recovery path.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindConflict      Kind = "conflict"
	KindUnavailable   Kind = "unavailable"
)

// ErrNoCredential is returned before any request is issued when the client
// has no usable bearer credential. It must never look like an empty result.
var ErrNoCredential = errors.New("no valid credential")

// Error is a failure reported by (or on the way to) the backend.
type Error struct {
	Kind    Kind
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return genericMessage(e.Kind)
}

// UserMessage prefers the backend-supplied text and falls back to a generic
// phrase for the error class.
func (e *Error) UserMessage() string {
	return e.Error()
}

func genericMessage(k Kind) string {
	switch k {
	case KindValidation:
		return "the request was rejected, please check your input"
	case KindAuthorization:
		return "your session is no longer valid"
	case KindConflict:
		return "that slot is no longer available"
	default:
		return "the service is temporarily unavailable, please try again"
	}
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuthorization
	case http.StatusConflict:
		return KindConflict
	default:
		return KindUnavailable
	}
}

func newError(status int, message string) *Error {
	return &Error{Kind: kindForStatus(status), Status: status, Message: message}
}

func errorKind(err error) (Kind, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind, true
	}
	return "", false
}

// IsValidation reports whether err is a client-input rejection.
func IsValidation(err error) bool {
	k, ok := errorKind(err)
	return ok && k == KindValidation
}

// IsConflict reports whether err means the resource was consumed by someone
// else between fetch and submit.
func IsConflict(err error) bool {
	k, ok := errorKind(err)
	return ok && k == KindConflict
}

// IsAuthorization reports whether err is fatal to the current session context.
func IsAuthorization(err error) bool {
	if errors.Is(err, ErrNoCredential) {
		return true
	}
	k, ok := errorKind(err)
	return ok && k == KindAuthorization
}

// UserMessage extracts a user-facing message from any backend call error.
func UserMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	if errors.Is(err, ErrNoCredential) {
		return genericMessage(KindAuthorization)
	}
	return genericMessage(KindUnavailable)
}

// wrapTransport keeps the low-level cause in the error chain while exposing
// only the generic per-class phrase to users.
func wrapTransport(op string, err error) error {
	return fmt.Errorf("%s: %v: %w", op, err, &Error{Kind: KindUnavailable})
}

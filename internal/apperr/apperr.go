// Package apperr holds the error taxonomy shared by services and controllers.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindNotFound
	KindConflict
	KindPaymentRequired
	KindUpstream
	KindPersistence
)

// Error carries a machine readable Code (used in redirects and JSON) and a
// Message that is safe to show to the client.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: msg}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Code: "unauthorized", Message: msg}
}

func NotFound(code, msg string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: msg}
}

func Conflict(code, msg string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: msg}
}

func PaymentRequired(msg string) *Error {
	return &Error{Kind: KindPaymentRequired, Code: "payment_required", Message: msg}
}

// Upstream wraps a GitHub/Vercel/Stripe failure. msg should already be safe
// to surface (usually the provider's own message).
func Upstream(code, msg string, err error) *Error {
	return &Error{Kind: KindUpstream, Code: code, Message: msg, Err: err}
}

func Persistence(msg string, err error) *Error {
	return &Error{Kind: KindPersistence, Code: "persistence_error", Message: msg, Err: err}
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error to the status code a JSON handler responds with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindPaymentRequired:
		return http.StatusPaymentRequired
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage hides persistence and unknown errors behind a generic text.
func PublicMessage(err error) string {
	e, ok := As(err)
	if !ok || e.Kind == KindPersistence || e.Kind == KindInternal {
		return "internal server error"
	}
	return e.Message
}

// CodeOf returns the error code, or fallback when err carries none.
func CodeOf(err error, fallback string) string {
	if e, ok := As(err); ok && e.Code != "" {
		return e.Code
	}
	return fallback
}

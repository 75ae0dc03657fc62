package httpx

import (
	"errors"
	"net/http"
)

// Sentinel error kinds selecting the response status.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error is a domain error of a given kind whose message is safe to return to
// the caller.
type Error struct {
	Kind    error
	Message string
}

// NewError builds an Error of kind with a client-facing message.
func NewError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// RespondError maps domain errors to HTTP responses. Internal errors never leak
// their text to the caller.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		Message(w, status, http.StatusText(status))
		return
	}
	message := http.StatusText(status)
	var public *Error
	if errors.As(err, &public) {
		message = public.Message
	}
	Message(w, status, message)
}

// StatusOf returns the status RespondError would use for err.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

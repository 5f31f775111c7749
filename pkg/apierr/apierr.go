package apierr

import (
	"errors"
	"fmt"
)

// Error is the typed service error surfaced by the orchestration layer. The
// Status mirrors the HTTP status the handler should answer with; Err keeps
// the underlying cause on the chain for logs without exposing it to clients.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, message string, err error) *Error {
	return &Error{Status: status, Message: message, Err: err}
}

func BadRequest(message string) *Error {
	return &Error{Status: 400, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Status: 401, Message: message}
}

func Timeout(message string, err error) *Error {
	return &Error{Status: 408, Message: message, Err: err}
}

func BadGateway(message string, err error) *Error {
	return &Error{Status: 502, Message: message, Err: err}
}

func Unavailable(message string, err error) *Error {
	return &Error{Status: 503, Message: message, Err: err}
}

func Internal(message string, err error) *Error {
	return &Error{Status: 500, Message: message, Err: err}
}

// StatusOf extracts the HTTP status from an error chain, defaulting to 500.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 500
}

// MessageOf extracts the client-safe message from an error chain.
func MessageOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	return "An unexpected internal server error occurred."
}

package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a provider call failure tied to one resource. Transient
// errors (rate limits, propagation delays, timeouts) are retried with
// bounded exponential backoff; permanent errors (permission, validation)
// are surfaced immediately with the provider's raw message.
type Error struct {
	Provider   string
	ResourceID string
	Op         string
	Message    string
	Transient  bool
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s %s: %s", e.Provider, e.Op, e.ResourceID, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransient reports whether the error chain contains a transient
// provider error.
func IsTransient(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Transient
}

// TransientStatus classifies an HTTP status code from a provider API.
// Rate limiting and server-side failures are worth retrying; client
// errors are not.
func TransientStatus(status int) bool {
	switch {
	case status == http.StatusTooManyRequests:
		return true
	case status == http.StatusConflict:
		// Providers report "operation in progress" as a conflict.
		return true
	case status >= 500:
		return true
	default:
		return false
	}
}

package daemon

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when the connect or request timeout expires,
	// including while waiting for a permit.
	ErrTimeout = errors.New("daemon call timed out")
	// ErrUnavailable is returned by failed health checks.
	ErrUnavailable = errors.New("daemon unavailable")
	// ErrSaturated is returned under SaturationReject when no permit is free.
	ErrSaturated = errors.New("daemon concurrency limit reached")
	// ErrTransport covers connection failures that are not timeouts.
	ErrTransport = errors.New("daemon transport error")
	// ErrMalformed is returned when a response body has an unexpected shape.
	ErrMalformed = errors.New("malformed daemon response")
)

// StatusError is a non-2xx daemon answer.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("daemon request failed (%d)", e.StatusCode)
	}
	return fmt.Sprintf("daemon request failed (%d): %s", e.StatusCode, e.Body)
}

package tts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is the stable, caller-facing error classification.
type ErrorCode int

const (
	CodeUnknown ErrorCode = iota
	CodeUnknownVoice
	CodeMaxLength
	CodeSpeakingRate
	CodeAuth
)

// Adapter and validation failures. Only ErrUnknownVoice has a dedicated
// code; the rest fold into CodeUnknown and differ in status and display.
var (
	ErrUnknownMode       = errors.New("unknown mode")
	ErrUnknownVoice      = errors.New("unknown voice")
	ErrInvalidQuery      = errors.New("invalid query")
	ErrUnavailable       = errors.New("backend unavailable")
	ErrSaturated         = errors.New("backend at capacity")
	ErrTimeout           = errors.New("backend timed out")
	ErrRateLimited       = errors.New("backend rate limited")
	ErrMalformedResponse = errors.New("malformed backend response")
)

// APIError is the only error shape returned to HTTP callers.
type APIError struct {
	Code    ErrorCode `json:"code"`
	Display string    `json:"display"`

	status int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("code %d: %s", e.Code, e.Display)
}

// Status is the HTTP status the error is served with. It is never 200.
func (e *APIError) Status() int {
	if e.status != 0 {
		return e.status
	}
	switch e.Code {
	case CodeUnknownVoice, CodeMaxLength, CodeSpeakingRate:
		return http.StatusBadRequest
	case CodeAuth:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// NewAPIError builds an APIError served with the code's default status.
func NewAPIError(code ErrorCode, format string, args ...any) *APIError {
	return &APIError{Code: code, Display: fmt.Sprintf(format, args...)}
}

// AuthError is returned by the auth gate.
func AuthError() *APIError {
	return &APIError{Code: CodeAuth, Display: "missing or invalid authorization header"}
}

// Normalize maps any failure onto the fixed taxonomy. A nil error yields nil.
func Normalize(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	display := err.Error()
	switch {
	case errors.Is(err, ErrUnknownVoice):
		return &APIError{Code: CodeUnknownVoice, Display: display}
	case errors.Is(err, ErrUnknownMode), errors.Is(err, ErrInvalidQuery):
		return &APIError{Code: CodeUnknown, Display: display, status: http.StatusBadRequest}
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return &APIError{Code: CodeUnknown, Display: display, status: http.StatusGatewayTimeout}
	case errors.Is(err, ErrUnavailable), errors.Is(err, ErrSaturated):
		return &APIError{Code: CodeUnknown, Display: display, status: http.StatusServiceUnavailable}
	case errors.Is(err, ErrRateLimited):
		return &APIError{Code: CodeUnknown, Display: display, status: http.StatusTooManyRequests}
	case errors.Is(err, ErrMalformedResponse):
		return &APIError{Code: CodeUnknown, Display: display, status: http.StatusBadGateway}
	default:
		return &APIError{Code: CodeUnknown, Display: display, status: http.StatusInternalServerError}
	}
}

// backendError tags an adapter failure with one of the sentinel kinds above
// while keeping the underlying cause for display.
type backendError struct {
	kind  error
	msg   string
	cause error
}

func (e *backendError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *backendError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

// Classify wraps cause so that errors.Is(err, kind) holds and the display
// reads "msg: cause".
func Classify(kind, cause error, format string, args ...any) error {
	return &backendError{kind: kind, msg: fmt.Sprintf(format, args...), cause: cause}
}

package transport

import (
	"errors"
	"fmt"
)

// ErrFreed is returned when an operation is attempted on a freed handle.
var ErrFreed = errors.New("transport: handle has been freed")

// ErrorCode classifies perform failures.
type ErrorCode string

const (
	// CodeConnection indicates a network or DNS failure.
	CodeConnection ErrorCode = "connection"

	// CodeTimeout indicates the configured request timeout elapsed.
	CodeTimeout ErrorCode = "timeout"

	// CodeTLS indicates certificate or handshake failure.
	CodeTLS ErrorCode = "tls"

	// CodeCancelled indicates the context was cancelled mid-request.
	CodeCancelled ErrorCode = "cancelled"

	// CodeInvalidRequest indicates the staged options could not be
	// assembled into a request (missing URL, bad verb, etc.).
	CodeInvalidRequest ErrorCode = "invalid_request"
)

// OptionError reports that the handle rejected a configuration value.
// Value holds the stringified rejected value for diagnostics.
type OptionError struct {
	Option Option
	Value  string
	Cause  error
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("transport: cannot set option %s to %q", e.Option, e.Value)
}

func (e *OptionError) Unwrap() error { return e.Cause }

// PerformError reports a request execution failure at the transport layer.
type PerformError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *PerformError) Error() string {
	return fmt.Sprintf("transport: %s error: %s", e.Code, e.Message)
}

func (e *PerformError) Unwrap() error { return e.Cause }

// IsCode reports whether err is a PerformError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var pe *PerformError
	return errors.As(err, &pe) && pe.Code == code
}

package core

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for comparison using errors.Is().
// These are generic errors that can be wrapped with additional context.
var (
	// Resilience errors
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")

	// Provider errors
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrAllProvidersFailed  = errors.New("all ai providers failed")

	// Collector errors (caller-usage errors, raised synchronously)
	ErrNoSources     = errors.New("no data sources requested")
	ErrUnknownSource = errors.New("unknown data source")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")

	// HTTP/Network errors
	ErrRequestFailed = errors.New("request failed")
	ErrTimeout       = errors.New("operation timeout")
)

// ServiceError provides structured error information with context.
// It implements the error interface and supports error wrapping.
type ServiceError struct {
	Op      string // Operation that failed (e.g., "collector.Collect")
	Kind    string // Error kind (e.g., "source", "provider", "config")
	Service string // Optional name of the external service involved
	Err     error  // Underlying error for wrapping
}

// Error returns the string representation of the error
func (e *ServiceError) Error() string {
	if e.Op != "" && e.Err != nil {
		if e.Service != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.Service, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

// Unwrap returns the underlying error for use with errors.Is/As
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError
func NewServiceError(op, kind string, err error) *ServiceError {
	return &ServiceError{Op: op, Kind: kind, Err: err}
}

// IsConfigurationError checks if an error is configuration-related
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrMissingConfiguration)
}

// IsCallerError checks if an error represents caller misuse rather than a
// runtime/network failure. These never count toward circuit breaker state.
func IsCallerError(err error) bool {
	return errors.Is(err, ErrNoSources) ||
		errors.Is(err, ErrUnknownSource) ||
		IsConfigurationError(err)
}

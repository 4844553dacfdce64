package errors

import (
	"errors"
	"fmt"
)

// Application-specific errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrVerificationFailed = errors.New("webhook verification failed")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// ConfigError reports a required configuration value that is absent.
// Always fatal, never retried.
type ConfigError struct {
	Name string
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("%s is not configured", e.Name)
}

// ProviderError wraps a billing provider failure. It propagates to the
// caller unchanged; no retry or circuit breaking happens on this side.
type ProviderError struct {
	Operation string
	Err       error
}

func (e ProviderError) Error() string {
	return fmt.Sprintf("polar %s failed: %v", e.Operation, e.Err)
}

func (e ProviderError) Unwrap() error {
	return e.Err
}

// DatabaseError represents a database-related error
type DatabaseError struct {
	Operation string
	Err       error
}

func (e DatabaseError) Error() string {
	return fmt.Sprintf("database error during %s: %v", e.Operation, e.Err)
}

func (e DatabaseError) Unwrap() error {
	return e.Err
}

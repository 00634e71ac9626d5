package domain

import (
	"errors"
	"fmt"
)

// Error types for consistent error handling across the BFA.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrHTTPStatus is a non-2xx answer from the analyzer backend. Detail holds
// the backend's {"detail": "..."} message when one was sent.
type ErrHTTPStatus struct {
	Service    string
	StatusCode int
	Detail     string
}

func (e *ErrHTTPStatus) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s returned %d: %s", e.Service, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s returned %d", e.Service, e.StatusCode)
}

// Retryable reports whether a retry could change the outcome.
func (e *ErrHTTPStatus) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrPaymentRequired is returned when unlocking a report needs credits the
// user does not have.
type ErrPaymentRequired struct {
	Message string
}

func (e *ErrPaymentRequired) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "payment required"
}

// StatusCodeOf returns the backend HTTP status carried by err, or 0.
func StatusCodeOf(err error) int {
	var statusErr *ErrHTTPStatus
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// DetailOf returns the backend's error detail carried by err, or "".
func DetailOf(err error) string {
	var statusErr *ErrHTTPStatus
	if errors.As(err, &statusErr) {
		return statusErr.Detail
	}
	return ""
}

package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// StatusError is a non-2xx response from the API.
type StatusError struct {
	URL        string
	StatusCode int
	ErrorClass ErrorClass
	Message    string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error (status %d) for %s: %s",
		e.ErrorClass, e.StatusCode, e.URL, e.Message)
}

// FetchExhaustedError is returned once a transient failure persisted for
// every allowed attempt. It carries the last underlying error.
type FetchExhaustedError struct {
	URL      string
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *FetchExhaustedError) Error() string {
	return fmt.Sprintf("fetch %s: %v after %d attempts: %v", e.URL, ErrRetryExhausted, e.Attempts, e.Err)
}

// Unwrap exposes both ErrRetryExhausted and the last underlying error.
func (e *FetchExhaustedError) Unwrap() []error {
	return []error{ErrRetryExhausted, e.Err}
}

// ValidationError is returned when a response body does not match the
// expected record schema. It is never retried.
type ValidationError struct {
	URL     string
	Kind    string
	Payload []byte
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validate %s payload from %s: %v", e.Kind, e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx other than 429 will not change on retry
		return false
	case ErrorClassServer:
		return true
	case ErrorClassRateLimit:
		return true
	case ErrorClassNetwork:
		return true
	default:
		return false
	}
}

// ABOUTME: Error taxonomy for generative service calls
// ABOUTME: Separates retryable transient failures from fatal ones and marks exhausted retries
package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrRetriesExhausted matches any error returned after the last transient attempt failed
var ErrRetriesExhausted = errors.New("retries exhausted")

// TransientError represents a temporary error that may succeed on retry
type TransientError struct {
	err error
}

func (e *TransientError) Error() string {
	return e.err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.err
}

// NewTransientError wraps an error as transient (retryable)
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// FatalError represents a permanent error that should not be retried
type FatalError struct {
	err error
}

func (e *FatalError) Error() string {
	return e.err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.err
}

// NewFatalError wraps an error as fatal (non-retryable)
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// IsTransient returns true if the error is transient and should be retried
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsFatal returns true if the error is fatal and should not be retried
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// HTTPStatusError is a non-success response from the service
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("generative service returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("generative service returned HTTP %d: %s", e.StatusCode, e.Body)
}

// ExhaustedError is returned once every allowed attempt failed transiently
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrRetriesExhausted, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Is makes errors.Is(err, ErrRetriesExhausted) hold
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrRetriesExhausted
}

// classifyStatus wraps a non-2xx response; only gateway-class statuses are retried
func classifyStatus(status int, body string) error {
	err := &HTTPStatusError{StatusCode: status, Body: body}
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return NewTransientError(err)
	default:
		return NewFatalError(err)
	}
}

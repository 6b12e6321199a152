// Package errors provides standardized error handling for the alert pipeline.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Request/validation errors, surfaced to callers as 4xx.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Store errors, surfaced as 500.
	ErrCodePersistenceFailed ErrorCode = "PERSISTENCE_FAILED"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"

	// Delivery errors. All of these are swallowed by the orchestrator and
	// reflected only in the stored record's notified flag, never in the
	// webhook response.
	ErrCodeCredentialError ErrorCode = "CREDENTIAL_ERROR"
	ErrCodeDeliveryFailed  ErrorCode = "DELIVERY_FAILED"
	ErrCodeNoRecipients    ErrorCode = "NO_RECIPIENTS"
	ErrCodeTransportError  ErrorCode = "TRANSPORT_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// New creates a StandardError with the given code and message.
func New(code ErrorCode, message string) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// Wrap creates a StandardError carrying the underlying error as details.
func Wrap(code ErrorCode, message string, err error) *StandardError {
	se := New(code, message)
	if err != nil {
		se.Details = err.Error()
	}
	return se
}

// NewValidationError creates a non-retryable validation error.
func NewValidationError(message string) *StandardError {
	return New(ErrCodeValidationFailed, message)
}

// NewPersistenceError creates a retryable store error.
func NewPersistenceError(message string, err error) *StandardError {
	se := Wrap(ErrCodePersistenceFailed, message, err)
	se.Retryable = true
	return se
}

// NewNotFoundError reports a missing record.
func NewNotFoundError(message string) *StandardError {
	return New(ErrCodeNotFound, message)
}

// NewCredentialError reports a failed access-token fetch.
func NewCredentialError(message string, err error) *StandardError {
	se := Wrap(ErrCodeCredentialError, message, err)
	se.Retryable = true
	return se
}

// NewDeliveryFailedError reports a provider-side send rejection.
func NewDeliveryFailedError(message string) *StandardError {
	return New(ErrCodeDeliveryFailed, message)
}

// NewNoRecipientsError reports an empty recipient list. Non-fatal by policy.
func NewNoRecipientsError(message string) *StandardError {
	return New(ErrCodeNoRecipients, message)
}

// NewTransportError reports a network failure calling the provider.
func NewTransportError(message string, err error) *StandardError {
	se := Wrap(ErrCodeTransportError, message, err)
	se.Retryable = true
	return se
}

// CodeOf extracts the ErrorCode from err, or empty when err is not a
// StandardError.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// Is reports whether err is a StandardError with the given code.
func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

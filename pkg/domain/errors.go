package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error with a code and message
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Error codes
const (
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeSignatureMismatch  = "SIGNATURE_MISMATCH"
	ErrCodeAlreadyProcessed   = "ALREADY_PROCESSED"
	ErrCodeGatewayUnavailable = "GATEWAY_UNAVAILABLE"
	ErrCodeLimitExceeded      = "LIMIT_EXCEEDED"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeConflict           = "CONFLICT"
)

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string) error {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewValidationError creates a new validation error
func NewValidationError(msg string) error {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: msg,
	}
}

// NewSignatureMismatchError creates a payment signature mismatch error.
// The message is deliberately generic so callers leak nothing about why
// verification failed.
func NewSignatureMismatchError() error {
	return &DomainError{
		Code:    ErrCodeSignatureMismatch,
		Message: "payment verification failed",
	}
}

// NewAlreadyProcessedError marks an order that reached a terminal state with
// a different payment id than the one supplied.
func NewAlreadyProcessedError(orderID string) error {
	return &DomainError{
		Code:    ErrCodeAlreadyProcessed,
		Message: fmt.Sprintf("order %s has already been processed", orderID),
	}
}

// NewGatewayUnavailableError wraps a transient gateway failure
func NewGatewayUnavailableError(err error) error {
	return &DomainError{
		Code:    ErrCodeGatewayUnavailable,
		Message: "payment gateway is unavailable, please retry",
		Err:     err,
	}
}

// NewLimitExceededError creates a plan limit denial with a human-readable reason
func NewLimitExceededError(reason string) error {
	return &DomainError{
		Code:    ErrCodeLimitExceeded,
		Message: reason,
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError() error {
	return &DomainError{
		Code:    ErrCodeUnauthorized,
		Message: "Authentication required",
	}
}

// NewForbiddenError creates a new forbidden error
func NewForbiddenError(msg string) error {
	return &DomainError{
		Code:    ErrCodeForbidden,
		Message: msg,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(err error) error {
	return &DomainError{
		Code:    ErrCodeInternal,
		Message: "An internal error occurred",
		Err:     err,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(msg string) error {
	return &DomainError{
		Code:    ErrCodeConflict,
		Message: msg,
	}
}

func hasCode(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsValidation checks if the error is a validation error
func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

// IsSignatureMismatch checks if the error is a signature mismatch
func IsSignatureMismatch(err error) bool {
	return hasCode(err, ErrCodeSignatureMismatch)
}

// IsAlreadyProcessed checks if the error is an already-processed conflict
func IsAlreadyProcessed(err error) bool {
	return hasCode(err, ErrCodeAlreadyProcessed)
}

// IsGatewayUnavailable checks if the error is a transient gateway failure
func IsGatewayUnavailable(err error) bool {
	return hasCode(err, ErrCodeGatewayUnavailable)
}

// IsLimitExceeded checks if the error is a plan limit denial
func IsLimitExceeded(err error) bool {
	return hasCode(err, ErrCodeLimitExceeded)
}

// IsUnauthorized checks if the error is an unauthorized error
func IsUnauthorized(err error) bool {
	return hasCode(err, ErrCodeUnauthorized)
}

// IsForbidden checks if the error is a forbidden error
func IsForbidden(err error) bool {
	return hasCode(err, ErrCodeForbidden)
}

// GetErrorCode extracts the error code from a domain error
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeInternal
}

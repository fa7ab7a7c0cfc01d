package errors

import (
	"errors"
	"fmt"
)

var (
	// Queue errors
	ErrItemNotFound           = errors.New("queue item not found")
	ErrDuplicateItem          = errors.New("duplicate pending item")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInvalidMessageType     = errors.New("invalid message type")

	// Block list errors
	ErrBlockedEntryNotFound = errors.New("blocked entry not found")
	ErrInstallmentRequired  = errors.New("installment id required for installment block")

	// Configuration errors
	ErrConfigNotFound  = errors.New("message configuration not found")
	ErrMappingNotFound = errors.New("field mapping not found")

	// Row source errors
	ErrSourceUnavailable = errors.New("accounts receivable source unavailable")
	ErrEmptyQuery        = errors.New("empty source query")

	// Transport errors
	ErrTransportUnavailable  = errors.New("message transport unavailable")
	ErrTransportRejected     = errors.New("message rejected by transport")
	ErrTransportUnconfigured = errors.New("message transport not configured")
	ErrMissingPhone          = errors.New("phone number not available")

	// Lock errors
	ErrLockAcquisitionFailed = errors.New("failed to acquire lock")
	ErrLockNotHeld           = errors.New("lock not held")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

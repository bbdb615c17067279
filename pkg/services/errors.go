// Package services holds the execution ingest and query service.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/flytestate/pkg/models"
	"github.com/dukex/flytestate/pkg/persistence"
)

// Client errors (4xx responses).
var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInvalidSort         = errors.New("invalid sort")
	ErrInconsistentClosure = errors.New("inconsistent closure")

	ErrExecutionNotFound     = persistence.ErrExecutionNotFound
	ErrTaskExecutionNotFound = persistence.ErrTaskExecutionNotFound
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError reports errors that should map to HTTP 400, including
// undecodable payloads.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidSort) ||
		models.IsMalformedMessage(err)
}

// IsConsistencyError reports a snapshot rejected by the closure check (HTTP 422).
func IsConsistencyError(err error) bool {
	return errors.Is(err, ErrInconsistentClosure)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound) || errors.Is(err, ErrTaskExecutionNotFound)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsTaskExecutionNotFound(err error) bool {
	return errors.Is(err, ErrTaskExecutionNotFound)
}

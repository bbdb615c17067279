// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrExecutionNotFound indicates no execution snapshot exists for the identifier.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrTaskExecutionNotFound indicates no task execution snapshot exists for the identifier.
	ErrTaskExecutionNotFound = errors.New("task execution not found")

	// ErrInvalidSortKey indicates a list was requested with a sort key that has no column.
	ErrInvalidSortKey = errors.New("invalid sort key")
)

// RecordError wraps a failed operation on a stored snapshot.
type RecordError struct {
	Op  string // Operation being performed (e.g., "SaveExecution", "ExecutionByID")
	ID  string // Record identifier, "project/domain/name" for executions
	Err error  // Underlying error
}

func (e *RecordError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s operation failed: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("%s operation failed for %s: %v", e.Op, e.ID, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for record errors.
func (e *RecordError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewRecordError creates a new record error with context.
func NewRecordError(op, id string, err error) *RecordError {
	return &RecordError{Op: op, ID: id, Err: err}
}

// IsExecutionNotFound checks if an error indicates an execution was not found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsTaskExecutionNotFound checks if an error indicates a task execution was not found.
func IsTaskExecutionNotFound(err error) bool {
	return errors.Is(err, ErrTaskExecutionNotFound)
}

func IsInvalidSortKey(err error) bool {
	return errors.Is(err, ErrInvalidSortKey)
}

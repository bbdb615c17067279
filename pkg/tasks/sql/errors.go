package sql

import (
	"errors"
	"fmt"
)

var (
	ErrSecretResolution   = errors.New("secret resolution failed")
	ErrQueryInterpolation = errors.New("query interpolation failed")
	ErrQueryExecution     = errors.New("query execution failed")

	ErrInvalidConfig     = errors.New("invalid sqlalchemy config")
	ErrUnsupportedDriver = errors.New("unsupported database uri scheme")
	ErrWrongTaskType     = errors.New("task type is not sqlalchemy")
)

// SecretResolutionError reports a secret connect arg the store could not
// resolve. The task attempt fails without retry.
type SecretResolutionError struct {
	Arg   string
	Group string
	Key   string
	Err   error
}

func (e *SecretResolutionError) Error() string {
	return fmt.Sprintf("resolve secret %s/%s for connect arg %q: %v", e.Group, e.Key, e.Arg, e.Err)
}

func (e *SecretResolutionError) Unwrap() error {
	return e.Err
}

func (e *SecretResolutionError) Is(target error) bool {
	return target == ErrSecretResolution
}

// QueryInterpolationError reports a query template that does not match the
// task inputs.
type QueryInterpolationError struct {
	Template string
	Err      error
}

func (e *QueryInterpolationError) Error() string {
	return fmt.Sprintf("interpolate query: %v", e.Err)
}

func (e *QueryInterpolationError) Unwrap() error {
	return e.Err
}

func (e *QueryInterpolationError) Is(target error) bool {
	return target == ErrQueryInterpolation
}

type QueryExecutionError struct {
	Query string
	Err   error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("execute query: %v", e.Err)
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}

func (e *QueryExecutionError) Is(target error) bool {
	return target == ErrQueryExecution
}

func IsSecretResolution(err error) bool {
	return errors.Is(err, ErrSecretResolution)
}

func IsQueryInterpolation(err error) bool {
	return errors.Is(err, ErrQueryInterpolation)
}

func IsQueryExecution(err error) bool {
	return errors.Is(err, ErrQueryExecution)
}

package models

import (
	"fmt"
	"time"

	"github.com/dukex/flytestate/internal/wire"
)

// ExecutionClosure is the observed state of a workflow execution. At most one
// of Outputs, Error and AbortCause is set.
type ExecutionClosure struct {
	Phase      WorkflowExecutionPhase `json:"phase"`
	StartedAt  time.Time              `json:"started_at,omitzero"`
	Duration   time.Duration          `json:"duration"`
	CreatedAt  time.Time              `json:"created_at,omitzero"`
	UpdatedAt  time.Time              `json:"updated_at,omitzero"`
	Error      *ExecutionError        `json:"error,omitempty"`
	Outputs    *LiteralMapBlob        `json:"outputs,omitempty"`
	AbortCause *string                `json:"abort_cause,omitempty"`
}

func NewExecutionClosure(phase WorkflowExecutionPhase, startedAt time.Time) ExecutionClosure {
	return ExecutionClosure{Phase: phase, StartedAt: utc(startedAt)}
}

func (c ExecutionClosure) WithError(err ExecutionError) ExecutionClosure {
	c.Error = &err

	return c
}

func (c ExecutionClosure) WithOutputs(outputs LiteralMapBlob) ExecutionClosure {
	c.Outputs = &outputs

	return c
}

// WithAbortCause sets the abort cause member of the output result, which may
// be empty.
func (c ExecutionClosure) WithAbortCause(cause string) ExecutionClosure {
	c.AbortCause = &cause

	return c
}

func (c ExecutionClosure) WithTimes(createdAt, updatedAt time.Time) ExecutionClosure {
	c.CreatedAt = utc(createdAt)
	c.UpdatedAt = utc(updatedAt)

	return c
}

func (c ExecutionClosure) results() int {
	n := 0

	if c.Outputs != nil {
		n++
	}

	if c.Error != nil {
		n++
	}

	if c.AbortCause != nil {
		n++
	}

	return n
}

// CheckConsistency reports a phase whose payload is missing or unexpected.
// Records are stored as received; ingest decides whether to enforce this.
func (c ExecutionClosure) CheckConsistency() error {
	var err error

	switch c.Phase {
	case WorkflowPhaseFailed, WorkflowPhaseTimedOut:
		if c.Error == nil {
			err = ErrMissingError
		}
	case WorkflowPhaseAborted:
		if c.Error == nil && c.AbortCause == nil {
			err = ErrMissingError
		}
	case WorkflowPhaseSucceeded:
		if c.Outputs == nil {
			err = ErrMissingOutputs
		}
	}

	if err == nil {
		switch {
		case c.Error != nil && !c.Phase.IsFailure() && c.Phase != WorkflowPhaseFailing:
			err = ErrUnexpectedPayload
		case c.Outputs != nil && !c.Phase.IsSuccess() && c.Phase != WorkflowPhaseSucceeding:
			err = ErrUnexpectedPayload
		}
	}

	if err != nil {
		return &ConsistencyError{Record: "ExecutionClosure", Phase: c.Phase.String(), Err: err}
	}

	return nil
}

func (c ExecutionClosure) MarshalBinary() ([]byte, error) {
	if c.results() > 1 {
		return nil, fmt.Errorf("execution closure: output_result: %w", ErrOneof)
	}

	if !c.Phase.IsValid() {
		return nil, fmt.Errorf("execution closure: invalid phase %d", int32(c.Phase))
	}

	if c.Duration < 0 {
		return nil, fmt.Errorf("execution closure: negative duration %s", c.Duration)
	}

	var e wire.Encoder

	if c.Outputs != nil {
		if err := embed(&e, 1, *c.Outputs); err != nil {
			return nil, err
		}
	}

	if c.Error != nil {
		if err := embed(&e, 2, *c.Error); err != nil {
			return nil, err
		}
	}

	e.Enum(4, int32(c.Phase))

	if err := e.Timestamp(5, c.StartedAt); err != nil {
		return nil, err
	}

	if err := e.Duration(6, c.Duration); err != nil {
		return nil, err
	}

	if err := e.Timestamp(7, c.CreatedAt); err != nil {
		return nil, err
	}

	if err := e.Timestamp(8, c.UpdatedAt); err != nil {
		return nil, err
	}

	if c.AbortCause != nil {
		e.ForceString(10, *c.AbortCause)
	}

	return e.Bytes(), nil
}

func (c *ExecutionClosure) UnmarshalBinary(data []byte) error {
	var out ExecutionClosure

	err := decode("ExecutionClosure", data, func(f wire.Field) error {
		var err error

		switch f.Num {
		case 1:
			out.Outputs = &LiteralMapBlob{}
			err = at("outputs", sub(f, out.Outputs))
		case 2:
			out.Error = &ExecutionError{}
			err = at("error", sub(f, out.Error))
		case 4:
			out.Phase, err = asEnum[WorkflowExecutionPhase](f, workflowPhaseNames)
			err = at("phase", err)
		case 5:
			out.StartedAt, err = f.AsTimestamp()
			err = at("started_at", err)
		case 6:
			out.Duration, err = nonNegative(f)
			err = at("duration", err)
		case 7:
			out.CreatedAt, err = f.AsTimestamp()
			err = at("created_at", err)
		case 8:
			out.UpdatedAt, err = f.AsTimestamp()
			err = at("updated_at", err)
		case 10:
			var cause string
			cause, err = f.AsString()
			out.AbortCause = &cause
			err = at("abort_cause", err)
		}

		return err
	})
	if err != nil {
		return err
	}

	if out.results() > 1 {
		return malformed("ExecutionClosure", "output_result", ErrOneof)
	}

	*c = out

	return nil
}

// nonNegative reads an elapsed-time Duration field.
func nonNegative(f wire.Field) (time.Duration, error) {
	d, err := f.AsDuration()
	if err != nil {
		return 0, err
	}

	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", d)
	}

	return d, nil
}

// utc normalizes t to UTC, keeping the zero time as "absent". A wire
// timestamp of exactly 0001-01-01T00:00:00Z is indistinguishable from the
// zero time, so it decodes as absent and is not re-emitted.
func utc(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}

	return t.UTC()
}

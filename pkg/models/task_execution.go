package models

import (
	"fmt"
	"time"

	"github.com/dukex/flytestate/internal/wire"
)

// TaskExecutionClosure is the observed outcome of one task attempt.
// OutputURI and Error are mutually exclusive.
type TaskExecutionClosure struct {
	Phase     TaskExecutionPhase `json:"phase"`
	Logs      []TaskLog          `json:"logs"`
	StartedAt time.Time          `json:"started_at,omitzero"`
	Duration  time.Duration      `json:"duration"`
	CreatedAt time.Time          `json:"created_at,omitzero"`
	UpdatedAt time.Time          `json:"updated_at,omitzero"`
	OutputURI *string            `json:"output_uri,omitempty"`
	Error     *ExecutionError    `json:"error,omitempty"`
	Reason    string             `json:"reason,omitempty"`
	TaskType  string             `json:"task_type,omitempty"`
}

type TaskClosureOption func(*TaskExecutionClosure)

func WithOutputURI(uri string) TaskClosureOption {
	return func(c *TaskExecutionClosure) {
		c.OutputURI = &uri
	}
}

func WithTaskError(err ExecutionError) TaskClosureOption {
	return func(c *TaskExecutionClosure) {
		c.Error = &err
	}
}

func WithLogs(logs ...TaskLog) TaskClosureOption {
	return func(c *TaskExecutionClosure) {
		c.Logs = append([]TaskLog{}, logs...)
	}
}

func WithReason(reason string) TaskClosureOption {
	return func(c *TaskExecutionClosure) {
		c.Reason = reason
	}
}

func WithTaskType(taskType string) TaskClosureOption {
	return func(c *TaskExecutionClosure) {
		c.TaskType = taskType
	}
}

// NewTaskExecutionClosure normalizes every timestamp to UTC.
func NewTaskExecutionClosure(
	phase TaskExecutionPhase,
	startedAt, createdAt, updatedAt time.Time,
	duration time.Duration,
	opts ...TaskClosureOption,
) (TaskExecutionClosure, error) {
	c := TaskExecutionClosure{
		Phase:     phase,
		Logs:      []TaskLog{},
		StartedAt: utc(startedAt),
		Duration:  duration,
		CreatedAt: utc(createdAt),
		UpdatedAt: utc(updatedAt),
	}

	for _, opt := range opts {
		opt(&c)
	}

	if c.OutputURI != nil && c.Error != nil {
		return TaskExecutionClosure{}, fmt.Errorf("task execution closure: output_result: %w", ErrOneof)
	}

	if duration < 0 {
		return TaskExecutionClosure{}, fmt.Errorf("task execution closure: negative duration %s", duration)
	}

	return c, nil
}

// CheckConsistency is the task-level counterpart of ExecutionClosure.CheckConsistency.
func (c TaskExecutionClosure) CheckConsistency() error {
	var err error

	switch {
	case c.Phase.IsFailure() && c.Error == nil:
		err = ErrMissingError
	case c.Phase.IsSuccess() && c.OutputURI == nil:
		err = ErrMissingOutputs
	case c.Error != nil && !c.Phase.IsFailure():
		err = ErrUnexpectedPayload
	case c.OutputURI != nil && !c.Phase.IsSuccess():
		err = ErrUnexpectedPayload
	}

	if err != nil {
		return &ConsistencyError{Record: "TaskExecutionClosure", Phase: c.Phase.String(), Err: err}
	}

	return nil
}

// CheckTimeline verifies created_at <= started_at <= updated_at for the
// timestamps that are present.
func (c TaskExecutionClosure) CheckTimeline() error {
	ordered := make([]time.Time, 0, 3)

	for _, t := range []time.Time{c.CreatedAt, c.StartedAt, c.UpdatedAt} {
		if !t.IsZero() {
			ordered = append(ordered, t)
		}
	}

	for i := 1; i < len(ordered); i++ {
		if ordered[i].Before(ordered[i-1]) {
			return fmt.Errorf("%w: %s before %s", ErrTimeline, ordered[i].Format(time.RFC3339Nano), ordered[i-1].Format(time.RFC3339Nano))
		}
	}

	return nil
}

func (c TaskExecutionClosure) MarshalBinary() ([]byte, error) {
	if c.OutputURI != nil && c.Error != nil {
		return nil, fmt.Errorf("task execution closure: output_result: %w", ErrOneof)
	}

	if !c.Phase.IsValid() {
		return nil, fmt.Errorf("task execution closure: invalid phase %d", int32(c.Phase))
	}

	if c.Duration < 0 {
		return nil, fmt.Errorf("task execution closure: negative duration %s", c.Duration)
	}

	var e wire.Encoder

	if c.OutputURI != nil {
		e.ForceString(1, *c.OutputURI)
	}

	if c.Error != nil {
		if err := embed(&e, 2, *c.Error); err != nil {
			return nil, err
		}
	}

	e.Enum(3, int32(c.Phase))

	for _, l := range c.Logs {
		if err := embed(&e, 4, l); err != nil {
			return nil, err
		}
	}

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

	e.String(10, c.Reason)
	e.String(11, c.TaskType)

	return e.Bytes(), nil
}

func (c *TaskExecutionClosure) UnmarshalBinary(data []byte) error {
	out := TaskExecutionClosure{Logs: []TaskLog{}}

	err := decode("TaskExecutionClosure", data, func(f wire.Field) error {
		var err error

		switch f.Num {
		case 1:
			var uri string
			uri, err = f.AsString()
			out.OutputURI = &uri
			err = at("output_uri", err)
		case 2:
			out.Error = &ExecutionError{}
			err = at("error", sub(f, out.Error))
		case 3:
			out.Phase, err = asEnum[TaskExecutionPhase](f, taskPhaseNames)
			err = at("phase", err)
		case 4:
			var l TaskLog
			err = at("logs", sub(f, &l))
			out.Logs = append(out.Logs, l)
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
			out.Reason, err = f.AsString()
			err = at("reason", err)
		case 11:
			out.TaskType, err = f.AsString()
			err = at("task_type", err)
		}

		return err
	})
	if err != nil {
		return err
	}

	if out.OutputURI != nil && out.Error != nil {
		return malformed("TaskExecutionClosure", "output_result", ErrOneof)
	}

	*c = out

	return nil
}

// TaskExecution is one attempt of a task inside a node execution. IsParent
// is set when the attempt spawned child node executions.
type TaskExecution struct {
	ID       TaskExecutionIdentifier `json:"id"`
	InputURI string                  `json:"input_uri"`
	Closure  TaskExecutionClosure    `json:"closure"`
	IsParent bool                    `json:"is_parent"`
}

func (t TaskExecution) Equal(other TaskExecution) bool {
	return equalWire(t, other)
}

func (t TaskExecution) MarshalBinary() ([]byte, error) {
	var e wire.Encoder

	if err := embed(&e, 1, t.ID); err != nil {
		return nil, err
	}

	e.String(2, t.InputURI)

	if err := embed(&e, 3, t.Closure); err != nil {
		return nil, err
	}

	e.Bool(4, t.IsParent)

	return e.Bytes(), nil
}

func (t *TaskExecution) UnmarshalBinary(data []byte) error {
	var (
		out               TaskExecution
		hasID, hasClosure bool
	)

	err := decode("TaskExecution", data, func(f wire.Field) error {
		var err error

		switch f.Num {
		case 1:
			hasID = true
			err = at("id", sub(f, &out.ID))
		case 2:
			out.InputURI, err = f.AsString()
			err = at("input_uri", err)
		case 3:
			hasClosure = true
			err = at("closure", sub(f, &out.Closure))
		case 4:
			out.IsParent, err = f.AsBool()
			err = at("is_parent", err)
		}

		return err
	})
	if err != nil {
		return err
	}

	switch {
	case !hasID:
		return missing("TaskExecution", "id")
	case !hasClosure:
		return missing("TaskExecution", "closure")
	}

	*t = out

	return nil
}

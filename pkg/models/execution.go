package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/dukex/flytestate/internal/wire"
)

// ExecutionMode records what launched an execution.
type ExecutionMode int32

const (
	ExecutionModeManual ExecutionMode = iota
	ExecutionModeScheduled
	ExecutionModeSystem
	ExecutionModeRelaunch
	ExecutionModeChildWorkflow
	ExecutionModeRecovered
)

var executionModeNames = []string{"MANUAL", "SCHEDULED", "SYSTEM", "RELAUNCH", "CHILD_WORKFLOW", "RECOVERED"}

func (m ExecutionMode) String() string {
	return enumString(executionModeNames, m, "ExecutionMode")
}

func (m ExecutionMode) MarshalText() ([]byte, error) {
	if err := checkEnum(executionModeNames, m, "execution mode"); err != nil {
		return nil, err
	}

	return []byte(m.String()), nil
}

func (m *ExecutionMode) UnmarshalText(text []byte) error {
	v, err := parseEnum[ExecutionMode](executionModeNames, string(text), "execution mode")
	if err != nil {
		return err
	}

	*m = v

	return nil
}

var ErrNesting = errors.New("child nesting must exceed parent nesting")

// ExecutionMetadata describes how and by whom an execution was launched.
// Nesting is 0 for a root execution.
type ExecutionMetadata struct {
	Mode                ExecutionMode            `json:"mode"`
	Principal           string                   `json:"principal"`
	Nesting             uint32                   `json:"nesting"`
	ScheduledAt         time.Time                `json:"scheduled_at,omitzero"`
	ParentNodeExecution *NodeExecutionIdentifier `json:"parent_node_execution,omitempty"`
}

// NewChildMetadata derives the metadata of an execution launched by a node of parent.
func NewChildMetadata(parent ExecutionMetadata, principal string, node NodeExecutionIdentifier) ExecutionMetadata {
	return ExecutionMetadata{
		Mode:                ExecutionModeChildWorkflow,
		Principal:           principal,
		Nesting:             parent.Nesting + 1,
		ParentNodeExecution: &node,
	}
}

// ChildOf checks that m may follow parent in a causal execution chain.
func (m ExecutionMetadata) ChildOf(parent ExecutionMetadata) error {
	if m.Nesting <= parent.Nesting {
		return fmt.Errorf("%w: parent %d, child %d", ErrNesting, parent.Nesting, m.Nesting)
	}

	return nil
}

func (m ExecutionMetadata) MarshalBinary() ([]byte, error) {
	if err := checkEnum(executionModeNames, m.Mode, "execution mode"); err != nil {
		return nil, err
	}

	var e wire.Encoder
	e.Enum(1, int32(m.Mode))
	e.String(2, m.Principal)
	e.Uint32(3, m.Nesting)

	if err := e.Timestamp(4, m.ScheduledAt); err != nil {
		return nil, err
	}

	if m.ParentNodeExecution != nil {
		if err := embed(&e, 5, *m.ParentNodeExecution); err != nil {
			return nil, err
		}
	}

	return e.Bytes(), nil
}

func (m *ExecutionMetadata) UnmarshalBinary(data []byte) error {
	var out ExecutionMetadata

	err := decode("ExecutionMetadata", data, func(f wire.Field) error {
		var err error

		switch f.Num {
		case 1:
			out.Mode, err = asEnum[ExecutionMode](f, executionModeNames)
			err = at("mode", err)
		case 2:
			out.Principal, err = f.AsString()
			err = at("principal", err)
		case 3:
			out.Nesting, err = f.AsUint32()
			err = at("nesting", err)
		case 4:
			out.ScheduledAt, err = f.AsTimestamp()
			err = at("scheduled_at", err)
		case 5:
			out.ParentNodeExecution = &NodeExecutionIdentifier{}
			err = at("parent_node_execution", sub(f, out.ParentNodeExecution))
		}

		return err
	})
	if err != nil {
		return err
	}

	*m = out

	return nil
}

// ParallelismPolicy decides what a max_parallelism of 0 means. The wire
// format cannot tell an unset bound from an explicit 0.
type ParallelismPolicy int

const (
	ZeroMeansUnbounded ParallelismPolicy = iota
	ZeroMeansZero
)

func ParseParallelismPolicy(s string) (ParallelismPolicy, error) {
	switch s {
	case "", "unbounded":
		return ZeroMeansUnbounded, nil
	case "zero":
		return ZeroMeansZero, nil
	default:
		return 0, &ParseError{Input: s, Reason: `expected "unbounded" or "zero"`}
	}
}

// Parallelism is the effective concurrency bound of an execution.
type Parallelism struct {
	Limit     int32 `json:"limit"`
	Unbounded bool  `json:"unbounded"`
}

// ExecutionSpec is the launch-time configuration of an execution.
// Notifications and DisableAll are mutually exclusive.
type ExecutionSpec struct {
	LaunchPlan          Identifier           `json:"launch_plan"`
	Metadata            ExecutionMetadata    `json:"metadata"`
	Notifications       *NotificationList    `json:"notifications,omitempty"`
	DisableAll          *bool                `json:"disable_all,omitempty"`
	Labels              Labels               `json:"labels"`
	Annotations         Annotations          `json:"annotations"`
	AuthRole            AuthRole             `json:"auth_role"`
	MaxParallelism      int32                `json:"max_parallelism"`
	RawOutputDataConfig *RawOutputDataConfig `json:"raw_output_data_config,omitempty"`
}

type SpecOption func(*ExecutionSpec)

func WithNotifications(notifications ...Notification) SpecOption {
	return func(s *ExecutionSpec) {
		s.Notifications = &NotificationList{Notifications: append([]Notification{}, notifications...)}
	}
}

func WithNotificationsDisabled() SpecOption {
	return func(s *ExecutionSpec) {
		disabled := true
		s.DisableAll = &disabled
	}
}

func WithLabels(values map[string]string) SpecOption {
	return func(s *ExecutionSpec) {
		s.Labels = NewLabels(values)
	}
}

func WithAnnotations(values map[string]string) SpecOption {
	return func(s *ExecutionSpec) {
		s.Annotations = NewAnnotations(values)
	}
}

func WithAuthRole(role AuthRole) SpecOption {
	return func(s *ExecutionSpec) {
		s.AuthRole = role
	}
}

func WithMaxParallelism(n int32) SpecOption {
	return func(s *ExecutionSpec) {
		s.MaxParallelism = n
	}
}

func WithRawOutputPrefix(prefix string) SpecOption {
	return func(s *ExecutionSpec) {
		s.RawOutputDataConfig = &RawOutputDataConfig{OutputLocationPrefix: prefix}
	}
}

// NewExecutionSpec builds a spec with labels and annotations defaulted to
// empty values, so encoding never has to branch on them.
func NewExecutionSpec(launchPlan Identifier, metadata ExecutionMetadata, opts ...SpecOption) (ExecutionSpec, error) {
	spec := ExecutionSpec{
		LaunchPlan:  launchPlan,
		Metadata:    metadata,
		Labels:      NewLabels(nil),
		Annotations: NewAnnotations(nil),
	}

	for _, opt := range opts {
		opt(&spec)
	}

	if err := spec.validate(); err != nil {
		return ExecutionSpec{}, err
	}

	return spec, nil
}

func (s ExecutionSpec) validate() error {
	if s.Notifications != nil && s.DisableAll != nil {
		return fmt.Errorf("execution spec: notifications and disable_all: %w", ErrOneof)
	}

	if s.MaxParallelism < 0 {
		return fmt.Errorf("execution spec: negative max_parallelism %d", s.MaxParallelism)
	}

	return nil
}

// NotificationsDisabled reports whether the execution spec turns off every notification.
func (s ExecutionSpec) NotificationsDisabled() bool {
	return s.DisableAll != nil && *s.DisableAll
}

func (s ExecutionSpec) Parallelism(policy ParallelismPolicy) Parallelism {
	if s.MaxParallelism == 0 && policy == ZeroMeansUnbounded {
		return Parallelism{Unbounded: true}
	}

	return Parallelism{Limit: s.MaxParallelism}
}

func (s ExecutionSpec) Equal(other ExecutionSpec) bool {
	return equalWire(s, other)
}

func (s ExecutionSpec) MarshalBinary() ([]byte, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	var e wire.Encoder

	if err := embed(&e, 1, s.LaunchPlan); err != nil {
		return nil, err
	}

	if err := embed(&e, 3, s.Metadata); err != nil {
		return nil, err
	}

	if s.Notifications != nil {
		if err := embed(&e, 5, *s.Notifications); err != nil {
			return nil, err
		}
	}

	if s.DisableAll != nil {
		e.ForceBool(6, *s.DisableAll)
	}

	// labels, annotations and auth_role are always present
	if err := embed(&e, 7, s.Labels); err != nil {
		return nil, err
	}

	if err := embed(&e, 8, s.Annotations); err != nil {
		return nil, err
	}

	if err := embed(&e, 16, s.AuthRole); err != nil {
		return nil, err
	}

	e.Int32(18, s.MaxParallelism)

	if s.RawOutputDataConfig != nil {
		if err := embed(&e, 19, *s.RawOutputDataConfig); err != nil {
			return nil, err
		}
	}

	return e.Bytes(), nil
}

func (s *ExecutionSpec) UnmarshalBinary(data []byte) error {
	var (
		out                        ExecutionSpec
		hasLaunchPlan, hasMetadata bool
	)

	out.Labels = NewLabels(nil)
	out.Annotations = NewAnnotations(nil)

	err := decode("ExecutionSpec", data, func(f wire.Field) error {
		var err error

		switch f.Num {
		case 1:
			hasLaunchPlan = true
			err = at("launch_plan", sub(f, &out.LaunchPlan))
		case 3:
			hasMetadata = true
			err = at("metadata", sub(f, &out.Metadata))
		case 5:
			out.Notifications = &NotificationList{}
			err = at("notifications", sub(f, out.Notifications))
		case 6:
			var v bool
			v, err = f.AsBool()
			out.DisableAll = &v
			err = at("disable_all", err)
		case 7:
			err = at("labels", sub(f, &out.Labels))
		case 8:
			err = at("annotations", sub(f, &out.Annotations))
		case 16:
			err = at("auth_role", sub(f, &out.AuthRole))
		case 18:
			out.MaxParallelism, err = f.AsInt32()
			if err == nil && out.MaxParallelism < 0 {
				err = fmt.Errorf("negative value %d", out.MaxParallelism)
			}

			err = at("max_parallelism", err)
		case 19:
			out.RawOutputDataConfig = &RawOutputDataConfig{}
			err = at("raw_output_data_config", sub(f, out.RawOutputDataConfig))
		}

		return err
	})
	if err != nil {
		return err
	}

	switch {
	case !hasLaunchPlan:
		return missing("ExecutionSpec", "launch_plan")
	case !hasMetadata:
		return missing("ExecutionSpec", "metadata")
	case out.Notifications != nil && out.DisableAll != nil:
		return malformed("ExecutionSpec", "notification_overrides", ErrOneof)
	}

	*s = out

	return nil
}

// Execution is a workflow execution snapshot: what was asked for and what happened.
type Execution struct {
	ID      WorkflowExecutionIdentifier `json:"id"`
	Spec    ExecutionSpec               `json:"spec"`
	Closure ExecutionClosure            `json:"closure"`
}

// ExecutionView is the JSON view of an execution with the concurrency bound
// its max_parallelism resolves to.
type ExecutionView struct {
	Execution
	Parallelism Parallelism `json:"parallelism"`
}

func (x Execution) View(policy ParallelismPolicy) ExecutionView {
	return ExecutionView{Execution: x, Parallelism: x.Spec.Parallelism(policy)}
}

func (x Execution) Equal(other Execution) bool {
	return equalWire(x, other)
}

func (x Execution) MarshalBinary() ([]byte, error) {
	var e wire.Encoder

	if err := embed(&e, 1, x.ID); err != nil {
		return nil, err
	}

	if err := embed(&e, 2, x.Spec); err != nil {
		return nil, err
	}

	if err := embed(&e, 3, x.Closure); err != nil {
		return nil, err
	}

	return e.Bytes(), nil
}

func (x *Execution) UnmarshalBinary(data []byte) error {
	var (
		out                        Execution
		hasID, hasSpec, hasClosure bool
	)

	err := decode("Execution", data, func(f wire.Field) error {
		switch f.Num {
		case 1:
			hasID = true

			return at("id", sub(f, &out.ID))
		case 2:
			hasSpec = true

			return at("spec", sub(f, &out.Spec))
		case 3:
			hasClosure = true

			return at("closure", sub(f, &out.Closure))
		}

		return nil
	})
	if err != nil {
		return err
	}

	switch {
	case !hasID:
		return missing("Execution", "id")
	case !hasSpec:
		return missing("Execution", "spec")
	case !hasClosure:
		return missing("Execution", "closure")
	}

	*x = out

	return nil
}

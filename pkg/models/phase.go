package models

// WorkflowExecutionPhase is the lifecycle stage of a workflow execution.
type WorkflowExecutionPhase int32

const (
	WorkflowPhaseUndefined WorkflowExecutionPhase = iota
	WorkflowPhaseQueued
	WorkflowPhaseRunning
	WorkflowPhaseSucceeding
	WorkflowPhaseSucceeded
	WorkflowPhaseFailing
	WorkflowPhaseFailed
	WorkflowPhaseAborted
	WorkflowPhaseTimedOut
	WorkflowPhaseAborting
)

var workflowPhaseNames = []string{
	"UNDEFINED", "QUEUED", "RUNNING", "SUCCEEDING", "SUCCEEDED",
	"FAILING", "FAILED", "ABORTED", "TIMED_OUT", "ABORTING",
}

func (p WorkflowExecutionPhase) String() string {
	return enumString(workflowPhaseNames, p, "WorkflowExecutionPhase")
}

func (p WorkflowExecutionPhase) IsValid() bool {
	return enumValid(workflowPhaseNames, p)
}

func (p WorkflowExecutionPhase) IsTerminal() bool {
	return p.IsSuccess() || p.IsFailure()
}

func (p WorkflowExecutionPhase) IsSuccess() bool {
	return p == WorkflowPhaseSucceeded
}

// IsFailure reports the failure-class terminal phases.
func (p WorkflowExecutionPhase) IsFailure() bool {
	return p == WorkflowPhaseFailed || p == WorkflowPhaseAborted || p == WorkflowPhaseTimedOut
}

func (p WorkflowExecutionPhase) MarshalText() ([]byte, error) {
	if err := checkEnum(workflowPhaseNames, p, "workflow phase"); err != nil {
		return nil, err
	}

	return []byte(p.String()), nil
}

func (p *WorkflowExecutionPhase) UnmarshalText(text []byte) error {
	v, err := ParseWorkflowExecutionPhase(string(text))
	if err != nil {
		return err
	}

	*p = v

	return nil
}

func ParseWorkflowExecutionPhase(s string) (WorkflowExecutionPhase, error) {
	return parseEnum[WorkflowExecutionPhase](workflowPhaseNames, s, "workflow phase")
}

// TaskExecutionPhase is the lifecycle stage of a single task attempt.
type TaskExecutionPhase int32

const (
	TaskPhaseUndefined TaskExecutionPhase = iota
	TaskPhaseQueued
	TaskPhaseRunning
	TaskPhaseSucceeded
	TaskPhaseAborted
	TaskPhaseFailed
	TaskPhaseInitializing
	TaskPhaseWaitingForResources
)

var taskPhaseNames = []string{
	"UNDEFINED", "QUEUED", "RUNNING", "SUCCEEDED", "ABORTED",
	"FAILED", "INITIALIZING", "WAITING_FOR_RESOURCES",
}

func (p TaskExecutionPhase) String() string {
	return enumString(taskPhaseNames, p, "TaskExecutionPhase")
}

func (p TaskExecutionPhase) IsValid() bool {
	return enumValid(taskPhaseNames, p)
}

func (p TaskExecutionPhase) IsTerminal() bool {
	return p.IsSuccess() || p.IsFailure()
}

func (p TaskExecutionPhase) IsSuccess() bool {
	return p == TaskPhaseSucceeded
}

func (p TaskExecutionPhase) IsFailure() bool {
	return p == TaskPhaseFailed || p == TaskPhaseAborted
}

func (p TaskExecutionPhase) MarshalText() ([]byte, error) {
	if err := checkEnum(taskPhaseNames, p, "task phase"); err != nil {
		return nil, err
	}

	return []byte(p.String()), nil
}

func (p *TaskExecutionPhase) UnmarshalText(text []byte) error {
	v, err := ParseTaskExecutionPhase(string(text))
	if err != nil {
		return err
	}

	*p = v

	return nil
}

func ParseTaskExecutionPhase(s string) (TaskExecutionPhase, error) {
	return parseEnum[TaskExecutionPhase](taskPhaseNames, s, "task phase")
}

// NodeExecutionPhase is the lifecycle stage of a node inside a workflow.
type NodeExecutionPhase int32

const (
	NodePhaseUndefined NodeExecutionPhase = iota
	NodePhaseQueued
	NodePhaseRunning
	NodePhaseSucceeded
	NodePhaseFailing
	NodePhaseFailed
	NodePhaseAborted
	NodePhaseSkipped
	NodePhaseTimedOut
	NodePhaseDynamicRunning
	NodePhaseRecovered
)

var nodePhaseNames = []string{
	"UNDEFINED", "QUEUED", "RUNNING", "SUCCEEDED", "FAILING", "FAILED",
	"ABORTED", "SKIPPED", "TIMED_OUT", "DYNAMIC_RUNNING", "RECOVERED",
}

func (p NodeExecutionPhase) String() string {
	return enumString(nodePhaseNames, p, "NodeExecutionPhase")
}

func (p NodeExecutionPhase) IsValid() bool {
	return enumValid(nodePhaseNames, p)
}

// IsTerminal treats SKIPPED and RECOVERED as terminal, alongside success and failure.
func (p NodeExecutionPhase) IsTerminal() bool {
	return p.IsSuccess() || p.IsFailure() || p == NodePhaseSkipped
}

func (p NodeExecutionPhase) IsSuccess() bool {
	return p == NodePhaseSucceeded || p == NodePhaseRecovered
}

func (p NodeExecutionPhase) IsFailure() bool {
	return p == NodePhaseFailed || p == NodePhaseAborted || p == NodePhaseTimedOut
}

func (p NodeExecutionPhase) MarshalText() ([]byte, error) {
	if err := checkEnum(nodePhaseNames, p, "node phase"); err != nil {
		return nil, err
	}

	return []byte(p.String()), nil
}

func (p *NodeExecutionPhase) UnmarshalText(text []byte) error {
	v, err := ParseNodeExecutionPhase(string(text))
	if err != nil {
		return err
	}

	*p = v

	return nil
}

func ParseNodeExecutionPhase(s string) (NodeExecutionPhase, error) {
	return parseEnum[NodeExecutionPhase](nodePhaseNames, s, "node phase")
}

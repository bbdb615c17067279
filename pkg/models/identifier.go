package models

import (
	"fmt"

	"github.com/dukex/flytestate/internal/wire"
)

type ResourceType int32

const (
	ResourceTypeUnspecified ResourceType = iota
	ResourceTypeTask
	ResourceTypeWorkflow
	ResourceTypeLaunchPlan
	ResourceTypeDataset
)

var resourceTypeNames = []string{"UNSPECIFIED", "TASK", "WORKFLOW", "LAUNCH_PLAN", "DATASET"}

func (r ResourceType) String() string {
	return enumString(resourceTypeNames, r, "ResourceType")
}

func (r ResourceType) MarshalText() ([]byte, error) {
	if err := checkEnum(resourceTypeNames, r, "resource type"); err != nil {
		return nil, err
	}

	return []byte(r.String()), nil
}

func (r *ResourceType) UnmarshalText(text []byte) error {
	v, err := parseEnum[ResourceType](resourceTypeNames, string(text), "resource type")
	if err != nil {
		return err
	}

	*r = v

	return nil
}

// Identifier names one version of a task, workflow or launch plan.
type Identifier struct {
	ResourceType ResourceType `json:"resource_type"`
	Project      string       `json:"project"`
	Domain       string       `json:"domain"`
	Name         string       `json:"name"`
	Version      string       `json:"version"`
	Org          string       `json:"org,omitempty"`
}

func (id Identifier) String() string {
	return fmt.Sprintf("%s:%s:%s:%s@%s", id.ResourceType, id.Project, id.Domain, id.Name, id.Version)
}

func (id Identifier) MarshalBinary() ([]byte, error) {
	if err := checkEnum(resourceTypeNames, id.ResourceType, "resource type"); err != nil {
		return nil, err
	}

	var e wire.Encoder
	e.Enum(1, int32(id.ResourceType))
	e.String(2, id.Project)
	e.String(3, id.Domain)
	e.String(4, id.Name)
	e.String(5, id.Version)
	e.String(6, id.Org)

	return e.Bytes(), nil
}

func (id *Identifier) UnmarshalBinary(data []byte) error {
	var out Identifier

	err := decode("Identifier", data, func(f wire.Field) error {
		var err error

		switch f.Num {
		case 1:
			out.ResourceType, err = asEnum[ResourceType](f, resourceTypeNames)
			err = at("resource_type", err)
		case 2:
			out.Project, err = f.AsString()
		case 3:
			out.Domain, err = f.AsString()
		case 4:
			out.Name, err = f.AsString()
		case 5:
			out.Version, err = f.AsString()
		case 6:
			out.Org, err = f.AsString()
		}

		return err
	})
	if err != nil {
		return err
	}

	*id = out

	return nil
}

// WorkflowExecutionIdentifier names a single workflow execution.
type WorkflowExecutionIdentifier struct {
	Project string `json:"project"`
	Domain  string `json:"domain"`
	Name    string `json:"name"`
	Org     string `json:"org,omitempty"`
}

// String renders project/domain/name, prefixed with "org:" when an org is set.
func (id WorkflowExecutionIdentifier) String() string {
	s := id.Project + "/" + id.Domain + "/" + id.Name
	if id.Org != "" {
		return id.Org + ":" + s
	}

	return s
}

func (id WorkflowExecutionIdentifier) MarshalBinary() ([]byte, error) {
	var e wire.Encoder
	e.String(1, id.Project)
	e.String(2, id.Domain)
	e.String(4, id.Name)
	e.String(5, id.Org)

	return e.Bytes(), nil
}

func (id *WorkflowExecutionIdentifier) UnmarshalBinary(data []byte) error {
	var out WorkflowExecutionIdentifier

	err := decode("WorkflowExecutionIdentifier", data, func(f wire.Field) error {
		var err error

		switch f.Num {
		case 1:
			out.Project, err = f.AsString()
		case 2:
			out.Domain, err = f.AsString()
		case 4:
			out.Name, err = f.AsString()
		case 5:
			out.Org, err = f.AsString()
		}

		return err
	})
	if err != nil {
		return err
	}

	*id = out

	return nil
}

type NodeExecutionIdentifier struct {
	NodeID      string                      `json:"node_id"`
	ExecutionID WorkflowExecutionIdentifier `json:"execution_id"`
}

func (id NodeExecutionIdentifier) String() string {
	return id.ExecutionID.String() + "/" + id.NodeID
}

func (id NodeExecutionIdentifier) MarshalBinary() ([]byte, error) {
	var e wire.Encoder
	e.String(1, id.NodeID)

	if err := embed(&e, 2, id.ExecutionID); err != nil {
		return nil, err
	}

	return e.Bytes(), nil
}

func (id *NodeExecutionIdentifier) UnmarshalBinary(data []byte) error {
	var (
		out          NodeExecutionIdentifier
		hasExecution bool
	)

	err := decode("NodeExecutionIdentifier", data, func(f wire.Field) error {
		var err error

		switch f.Num {
		case 1:
			out.NodeID, err = f.AsString()
		case 2:
			hasExecution = true
			err = at("execution_id", sub(f, &out.ExecutionID))
		}

		return err
	})
	if err != nil {
		return err
	}

	if !hasExecution {
		return missing("NodeExecutionIdentifier", "execution_id")
	}

	*id = out

	return nil
}

type TaskExecutionIdentifier struct {
	TaskID          Identifier              `json:"task_id"`
	NodeExecutionID NodeExecutionIdentifier `json:"node_execution_id"`
	RetryAttempt    uint32                  `json:"retry_attempt"`
}

func (id TaskExecutionIdentifier) String() string {
	return fmt.Sprintf("%s/%s#%d", id.NodeExecutionID, id.TaskID.Name, id.RetryAttempt)
}

func (id TaskExecutionIdentifier) MarshalBinary() ([]byte, error) {
	var e wire.Encoder

	if err := embed(&e, 1, id.TaskID); err != nil {
		return nil, err
	}

	if err := embed(&e, 2, id.NodeExecutionID); err != nil {
		return nil, err
	}

	e.Uint32(3, id.RetryAttempt)

	return e.Bytes(), nil
}

func (id *TaskExecutionIdentifier) UnmarshalBinary(data []byte) error {
	var (
		out              TaskExecutionIdentifier
		hasTask, hasNode bool
	)

	err := decode("TaskExecutionIdentifier", data, func(f wire.Field) error {
		var err error

		switch f.Num {
		case 1:
			hasTask = true
			err = at("task_id", sub(f, &out.TaskID))
		case 2:
			hasNode = true
			err = at("node_execution_id", sub(f, &out.NodeExecutionID))
		case 3:
			out.RetryAttempt, err = f.AsUint32()
			err = at("retry_attempt", err)
		}

		return err
	})
	if err != nil {
		return err
	}

	switch {
	case !hasTask:
		return missing("TaskExecutionIdentifier", "task_id")
	case !hasNode:
		return missing("TaskExecutionIdentifier", "node_execution_id")
	}

	*id = out

	return nil
}

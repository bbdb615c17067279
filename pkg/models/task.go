package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukex/flytestate/internal/wire"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

type RuntimeType int32

const (
	RuntimeTypeOther RuntimeType = iota
	RuntimeTypeFlyteSDK
)

var runtimeTypeNames = []string{"OTHER", "FLYTE_SDK"}

func (r RuntimeType) String() string {
	return enumString(runtimeTypeNames, r, "RuntimeType")
}

// RuntimeMetadata names the SDK that produced a task.
type RuntimeMetadata struct {
	Type    RuntimeType `json:"type"`
	Version string      `json:"version"`
	Flavor  string      `json:"flavor"`
}

func (r RuntimeMetadata) MarshalBinary() ([]byte, error) {
	if err := checkEnum(runtimeTypeNames, r.Type, "runtime type"); err != nil {
		return nil, err
	}

	var e wire.Encoder
	e.Enum(1, int32(r.Type))
	e.String(2, r.Version)
	e.String(3, r.Flavor)

	return e.Bytes(), nil
}

func (r *RuntimeMetadata) UnmarshalBinary(data []byte) error {
	var out RuntimeMetadata

	err := decode("RuntimeMetadata", data, func(f wire.Field) error {
		var err error

		switch f.Num {
		case 1:
			out.Type, err = asEnum[RuntimeType](f, runtimeTypeNames)
			err = at("type", err)
		case 2:
			out.Version, err = f.AsString()
		case 3:
			out.Flavor, err = f.AsString()
		}

		return err
	})
	if err != nil {
		return err
	}

	*r = out

	return nil
}

type RetryStrategy struct {
	Retries uint32 `json:"retries"`
}

func (r RetryStrategy) MarshalBinary() ([]byte, error) {
	var e wire.Encoder
	e.Uint32(5, r.Retries)

	return e.Bytes(), nil
}

func (r *RetryStrategy) UnmarshalBinary(data []byte) error {
	var out RetryStrategy

	err := decode("RetryStrategy", data, func(f wire.Field) error {
		if f.Num != 5 {
			return nil
		}

		var err error
		out.Retries, err = f.AsUint32()

		return at("retries", err)
	})
	if err != nil {
		return err
	}

	*r = out

	return nil
}

// TaskMetadata carries the execution knobs of a task template.
type TaskMetadata struct {
	Discoverable           bool            `json:"discoverable"`
	Runtime                RuntimeMetadata `json:"runtime"`
	Timeout                time.Duration   `json:"timeout"`
	Retries                RetryStrategy   `json:"retries"`
	DiscoveryVersion       string          `json:"discovery_version,omitempty"`
	DeprecatedErrorMessage string          `json:"deprecated_error_message,omitempty"`
	Interruptible          *bool           `json:"interruptible,omitempty"`
}

func (m TaskMetadata) MarshalBinary() ([]byte, error) {
	var e wire.Encoder
	e.Bool(1, m.Discoverable)

	if err := embed(&e, 2, m.Runtime); err != nil {
		return nil, err
	}

	if err := e.Duration(4, m.Timeout); err != nil {
		return nil, err
	}

	if err := embed(&e, 5, m.Retries); err != nil {
		return nil, err
	}

	e.String(6, m.DiscoveryVersion)
	e.String(7, m.DeprecatedErrorMessage)

	if m.Interruptible != nil {
		e.ForceBool(8, *m.Interruptible)
	}

	return e.Bytes(), nil
}

func (m *TaskMetadata) UnmarshalBinary(data []byte) error {
	var out TaskMetadata

	err := decode("TaskMetadata", data, func(f wire.Field) error {
		var err error

		switch f.Num {
		case 1:
			out.Discoverable, err = f.AsBool()
			err = at("discoverable", err)
		case 2:
			err = at("runtime", sub(f, &out.Runtime))
		case 4:
			out.Timeout, err = f.AsDuration()
			err = at("timeout", err)
		case 5:
			err = at("retries", sub(f, &out.Retries))
		case 6:
			out.DiscoveryVersion, err = f.AsString()
		case 7:
			out.DeprecatedErrorMessage, err = f.AsString()
		case 8:
			var v bool
			v, err = f.AsBool()
			out.Interruptible = &v
			err = at("interruptible", err)
		}

		return err
	})
	if err != nil {
		return err
	}

	*m = out

	return nil
}

type MountType int32

const (
	MountTypeAny MountType = iota
	MountTypeEnvVar
	MountTypeFile
)

var mountTypeNames = []string{"ANY", "ENV_VAR", "FILE"}

func (m MountType) String() string {
	return enumString(mountTypeNames, m, "MountType")
}

func ParseMountType(s string) (MountType, error) {
	return parseEnum[MountType](mountTypeNames, s, "mount type")
}

// Secret references a value held by the secret store.
type Secret struct {
	Group            string    `json:"group"`
	GroupVersion     string    `json:"group_version,omitempty"`
	Key              string    `json:"key"`
	MountRequirement MountType `json:"mount_requirement"`
}

func (s Secret) MarshalBinary() ([]byte, error) {
	if err := checkEnum(mountTypeNames, s.MountRequirement, "mount type"); err != nil {
		return nil, err
	}

	var e wire.Encoder
	e.String(1, s.Group)
	e.String(2, s.GroupVersion)
	e.String(3, s.Key)
	e.Enum(4, int32(s.MountRequirement))

	return e.Bytes(), nil
}

func (s *Secret) UnmarshalBinary(data []byte) error {
	var out Secret

	err := decode("Secret", data, func(f wire.Field) error {
		var err error

		switch f.Num {
		case 1:
			out.Group, err = f.AsString()
		case 2:
			out.GroupVersion, err = f.AsString()
		case 3:
			out.Key, err = f.AsString()
		case 4:
			out.MountRequirement, err = asEnum[MountType](f, mountTypeNames)
			err = at("mount_requirement", err)
		}

		return err
	})
	if err != nil {
		return err
	}

	*s = out

	return nil
}

// TaskTemplate is the compiled description of a task. Custom is an opaque
// plugin payload interpreted by the executor registered for Type.
type TaskTemplate struct {
	ID              Identifier        `json:"id"`
	Type            string            `json:"type"`
	Metadata        TaskMetadata      `json:"metadata"`
	Custom          *structpb.Struct  `json:"-"`
	TaskTypeVersion int32             `json:"task_type_version"`
	Config          map[string]string `json:"config,omitempty"`
}

// NewTaskTemplate converts custom into a protobuf Struct.
func NewTaskTemplate(id Identifier, taskType string, metadata TaskMetadata, custom map[string]any) (TaskTemplate, error) {
	s, err := structpb.NewStruct(custom)
	if err != nil {
		return TaskTemplate{}, fmt.Errorf("task template custom: %w", err)
	}

	return TaskTemplate{ID: id, Type: taskType, Metadata: metadata, Custom: s}, nil
}

// CustomMap returns the custom payload as plain Go values.
func (t TaskTemplate) CustomMap() map[string]any {
	if t.Custom == nil {
		return map[string]any{}
	}

	return t.Custom.AsMap()
}

func (t TaskTemplate) MarshalBinary() ([]byte, error) {
	var e wire.Encoder

	if err := embed(&e, 1, t.ID); err != nil {
		return nil, err
	}

	e.String(2, t.Type)

	if err := embed(&e, 3, t.Metadata); err != nil {
		return nil, err
	}

	if err := e.Struct(5, t.Custom); err != nil {
		return nil, err
	}

	e.Int32(7, t.TaskTypeVersion)
	e.StringMap(16, t.Config)

	return e.Bytes(), nil
}

func (t *TaskTemplate) UnmarshalBinary(data []byte) error {
	var (
		out   TaskTemplate
		hasID bool
	)

	err := decode("TaskTemplate", data, func(f wire.Field) error {
		var err error

		switch f.Num {
		case 1:
			hasID = true
			err = at("id", sub(f, &out.ID))
		case 2:
			out.Type, err = f.AsString()
			err = at("type", err)
		case 3:
			err = at("metadata", sub(f, &out.Metadata))
		case 5:
			out.Custom, err = f.AsStruct()
			err = at("custom", err)
		case 7:
			out.TaskTypeVersion, err = f.AsInt32()
			err = at("task_type_version", err)
		case 16:
			var payload []byte

			payload, err = f.AsMessage()
			if err == nil {
				if out.Config == nil {
					out.Config = map[string]string{}
				}

				err = wire.StringMapEntry(out.Config, payload)
			}

			err = at("config", err)
		}

		return err
	})
	if err != nil {
		return err
	}

	if !hasID {
		return missing("TaskTemplate", "id")
	}

	*t = out

	return nil
}

func (t TaskTemplate) Equal(other TaskTemplate) bool {
	return equalWire(t, other)
}

func (t TaskTemplate) MarshalJSON() ([]byte, error) {
	type alias TaskTemplate

	custom := json.RawMessage("{}")

	if t.Custom != nil {
		b, err := protojson.Marshal(t.Custom)
		if err != nil {
			return nil, err
		}

		custom = b
	}

	return json.Marshal(struct {
		alias
		Custom json.RawMessage `json:"custom"`
	}{alias: alias(t), Custom: custom})
}

// TaskSpec wraps a template for registration.
type TaskSpec struct {
	Template TaskTemplate `json:"template"`
}

func (s TaskSpec) MarshalBinary() ([]byte, error) {
	var e wire.Encoder

	if err := embed(&e, 1, s.Template); err != nil {
		return nil, err
	}

	return e.Bytes(), nil
}

func (s *TaskSpec) UnmarshalBinary(data []byte) error {
	var (
		out         TaskSpec
		hasTemplate bool
	)

	err := decode("TaskSpec", data, func(f wire.Field) error {
		if f.Num != 1 {
			return nil
		}

		hasTemplate = true

		return at("template", sub(f, &out.Template))
	})
	if err != nil {
		return err
	}

	if !hasTemplate {
		return missing("TaskSpec", "template")
	}

	*s = out

	return nil
}

package models

import (
	"maps"

	"github.com/dukex/flytestate/internal/wire"
)

// Labels are key/value pairs attached to an execution.
type Labels struct {
	Values map[string]string `json:"values"`
}

// NewLabels copies values; nil yields an empty, non-nil map.
func NewLabels(values map[string]string) Labels {
	return Labels{Values: cloneStrings(values)}
}

func (l Labels) MarshalBinary() ([]byte, error) {
	var e wire.Encoder
	e.StringMap(1, l.Values)

	return e.Bytes(), nil
}

func (l *Labels) UnmarshalBinary(data []byte) error {
	values, err := decodeStringMap("Labels", data)
	if err != nil {
		return err
	}

	l.Values = values

	return nil
}

func (l Labels) Equal(other Labels) bool {
	return maps.Equal(l.Values, other.Values)
}

// Annotations are key/value pairs that, unlike labels, are not used for selection.
type Annotations struct {
	Values map[string]string `json:"values"`
}

func NewAnnotations(values map[string]string) Annotations {
	return Annotations{Values: cloneStrings(values)}
}

func (a Annotations) MarshalBinary() ([]byte, error) {
	var e wire.Encoder
	e.StringMap(1, a.Values)

	return e.Bytes(), nil
}

func (a *Annotations) UnmarshalBinary(data []byte) error {
	values, err := decodeStringMap("Annotations", data)
	if err != nil {
		return err
	}

	a.Values = values

	return nil
}

func (a Annotations) Equal(other Annotations) bool {
	return maps.Equal(a.Values, other.Values)
}

func decodeStringMap(message string, data []byte) (map[string]string, error) {
	values := map[string]string{}

	err := decode(message, data, func(f wire.Field) error {
		if f.Num != 1 {
			return nil
		}

		payload, err := f.AsMessage()
		if err != nil {
			return at("values", err)
		}

		return at("values", wire.StringMapEntry(values, payload))
	})
	if err != nil {
		return nil, err
	}

	return values, nil
}

func cloneStrings(values map[string]string) map[string]string {
	if values == nil {
		return map[string]string{}
	}

	return maps.Clone(values)
}

// UrlBlob points at externally stored data.
type UrlBlob struct {
	URL   string `json:"url"`
	Bytes int64  `json:"bytes"`
}

func (u UrlBlob) MarshalBinary() ([]byte, error) {
	var e wire.Encoder
	e.String(1, u.URL)
	e.Int64(2, u.Bytes)

	return e.Bytes(), nil
}

func (u *UrlBlob) UnmarshalBinary(data []byte) error {
	var out UrlBlob

	err := decode("UrlBlob", data, func(f wire.Field) error {
		var err error

		switch f.Num {
		case 1:
			out.URL, err = f.AsString()
			err = at("url", err)
		case 2:
			out.Bytes, err = f.AsInt64()
			err = at("bytes", err)
		}

		return err
	})
	if err != nil {
		return err
	}

	*u = out

	return nil
}

func (u UrlBlob) IsEmpty() bool {
	return u.URL == "" && u.Bytes == 0
}

// AuthRole names the identity an execution runs as.
type AuthRole struct {
	AssumableIAMRole         string `json:"assumable_iam_role,omitempty"`
	KubernetesServiceAccount string `json:"kubernetes_service_account,omitempty"`
}

func (r AuthRole) MarshalBinary() ([]byte, error) {
	var e wire.Encoder
	e.String(1, r.AssumableIAMRole)
	e.String(2, r.KubernetesServiceAccount)

	return e.Bytes(), nil
}

func (r *AuthRole) UnmarshalBinary(data []byte) error {
	var out AuthRole

	err := decode("AuthRole", data, func(f wire.Field) error {
		var err error

		switch f.Num {
		case 1:
			out.AssumableIAMRole, err = f.AsString()
			err = at("assumable_iam_role", err)
		case 2:
			out.KubernetesServiceAccount, err = f.AsString()
			err = at("kubernetes_service_account", err)
		}

		return err
	})
	if err != nil {
		return err
	}

	*r = out

	return nil
}

// RawOutputDataConfig sets where an execution writes its offloaded data.
type RawOutputDataConfig struct {
	OutputLocationPrefix string `json:"output_location_prefix"`
}

func (c RawOutputDataConfig) MarshalBinary() ([]byte, error) {
	var e wire.Encoder
	e.String(1, c.OutputLocationPrefix)

	return e.Bytes(), nil
}

func (c *RawOutputDataConfig) UnmarshalBinary(data []byte) error {
	var out RawOutputDataConfig

	err := decode("RawOutputDataConfig", data, func(f wire.Field) error {
		if f.Num != 1 {
			return nil
		}

		var err error
		out.OutputLocationPrefix, err = f.AsString()

		return at("output_location_prefix", err)
	})
	if err != nil {
		return err
	}

	*c = out

	return nil
}

// NamedEntityIdentifier identifies a task, workflow or launch plan across versions.
type NamedEntityIdentifier struct {
	Project string `json:"project"`
	Domain  string `json:"domain"`
	Name    string `json:"name"`
	Org     string `json:"org,omitempty"`
}

func (n NamedEntityIdentifier) MarshalBinary() ([]byte, error) {
	var e wire.Encoder
	e.String(1, n.Project)
	e.String(2, n.Domain)
	e.String(3, n.Name)
	e.String(4, n.Org)

	return e.Bytes(), nil
}

func (n *NamedEntityIdentifier) UnmarshalBinary(data []byte) error {
	var out NamedEntityIdentifier

	err := decode("NamedEntityIdentifier", data, func(f wire.Field) error {
		var err error

		switch f.Num {
		case 1:
			out.Project, err = f.AsString()
		case 2:
			out.Domain, err = f.AsString()
		case 3:
			out.Name, err = f.AsString()
		case 4:
			out.Org, err = f.AsString()
		}

		return err
	})
	if err != nil {
		return err
	}

	*n = out

	return nil
}

type NamedEntityState int32

const (
	NamedEntityActive NamedEntityState = iota
	NamedEntityArchived
	NamedEntitySystemGenerated
)

var namedEntityStateNames = []string{"NAMED_ENTITY_ACTIVE", "NAMED_ENTITY_ARCHIVED", "SYSTEM_GENERATED"}

func (s NamedEntityState) String() string {
	return enumString(namedEntityStateNames, s, "NamedEntityState")
}

func (s NamedEntityState) MarshalText() ([]byte, error) {
	if err := checkEnum(namedEntityStateNames, s, "named entity state"); err != nil {
		return nil, err
	}

	return []byte(s.String()), nil
}

func (s *NamedEntityState) UnmarshalText(text []byte) error {
	v, err := parseEnum[NamedEntityState](namedEntityStateNames, string(text), "named entity state")
	if err != nil {
		return err
	}

	*s = v

	return nil
}

type NamedEntityMetadata struct {
	Description string           `json:"description"`
	State       NamedEntityState `json:"state"`
}

func (m NamedEntityMetadata) MarshalBinary() ([]byte, error) {
	if err := checkEnum(namedEntityStateNames, m.State, "named entity state"); err != nil {
		return nil, err
	}

	var e wire.Encoder
	e.String(1, m.Description)
	e.Enum(2, int32(m.State))

	return e.Bytes(), nil
}

func (m *NamedEntityMetadata) UnmarshalBinary(data []byte) error {
	var out NamedEntityMetadata

	err := decode("NamedEntityMetadata", data, func(f wire.Field) error {
		var err error

		switch f.Num {
		case 1:
			out.Description, err = f.AsString()
			err = at("description", err)
		case 2:
			out.State, err = asEnum[NamedEntityState](f, namedEntityStateNames)
			err = at("state", err)
		}

		return err
	})
	if err != nil {
		return err
	}

	*m = out

	return nil
}

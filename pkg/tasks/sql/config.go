// Package sql executes sqlalchemy task templates against a relational database.
package sql

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"strings"

	"github.com/dukex/flytestate/pkg/models"
	"github.com/dukex/flytestate/pkg/template"
	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
)

const TaskType = "sqlalchemy"

// SecretRef is one entry of secret_connect_args.
type SecretRef struct {
	Group            string `json:"group"             validate:"required"`
	Key              string `json:"key"               validate:"required"`
	GroupVersion     string `json:"group_version"`
	MountRequirement int    `json:"mount_requirement" validate:"min=0,max=2"`
}

func (r SecretRef) Secret() models.Secret {
	return models.Secret{
		Group:            r.Group,
		GroupVersion:     r.GroupVersion,
		Key:              r.Key,
		MountRequirement: models.MountType(r.MountRequirement),
	}
}

// Config is the custom payload of a sqlalchemy task template.
type Config struct {
	QueryTemplate     string               `json:"query_template"      validate:"required"`
	URI               string               `json:"uri"                 validate:"required"`
	ConnectArgs       map[string]any       `json:"connect_args"`
	SecretConnectArgs map[string]SecretRef `json:"secret_connect_args" validate:"dive"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Schema returns the JSON schema of the custom payload.
func Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query_template": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Query with {{ .inputs.<name> }} placeholders",
			},
			"uri": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Database URI: postgres://, postgresql:// or pgx://",
			},
			"connect_args": map[string]any{
				"type": []string{"object", "null"},
			},
			"secret_connect_args": map[string]any{
				"type": []string{"object", "null"},
				"additionalProperties": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"group":             map[string]any{"type": "string"},
						"key":               map[string]any{"type": "string"},
						"group_version":     map[string]any{"type": []string{"string", "null"}},
						"mount_requirement": map[string]any{"type": []string{"integer", "null"}},
					},
					"required": []string{"group", "key"},
				},
			},
		},
		"required": []string{"query_template", "uri"},
	}
}

// ParseConfig validates custom against Schema and decodes it.
func ParseConfig(custom map[string]any) (Config, error) {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(Schema()), gojsonschema.NewGoLoader(custom))
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if !result.Valid() {
		var problems []string
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}

		return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}

	raw, err := json.Marshal(custom)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	var config Config

	err = json.Unmarshal(raw, &config)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	err = validate.Struct(config)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if config.ConnectArgs == nil {
		config.ConnectArgs = map[string]any{}
	}

	_, _, err = DataSource(config.URI, nil)
	if err != nil {
		return Config{}, err
	}

	return config, nil
}

// DataSource picks the database/sql driver for uri and appends connect
// args as query parameters. A "+driver" suffix on the scheme is ignored.
func DataSource(uri string, connectArgs map[string]any) (string, string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	scheme, _, _ := strings.Cut(strings.ToLower(u.Scheme), "+")

	var driver string

	switch scheme {
	case "postgres", "postgresql":
		driver = "postgres"
	case "pgx":
		driver = "pgx"
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, u.Scheme)
	}

	u.Scheme = "postgres"

	if len(connectArgs) > 0 {
		query := u.Query()

		for key, value := range connectArgs {
			query.Set(key, template.Format(value))
		}

		u.RawQuery = query.Encode()
	}

	return driver, u.String(), nil
}

func (c Config) clone() Config {
	c.ConnectArgs = maps.Clone(c.ConnectArgs)

	return c
}

// Package protocol defines the contract between the task registry and
// pluggable task executors.
package protocol

import (
	"context"
	"log/slog"

	"github.com/dukex/flytestate/pkg/models"
	"github.com/dukex/flytestate/pkg/secrets"
	"go.opentelemetry.io/otel/trace"
)

// TaskExecutor runs one attempt of a task. Inputs are the task's keyword
// inputs as plain Go values; the result is the task's output binding.
type TaskExecutor interface {
	Execute(ctx context.Context, inputs map[string]any) (models.LiteralMap, error)
}

// TaskExecutorFactory creates executors for one task type.
type TaskExecutorFactory interface {
	// Create builds an executor from a compiled template of this type
	Create(template models.TaskTemplate, deps Dependencies) (TaskExecutor, error)

	// ID returns the task type handled, matching TaskTemplate.Type
	ID() string

	Name() string
	Description() string

	// Schema returns the JSON schema of the template's custom payload
	Schema() map[string]any
}

// Dependencies are shared by every executor the registry creates.
type Dependencies struct {
	Logger  *slog.Logger
	Secrets secrets.Manager
	Tracer  trace.Tracer
}

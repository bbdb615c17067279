package sql

import (
	"github.com/dukex/flytestate/pkg/models"
	"github.com/dukex/flytestate/pkg/protocol"
)

// Factory creates sqlalchemy executors for the task registry.
type Factory struct{}

func NewFactory() protocol.TaskExecutorFactory {
	return &Factory{}
}

func (f *Factory) Create(tt models.TaskTemplate, deps protocol.Dependencies) (protocol.TaskExecutor, error) {
	executor, err := NewExecutor(tt, deps)
	if err != nil {
		return nil, err
	}

	return executor, nil
}

func (f *Factory) ID() string {
	return TaskType
}

func (f *Factory) Name() string {
	return "SQLAlchemy"
}

func (f *Factory) Description() string {
	return "Runs an interpolated SQL query and returns the rows as the results output"
}

func (f *Factory) Schema() map[string]any {
	return Schema()
}

package registry_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/dukex/flytestate/pkg/mocks"
	"github.com/dukex/flytestate/pkg/models"
	"github.com/dukex/flytestate/pkg/protocol"
	"github.com/dukex/flytestate/pkg/registry"
	"github.com/dukex/flytestate/pkg/tasks/sql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newRegistry(opts ...registry.Option) *registry.Registry {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	return registry.NewRegistry(logger, opts...)
}

func template(taskType string) models.TaskTemplate {
	return models.TaskTemplate{
		ID:   models.Identifier{ResourceType: models.ResourceTypeTask, Project: "p", Domain: "d", Name: "t", Version: "1"},
		Type: taskType,
	}
}

func mockFactory(taskType string) *mocks.MockTaskExecutorFactory {
	factory := &mocks.MockTaskExecutorFactory{}
	factory.On("ID").Return(taskType)
	factory.On("Name").Return(taskType + " executor")

	return factory
}

func TestRegistry_ExecuteTemplate(t *testing.T) {
	secretManager := &mocks.MockSecretManager{}
	r := newRegistry(registry.WithSecrets(secretManager))

	outputs := models.NewLiteralMap(map[string]models.Literal{"answer": models.IntegerLiteral(42)})
	inputs := map[string]any{"question": "life"}

	executor := &mocks.MockTaskExecutor{}
	executor.On("Execute", mock.Anything, inputs).Return(outputs, nil)

	factory := mockFactory("echo")
	factory.On("Create", template("echo"), mock.MatchedBy(func(deps protocol.Dependencies) bool {
		return deps.Secrets == secretManager && deps.Logger != nil
	})).Return(executor, nil)

	r.Register(factory)

	got, err := r.ExecuteTemplate(context.Background(), template("echo"), inputs)
	require.NoError(t, err)
	assert.True(t, outputs.Equal(got))

	factory.AssertExpectations(t)
	executor.AssertExpectations(t)
}

func TestRegistry_ExecuteTemplateFailures(t *testing.T) {
	r := newRegistry()

	_, err := r.ExecuteTemplate(context.Background(), template("missing"), nil)
	assert.ErrorIs(t, err, registry.ErrTaskTypeNotRegistered)

	createErr := errors.New("bad template")
	broken := mockFactory("broken")
	broken.On("Create", mock.Anything, mock.Anything).Return(nil, createErr)
	r.Register(broken)

	_, err = r.ExecuteTemplate(context.Background(), template("broken"), nil)
	assert.ErrorIs(t, err, createErr)

	execErr := errors.New("query failed")
	executor := &mocks.MockTaskExecutor{}
	executor.On("Execute", mock.Anything, mock.Anything).Return(models.LiteralMap{}, execErr)

	failing := mockFactory("failing")
	failing.On("Create", mock.Anything, mock.Anything).Return(executor, nil)
	r.Register(failing)

	_, err = r.ExecuteTemplate(context.Background(), template("failing"), nil)
	assert.ErrorIs(t, err, execErr)
}

func TestRegistry_DefaultExecutors(t *testing.T) {
	r := newRegistry()

	check, ok := r.HealthCheck()
	assert.False(t, ok)
	assert.Equal(t, "no task executors registered", check)

	r.RegisterDefaultExecutors()
	r.Register(mockFactory("echo"))

	assert.Equal(t, []string{"echo", sql.TaskType}, r.TaskTypes())

	factories := r.Factories()
	require.Len(t, factories, 2)
	assert.Equal(t, sql.TaskType, factories[1].ID())

	check, ok = r.HealthCheck()
	assert.True(t, ok)
	assert.Equal(t, "2 task executors registered", check)

	_, err := r.Create(template(sql.TaskType))
	assert.ErrorIs(t, err, sql.ErrInvalidConfig)
}

func TestRegistry_LoadExecutorPluginsEmptyDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(dir+"/executors", 0o755))

	factories, err := newRegistry().LoadExecutorPlugins(dir)
	require.NoError(t, err)
	assert.Empty(t, factories)
}

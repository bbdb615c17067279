package mocks

import (
	"context"

	"github.com/dukex/flytestate/pkg/models"
	"github.com/dukex/flytestate/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock
}

var _ persistence.Persistence = (*MockPersistence)(nil)

func (m *MockPersistence) SaveExecution(ctx context.Context, execution models.Execution) error {
	args := m.Called(ctx, execution)

	return args.Error(0)
}

func (m *MockPersistence) ExecutionByID(ctx context.Context, id models.WorkflowExecutionIdentifier) (models.Execution, error) {
	args := m.Called(ctx, id)

	return args.Get(0).(models.Execution), args.Error(1)
}

func (m *MockPersistence) Executions(ctx context.Context, opts persistence.ListExecutionsOptions) ([]models.Execution, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]models.Execution), args.Error(1)
}

func (m *MockPersistence) SaveTaskExecution(ctx context.Context, taskExecution models.TaskExecution) error {
	args := m.Called(ctx, taskExecution)

	return args.Error(0)
}

func (m *MockPersistence) TaskExecutions(ctx context.Context, id models.WorkflowExecutionIdentifier) ([]models.TaskExecution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]models.TaskExecution), args.Error(1)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

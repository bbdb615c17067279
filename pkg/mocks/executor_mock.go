package mocks

import (
	"context"

	"github.com/dukex/flytestate/pkg/models"
	"github.com/dukex/flytestate/pkg/protocol"
	"github.com/stretchr/testify/mock"
)

// MockTaskExecutorFactory is a mock implementation of protocol.TaskExecutorFactory interface.
type MockTaskExecutorFactory struct {
	mock.Mock
}

func (m *MockTaskExecutorFactory) Create(template models.TaskTemplate, deps protocol.Dependencies) (protocol.TaskExecutor, error) {
	args := m.Called(template, deps)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(protocol.TaskExecutor), args.Error(1)
}

func (m *MockTaskExecutorFactory) ID() string {
	args := m.Called()

	return args.String(0)
}

func (m *MockTaskExecutorFactory) Name() string {
	args := m.Called()

	return args.String(0)
}

func (m *MockTaskExecutorFactory) Description() string {
	args := m.Called()

	return args.String(0)
}

func (m *MockTaskExecutorFactory) Schema() map[string]any {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}

	return args.Get(0).(map[string]any)
}

// MockTaskExecutor is a mock implementation of protocol.TaskExecutor interface.
type MockTaskExecutor struct {
	mock.Mock
}

func (m *MockTaskExecutor) Execute(ctx context.Context, inputs map[string]any) (models.LiteralMap, error) {
	args := m.Called(ctx, inputs)

	return args.Get(0).(models.LiteralMap), args.Error(1)
}

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockSecretManager is a mock implementation of secrets.Manager interface.
type MockSecretManager struct {
	mock.Mock
}

func (m *MockSecretManager) Get(ctx context.Context, group, key string) (string, error) {
	args := m.Called(ctx, group, key)

	return args.String(0), args.Error(1)
}

package secrets

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	endpoint, err := container.Endpoint(ctx, "redis")
	require.NoError(t, err)

	return endpoint
}

func TestRedisManager_Get(t *testing.T) {
	url := startRedis(t)

	m, err := NewRedisManagerFromURL(t.Context(), url, "flytestate:secrets:")
	require.NoError(t, err)

	defer func() {
		require.NoError(t, m.Close())
	}()

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	defer client.Close()

	require.NoError(t, client.HSet(t.Context(), "flytestate:secrets:db", "password", "hunter2").Err())

	value, err := m.Get(t.Context(), "db", "password")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", value)

	_, err = m.Get(t.Context(), "db", "user")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestNewRedisManagerFromURL_Invalid(t *testing.T) {
	_, err := NewRedisManagerFromURL(t.Context(), "http://nope", "")
	assert.Error(t, err)
}

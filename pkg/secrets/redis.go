package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisManager reads secrets stored as hash fields: HGET <prefix><group> <key>.
type RedisManager struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisManager(client redis.UniversalClient, prefix string) *RedisManager {
	return &RedisManager{client: client, prefix: prefix}
}

// NewRedisManagerFromURL parses a redis:// URL and checks the server is reachable.
func NewRedisManagerFromURL(ctx context.Context, url, prefix string) (*RedisManager, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	err = client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisManager(client, prefix), nil
}

func (m *RedisManager) Get(ctx context.Context, group, key string) (string, error) {
	value, err := m.client.HGet(ctx, m.prefix+group, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("%w: %s/%s", ErrSecretNotFound, group, key)
		}

		return "", fmt.Errorf("failed to read secret %s/%s: %w", group, key, err)
	}

	return value, nil
}

func (m *RedisManager) Close() error {
	return m.client.Close()
}

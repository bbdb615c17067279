package cmd

import (
	"context"
	"fmt"

	"github.com/dukex/flytestate/pkg/secrets"
)

// NewSecretManager returns a Redis backed manager when redisURL is set,
// otherwise the environment/file manager rooted at dir. The returned func
// releases the manager.
func NewSecretManager(ctx context.Context, redisURL, prefix, dir string) (secrets.Manager, func() error, error) {
	if redisURL == "" {
		return secrets.NewEnvManager(dir), func() error { return nil }, nil
	}

	manager, err := secrets.NewRedisManagerFromURL(ctx, redisURL, prefix)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to secret store: %w", err)
	}

	return manager, manager.Close, nil
}

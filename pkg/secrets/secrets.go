// Package secrets resolves the secrets referenced by task templates.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrSecretNotFound = errors.New("secret not found")

// Manager resolves a secret by group and key.
type Manager interface {
	Get(ctx context.Context, group, key string) (string, error)
}

const (
	DefaultEnvPrefix = "_FSEC_"
	DefaultDir       = "/etc/secrets"
)

// EnvManager reads secrets from the environment, then from files laid out
// as <dir>/<group>/<key>.
type EnvManager struct {
	prefix string
	dir    string
	lookup func(string) (string, bool)
}

// NewEnvManager returns a manager reading files under dir. An empty dir
// disables the file fallback.
func NewEnvManager(dir string) *EnvManager {
	return &EnvManager{prefix: DefaultEnvPrefix, dir: dir, lookup: os.LookupEnv}
}

// EnvVar is the variable holding group/key, e.g. _FSEC_DB_PASSWORD.
func (m *EnvManager) EnvVar(group, key string) string {
	return strings.ToUpper(m.prefix + group + "_" + key)
}

func (m *EnvManager) Get(_ context.Context, group, key string) (string, error) {
	if group == "" || key == "" {
		return "", fmt.Errorf("%w: group and key are required", ErrSecretNotFound)
	}

	if value, ok := m.lookup(m.EnvVar(group, key)); ok {
		return value, nil
	}

	if m.dir == "" {
		return "", fmt.Errorf("%w: %s/%s", ErrSecretNotFound, group, key)
	}

	path := filepath.Join(m.dir, filepath.Clean("/"+group), filepath.Clean("/"+key))

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s/%s", ErrSecretNotFound, group, key)
		}

		return "", fmt.Errorf("failed to read secret %s/%s: %w", group, key, err)
	}

	return strings.TrimSpace(string(content)), nil
}

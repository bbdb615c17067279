package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dukex/flytestate/pkg/registry"
	"github.com/dukex/flytestate/pkg/secrets"
	"go.opentelemetry.io/otel/trace"
)

// NewRegistry registers the built-in executors, then any executor plugins
// found under pluginsPath. A missing plugins directory is not an error.
func NewRegistry(log *slog.Logger, pluginsPath string, manager secrets.Manager, tracer trace.Tracer) (*registry.Registry, error) {
	opts := []registry.Option{registry.WithSecrets(manager)}
	if tracer != nil {
		opts = append(opts, registry.WithTracer(tracer))
	}

	reg := registry.NewRegistry(log, opts...)
	reg.RegisterDefaultExecutors()

	if pluginsPath == "" {
		return reg, nil
	}

	_, err := os.Stat(filepath.Join(pluginsPath, "executors"))
	if errors.Is(err, fs.ErrNotExist) {
		return reg, nil
	}

	plugins, err := reg.LoadExecutorPlugins(pluginsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load executor plugins: %w", err)
	}

	for _, plugin := range plugins {
		reg.Register(plugin)
	}

	return reg, nil
}

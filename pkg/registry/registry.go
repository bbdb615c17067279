// Package registry maps task types to the executor factories that run them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"plugin"
	"slices"
	"sync"

	"github.com/dukex/flytestate/pkg/models"
	"github.com/dukex/flytestate/pkg/protocol"
	"github.com/dukex/flytestate/pkg/secrets"
	"github.com/dukex/flytestate/pkg/tasks/sql"
	"go.opentelemetry.io/otel/trace"
)

var ErrTaskTypeNotRegistered = errors.New("task type not registered")

// pluginSymbol is the exported variable an executor plugin must define.
const pluginSymbol = "TaskExecutor"

type Registry struct {
	logger    *slog.Logger
	deps      protocol.Dependencies
	mu        sync.RWMutex
	factories map[string]protocol.TaskExecutorFactory
}

type Option func(*Registry)

// WithSecrets sets the secret manager handed to every executor.
func WithSecrets(manager secrets.Manager) Option {
	return func(r *Registry) {
		r.deps.Secrets = manager
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(r *Registry) {
		r.deps.Tracer = tracer
	}
}

func NewRegistry(log *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		logger:    log.With("module", "registry"),
		deps:      protocol.Dependencies{Logger: log},
		factories: make(map[string]protocol.TaskExecutorFactory),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds factory under its ID, replacing any factory for that type.
func (r *Registry) Register(factory protocol.TaskExecutorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[factory.ID()] = factory
	r.logger.Debug("registered task executor", "task_type", factory.ID(), "name", factory.Name())
}

// RegisterDefaultExecutors registers the built-in task executors.
func (r *Registry) RegisterDefaultExecutors() {
	r.Register(sql.NewFactory())
}

// LoadExecutorPlugins opens every *.so under pluginsPath/executors and
// returns the factories they export.
func (r *Registry) LoadExecutorPlugins(pluginsPath string) ([]protocol.TaskExecutorFactory, error) {
	rootPath := filepath.Join(pluginsPath, "executors")

	pluginPathList, err := fs.Glob(os.DirFS(rootPath), "*.so")
	if err != nil {
		return nil, fmt.Errorf("failed to list plugins: %w", err)
	}

	l := r.logger.With(slog.String("path", rootPath))
	l.Info("Loading plugins")

	factories := make([]protocol.TaskExecutorFactory, 0, len(pluginPathList))

	for _, p := range pluginPathList {
		plg, err := plugin.Open(filepath.Join(rootPath, p))
		if err != nil {
			return nil, fmt.Errorf("failed to open plugin %s: %w", p, err)
		}

		symbol, err := plg.Lookup(pluginSymbol)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", p, err)
		}

		factory, ok := symbol.(protocol.TaskExecutorFactory)
		if !ok {
			return nil, fmt.Errorf("plugin %s: %s does not implement TaskExecutorFactory", p, pluginSymbol)
		}

		factories = append(factories, factory)

		l.Info("Loaded executor plugin", slog.String("plugin", p), slog.String("task_type", factory.ID()))
	}

	return factories, nil
}

func (r *Registry) factory(taskType string) (protocol.TaskExecutorFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[taskType]

	return factory, ok
}

// Create builds an executor for tt using the factory registered for tt.Type.
func (r *Registry) Create(tt models.TaskTemplate) (protocol.TaskExecutor, error) {
	factory, ok := r.factory(tt.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTaskTypeNotRegistered, tt.Type)
	}

	return factory.Create(tt, r.deps)
}

// ExecuteTemplate runs one attempt of tt with the given inputs.
func (r *Registry) ExecuteTemplate(ctx context.Context, tt models.TaskTemplate, inputs map[string]any) (models.LiteralMap, error) {
	executor, err := r.Create(tt)
	if err != nil {
		return models.LiteralMap{}, err
	}

	r.logger.InfoContext(ctx, "executing task", "task", tt.ID.String(), "task_type", tt.Type)

	outputs, err := executor.Execute(ctx, inputs)
	if err != nil {
		r.logger.ErrorContext(ctx, "task failed", "task", tt.ID.String(), "error", err)

		return models.LiteralMap{}, err
	}

	return outputs, nil
}

// TaskTypes returns the registered task types in sorted order.
func (r *Registry) TaskTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for taskType := range r.factories {
		types = append(types, taskType)
	}

	slices.Sort(types)

	return types
}

// Factories returns the registered factories ordered by task type.
func (r *Registry) Factories() []protocol.TaskExecutorFactory {
	types := r.TaskTypes()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.TaskExecutorFactory, 0, len(types))
	for _, taskType := range types {
		out = append(out, r.factories[taskType])
	}

	return out
}

func (r *Registry) HealthCheck() (string, bool) {
	types := r.TaskTypes()
	if len(types) == 0 {
		return "no task executors registered", false
	}

	return fmt.Sprintf("%d task executors registered", len(types)), true
}

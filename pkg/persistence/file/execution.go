package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/dukex/flytestate/pkg/models"
	"github.com/dukex/flytestate/pkg/persistence"
)

const executionFile = "execution.pb"

// ExecutionRepository handles execution snapshot file operations.
type ExecutionRepository struct {
	root string
	mu   sync.RWMutex
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

// Save replaces the stored snapshot of the execution.
func (r *ExecutionRepository) Save(_ context.Context, execution models.Execution) error {
	data, err := execution.MarshalBinary()
	if err != nil {
		return persistence.NewRecordError("SaveExecution", execution.ID.String(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err = writeFile(filepath.Join(executionDir(r.root, execution.ID), executionFile), data)
	if err != nil {
		return persistence.NewRecordError("SaveExecution", execution.ID.String(), err)
	}

	return nil
}

// GetByID retrieves an execution snapshot.
func (r *ExecutionRepository) GetByID(_ context.Context, id models.WorkflowExecutionIdentifier) (models.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.load(filepath.Join(executionDir(r.root, id), executionFile), id.String())
}

// List returns the filtered, sorted and paginated executions. File storage
// has no index, so every snapshot is decoded.
func (r *ExecutionRepository) List(_ context.Context, opts persistence.ListExecutionsOptions) ([]models.Execution, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	matches, err := fs.Glob(os.DirFS(r.root), "executions/*/*/*/*/"+executionFile)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	executions := make([]models.Execution, 0, len(matches))

	for _, match := range matches {
		execution, err := r.load(filepath.Join(r.root, match), match)
		if err != nil {
			return nil, err
		}

		if opts.Matches(execution) {
			executions = append(executions, execution)
		}
	}

	opts.SortExecutions(executions)

	return opts.Page(executions), nil
}

func (r *ExecutionRepository) load(path, id string) (models.Execution, error) {
	body, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.Execution{}, persistence.NewRecordError("ExecutionByID", id, persistence.ErrExecutionNotFound)
		}

		return models.Execution{}, persistence.NewRecordError("ExecutionByID", id, err)
	}

	var execution models.Execution

	err = execution.UnmarshalBinary(body)
	if err != nil {
		return models.Execution{}, persistence.NewRecordError("ExecutionByID", id, err)
	}

	return execution, nil
}

package file

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/dukex/flytestate/pkg/models"
	"github.com/dukex/flytestate/pkg/persistence"
)

// TaskExecutionRepository stores task execution snapshots under the directory
// of the workflow execution they belong to.
type TaskExecutionRepository struct {
	root string
	mu   sync.RWMutex
}

func NewTaskExecutionRepository(root string) *TaskExecutionRepository {
	return &TaskExecutionRepository{root: root}
}

// path keeps one directory level per identifier part, so no two distinct
// identifiers share a file.
func (r *TaskExecutionRepository) path(id models.TaskExecutionIdentifier) string {
	return filepath.Join(executionDir(r.root, id.NodeExecutionID.ExecutionID), "tasks",
		segment(id.NodeExecutionID.NodeID),
		segment(id.TaskID.Org),
		segment(id.TaskID.Project),
		segment(id.TaskID.Domain),
		segment(id.TaskID.Name),
		segment(id.TaskID.Version),
		strconv.FormatUint(uint64(id.RetryAttempt), 10)+".pb")
}

func (r *TaskExecutionRepository) Save(_ context.Context, taskExecution models.TaskExecution) error {
	id := taskExecution.ID.NodeExecutionID.ExecutionID.String()

	data, err := taskExecution.MarshalBinary()
	if err != nil {
		return persistence.NewRecordError("SaveTaskExecution", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err = writeFile(r.path(taskExecution.ID), data)
	if err != nil {
		return persistence.NewRecordError("SaveTaskExecution", id, err)
	}

	return nil
}

// ByExecution returns the task executions of a workflow execution ordered by
// node, task and retry attempt.
func (r *TaskExecutionRepository) ByExecution(_ context.Context, id models.WorkflowExecutionIdentifier) ([]models.TaskExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dir := filepath.Join(executionDir(r.root, id), "tasks")

	_, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewRecordError("TaskExecutions", id.String(), persistence.ErrTaskExecutionNotFound)
		}

		return nil, persistence.NewRecordError("TaskExecutions", id.String(), err)
	}

	out := make([]models.TaskExecution, 0)

	err = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() || filepath.Ext(path) != ".pb" {
			return nil
		}

		body, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var te models.TaskExecution

		err = te.UnmarshalBinary(body)
		if err != nil {
			return fmt.Errorf("%s: %w", entry.Name(), err)
		}

		out = append(out, te)

		return nil
	})
	if err != nil {
		return nil, persistence.NewRecordError("TaskExecutions", id.String(), err)
	}

	slices.SortFunc(out, compareTaskExecutions)

	return out, nil
}

func compareTaskExecutions(a, b models.TaskExecution) int {
	return cmp.Or(
		cmp.Compare(a.ID.NodeExecutionID.NodeID, b.ID.NodeExecutionID.NodeID),
		cmp.Compare(a.ID.TaskID.String(), b.ID.TaskID.String()),
		cmp.Compare(a.ID.RetryAttempt, b.ID.RetryAttempt),
	)
}

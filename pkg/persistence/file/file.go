// Package file provides file-based persistence for execution snapshots.
package file

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/flytestate/pkg/models"
	"github.com/dukex/flytestate/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
// Snapshots are stored in their protobuf encoding, one file per record.
type Persistence struct {
	root              string
	executionRepo     *ExecutionRepository
	taskExecutionRepo *TaskExecutionRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:              cleanRoot,
		executionRepo:     NewExecutionRepository(cleanRoot),
		taskExecutionRepo: NewTaskExecutionRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) SaveExecution(ctx context.Context, execution models.Execution) error {
	return fp.executionRepo.Save(ctx, execution)
}

func (fp *Persistence) ExecutionByID(ctx context.Context, id models.WorkflowExecutionIdentifier) (models.Execution, error) {
	return fp.executionRepo.GetByID(ctx, id)
}

func (fp *Persistence) Executions(ctx context.Context, opts persistence.ListExecutionsOptions) ([]models.Execution, error) {
	return fp.executionRepo.List(ctx, opts)
}

func (fp *Persistence) SaveTaskExecution(ctx context.Context, taskExecution models.TaskExecution) error {
	return fp.taskExecutionRepo.Save(ctx, taskExecution)
}

func (fp *Persistence) TaskExecutions(ctx context.Context, id models.WorkflowExecutionIdentifier) ([]models.TaskExecution, error) {
	return fp.taskExecutionRepo.ByExecution(ctx, id)
}

// executionDir returns the directory of one workflow execution, one level
// per identifier part starting with the org.
func executionDir(root string, id models.WorkflowExecutionIdentifier) string {
	return filepath.Join(root, "executions",
		segment(id.Org), segment(id.Project), segment(id.Domain), segment(id.Name))
}

// segment turns an identifier part into a single path element. Dots are
// escaped so "." and ".." never reach the file system, and the empty string
// becomes a lone "%", which escaping never produces.
func segment(part string) string {
	if part == "" {
		return "%"
	}

	return strings.ReplaceAll(url.PathEscape(part), ".", "%2E")
}

// writeFile writes data through a temporary file so readers never observe a
// partially written snapshot.
func writeFile(path string, data []byte) error {
	err := os.MkdirAll(filepath.Dir(path), 0750)
	if err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp := path + ".tmp"

	err = os.WriteFile(tmp, data, 0600)
	if err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

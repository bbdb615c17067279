// Package persistence provides the storage abstraction for execution snapshots.
package persistence

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dukex/flytestate/pkg/models"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Persistence interface {
	SaveExecution(ctx context.Context, execution models.Execution) error
	ExecutionByID(ctx context.Context, id models.WorkflowExecutionIdentifier) (models.Execution, error)
	Executions(ctx context.Context, opts ListExecutionsOptions) ([]models.Execution, error)

	SaveTaskExecution(ctx context.Context, taskExecution models.TaskExecution) error
	TaskExecutions(ctx context.Context, id models.WorkflowExecutionIdentifier) ([]models.TaskExecution, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListExecutionsOptions filters and orders an execution listing. Empty
// Org/Project/Domain and a nil Phase match everything.
type ListExecutionsOptions struct {
	Org     string
	Project string
	Domain  string
	Phase   *models.WorkflowExecutionPhase
	Sort    models.Sort
	Limit   int
	Offset  int
}

// DefaultSort orders executions newest first.
var DefaultSort = models.Sort{Key: "created_at", Direction: models.SortDescending}

// sortKeys maps the accepted sort keys to the backing column names.
var sortKeys = map[string]string{
	"name":       "name",
	"phase":      "phase",
	"started_at": "started_at",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// SortColumn returns the column for an accepted sort key.
func SortColumn(key string) (string, error) {
	column, ok := sortKeys[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidSortKey, key)
	}

	return column, nil
}

// Normalize applies defaults and validates the options.
func (o ListExecutionsOptions) Normalize() (ListExecutionsOptions, error) {
	if o.Limit <= 0 || o.Limit > MaxLimit {
		o.Limit = DefaultLimit
	}

	if o.Offset < 0 {
		o.Offset = 0
	}

	if o.Sort.Key == "" {
		o.Sort = DefaultSort
	}

	if _, err := SortColumn(o.Sort.Key); err != nil {
		return o, err
	}

	return o, nil
}

// Matches reports whether execution passes the filters of o.
func (o ListExecutionsOptions) Matches(execution models.Execution) bool {
	if o.Org != "" && execution.ID.Org != o.Org {
		return false
	}

	if o.Project != "" && execution.ID.Project != o.Project {
		return false
	}

	if o.Domain != "" && execution.ID.Domain != o.Domain {
		return false
	}

	if o.Phase != nil && execution.Closure.Phase != *o.Phase {
		return false
	}

	return true
}

// SortExecutions orders executions in place by o.Sort, breaking ties on the
// identifier so the order is total. Used by stores that cannot sort natively.
func (o ListExecutionsOptions) SortExecutions(executions []models.Execution) {
	slices.SortStableFunc(executions, func(a, b models.Execution) int {
		c := compareBy(o.Sort.Key, a, b)
		if c == 0 {
			c = cmp.Compare(a.ID.String(), b.ID.String())
		}

		if o.Sort.Direction == models.SortDescending {
			return -c
		}

		return c
	})
}

// Page applies Offset and Limit to an already sorted slice.
func (o ListExecutionsOptions) Page(executions []models.Execution) []models.Execution {
	if o.Offset >= len(executions) {
		return []models.Execution{}
	}

	end := min(o.Offset+o.Limit, len(executions))

	return executions[o.Offset:end]
}

func compareBy(key string, a, b models.Execution) int {
	switch key {
	case "name":
		return cmp.Compare(a.ID.Name, b.ID.Name)
	case "phase":
		return cmp.Compare(a.Closure.Phase, b.Closure.Phase)
	case "started_at":
		return compareTime(a.Closure.StartedAt, b.Closure.StartedAt)
	case "updated_at":
		return compareTime(a.Closure.UpdatedAt, b.Closure.UpdatedAt)
	default:
		return compareTime(a.Closure.CreatedAt, b.Closure.CreatedAt)
	}
}

func compareTime(a, b time.Time) int {
	return a.Compare(b)
}

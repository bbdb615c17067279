package persistence_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dukex/flytestate/pkg/models"
	"github.com/dukex/flytestate/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error checking functions work correctly", func(t *testing.T) {
		execErr := persistence.NewRecordError("ExecutionByID", "p/d/n", persistence.ErrExecutionNotFound)
		taskErr := persistence.NewRecordError("TaskExecutions", "p/d/n", persistence.ErrTaskExecutionNotFound)

		assert.True(t, persistence.IsExecutionNotFound(execErr))
		assert.False(t, persistence.IsExecutionNotFound(taskErr))
		assert.True(t, persistence.IsTaskExecutionNotFound(taskErr))
		assert.True(t, errors.Is(execErr, persistence.ErrExecutionNotFound))
	})

	t.Run("record error contains context", func(t *testing.T) {
		err := persistence.NewRecordError("SaveExecution", "flytesnacks/development/abc", errors.New("disk full"))

		assert.Contains(t, err.Error(), "SaveExecution")
		assert.Contains(t, err.Error(), "flytesnacks/development/abc")
		assert.Contains(t, err.Error(), "disk full")
	})
}

func execution(name string, phase models.WorkflowExecutionPhase, created time.Time) models.Execution {
	closure := models.NewExecutionClosure(phase, created.Add(time.Second))
	closure.CreatedAt = created

	return models.Execution{
		ID:      models.WorkflowExecutionIdentifier{Project: "p", Domain: "d", Name: name},
		Closure: closure,
	}
}

func names(executions []models.Execution) []string {
	out := make([]string, 0, len(executions))
	for _, e := range executions {
		out = append(out, e.ID.Name)
	}

	return out
}

func TestListExecutionsOptions(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	executions := []models.Execution{
		execution("b", models.WorkflowPhaseRunning, base.Add(2*time.Hour)),
		execution("a", models.WorkflowPhaseFailed, base),
		execution("c", models.WorkflowPhaseRunning, base.Add(time.Hour)),
	}

	t.Run("defaults", func(t *testing.T) {
		opts, err := persistence.ListExecutionsOptions{Limit: 1000, Offset: -3}.Normalize()
		require.NoError(t, err)
		assert.Equal(t, persistence.DefaultLimit, opts.Limit)
		assert.Equal(t, 0, opts.Offset)
		assert.Equal(t, persistence.DefaultSort, opts.Sort)
	})

	t.Run("unknown sort key", func(t *testing.T) {
		_, err := persistence.ListExecutionsOptions{Sort: models.Sort{Key: "owner"}}.Normalize()
		assert.ErrorIs(t, err, persistence.ErrInvalidSortKey)
	})

	t.Run("sort and page", func(t *testing.T) {
		opts, err := persistence.ListExecutionsOptions{Sort: models.Sort{Key: "name", Direction: models.SortAscending}, Limit: 2}.Normalize()
		require.NoError(t, err)

		sorted := append([]models.Execution(nil), executions...)
		opts.SortExecutions(sorted)
		assert.Equal(t, []string{"a", "b", "c"}, names(sorted))
		assert.Equal(t, []string{"a", "b"}, names(opts.Page(sorted)))

		opts.Offset = 5
		assert.Empty(t, opts.Page(sorted))
	})

	t.Run("newest first by default", func(t *testing.T) {
		opts, err := persistence.ListExecutionsOptions{}.Normalize()
		require.NoError(t, err)

		sorted := append([]models.Execution(nil), executions...)
		opts.SortExecutions(sorted)
		assert.Equal(t, []string{"b", "c", "a"}, names(sorted))
	})

	t.Run("filters", func(t *testing.T) {
		running := models.WorkflowPhaseRunning
		opts := persistence.ListExecutionsOptions{Project: "p", Phase: &running}

		assert.True(t, opts.Matches(executions[0]))
		assert.False(t, opts.Matches(executions[1]))

		opts.Domain = "other"
		assert.False(t, opts.Matches(executions[0]))
	})
}

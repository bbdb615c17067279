package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/flytestate/pkg/models"
	"github.com/dukex/flytestate/pkg/persistence"
)

type TaskExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewTaskExecutionRepository(db *sql.DB, logger *slog.Logger) *TaskExecutionRepository {
	return &TaskExecutionRepository{db: db, logger: logger}
}

func (r *TaskExecutionRepository) Save(ctx context.Context, taskExecution models.TaskExecution) error {
	id := taskExecution.ID
	execID := id.NodeExecutionID.ExecutionID

	payload, err := taskExecution.MarshalBinary()
	if err != nil {
		return persistence.NewRecordError("SaveTaskExecution", id.String(), err)
	}

	query := `
		INSERT INTO task_executions (org, project, domain, execution_name, node_id,
task_org, task_project, task_domain, task_name, task_version, retry_attempt, phase, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (org, project, domain, execution_name, node_id,
task_org, task_project, task_domain, task_name, task_version, retry_attempt)
		DO UPDATE SET
			phase = EXCLUDED.phase,
			payload = EXCLUDED.payload
	`

	_, err = r.db.ExecContext(ctx, query,
		execID.Org,
		execID.Project,
		execID.Domain,
		execID.Name,
		id.NodeExecutionID.NodeID,
		id.TaskID.Org,
		id.TaskID.Project,
		id.TaskID.Domain,
		id.TaskID.Name,
		id.TaskID.Version,
		int64(id.RetryAttempt),
		int32(taskExecution.Closure.Phase),
		payload,
	)
	if err != nil {
		return persistence.NewRecordError("SaveTaskExecution", id.String(), fmt.Errorf("failed to save task execution: %w", err))
	}

	return nil
}

// ByExecution returns the task executions of a workflow execution ordered by
// node, task and retry attempt.
func (r *TaskExecutionRepository) ByExecution(ctx context.Context, id models.WorkflowExecutionIdentifier) ([]models.TaskExecution, error) {
	query := `
		SELECT payload
		FROM task_executions
		WHERE org = $1 AND project = $2 AND domain = $3 AND execution_name = $4
		ORDER BY node_id, task_org, task_project, task_domain, task_name, task_version, retry_attempt
	`

	rows, err := r.db.QueryContext(ctx, query, id.Org, id.Project, id.Domain, id.Name)
	if err != nil {
		return nil, persistence.NewRecordError("TaskExecutions", id.String(), fmt.Errorf("failed to query task executions: %w", err))
	}

	defer func(ctx context.Context, r *TaskExecutionRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	out := make([]models.TaskExecution, 0)

	for rows.Next() {
		var payload []byte

		err := rows.Scan(&payload)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task execution: %w", err)
		}

		var te models.TaskExecution

		err = te.UnmarshalBinary(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode task execution: %w", err)
		}

		out = append(out, te)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating task executions: %w", err)
	}

	if len(out) == 0 {
		return nil, persistence.NewRecordError("TaskExecutions", id.String(), persistence.ErrTaskExecutionNotFound)
	}

	return out, nil
}

package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/flytestate/pkg/models"
	"github.com/dukex/flytestate/pkg/persistence"
	_ "github.com/lib/pq"
)

// ExecutionRepository handles execution snapshot database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

// Save upserts the snapshot. The payload is the canonical encoding; the other
// columns are copies used for filtering and sorting.
func (r *ExecutionRepository) Save(ctx context.Context, execution models.Execution) error {
	payload, err := execution.MarshalBinary()
	if err != nil {
		return persistence.NewRecordError("SaveExecution", execution.ID.String(), err)
	}

	query := `
		INSERT INTO executions (org, project, domain, name, phase, launch_plan, principal,
started_at, created_at, updated_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (org, project, domain, name) DO UPDATE SET
			phase = EXCLUDED.phase,
			launch_plan = EXCLUDED.launch_plan,
			principal = EXCLUDED.principal,
			started_at = EXCLUDED.started_at,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			payload = EXCLUDED.payload
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID.Org,
		execution.ID.Project,
		execution.ID.Domain,
		execution.ID.Name,
		int32(execution.Closure.Phase),
		execution.Spec.LaunchPlan.String(),
		execution.Spec.Metadata.Principal,
		nullTime(execution.Closure.StartedAt),
		nullTime(execution.Closure.CreatedAt),
		nullTime(execution.Closure.UpdatedAt),
		payload,
	)
	if err != nil {
		return persistence.NewRecordError("SaveExecution", execution.ID.String(), fmt.Errorf("failed to save execution: %w", err))
	}

	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id models.WorkflowExecutionIdentifier) (models.Execution, error) {
	query := `
		SELECT payload
		FROM executions
		WHERE org = $1 AND project = $2 AND domain = $3 AND name = $4
	`

	var payload []byte

	err := r.db.QueryRowContext(ctx, query, id.Org, id.Project, id.Domain, id.Name).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Execution{}, persistence.NewRecordError("ExecutionByID", id.String(), persistence.ErrExecutionNotFound)
		}

		return models.Execution{}, persistence.NewRecordError("ExecutionByID", id.String(), fmt.Errorf("failed to query execution: %w", err))
	}

	var execution models.Execution

	err = execution.UnmarshalBinary(payload)
	if err != nil {
		return models.Execution{}, persistence.NewRecordError("ExecutionByID", id.String(), err)
	}

	return execution, nil
}

// List returns executions matching opts. The sort column comes from the
// persistence whitelist, never from the caller directly.
func (r *ExecutionRepository) List(ctx context.Context, opts persistence.ListExecutionsOptions) ([]models.Execution, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}

	column, err := persistence.SortColumn(opts.Sort.Key)
	if err != nil {
		return nil, err
	}

	var (
		conditions []string
		args       []any
	)

	if opts.Org != "" {
		args = append(args, opts.Org)
		conditions = append(conditions, "org = $"+strconv.Itoa(len(args)))
	}

	if opts.Project != "" {
		args = append(args, opts.Project)
		conditions = append(conditions, "project = $"+strconv.Itoa(len(args)))
	}

	if opts.Domain != "" {
		args = append(args, opts.Domain)
		conditions = append(conditions, "domain = $"+strconv.Itoa(len(args)))
	}

	if opts.Phase != nil {
		args = append(args, int32(*opts.Phase))
		conditions = append(conditions, "phase = $"+strconv.Itoa(len(args)))
	}

	direction := "DESC"
	if opts.Sort.Direction == models.SortAscending {
		direction = "ASC"
	}

	var query strings.Builder

	query.WriteString("SELECT payload FROM executions")

	if len(conditions) > 0 {
		query.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}

	fmt.Fprintf(&query, " ORDER BY %s %s NULLS LAST, org %s, project %s, domain %s, name %s", column, direction, direction, direction, direction, direction)

	args = append(args, opts.Limit, opts.Offset)
	fmt.Fprintf(&query, " LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func(ctx context.Context, r *ExecutionRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	executions := make([]models.Execution, 0)

	for rows.Next() {
		var payload []byte

		err := rows.Scan(&payload)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		var execution models.Execution

		err = execution.UnmarshalBinary(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode execution: %w", err)
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

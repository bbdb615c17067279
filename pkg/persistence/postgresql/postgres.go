// Package postgresql provides PostgreSQL persistence for execution snapshots.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/flytestate/pkg/models"
	"github.com/dukex/flytestate/pkg/persistence"
	"github.com/dukex/flytestate/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db                *sql.DB
	logger            *slog.Logger
	executionRepo     *ExecutionRepository
	taskExecutionRepo *TaskExecutionRepository
}

// NewPersistence creates a new PostgreSQL persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	postgres := &Persistence{
		db:                database,
		logger:            logger,
		executionRepo:     NewExecutionRepository(database, logger),
		taskExecutionRepo: NewTaskExecutionRepository(database, logger),
	}

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) SaveExecution(ctx context.Context, execution models.Execution) error {
	return p.executionRepo.Save(ctx, execution)
}

func (p *Persistence) ExecutionByID(ctx context.Context, id models.WorkflowExecutionIdentifier) (models.Execution, error) {
	return p.executionRepo.GetByID(ctx, id)
}

func (p *Persistence) Executions(ctx context.Context, opts persistence.ListExecutionsOptions) ([]models.Execution, error) {
	return p.executionRepo.List(ctx, opts)
}

func (p *Persistence) SaveTaskExecution(ctx context.Context, taskExecution models.TaskExecution) error {
	return p.taskExecutionRepo.Save(ctx, taskExecution)
}

func (p *Persistence) TaskExecutions(ctx context.Context, id models.WorkflowExecutionIdentifier) ([]models.TaskExecution, error) {
	return p.taskExecutionRepo.ByExecution(ctx, id)
}

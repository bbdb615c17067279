package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/flytestate/pkg/models"
	"github.com/dukex/flytestate/pkg/notify"
	"github.com/dukex/flytestate/pkg/otelhelper"
	"github.com/dukex/flytestate/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ConformanceMode decides what ingest does with a closure whose phase and
// payload disagree.
type ConformanceMode int

const (
	ConformanceStrict ConformanceMode = iota
	ConformanceWarn
)

func ParseConformanceMode(s string) (ConformanceMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return ConformanceStrict, nil
	case "warn":
		return ConformanceWarn, nil
	default:
		return ConformanceStrict, fmt.Errorf("%w: unknown conformance mode %q", ErrInvalidRequest, s)
	}
}

type Execution struct {
	persistence persistence.Persistence
	router      *notify.Router
	logger      *slog.Logger
	tracer      trace.Tracer
	validate    *validator.Validate
	mode        ConformanceMode
}

type Option func(*Execution)

// WithRouter publishes the notifications fired by each ingested execution.
func WithRouter(router *notify.Router) Option {
	return func(e *Execution) {
		e.router = router
	}
}

func WithConformance(mode ConformanceMode) Option {
	return func(e *Execution) {
		e.mode = mode
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Execution) {
		e.tracer = tracer
	}
}

func NewExecution(persistence persistence.Persistence, logger *slog.Logger, opts ...Option) *Execution {
	e := &Execution{
		persistence: persistence,
		logger:      logger.With("module", "execution_service"),
		tracer:      otel.Tracer("flytestate/services"),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// HealthCheck checks the health of the persistence layer.
func (e *Execution) HealthCheck(ctx context.Context) (string, bool) {
	if e.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := e.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Ingest decodes an encoded Execution and records it.
func (e *Execution) Ingest(ctx context.Context, payload []byte) (models.Execution, error) {
	var execution models.Execution

	err := execution.UnmarshalBinary(payload)
	if err != nil {
		return models.Execution{}, err
	}

	err = e.Record(ctx, execution)
	if err != nil {
		return models.Execution{}, err
	}

	return execution, nil
}

// Record checks, stores and routes an execution snapshot. Notifications go
// out only when the phase differs from the stored snapshot. Delivery
// failures are logged; the snapshot is already stored by then.
func (e *Execution) Record(ctx context.Context, execution models.Execution) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "services.record_execution",
		attribute.String(otelhelper.ExecutionIDKey, execution.ID.String()),
		attribute.String(otelhelper.ExecutionPhaseKey, execution.Closure.Phase.String()),
	)
	defer span.End()

	err := e.validateIdentifier("RecordExecution", execution.ID)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	err = e.conform(ctx, "RecordExecution", execution.ID.String(), execution.Closure.CheckConsistency())
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	entered := false

	if e.router != nil {
		entered, err = e.entersPhase(ctx, execution)
		if err != nil {
			otelhelper.SetError(span, err)

			return err
		}
	}

	err = e.persistence.SaveExecution(ctx, execution)
	if err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to save execution: %w", err)
	}

	e.logger.InfoContext(ctx, "recorded execution",
		"execution", execution.ID.String(),
		"phase", execution.Closure.Phase.String())

	if !entered {
		return nil
	}

	sent, err := e.router.Publish(ctx, execution)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to route notifications",
			"execution", execution.ID.String(),
			"sent", sent,
			"error", err)
	}

	return nil
}

// entersPhase reports whether execution moves to a phase other than the one
// of its stored snapshot. A first snapshot always enters its phase.
func (e *Execution) entersPhase(ctx context.Context, execution models.Execution) (bool, error) {
	previous, err := e.persistence.ExecutionByID(ctx, execution.ID)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			return true, nil
		}

		return false, fmt.Errorf("failed to load previous execution: %w", err)
	}

	return previous.Closure.Phase != execution.Closure.Phase, nil
}

// IngestTaskExecution decodes an encoded TaskExecution and records it.
func (e *Execution) IngestTaskExecution(ctx context.Context, payload []byte) (models.TaskExecution, error) {
	var taskExecution models.TaskExecution

	err := taskExecution.UnmarshalBinary(payload)
	if err != nil {
		return models.TaskExecution{}, err
	}

	err = e.RecordTaskExecution(ctx, taskExecution)
	if err != nil {
		return models.TaskExecution{}, err
	}

	return taskExecution, nil
}

func (e *Execution) RecordTaskExecution(ctx context.Context, taskExecution models.TaskExecution) error {
	id := taskExecution.ID

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "services.record_task_execution",
		attribute.String(otelhelper.TaskExecutionIDKey, id.String()),
		attribute.String(otelhelper.TaskTypeKey, taskExecution.Closure.TaskType),
	)
	defer span.End()

	err := e.validateIdentifier("RecordTaskExecution", id.NodeExecutionID.ExecutionID)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	if id.NodeExecutionID.NodeID == "" {
		err = NewValidationError("RecordTaskExecution", "INVALID_IDENTIFIER", "node id is required", ErrInvalidRequest)
		otelhelper.SetError(span, err)

		return err
	}

	err = e.conform(ctx, "RecordTaskExecution", id.String(), taskExecution.Closure.CheckConsistency())
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	if err := taskExecution.Closure.CheckTimeline(); err != nil {
		e.logger.WarnContext(ctx, "task execution timeline out of order", "task_execution", id.String(), "error", err)
	}

	err = e.persistence.SaveTaskExecution(ctx, taskExecution)
	if err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to save task execution: %w", err)
	}

	e.logger.InfoContext(ctx, "recorded task execution",
		"task_execution", id.String(),
		"phase", taskExecution.Closure.Phase.String())

	return nil
}

// conform applies the conformance mode to the result of a consistency check.
func (e *Execution) conform(ctx context.Context, op, id string, consistency error) error {
	if consistency == nil {
		return nil
	}

	if e.mode == ConformanceWarn {
		e.logger.WarnContext(ctx, "accepting inconsistent closure", "record", id, "error", consistency)

		return nil
	}

	return &ServiceError{
		Op:      op,
		Code:    "INCONSISTENT_CLOSURE",
		Message: consistency.Error(),
		Err:     fmt.Errorf("%w: %w", ErrInconsistentClosure, consistency),
	}
}

func (e *Execution) validateIdentifier(op string, id models.WorkflowExecutionIdentifier) error {
	if id.Project == "" || id.Domain == "" || id.Name == "" {
		return NewValidationError(op, "INVALID_IDENTIFIER",
			fmt.Sprintf("execution identifier %q needs project, domain and name", id.String()),
			ErrInvalidRequest)
	}

	for _, part := range []string{id.Org, id.Project, id.Domain, id.Name} {
		if part == "." || part == ".." {
			return NewValidationError(op, "INVALID_IDENTIFIER",
				fmt.Sprintf("execution identifier %q has a dot segment", id.String()),
				ErrInvalidRequest)
		}
	}

	return nil
}

// FetchByID retrieves an execution snapshot.
func (e *Execution) FetchByID(ctx context.Context, id models.WorkflowExecutionIdentifier) (models.Execution, error) {
	err := e.validateIdentifier("FetchByID", id)
	if err != nil {
		return models.Execution{}, err
	}

	return e.persistence.ExecutionByID(ctx, id)
}

// TaskExecutions lists the task executions recorded for an execution.
func (e *Execution) TaskExecutions(ctx context.Context, id models.WorkflowExecutionIdentifier) ([]models.TaskExecution, error) {
	err := e.validateIdentifier("TaskExecutions", id)
	if err != nil {
		return nil, err
	}

	return e.persistence.TaskExecutions(ctx, id)
}

// ListExecutionsRequest contains options for listing executions. Phase and
// Sort are given in their text forms, e.g. "RUNNING" and "desc(started_at)".
type ListExecutionsRequest struct {
	Org     string
	Project string
	Domain  string
	Phase   string

	Sort   string
	Limit  int `validate:"min=0,max=100"`
	Offset int `validate:"min=0"`
}

// ListExecutionsResponse contains the result of listing executions.
type ListExecutionsResponse struct {
	Executions []models.Execution `json:"executions"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
	Sort       string             `json:"sort"`
}

// ListExecutions retrieves executions with filtering, sorting, and pagination.
func (e *Execution) ListExecutions(ctx context.Context, req ListExecutionsRequest) (*ListExecutionsResponse, error) {
	opts, err := e.listOptions(req)
	if err != nil {
		return nil, err
	}

	executions, err := e.persistence.Executions(ctx, opts)
	if err != nil {
		if persistence.IsInvalidSortKey(err) {
			return nil, NewValidationError("ListExecutions", "INVALID_SORT", err.Error(), ErrInvalidSort)
		}

		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	return &ListExecutionsResponse{
		Executions: executions,
		Limit:      opts.Limit,
		Offset:     opts.Offset,
		Sort:       opts.Sort.String(),
	}, nil
}

func (e *Execution) listOptions(req ListExecutionsRequest) (persistence.ListExecutionsOptions, error) {
	err := e.validate.Struct(req)
	if err != nil {
		return persistence.ListExecutionsOptions{}, NewValidationError("ListExecutions", "INVALID_PAGINATION", err.Error(), ErrInvalidRequest)
	}

	opts := persistence.ListExecutionsOptions{
		Org:     strings.TrimSpace(req.Org),
		Project: strings.TrimSpace(req.Project),
		Domain:  strings.TrimSpace(req.Domain),
		Limit:   req.Limit,
		Offset:  req.Offset,
	}

	if req.Phase != "" {
		phase, err := models.ParseWorkflowExecutionPhase(strings.ToUpper(strings.TrimSpace(req.Phase)))
		if err != nil {
			return opts, NewValidationError("ListExecutions", "INVALID_PHASE", err.Error(), ErrInvalidRequest)
		}

		opts.Phase = &phase
	}

	if req.Sort != "" {
		sort, err := models.ParseSort(req.Sort)
		if err != nil {
			return opts, NewValidationError("ListExecutions", "INVALID_SORT", err.Error(), ErrInvalidSort)
		}

		opts.Sort = sort
	}

	opts, err = opts.Normalize()
	if err != nil {
		return opts, NewValidationError("ListExecutions", "INVALID_SORT", err.Error(), ErrInvalidSort)
	}

	return opts, nil
}

package sql

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/dukex/flytestate/pkg/models"
	"github.com/dukex/flytestate/pkg/otelhelper"
	"github.com/dukex/flytestate/pkg/protocol"
	"github.com/dukex/flytestate/pkg/secrets"
	"github.com/dukex/flytestate/pkg/template"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Executor runs the query of one sqlalchemy task template. Each call opens
// and closes its own connection.
type Executor struct {
	template models.TaskTemplate
	config   Config
	deps     protocol.Dependencies
	open     func(driverName, dataSourceName string) (*stdsql.DB, error)
}

func NewExecutor(tt models.TaskTemplate, deps protocol.Dependencies) (*Executor, error) {
	if tt.Type != TaskType {
		return nil, fmt.Errorf("%w: %q", ErrWrongTaskType, tt.Type)
	}

	config, err := ParseConfig(tt.CustomMap())
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", tt.ID.String(), err)
	}

	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	if deps.Secrets == nil {
		deps.Secrets = secrets.NewEnvManager("")
	}

	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("flytestate/tasks/sql")
	}

	deps.Logger = deps.Logger.With("module", "sqlalchemy", "task", tt.ID.String())

	return &Executor{template: tt, config: config, deps: deps, open: stdsql.Open}, nil
}

func (e *Executor) Config() Config {
	return e.config.clone()
}

// Execute runs the query and returns the "results" output binding.
func (e *Executor) Execute(ctx context.Context, inputs map[string]any) (models.LiteralMap, error) {
	table, err := e.Query(ctx, inputs)
	if err != nil {
		return models.LiteralMap{}, err
	}

	return table.Outputs()
}

func (e *Executor) Query(ctx context.Context, inputs map[string]any) (Table, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.deps.Tracer, "sqlalchemy.query",
		attribute.String(otelhelper.TaskIDKey, e.template.ID.String()),
		attribute.String(otelhelper.TaskTypeKey, TaskType),
	)
	defer span.End()

	query, err := template.Interpolate(e.config.QueryTemplate, inputs)
	if err != nil {
		err = &QueryInterpolationError{Template: e.config.QueryTemplate, Err: err}
		otelhelper.SetError(span, err)

		return Table{}, err
	}

	connectArgs, err := e.resolveSecrets(ctx)
	if err != nil {
		otelhelper.SetError(span, err)

		return Table{}, err
	}

	driver, dsn, err := DataSource(e.config.URI, connectArgs)
	if err != nil {
		otelhelper.SetError(span, err)

		return Table{}, err
	}

	e.deps.Logger.InfoContext(ctx, "connecting to database", "uri", redact(e.config.URI), "driver", driver)

	db, err := e.open(driver, dsn)
	if err != nil {
		err = &QueryExecutionError{Query: query, Err: err}
		otelhelper.SetError(span, err)

		return Table{}, err
	}

	defer func() {
		err := db.Close()
		if err != nil {
			e.deps.Logger.ErrorContext(ctx, "failed to close database", "error", err)
		}
	}()

	e.deps.Logger.InfoContext(ctx, "running query", "query", query)

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		err = &QueryExecutionError{Query: query, Err: err}
		otelhelper.SetError(span, err)

		return Table{}, err
	}

	table, err := scanTable(rows)
	if err != nil {
		err = &QueryExecutionError{Query: query, Err: err}
		otelhelper.SetError(span, err)

		return Table{}, err
	}

	span.SetAttributes(attribute.Int("flytestate.sql.rows", len(table.Rows)))

	return table, nil
}

// resolveSecrets merges every secret connect arg into a copy of the static
// connect args, under the same key.
func (e *Executor) resolveSecrets(ctx context.Context) (map[string]any, error) {
	connectArgs := e.config.clone().ConnectArgs

	for arg, ref := range e.config.SecretConnectArgs {
		value, err := e.deps.Secrets.Get(ctx, ref.Group, ref.Key)
		if err != nil {
			return nil, &SecretResolutionError{Arg: arg, Group: ref.Group, Key: ref.Key, Err: err}
		}

		connectArgs[arg] = value
	}

	return connectArgs, nil
}

func redact(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return "<invalid uri>"
	}

	return u.Redacted()
}

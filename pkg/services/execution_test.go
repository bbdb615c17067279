package services

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/flytestate/pkg/channels/gochannel"
	"github.com/dukex/flytestate/pkg/models"
	"github.com/dukex/flytestate/pkg/notify"
	"github.com/dukex/flytestate/pkg/persistence"
	"github.com/dukex/flytestate/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newExecution(t *testing.T, name string, phase models.WorkflowExecutionPhase, opts ...models.SpecOption) models.Execution {
	t.Helper()

	spec, err := models.NewExecutionSpec(
		models.Identifier{ResourceType: models.ResourceTypeLaunchPlan, Project: "flytesnacks", Domain: "development", Name: "lp", Version: "v1"},
		models.ExecutionMetadata{Mode: models.ExecutionModeScheduled, Principal: "scheduler"},
		opts...,
	)
	require.NoError(t, err)

	created := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)

	return models.Execution{
		ID:      models.WorkflowExecutionIdentifier{Project: "flytesnacks", Domain: "development", Name: name},
		Spec:    spec,
		Closure: models.NewExecutionClosure(phase, created.Add(time.Second)).WithTimes(created, created.Add(time.Minute)),
	}
}

func encode(t *testing.T, exec models.Execution) []byte {
	t.Helper()

	payload, err := exec.MarshalBinary()
	require.NoError(t, err)

	return payload
}

func TestExecution_HealthCheck(t *testing.T) {
	service := NewExecution(file.NewPersistence(t.TempDir()), testLogger())

	message, ok := service.HealthCheck(t.Context())
	assert.True(t, ok)
	assert.Equal(t, "Persistence layer is healthy", message)

	message, ok = NewExecution(nil, testLogger()).HealthCheck(t.Context())
	assert.False(t, ok)
	assert.Equal(t, "Persistence layer not initialized", message)
}

func TestExecution_Ingest(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	service := NewExecution(store, testLogger())

	exec := newExecution(t, "ok", models.WorkflowPhaseRunning)

	got, err := service.Ingest(t.Context(), encode(t, exec))
	require.NoError(t, err)
	assert.True(t, exec.Equal(got))

	stored, err := service.FetchByID(t.Context(), exec.ID)
	require.NoError(t, err)
	assert.True(t, exec.Equal(stored))
}

func TestExecution_IngestMalformed(t *testing.T) {
	service := NewExecution(file.NewPersistence(t.TempDir()), testLogger())

	_, err := service.Ingest(t.Context(), []byte{0x0a, 0xff})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.True(t, models.IsMalformedMessage(err))
}

func TestExecution_Conformance(t *testing.T) {
	inconsistent := newExecution(t, "failed-without-error", models.WorkflowPhaseFailed)

	t.Run("strict rejects", func(t *testing.T) {
		store := file.NewPersistence(t.TempDir())
		service := NewExecution(store, testLogger())

		_, err := service.Ingest(t.Context(), encode(t, inconsistent))
		require.Error(t, err)
		assert.True(t, IsConsistencyError(err))
		assert.ErrorIs(t, err, models.ErrMissingError)

		var serviceErr *ServiceError
		require.ErrorAs(t, err, &serviceErr)
		assert.Equal(t, "INCONSISTENT_CLOSURE", serviceErr.Code)

		_, err = store.ExecutionByID(t.Context(), inconsistent.ID)
		assert.True(t, persistence.IsExecutionNotFound(err))
	})

	t.Run("warn stores", func(t *testing.T) {
		store := file.NewPersistence(t.TempDir())
		service := NewExecution(store, testLogger(), WithConformance(ConformanceWarn))

		_, err := service.Ingest(t.Context(), encode(t, inconsistent))
		require.NoError(t, err)

		_, err = store.ExecutionByID(t.Context(), inconsistent.ID)
		assert.NoError(t, err)
	})

	t.Run("succeeded with outputs passes", func(t *testing.T) {
		outputs, err := models.LiteralMapFromValues(map[string]any{"rows": int64(3)})
		require.NoError(t, err)

		exec := newExecution(t, "done", models.WorkflowPhaseSucceeded)
		exec.Closure = exec.Closure.WithOutputs(models.LiteralMapBlobFromValues(outputs))

		err = NewExecution(file.NewPersistence(t.TempDir()), testLogger()).Record(t.Context(), exec)
		assert.NoError(t, err)
	})
}

func TestParseConformanceMode(t *testing.T) {
	mode, err := ParseConformanceMode("WARN")
	require.NoError(t, err)
	assert.Equal(t, ConformanceWarn, mode)

	mode, err = ParseConformanceMode("")
	require.NoError(t, err)
	assert.Equal(t, ConformanceStrict, mode)

	_, err = ParseConformanceMode("lenient")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestExecution_RecordRoutesNotifications(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	defer func() {
		require.NoError(t, pub.Close())
	}()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	messages, err := sub.Subscribe(ctx, notify.Topic)
	require.NoError(t, err)

	service := NewExecution(file.NewPersistence(t.TempDir()), testLogger(),
		WithRouter(notify.NewRouter(pub, testLogger())))

	exec := newExecution(t, "aborted", models.WorkflowPhaseAborted, models.WithNotifications(
		models.NewNotification(models.SlackNotification{RecipientsEmail: []string{"#alerts"}}, models.WorkflowPhaseAborted),
	))
	exec.Closure = exec.Closure.WithAbortCause("user request")

	require.NoError(t, service.Record(ctx, exec))

	select {
	case msg := <-messages:
		assert.Equal(t, models.ChannelSlack, msg.Metadata.Get("channel"))
		assert.Equal(t, exec.ID.String(), msg.Metadata.Get("execution"))
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("timed out waiting for notification")
	}
}

type countingPublisher struct {
	published []*message.Message
}

func (p *countingPublisher) Publish(_ string, messages ...*message.Message) error {
	p.published = append(p.published, messages...)

	return nil
}

func (p *countingPublisher) Close() error { return nil }

func TestExecution_NotifiesOnPhaseChangeOnly(t *testing.T) {
	publisher := &countingPublisher{}

	service := NewExecution(file.NewPersistence(t.TempDir()), testLogger(),
		WithRouter(notify.NewRouter(publisher, testLogger())))

	exec := newExecution(t, "refresh", models.WorkflowPhaseRunning, models.WithNotifications(
		models.NewNotification(models.EmailNotification{RecipientsEmail: []string{"team@example.com"}},
			models.WorkflowPhaseRunning, models.WorkflowPhaseFailed),
	))

	for i := range 3 {
		exec.Closure.UpdatedAt = exec.Closure.UpdatedAt.Add(time.Duration(i) * time.Minute)
		require.NoError(t, service.Record(t.Context(), exec))
	}

	require.Len(t, publisher.published, 1)
	assert.Equal(t, "RUNNING", publisher.published[0].Metadata.Get("phase"))

	exec.Closure = exec.Closure.WithError(models.ExecutionError{Code: "USER:Boom", Kind: models.ErrorKindUser})
	exec.Closure.Phase = models.WorkflowPhaseFailed

	require.NoError(t, service.Record(t.Context(), exec))
	require.NoError(t, service.Record(t.Context(), exec))

	require.Len(t, publisher.published, 2)
	assert.Equal(t, "FAILED", publisher.published[1].Metadata.Get("phase"))
}

func TestExecution_InvalidIdentifier(t *testing.T) {
	service := NewExecution(file.NewPersistence(t.TempDir()), testLogger())

	exec := newExecution(t, "x", models.WorkflowPhaseRunning)
	exec.ID.Domain = ""

	err := service.Record(t.Context(), exec)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = service.FetchByID(t.Context(), models.WorkflowExecutionIdentifier{Project: "p"})
	assert.True(t, IsValidationError(err))

	for _, id := range []models.WorkflowExecutionIdentifier{
		{Project: "..", Domain: "d", Name: "n"},
		{Project: "p", Domain: ".", Name: "n"},
		{Project: "p", Domain: "d", Name: ".."},
		{Org: "..", Project: "p", Domain: "d", Name: "n"},
	} {
		exec.ID = id

		err = service.Record(t.Context(), exec)
		assert.ErrorIs(t, err, ErrInvalidRequest, id.String())
	}
}

func TestExecution_FetchByIDNotFound(t *testing.T) {
	service := NewExecution(file.NewPersistence(t.TempDir()), testLogger())

	_, err := service.FetchByID(t.Context(), models.WorkflowExecutionIdentifier{Project: "p", Domain: "d", Name: "missing"})
	assert.True(t, IsNotFound(err))
	assert.ErrorIs(t, err, ErrExecutionNotFound)
}

func TestExecution_ListExecutions(t *testing.T) {
	service := NewExecution(file.NewPersistence(t.TempDir()), testLogger())

	for i, phase := range []models.WorkflowExecutionPhase{models.WorkflowPhaseRunning, models.WorkflowPhaseQueued, models.WorkflowPhaseRunning} {
		exec := newExecution(t, []string{"c", "a", "b"}[i], phase)
		require.NoError(t, service.Record(t.Context(), exec))
	}

	resp, err := service.ListExecutions(t.Context(), ListExecutionsRequest{Phase: "running", Sort: "asc(name)"})
	require.NoError(t, err)
	require.Len(t, resp.Executions, 2)
	assert.Equal(t, "b", resp.Executions[0].ID.Name)
	assert.Equal(t, "c", resp.Executions[1].ID.Name)
	assert.Equal(t, "asc(name)", resp.Sort)
	assert.Equal(t, persistence.DefaultLimit, resp.Limit)

	resp, err = service.ListExecutions(t.Context(), ListExecutionsRequest{Sort: "desc(name)", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, resp.Executions, 1)
	assert.Equal(t, "b", resp.Executions[0].ID.Name)

	tests := []struct {
		name string
		req  ListExecutionsRequest
		want error
	}{
		{name: "bad sort grammar", req: ListExecutionsRequest{Sort: "name"}, want: ErrInvalidSort},
		{name: "unknown sort key", req: ListExecutionsRequest{Sort: "asc(payload)"}, want: ErrInvalidSort},
		{name: "unknown phase", req: ListExecutionsRequest{Phase: "DONE"}, want: ErrInvalidRequest},
		{name: "limit too high", req: ListExecutionsRequest{Limit: 500}, want: ErrInvalidRequest},
		{name: "negative offset", req: ListExecutionsRequest{Offset: -1}, want: ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.ListExecutions(t.Context(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestExecution_TaskExecutions(t *testing.T) {
	service := NewExecution(file.NewPersistence(t.TempDir()), testLogger())
	execID := models.WorkflowExecutionIdentifier{Project: "p", Domain: "d", Name: "run"}
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	closure, err := models.NewTaskExecutionClosure(models.TaskPhaseSucceeded, now, now, now.Add(time.Minute), time.Minute,
		models.WithOutputURI("s3://bucket/outputs.pb"), models.WithTaskType("sqlalchemy"))
	require.NoError(t, err)

	taskExecution := models.TaskExecution{
		ID: models.TaskExecutionIdentifier{
			TaskID:          models.Identifier{ResourceType: models.ResourceTypeTask, Project: "p", Domain: "d", Name: "query", Version: "1"},
			NodeExecutionID: models.NodeExecutionIdentifier{NodeID: "n0", ExecutionID: execID},
		},
		Closure: closure,
	}

	payload, err := taskExecution.MarshalBinary()
	require.NoError(t, err)

	got, err := service.IngestTaskExecution(t.Context(), payload)
	require.NoError(t, err)
	assert.True(t, taskExecution.Equal(got))

	list, err := service.TaskExecutions(t.Context(), execID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "sqlalchemy", list[0].Closure.TaskType)

	failed, err := models.NewTaskExecutionClosure(models.TaskPhaseFailed, now, now, now, 0)
	require.NoError(t, err)

	taskExecution.ID.RetryAttempt = 1
	taskExecution.Closure = failed

	err = service.RecordTaskExecution(t.Context(), taskExecution)
	assert.True(t, IsConsistencyError(err))

	taskExecution.ID.NodeExecutionID.NodeID = ""
	err = service.RecordTaskExecution(t.Context(), taskExecution)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

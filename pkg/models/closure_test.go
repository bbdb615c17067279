package models_test

import (
	"testing"
	"time"

	"github.com/dukex/flytestate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func appendMessage(t *testing.T, b []byte, num protowire.Number, m proto.Message) []byte {
	t.Helper()

	payload, err := proto.Marshal(m)
	require.NoError(t, err)

	b = protowire.AppendTag(b, num, protowire.BytesType)

	return protowire.AppendBytes(b, payload)
}

// Builds the message the way a foreign producer would, without going
// through the package encoder.
func TestTaskExecutionClosure_DecodeSucceededSnapshot(t *testing.T) {
	t.Parallel()

	createdAt := time.Date(2024, 6, 1, 8, 30, 0, 100_000_000, time.UTC)
	startedAt := createdAt.Add(1500 * time.Millisecond)
	duration := 125500 * time.Millisecond
	updatedAt := startedAt.Add(duration).Add(250 * time.Microsecond)

	var wireMsg []byte
	wireMsg = protowire.AppendTag(wireMsg, 1, protowire.BytesType)
	wireMsg = protowire.AppendString(wireMsg, "s3://bucket/x")
	wireMsg = protowire.AppendTag(wireMsg, 3, protowire.VarintType)
	wireMsg = protowire.AppendVarint(wireMsg, uint64(models.TaskPhaseSucceeded))
	wireMsg = appendMessage(t, wireMsg, 5, timestamppb.New(startedAt))
	wireMsg = appendMessage(t, wireMsg, 6, durationpb.New(duration))
	wireMsg = appendMessage(t, wireMsg, 7, timestamppb.New(createdAt))
	wireMsg = appendMessage(t, wireMsg, 8, timestamppb.New(updatedAt))

	var closure models.TaskExecutionClosure
	require.NoError(t, closure.UnmarshalBinary(wireMsg))

	assert.Equal(t, models.TaskPhaseSucceeded, closure.Phase)
	require.NotNil(t, closure.OutputURI)
	assert.Equal(t, "s3://bucket/x", *closure.OutputURI)
	assert.Nil(t, closure.Error)
	assert.Empty(t, closure.Logs)
	assert.Equal(t, 125.5, closure.Duration.Seconds())
	assert.True(t, closure.StartedAt.Equal(startedAt))
	assert.True(t, closure.CreatedAt.Equal(createdAt))
	assert.True(t, closure.UpdatedAt.Equal(updatedAt))
	assert.Equal(t, time.UTC, closure.StartedAt.Location())
	assert.True(t, closure.CreatedAt.Before(closure.StartedAt))
	assert.True(t, closure.StartedAt.Before(closure.UpdatedAt))
	require.NoError(t, closure.CheckTimeline())
	require.NoError(t, closure.CheckConsistency())

	again, err := closure.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, wireMsg, again)

	var reread models.TaskExecutionClosure
	require.NoError(t, reread.UnmarshalBinary(again))
	assert.Equal(t, updatedAt.Nanosecond(), reread.UpdatedAt.Nanosecond())
	assert.Equal(t, startedAt.Nanosecond(), reread.StartedAt.Nanosecond())
}

func TestExecutionClosure_NormalizesToUTC(t *testing.T) {
	t.Parallel()

	zone := time.FixedZone("UTC+5:30", 5*3600+1800)
	local := time.Date(2024, 1, 15, 9, 45, 12, 987_654_321, zone)

	closure := models.ExecutionClosure{Phase: models.WorkflowPhaseRunning, StartedAt: local}

	data, err := closure.MarshalBinary()
	require.NoError(t, err)

	var decoded models.ExecutionClosure
	require.NoError(t, decoded.UnmarshalBinary(data))

	assert.True(t, decoded.StartedAt.Equal(local))
	assert.Equal(t, time.UTC, decoded.StartedAt.Location())
	assert.Equal(t, "2024-01-15T04:15:12.987654321Z", decoded.StartedAt.Format(time.RFC3339Nano))

	built := models.NewExecutionClosure(models.WorkflowPhaseRunning, local)
	assert.Equal(t, decoded.StartedAt, built.StartedAt)
}

func TestExecutionClosure_CheckConsistency(t *testing.T) {
	t.Parallel()

	started := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)
	failure := models.ExecutionError{Code: "USER:Boom", Message: "task failed", Kind: models.ErrorKindUser}
	outputs := models.LiteralMapBlobFromURI("s3://bucket/outputs.pb")

	tests := []struct {
		name    string
		closure models.ExecutionClosure
		wantErr error
	}{
		{
			name:    "failed without error",
			closure: models.NewExecutionClosure(models.WorkflowPhaseFailed, started),
			wantErr: models.ErrMissingError,
		},
		{
			name:    "timed out without error",
			closure: models.NewExecutionClosure(models.WorkflowPhaseTimedOut, started),
			wantErr: models.ErrMissingError,
		},
		{
			name:    "succeeded without outputs",
			closure: models.NewExecutionClosure(models.WorkflowPhaseSucceeded, started),
			wantErr: models.ErrMissingOutputs,
		},
		{
			name:    "error while running",
			closure: models.NewExecutionClosure(models.WorkflowPhaseRunning, started).WithError(failure),
			wantErr: models.ErrUnexpectedPayload,
		},
		{
			name:    "outputs while queued",
			closure: models.NewExecutionClosure(models.WorkflowPhaseQueued, started).WithOutputs(outputs),
			wantErr: models.ErrUnexpectedPayload,
		},
		{
			name:    "succeeded with outputs",
			closure: models.NewExecutionClosure(models.WorkflowPhaseSucceeded, started).WithOutputs(outputs),
		},
		{
			name:    "failed with error",
			closure: models.NewExecutionClosure(models.WorkflowPhaseFailed, started).WithError(failure),
		},
		{
			name:    "aborted with cause",
			closure: models.ExecutionClosure{Phase: models.WorkflowPhaseAborted}.WithAbortCause("user request"),
		},
		{
			name:    "running without payload",
			closure: models.NewExecutionClosure(models.WorkflowPhaseRunning, started),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.closure.CheckConsistency()
			if tt.wantErr == nil {
				assert.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var consistency *models.ConsistencyError
			require.ErrorAs(t, err, &consistency)
			assert.Equal(t, tt.closure.Phase.String(), consistency.Phase)
		})
	}
}

func TestExecutionClosure_OutputResultIsExclusive(t *testing.T) {
	t.Parallel()

	closure := models.NewExecutionClosure(models.WorkflowPhaseFailed, time.Now()).
		WithError(models.ExecutionError{Code: "x"}).
		WithOutputs(models.LiteralMapBlobFromURI("s3://a/b"))

	_, err := closure.MarshalBinary()
	assert.ErrorIs(t, err, models.ErrOneof)

	var data []byte
	data = protowire.AppendTag(data, 1, protowire.BytesType)
	data = protowire.AppendBytes(data, []byte{0x12, 0x01, 'u'})
	data = protowire.AppendTag(data, 2, protowire.BytesType)
	data = protowire.AppendBytes(data, nil)

	var decoded models.ExecutionClosure
	err = decoded.UnmarshalBinary(data)
	require.Error(t, err)
	assert.True(t, models.IsMalformedMessage(err))
	assert.ErrorIs(t, err, models.ErrOneof)
}

func TestExecutionClosure_InvalidTimestampIsMalformed(t *testing.T) {
	t.Parallel()

	var data []byte
	data = appendMessage(t, data, 5, &timestamppb.Timestamp{Seconds: 1, Nanos: 2_000_000_000})

	var closure models.ExecutionClosure
	err := closure.UnmarshalBinary(data)
	require.Error(t, err)

	var malformed *models.MalformedMessageError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "started_at", malformed.Field)
}

func TestExecutionClosure_EmptyAbortCauseIsPresent(t *testing.T) {
	t.Parallel()

	var data []byte
	data = protowire.AppendTag(data, 4, protowire.VarintType)
	data = protowire.AppendVarint(data, uint64(models.WorkflowPhaseAborted))
	data = protowire.AppendTag(data, 10, protowire.BytesType)
	data = protowire.AppendString(data, "")

	var closure models.ExecutionClosure
	require.NoError(t, closure.UnmarshalBinary(data))
	require.NotNil(t, closure.AbortCause)
	assert.Empty(t, *closure.AbortCause)
	assert.NoError(t, closure.CheckConsistency())

	encoded, err := closure.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, data, encoded)

	_, err = closure.WithError(models.ExecutionError{Code: "x"}).MarshalBinary()
	assert.ErrorIs(t, err, models.ErrOneof)
}

func TestClosures_NegativeDuration(t *testing.T) {
	t.Parallel()

	data := appendMessage(t, nil, 6, durationpb.New(-5*time.Second))

	var closure models.ExecutionClosure
	err := closure.UnmarshalBinary(data)
	require.Error(t, err)

	var malformed *models.MalformedMessageError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "duration", malformed.Field)

	var taskClosure models.TaskExecutionClosure
	err = taskClosure.UnmarshalBinary(data)
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "duration", malformed.Field)

	_, err = models.ExecutionClosure{Phase: models.WorkflowPhaseRunning, Duration: -time.Second}.MarshalBinary()
	assert.Error(t, err)

	_, err = models.TaskExecutionClosure{Phase: models.TaskPhaseRunning, Duration: -time.Second}.MarshalBinary()
	assert.Error(t, err)
}

func TestExecutionClosure_MinimumTimestampIsAbsent(t *testing.T) {
	t.Parallel()

	minimum := time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
	data := appendMessage(t, nil, 5, timestamppb.New(minimum))

	var closure models.ExecutionClosure
	require.NoError(t, closure.UnmarshalBinary(data))
	assert.True(t, closure.StartedAt.IsZero())

	encoded, err := closure.MarshalBinary()
	require.NoError(t, err)
	assert.Empty(t, encoded)
}

func TestTaskExecutionClosure_CheckConsistency(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	failed, err := models.NewTaskExecutionClosure(models.TaskPhaseFailed, now, now, now, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, failed.CheckConsistency(), models.ErrMissingError)

	succeeded, err := models.NewTaskExecutionClosure(models.TaskPhaseSucceeded, now, now, now, time.Second,
		models.WithOutputURI("s3://bucket/out"))
	require.NoError(t, err)
	assert.NoError(t, succeeded.CheckConsistency())

	_, err = models.NewTaskExecutionClosure(models.TaskPhaseFailed, now, now, now, 0,
		models.WithOutputURI("s3://bucket/out"), models.WithTaskError(models.ExecutionError{Code: "x"}))
	assert.ErrorIs(t, err, models.ErrOneof)
}

func TestTaskExecutionClosure_CheckTimeline(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	ok, err := models.NewTaskExecutionClosure(models.TaskPhaseRunning, base.Add(time.Second), base, time.Time{}, 0)
	require.NoError(t, err)
	assert.NoError(t, ok.CheckTimeline())

	bad, err := models.NewTaskExecutionClosure(models.TaskPhaseRunning, base, base.Add(time.Second), base.Add(2*time.Second), 0)
	require.NoError(t, err)
	assert.ErrorIs(t, bad.CheckTimeline(), models.ErrTimeline)
}

func TestTaskExecution_RoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 0, 0, 0, 5, time.UTC)

	closure, err := models.NewTaskExecutionClosure(models.TaskPhaseRunning, now, now, now, 0,
		models.WithLogs(models.TaskLog{URI: "https://logs/1", Name: "stdout", MessageFormat: models.MessageFormatJSON, TTL: time.Hour}),
		models.WithReason("pod running"),
		models.WithTaskType("sqlalchemy"),
	)
	require.NoError(t, err)

	te := models.TaskExecution{
		ID: models.TaskExecutionIdentifier{
			TaskID: models.Identifier{ResourceType: models.ResourceTypeTask, Project: "p", Domain: "d", Name: "query", Version: "1"},
			NodeExecutionID: models.NodeExecutionIdentifier{
				NodeID:      "n1",
				ExecutionID: models.WorkflowExecutionIdentifier{Project: "p", Domain: "d", Name: "exec"},
			},
			RetryAttempt: 2,
		},
		InputURI: "s3://bucket/inputs.pb",
		Closure:  closure,
		IsParent: true,
	}

	data, err := te.MarshalBinary()
	require.NoError(t, err)

	var decoded models.TaskExecution
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, te, decoded)
}

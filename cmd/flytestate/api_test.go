package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dukex/flytestate/pkg/models"
	"github.com/dukex/flytestate/pkg/persistence/file"
	"github.com/dukex/flytestate/pkg/registry"
	"github.com/dukex/flytestate/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	reg := registry.NewRegistry(logger)
	reg.RegisterDefaultExecutors()

	return NewAPI(logger, services.NewExecution(file.NewPersistence(t.TempDir()), logger), reg, models.ZeroMeansUnbounded).App()
}

func get(t *testing.T, app *fiber.App, path string) (int, string) {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestAPI_RootEndpoint(t *testing.T) {
	status, body := get(t, setupTestApp(t), "/")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "flytestate API", body)
}

func TestAPI_Liveness(t *testing.T) {
	status, body := get(t, setupTestApp(t), "/livez")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body)
}

func TestAPI_Health(t *testing.T) {
	status, body := get(t, setupTestApp(t), "/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"healthy"`)
}

func runCommand(t *testing.T, command *cli.Command, args ...string) string {
	t.Helper()

	var out bytes.Buffer

	root := &cli.Command{Name: "flytestate", Writer: &out, Commands: []*cli.Command{command}}
	require.NoError(t, root.Run(context.Background(), append([]string{"flytestate"}, args...)))

	return out.String()
}

func TestDecodeCommand(t *testing.T) {
	literals, err := models.LiteralMapFromValues(map[string]any{"count": int64(3)})
	require.NoError(t, err)

	blob, err := literals.MarshalBinary()
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "outputs.pb"), blob, 0o600))

	resp := models.WorkflowExecutionGetDataResponse{DataResponse: models.DataResponse{
		Outputs:     models.UrlBlob{URL: "file:///outputs.pb", Bytes: int64(len(blob))},
		FullInputs:  models.NewLiteralMap(nil),
		FullOutputs: models.NewLiteralMap(nil),
	}}

	payload, err := resp.MarshalBinary()
	require.NoError(t, err)

	input := filepath.Join(dir, "data.pb")
	require.NoError(t, os.WriteFile(input, payload, 0o600))

	out := runCommand(t, DecodeCommand(), "decode", "--type", "workflow-data", input)
	assert.Contains(t, out, "file:///outputs.pb")
	assert.NotContains(t, out, `"count"`)

	out = runCommand(t, DecodeCommand(), "decode", "--type", "workflow-data", "--materialize", "--blob-root", dir, input)
	assert.Contains(t, out, `"count"`)
}

func TestTaskTypesCommand(t *testing.T) {
	out := runCommand(t, TaskCommand(), "task", "types", "--plugins-path", "")
	assert.True(t, strings.HasPrefix(out, "sqlalchemy\t"))
}

func TestDecodeCommand_Parallelism(t *testing.T) {
	spec, err := models.NewExecutionSpec(
		models.Identifier{ResourceType: models.ResourceTypeLaunchPlan, Project: "flytesnacks", Domain: "development", Name: "lp", Version: "v1"},
		models.ExecutionMetadata{Principal: "alice"},
	)
	require.NoError(t, err)

	payload, err := models.Execution{
		ID:      models.WorkflowExecutionIdentifier{Project: "flytesnacks", Domain: "development", Name: "run"},
		Spec:    spec,
		Closure: models.NewExecutionClosure(models.WorkflowPhaseRunning, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)),
	}.MarshalBinary()
	require.NoError(t, err)

	input := filepath.Join(t.TempDir(), "execution.pb")
	require.NoError(t, os.WriteFile(input, payload, 0o600))

	out := runCommand(t, DecodeCommand(), "decode", "--type", "execution", input)
	assert.Contains(t, out, `"unbounded": true`)

	out = runCommand(t, DecodeCommand(), "decode", "--type", "execution", "--max-parallelism-zero", "zero", input)
	assert.Contains(t, out, `"unbounded": false`)
	assert.Contains(t, out, `"limit": 0`)
}

package main

import (
	"context"
	"encoding"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/dukex/flytestate/pkg/cmd"
	"github.com/dukex/flytestate/pkg/models"
	"github.com/dukex/flytestate/pkg/storage"
	"github.com/urfave/cli/v3"
)

type record interface {
	encoding.BinaryUnmarshaler
}

// records maps the --type names to fresh decode targets.
var records = map[string]func() record{
	"execution":      func() record { return &models.Execution{} },
	"execution-spec": func() record { return &models.ExecutionSpec{} },
	"task-execution": func() record { return &models.TaskExecution{} },
	"task-template":  func() record { return &models.TaskTemplate{} },
	"literal-map":    func() record { return &models.LiteralMap{} },
	"workflow-data":  func() record { return &models.WorkflowExecutionGetDataResponse{} },
	"task-data":      func() record { return &models.TaskExecutionGetDataResponse{} },
	"node-data":      func() record { return &models.NodeExecutionGetDataResponse{} },
}

func recordTypes() []string {
	types := make([]string, 0, len(records))
	for name := range records {
		types = append(types, name)
	}

	slices.Sort(types)

	return types
}

func blobFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "blob-root",
			Usage:   "Directory file:// blob urls are resolved against",
			Sources: cli.EnvVars("BLOB_ROOT"),
		},
		&cli.StringFlag{
			Name:    "s3-endpoint",
			Usage:   "S3 compatible endpoint serving s3:// blob urls",
			Sources: cli.EnvVars("S3_ENDPOINT"),
		},
		&cli.StringFlag{
			Name:    "s3-region",
			Value:   "us-east-1",
			Sources: cli.EnvVars("S3_REGION"),
		},
		&cli.StringFlag{
			Name:    "s3-access-key",
			Sources: cli.EnvVars("S3_ACCESS_KEY", "AWS_ACCESS_KEY_ID"),
		},
		&cli.StringFlag{
			Name:    "s3-secret-key",
			Sources: cli.EnvVars("S3_SECRET_KEY", "AWS_SECRET_ACCESS_KEY"),
		},
		&cli.BoolFlag{
			Name:    "s3-ssl",
			Value:   true,
			Sources: cli.EnvVars("S3_SSL"),
		},
	}
}

func DecodeCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "type",
			Aliases:  []string{"t"},
			Usage:    "Record type: " + strings.Join(recordTypes(), ", "),
			Required: true,
			Validator: func(s string) error {
				if _, ok := records[s]; !ok {
					return fmt.Errorf("unknown record type %q", s)
				}

				return nil
			},
		},
		&cli.BoolFlag{
			Name:  "materialize",
			Usage: "Fetch the offloaded inputs and outputs of a data response",
		},
		parallelismFlag(),
	}

	return &cli.Command{
		Name:      "decode",
		Usage:     "Decode a protobuf record and print it as JSON",
		ArgsUsage: "[file]",
		Flags:     append(flags, blobFlags()...),
		Action:    decode,
	}
}

func readInput(command *cli.Command) ([]byte, error) {
	path := command.Args().First()
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}

	return os.ReadFile(path)
}

func decode(ctx context.Context, command *cli.Command) error {
	payload, err := readInput(command)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	target := records[command.String("type")]()

	err = target.UnmarshalBinary(payload)
	if err != nil {
		return err
	}

	if command.Bool("materialize") {
		err = materialize(ctx, command, target)
		if err != nil {
			return err
		}
	}

	policy, err := models.ParseParallelismPolicy(command.String("max-parallelism-zero"))
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(command.Root().Writer)
	encoder.SetIndent("", "  ")

	return encoder.Encode(view(target, policy))
}

// view adds the effective parallelism to executions and execution specs.
func view(target record, policy models.ParallelismPolicy) any {
	switch r := target.(type) {
	case *models.Execution:
		return r.View(policy)
	case *models.ExecutionSpec:
		return struct {
			models.ExecutionSpec
			Parallelism models.Parallelism `json:"parallelism"`
		}{*r, r.Parallelism(policy)}
	default:
		return target
	}
}

func materialize(ctx context.Context, command *cli.Command, target record) error {
	var resp *models.DataResponse

	switch r := target.(type) {
	case *models.WorkflowExecutionGetDataResponse:
		resp = &r.DataResponse
	case *models.TaskExecutionGetDataResponse:
		resp = &r.DataResponse
	case *models.NodeExecutionGetDataResponse:
		resp = &r.DataResponse
	default:
		return fmt.Errorf("--materialize needs a data response, got %q", command.String("type"))
	}

	store, err := cmd.NewBlobStore(cmd.BlobStoreConfig{
		FileRoot: command.String("blob-root"),
		S3: storage.S3Config{
			Endpoint:  command.String("s3-endpoint"),
			Region:    command.String("s3-region"),
			AccessKey: command.String("s3-access-key"),
			SecretKey: command.String("s3-secret-key"),
			UseSSL:    command.Bool("s3-ssl"),
		},
	})
	if err != nil {
		return err
	}

	return storage.Materialize(ctx, store, resp)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dukex/flytestate/pkg/cmd"
	"github.com/dukex/flytestate/pkg/log"
	"github.com/dukex/flytestate/pkg/models"
	"github.com/urfave/cli/v3"
)

func TaskCommand() *cli.Command {
	executeFlags := []cli.Flag{
		&cli.StringFlag{
			Name:     "template",
			Usage:    "Path to a protobuf encoded TaskTemplate",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "inputs",
			Usage: `Task inputs as a JSON object, e.g. '{"min_id": 2}'`,
			Value: "{}",
		},
		pluginsFlag(),
	}

	return &cli.Command{
		Name:  "task",
		Usage: "Run tasks with the registered executors",
		Commands: []*cli.Command{
			{
				Name:   "execute",
				Usage:  "Execute one attempt of a task template and print its outputs",
				Flags:  append(executeFlags, secretFlags()...),
				Action: executeTask,
			},
			{
				Name:   "types",
				Usage:  "List the registered task types",
				Flags:  []cli.Flag{pluginsFlag()},
				Action: listTaskTypes,
			},
		},
	}
}

func executeTask(ctx context.Context, command *cli.Command) error {
	logger := log.WithModule("task")

	raw, err := os.ReadFile(command.String("template"))
	if err != nil {
		return fmt.Errorf("failed to read task template: %w", err)
	}

	var template models.TaskTemplate

	err = template.UnmarshalBinary(raw)
	if err != nil {
		return err
	}

	var inputs map[string]any

	err = json.Unmarshal([]byte(command.String("inputs")), &inputs)
	if err != nil {
		return fmt.Errorf("inputs must be a JSON object: %w", err)
	}

	manager, closeSecrets, err := cmd.NewSecretManager(ctx,
		command.String("secrets-redis-url"),
		command.String("secrets-redis-prefix"),
		command.String("secrets-dir"))
	if err != nil {
		return err
	}

	defer func() {
		err := closeSecrets()
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close secret store", "error", err)
		}
	}()

	registry, err := cmd.NewRegistry(logger, command.String("plugins-path"), manager, nil)
	if err != nil {
		return err
	}

	outputs, err := registry.ExecuteTemplate(ctx, template, inputs)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(command.Root().Writer)
	encoder.SetIndent("", "  ")

	return encoder.Encode(outputs)
}

func listTaskTypes(_ context.Context, command *cli.Command) error {
	registry, err := cmd.NewRegistry(log.WithModule("task"), command.String("plugins-path"), nil, nil)
	if err != nil {
		return err
	}

	for _, factory := range registry.Factories() {
		fmt.Fprintf(command.Root().Writer, "%s\t%s\t%s\n", factory.ID(), factory.Name(), factory.Description())
	}

	return nil
}

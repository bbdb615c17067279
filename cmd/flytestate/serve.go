package main

import (
	"context"
	"fmt"

	"github.com/dukex/flytestate/pkg/cmd"
	"github.com/dukex/flytestate/pkg/log"
	"github.com/dukex/flytestate/pkg/models"
	"github.com/dukex/flytestate/pkg/notify"
	"github.com/dukex/flytestate/pkg/otelhelper"
	"github.com/dukex/flytestate/pkg/services"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

const defaultPort = 9091

func pluginsFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "plugins-path",
		Usage:   "Path to the directory containing executor plugins",
		Value:   "./plugins",
		Sources: cli.EnvVars("PLUGINS_PATH"),
	}
}

func parallelismFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "max-parallelism-zero",
		Usage:   "How a max_parallelism of 0 is reported (unbounded, zero)",
		Value:   "unbounded",
		Sources: cli.EnvVars("MAX_PARALLELISM_ZERO"),
		Validator: func(s string) error {
			_, err := models.ParseParallelismPolicy(s)

			return err
		},
	}
}

func secretFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "secrets-dir",
			Usage:   "Directory holding <group>/<key> secret files",
			Value:   "/etc/secrets",
			Sources: cli.EnvVars("SECRETS_DIR"),
		},
		&cli.StringFlag{
			Name:    "secrets-redis-url",
			Usage:   "Redis URL of the secret store; secrets are read from the environment and files when empty",
			Sources: cli.EnvVars("SECRETS_REDIS_URL"),
		},
		&cli.StringFlag{
			Name:    "secrets-redis-prefix",
			Usage:   "Key prefix of the secret hashes in Redis",
			Value:   "flytestate:secrets:",
			Sources: cli.EnvVars("SECRETS_REDIS_PREFIX"),
		},
	}
}

func notificationFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "notifications",
			Usage:   "Notification transport (kafka, gochannel)",
			Value:   "gochannel",
			Sources: cli.EnvVars("NOTIFICATIONS_PROVIDER"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
	}
}

func ServeCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to run the API server on",
			Value:   defaultPort,
			Sources: cli.EnvVars("PORT"),
		},
		&cli.StringFlag{
			Name:     "database-url",
			Usage:    "Database connection URL for persistence (postgres://... or a directory)",
			Required: true,
			Sources:  cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "conformance",
			Usage:   "What to do with closures whose phase and payload disagree (strict, warn)",
			Value:   "strict",
			Sources: cli.EnvVars("CONFORMANCE"),
		},
		&cli.BoolFlag{
			Name:    "otel",
			Usage:   "Export traces over OTLP/HTTP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
		pluginsFlag(),
		parallelismFlag(),
	}

	flags = append(flags, notificationFlags()...)
	flags = append(flags, secretFlags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the API server",
		Flags:   flags,
		Action:  serve,
	}
}

func serve(ctx context.Context, command *cli.Command) error {
	logger := log.WithModule("api")

	logger.InfoContext(ctx, "Initializing flytestate API")

	mode, err := services.ParseConformanceMode(command.String("conformance"))
	if err != nil {
		return err
	}

	policy, err := models.ParseParallelismPolicy(command.String("max-parallelism-zero"))
	if err != nil {
		return err
	}

	opts := []services.Option{services.WithConformance(mode)}

	var tracer trace.Tracer

	if command.Bool("otel") {
		var shutdown func(context.Context) error

		tracer, shutdown, err = otelhelper.NewTracer(ctx, "flytestate")
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		defer func() {
			err := shutdown(context.WithoutCancel(ctx))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
			}
		}()

		opts = append(opts, services.WithTracer(tracer))
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

	registry, err := cmd.NewRegistry(logger, command.String("plugins-path"), manager, tracer)
	if err != nil {
		return err
	}

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		err := persistence.Close(context.WithoutCancel(ctx))
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	publisher, subscriber, err := cmd.NewPubSub(command.String("notifications"), command.String("kafka-brokers"), "flytestate-api", logger)
	if err != nil {
		return err
	}

	defer func() {
		err := publisher.Close()
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close notification publisher", "error", err)
		}

		err = subscriber.Close()
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close notification subscriber", "error", err)
		}
	}()

	opts = append(opts, services.WithRouter(notify.NewRouter(publisher, logger)))

	api := NewAPI(logger, services.NewExecution(persistence, logger, opts...), registry, policy)
	app := api.App()

	go func() {
		<-ctx.Done()

		err := app.Shutdown()
		if err != nil {
			logger.Error("Failed to shutdown API server", "error", err)
		}
	}()

	logger.InfoContext(ctx, "Listening", "port", command.Int("port"))

	return app.Listen(fmt.Sprintf(":%d", command.Int("port")))
}

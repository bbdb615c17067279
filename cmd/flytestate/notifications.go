package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dukex/flytestate/pkg/cmd"
	"github.com/dukex/flytestate/pkg/log"
	"github.com/dukex/flytestate/pkg/notify"
	"github.com/urfave/cli/v3"
)

func NotificationsCommand() *cli.Command {
	flags := append(notificationFlags(), &cli.StringFlag{
		Name:    "consumer-group",
		Usage:   "Kafka consumer group",
		Value:   "flytestate-watch",
		Sources: cli.EnvVars("KAFKA_CONSUMER_GROUP"),
	})

	return &cli.Command{
		Name:  "notifications",
		Usage: "Inspect published execution notifications",
		Commands: []*cli.Command{
			{
				Name:   "watch",
				Usage:  "Print notification events as they are published",
				Flags:  flags,
				Action: watchNotifications,
			},
		},
	}
}

func watchNotifications(ctx context.Context, command *cli.Command) error {
	logger := log.WithModule("notifications")

	publisher, subscriber, err := cmd.NewPubSub(command.String("notifications"), command.String("kafka-brokers"), command.String("consumer-group"), logger)
	if err != nil {
		return err
	}

	defer func() {
		_ = publisher.Close()
		_ = subscriber.Close()
	}()

	messages, err := subscriber.Subscribe(ctx, notify.Topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", notify.Topic, err)
	}

	logger.InfoContext(ctx, "Watching notifications", "topic", notify.Topic)

	out := json.NewEncoder(command.Root().Writer)

	for msg := range messages {
		var event notify.Event

		err := json.Unmarshal(msg.Payload, &event)
		if err != nil {
			logger.ErrorContext(ctx, "Dropping undecodable notification", "message_id", msg.UUID, "error", err)
			msg.Ack()

			continue
		}

		err = out.Encode(event)
		if err != nil {
			msg.Nack()

			return err
		}

		msg.Ack()
	}

	return nil
}

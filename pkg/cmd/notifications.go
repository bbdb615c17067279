package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/flytestate/pkg/channels/gochannel"
	"github.com/dukex/flytestate/pkg/channels/kafka"
)

// NewPubSub creates the notification publisher and subscriber for provider
// ("kafka" or "gochannel").
func NewPubSub(provider, brokers, consumerGroup string, logger *slog.Logger) (message.Publisher, message.Subscriber, error) {
	adapter := watermill.NewSlogLogger(logger)

	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(adapter, kafka.ParseBrokers(brokers), consumerGroup)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return pub, sub, nil
	case "gochannel", "":
		pub, sub, err := gochannel.CreateChannel(adapter)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create in-memory pub/sub: %w", err)
		}

		return pub, sub, nil
	default:
		return nil, nil, fmt.Errorf("unsupported notification provider: %q", provider)
	}
}

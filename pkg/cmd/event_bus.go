package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/loopworklabs/loopwork/pkg/eventbus"
)

// NewEventBus selects the event transport. Kafka is the production backend;
// gochannel runs everything in a single process.
func NewEventBus(provider string, logger *slog.Logger, kafkaBrokers, consumerGroup string) (eventbus.EventBus, error) {
	switch provider {
	case "kafka":
		brokers := strings.Split(kafkaBrokers, ",")

		bus, err := eventbus.NewKafkaEventBus(logger, brokers, consumerGroup)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka event bus: %w", err)
		}

		return bus, nil
	case "gochannel", "":
		return eventbus.NewGoChannelEventBus(logger), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider %q", provider)
	}
}

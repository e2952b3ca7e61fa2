package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/augurworld/augur/internal/config"
	"github.com/augurworld/augur/internal/domain"
	"github.com/augurworld/augur/internal/observability"
)

// Publisher produces lookup events to a Kafka topic.
// Writes are asynchronous so a slow broker never delays an API response.
type Publisher struct {
	writer  *kafkago.Writer
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured lookup events topic.
func NewPublisher(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Publisher {
	p := &Publisher{metrics: metrics, logger: logger}
	p.writer = &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.LookupEventsTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion:             p.complete,
	}
	return p
}

// Publish enqueues one lookup event. Delivery failures are logged and counted, not returned.
func (p *Publisher) Publish(ctx context.Context, event domain.LookupEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) complete(messages []kafkago.Message, err error) {
	if err != nil {
		p.metrics.LookupEventErrors.Add(float64(len(messages)))
		p.logger.Warn("lookup event delivery failed", "count", len(messages), "error", err)
		return
	}
	p.metrics.LookupEventsPublished.Add(float64(len(messages)))
}

// Close flushes pending events and closes the producer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a LookupEvent into a Kafka message keyed by the
// resolved grid point, so every lookup of one cell lands on one partition.
func serializeToMessage(event domain.LookupEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize lookup event: %w", err)
	}
	key := event.ID
	if event.Resolved != nil {
		key = event.Resolved.Key()
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "outcome", Value: []byte(event.Outcome)},
			{Key: "occurred_at", Value: []byte(event.OccurredAt.Format(time.RFC3339))},
		},
	}, nil
}

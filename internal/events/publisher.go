// Package events publishes domain events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/titandynamix/payments/internal/domain"
)

// Publisher writes transfer events to a Kafka topic. Messages are keyed
// by transfer id so one transfer's events land on one partition.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher returns a publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// PublishTransferCompleted emits a transfer-completed event.
func (p *Publisher) PublishTransferCompleted(ctx context.Context, event domain.TransferCompletedEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling transfer event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TransferID.String()),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("writing transfer event: %w", err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("transfer_id", event.TransferID.String()).
		Msg("published transfer completed event")

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

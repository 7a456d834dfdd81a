package kafka

import (
	"context"
	"encoding/json"
	"log"

	"ms-booking/internal/models"

	"github.com/segmentio/kafka-go"
)

type Consumer struct {
	reader *kafka.Reader
}

// NewConsumer creates a Kafka consumer for normalized payment events. Some
// providers deliver through a broker instead of HTTP webhooks; both paths
// feed the same reconciliation worker.
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader}
}

// Start consumes until ctx is cancelled, handing each event to handler.
// Handler errors are logged and the message is not committed past, so the
// group re-reads it on restart.
func (c *Consumer) Start(ctx context.Context, handler func(ctx context.Context, event models.NormalizedPaymentEvent) error) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Error reading message: %v", err)
			continue
		}

		var event models.NormalizedPaymentEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Printf("Failed to unmarshal payment event: %v", err)
			// A poison message would block the partition forever; drop it.
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		if err := handler(ctx, event); err != nil {
			log.Printf("Payment event %s failed, will be redelivered: %v", event.ProviderEventID, err)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			log.Printf("Failed to commit offset: %v", err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

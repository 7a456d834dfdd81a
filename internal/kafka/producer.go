package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"ms-booking/internal/config"
	"ms-booking/internal/models"

	"github.com/segmentio/kafka-go"
)

type Producer struct {
	Writer *kafka.Writer
	Topics config.TopicConfig
}

func NewProducer(brokers []string, topics config.TopicConfig) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{Writer: writer, Topics: topics}
}

// Publish writes one message to a topic, keyed for per-booking ordering.
func (p *Producer) Publish(topic, key string, value []byte) error {
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: value,
		},
	)
}

func (p *Producer) publishEvent(topic string, event models.BookingEvent) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	fmt.Printf("Publishing to Kafka [%s]: %s\n", topic, string(msgBytes))
	return p.Publish(topic, event.BookingID, msgBytes)
}

// PublishBookingConfirmed streams the confirmation event for the
// notification service.
func (p *Producer) PublishBookingConfirmed(event models.BookingEvent) error {
	return p.publishEvent(p.Topics.BookingConfirmed, event)
}

// PublishBookingExpired streams the hold-expiry event.
func (p *Producer) PublishBookingExpired(event models.BookingEvent) error {
	return p.publishEvent(p.Topics.BookingExpired, event)
}

// PublishBookingCancelled streams the cancellation event.
func (p *Producer) PublishBookingCancelled(event models.BookingEvent) error {
	return p.publishEvent(p.Topics.BookingCancelled, event)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

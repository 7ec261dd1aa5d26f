package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Martins1-1/logsonlinee-sub000/internal/models"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher ships wallet events to the message bus.
type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
	Close() error
}

type Producer struct {
	writer *kafka.Writer
	topic  string
}

const batchTimeout = 10 * time.Millisecond

// NewProducer returns an async writer: Publish only enqueues, and
// delivery failures surface through the completion log.
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		Async:        true,
		BatchTimeout: batchTimeout,
		RequiredAcks: kafka.RequireOne,
		Completion:   logDelivery,
	}
	return &Producer{writer: writer, topic: topic}
}

func logDelivery(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	for _, m := range messages {
		zap.S().Errorw("failed to deliver Kafka message", "topic", m.Topic, "key", string(m.Key), "error", err)
	}
}

// Publish keys messages by user so one wallet's events stay ordered
// within a partition.
func (p *Producer) Publish(ctx context.Context, event models.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.UserID),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		zap.S().Errorw("failed to send Kafka message", "topic", p.topic, "type", event.Type, "user_id", event.UserID, "error", err)
		return err
	}
	zap.S().Infow("Kafka message queued", "topic", p.topic, "type", event.Type, "user_id", event.UserID)
	return nil
}

func (p *Producer) Close() error {
	if err := p.writer.Close(); err != nil {
		zap.S().Errorw("failed to close Kafka writer", "error", err)
		return err
	}
	zap.S().Info("Kafka writer closed")
	return nil
}

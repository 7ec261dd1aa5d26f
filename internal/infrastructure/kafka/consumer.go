package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Martins1-1/logsonlinee-sub000/internal/infrastructure/redis"
	"github.com/Martins1-1/logsonlinee-sub000/internal/models"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Consumer drops cached wallet balances whenever a balance-changing event
// is seen, so every instance serves fresh balances after a credit or order.
type Consumer struct {
	reader  messageReader
	topic   string
	cache   redis.RedisClient
	backoff time.Duration
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

const readBackoff = time.Second

func NewConsumer(brokers []string, topic, groupID string, cache redis.RedisClient) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 10e3,
			MaxBytes: 10e6,
		}),
		topic:   topic,
		cache:   cache,
		backoff: readBackoff,
	}
}

func (c *Consumer) Consume(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				zap.S().Infow("Kafka consumer stopped", "topic", c.topic)
				return
			}
			zap.S().Errorw("failed to read Kafka message", "topic", c.topic, "error", err)
			select {
			case <-ctx.Done():
				zap.S().Infow("Kafka consumer stopped", "topic", c.topic)
				return
			case <-time.After(c.backoff):
			}
			continue
		}

		if err := c.handle(ctx, msg.Value); err != nil {
			zap.S().Errorw("failed to handle Kafka message", "topic", msg.Topic, "key", string(msg.Key), "error", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, value []byte) error {
	var event models.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return err
	}

	switch event.Type {
	case models.EventPaymentCredited, models.EventOrderPlaced:
		if event.UserID == "" {
			return nil
		}
		if err := c.cache.Del(ctx, redis.BalanceKey(event.UserID)); err != nil {
			return err
		}
		zap.S().Infow("cached balance invalidated", "type", event.Type, "user_id", event.UserID, "balance", event.Balance)
	case models.EventPaymentOrphaned, models.EventPaymentFailed:
		zap.S().Warnw("payment needs attention", "type", event.Type, "payment_id", event.PaymentID, "reference", event.Reference, "amount", event.Amount)
	default:
		zap.S().Warnw("unknown event type", "type", event.Type)
	}
	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

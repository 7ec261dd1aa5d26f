package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Martins1-1/logsonlinee-sub000/internal/infrastructure/redis/mocks"
	"github.com/Martins1-1/logsonlinee-sub000/internal/models"
	"github.com/golang/mock/gomock"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func encode(t *testing.T, e models.Event) []byte {
	t.Helper()
	b, err := json.Marshal(e)
	assert.NoError(t, err)
	return b
}

func TestConsumer_Handle(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cache := mocks.NewMockRedisClient(ctrl)
	c := &Consumer{cache: cache}
	ctx := context.Background()

	t.Run("credited event drops cached balance", func(t *testing.T) {
		cache.EXPECT().Del(gomock.Any(), "user:u1:balance").Return(nil)
		err := c.handle(ctx, encode(t, models.Event{Type: models.EventPaymentCredited, UserID: "u1", Amount: 5000}))
		assert.NoError(t, err)
	})

	t.Run("order event drops cached balance", func(t *testing.T) {
		cache.EXPECT().Del(gomock.Any(), "user:u2:balance").Return(nil)
		err := c.handle(ctx, encode(t, models.Event{Type: models.EventOrderPlaced, UserID: "u2"}))
		assert.NoError(t, err)
	})

	t.Run("cache failure is returned", func(t *testing.T) {
		cache.EXPECT().Del(gomock.Any(), "user:u3:balance").Return(errors.New("redis down"))
		err := c.handle(ctx, encode(t, models.Event{Type: models.EventPaymentCredited, UserID: "u3"}))
		assert.Error(t, err)
	})

	t.Run("orphaned event only logs", func(t *testing.T) {
		err := c.handle(ctx, encode(t, models.Event{Type: models.EventPaymentOrphaned, Reference: "R9"}))
		assert.NoError(t, err)
	})

	t.Run("garbage payload", func(t *testing.T) {
		assert.Error(t, c.handle(ctx, []byte("{not json")))
	})
}

type failingReader struct {
	reads atomic.Int32
}

func (r *failingReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.reads.Add(1)
	return kafka.Message{}, errors.New("broker unreachable")
}

func (r *failingReader) Close() error { return nil }

func TestConsumer_ConsumeBacksOffOnReadErrors(t *testing.T) {
	reader := &failingReader{}
	c := &Consumer{reader: reader, topic: "payments", backoff: 50 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		c.Consume(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after context cancellation")
	}
	assert.LessOrEqual(t, reader.reads.Load(), int32(4))
	assert.GreaterOrEqual(t, reader.reads.Load(), int32(1))
}

package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kafkatc "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/fjod/go_cart/cart-service/internal/domain"
)

type mockWriter struct {
	m        sync.RWMutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.m.Lock()
	defer w.m.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *mockWriter) Close() error {
	w.m.Lock()
	defer w.m.Unlock()
	w.closed = true
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func checkoutEvent() domain.CheckoutEvent {
	return domain.CheckoutEvent{
		EventID:    "evt-1",
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Cart: domain.Snapshot{
			ID:         "cart-1",
			UserID:     "user-456",
			Status:     domain.StatusConverted,
			Items:      []domain.SnapshotItem{{UUID: "i1", ProductID: 1, Qty: 2, LineTotal: decimal.RequireFromString("200.00")}},
			GrandTotal: decimal.RequireFromString("198.00"),
		},
	}
}

func TestPublishCheckout(t *testing.T) {
	w := &mockWriter{}
	p := NewPublisher(w)

	require.NoError(t, p.PublishCheckout(context.Background(), checkoutEvent()))

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "user-456", string(msg.Key))
	assert.Equal(t, EventCartCheckedOut, header(msg, "event_type"))

	var event domain.CheckoutEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, "evt-1", header(msg, "event_id"))
	assert.Equal(t, "evt-1", event.EventID)
	assert.Equal(t, "cart-1", event.Cart.ID)
	assert.Equal(t, domain.StatusConverted, event.Cart.Status)
	assert.True(t, decimal.RequireFromString("198").Equal(event.Cart.GrandTotal))
	assert.True(t, checkoutEvent().OccurredAt.Equal(event.OccurredAt))
}

func TestPublishCheckout_WriteError(t *testing.T) {
	w := &mockWriter{err: errors.New("leader not available")}
	p := NewPublisher(w)

	err := p.PublishCheckout(context.Background(), checkoutEvent())
	require.ErrorContains(t, err, "leader not available")
	assert.ErrorContains(t, err, EventCartCheckedOut)
}

func TestClose(t *testing.T) {
	w := &mockWriter{}
	require.NoError(t, NewPublisher(w).Close())
	assert.True(t, w.closed)
}

func setupKafka(t *testing.T) (string, func()) {
	ctx := context.Background()

	kafkaContainer, err := kafkatc.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers, "broker address should not be empty")

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}

	return brokers[0], cleanup
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafka.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafka.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1})
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestKafkaPublisher_WritesToBroker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping kafka integration test in short mode")
	}
	brokerAddr, cleanup := setupKafka(t)
	defer cleanup()

	const topic = "cart-checked-out-test"
	createTopic(t, brokerAddr, topic)

	p := NewKafkaPublisher(topic, brokerAddr)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, p.PublishCheckout(ctx, checkoutEvent()))

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{brokerAddr},
		Topic:    topic,
		GroupID:  "test-consumer",
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	msg, err := reader.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user-456", string(msg.Key))

	var event domain.CheckoutEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, "cart-1", event.Cart.ID)
	assert.Equal(t, "evt-1", event.EventID)
}

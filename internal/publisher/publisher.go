// Package publisher emits cart lifecycle events to Kafka.
package publisher

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"

	"github.com/fjod/go_cart/cart-service/internal/domain"
)

const EventCartCheckedOut = "cart.checked_out"

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return NewPublisher(w)
}

func NewPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

// PublishCheckout writes one checkout message keyed by user id, so all
// events of a user land on the same partition in order. Delivery is at
// least once; consumers dedupe on event_id.
func (p *KafkaPublisher) PublishCheckout(ctx context.Context, event domain.CheckoutEvent) error {
	snap := event.Cart
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal checkout event")
	}

	msg := kafka.Message{
		Key:   []byte(snap.UserID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventCartCheckedOut)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "write %s for cart %s", EventCartCheckedOut, snap.ID)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

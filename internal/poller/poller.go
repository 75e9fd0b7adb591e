// Package poller clears carts once the order collaborator reports that the
// checked-out cart became an order.
package poller

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/cart-service/internal/repository"
)

// OrderCompleted is the subset of the order event the cart side needs.
type OrderCompleted struct {
	OrderID string `json:"order_id,omitempty"`
	CartID  string `json:"cart_id,omitempty"`
	UserID  string `json:"user_id"`
}

// MessageReader is the part of *kafka.Reader the poller uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// CartRemover deletes a user's cart together with its cached copy.
type CartRemover interface {
	ClearCart(ctx context.Context, userID string) error
}

const retryBackoff = time.Second

type Poller struct {
	reader  MessageReader
	carts   CartRemover
	logger  *zap.Logger
	backoff time.Duration
}

func NewPoller(carts CartRemover, logger *zap.Logger, topic, groupID string, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return New(reader, carts, logger)
}

func New(reader MessageReader, carts CartRemover, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{reader: reader, carts: carts, logger: logger, backoff: retryBackoff}
}

// Run consumes until ctx is cancelled. A message is committed only after its
// cart is gone, so a crash in between replays it.
func (p *Poller) Run(ctx context.Context) {
	for ctx.Err() == nil {
		if err := p.poll(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("poll failed", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(p.backoff):
			}
		}
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.logger.Warn("error closing reader", zap.Error(err))
	}
}

func (p *Poller) poll(ctx context.Context) error {
	m, err := p.reader.FetchMessage(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch message")
	}

	if err := p.handle(ctx, m); err != nil {
		return err
	}

	if err := p.reader.CommitMessages(ctx, m); err != nil {
		return errors.Wrapf(err, "commit offset %d", m.Offset)
	}
	return nil
}

// handle returns an error only for failures worth retrying. Malformed
// messages are logged and skipped.
func (p *Poller) handle(ctx context.Context, m kafka.Message) error {
	var event OrderCompleted
	if err := json.Unmarshal(m.Value, &event); err != nil {
		p.logger.Warn("skipping unparsable message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if event.UserID == "" {
		p.logger.Warn("skipping message without user_id", zap.Int64("offset", m.Offset))
		return nil
	}

	err := p.carts.ClearCart(ctx, event.UserID)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		return errors.Wrapf(err, "clear cart of %s", event.UserID)
	}

	p.logger.Info("cart cleared after order",
		zap.String("user_id", event.UserID),
		zap.String("order_id", event.OrderID),
	)
	return nil
}

package publisher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fjod/go_cart/cart-service/internal/domain"
)

const relayBatch = 100

// OutboxStore is the part of the cart repository the relay drains.
type OutboxStore interface {
	PendingCheckouts(ctx context.Context, limit int) ([]domain.CheckoutEvent, error)
	MarkCheckoutPublished(ctx context.Context, userID, eventID string) error
}

type CheckoutPublisher interface {
	PublishCheckout(ctx context.Context, event domain.CheckoutEvent) error
}

// OutboxRelay republishes checkouts whose first publish attempt failed.
type OutboxRelay struct {
	store     OutboxStore
	publisher CheckoutPublisher
	tick      time.Duration
	logger    *zap.Logger
}

func NewOutboxRelay(store OutboxStore, publisher CheckoutPublisher, tick time.Duration, logger *zap.Logger) *OutboxRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutboxRelay{store: store, publisher: publisher, tick: tick, logger: logger}
}

func (r *OutboxRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Flush(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Flush makes one pass over the pending checkouts and returns how many were
// published and marked.
func (r *OutboxRelay) Flush(ctx context.Context) int {
	events, err := r.store.PendingCheckouts(ctx, relayBatch)
	if err != nil {
		r.logger.Warn("failed to fetch pending checkouts", zap.Error(err))
		return 0
	}

	sent := 0
	for _, event := range events {
		log := r.logger.With(zap.String("event_id", event.EventID), zap.String("user_id", event.Cart.UserID))
		if err := r.publisher.PublishCheckout(ctx, event); err != nil {
			log.Warn("failed to publish checkout", zap.Error(err))
			continue
		}
		if err := r.store.MarkCheckoutPublished(ctx, event.Cart.UserID, event.EventID); err != nil {
			log.Warn("failed to mark checkout published", zap.Error(err))
			continue
		}
		sent++
	}
	if sent > 0 {
		r.logger.Info("relayed pending checkouts", zap.Int("count", sent))
	}
	return sent
}

package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/cart-service/internal/discount"
	"github.com/fjod/go_cart/cart-service/internal/domain"
)

// Source is what the breaker protects: a catalog that is also a coupon store.
type Source interface {
	domain.Catalog
	discount.Store
}

// BreakerSettings tune the circuit breakers around catalog lookups.
type BreakerSettings struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             10 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// Breaker wraps a Source so that a failing catalog is short-circuited
// instead of being hit by every cart rebuild.
type Breaker struct {
	next     Source
	products *gobreaker.CircuitBreaker[*domain.Product]
	coupons  *gobreaker.CircuitBreaker[*discount.Rule]
}

func NewBreaker(next Source, cfg BreakerSettings, logger *zap.Logger) *Breaker {
	return &Breaker{
		next:     next,
		products: gobreaker.NewCircuitBreaker[*domain.Product](settings("catalog-products", cfg, logger)),
		coupons:  gobreaker.NewCircuitBreaker[*discount.Rule](settings("catalog-coupons", cfg, logger)),
	}
}

func settings(name string, cfg BreakerSettings, logger *zap.Logger) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// lookups that found nothing are answers, not outages
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, domain.ErrUnknownProduct) ||
				errors.Is(err, discount.ErrCouponNotFound) ||
				errors.Is(err, context.Canceled)
		},
	}
}

func (b *Breaker) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return b.products.Execute(func() (*domain.Product, error) {
		return b.next.GetProduct(ctx, id)
	})
}

func (b *Breaker) FindByCode(ctx context.Context, code string) (*discount.Rule, error) {
	return b.coupons.Execute(func() (*discount.Rule, error) {
		return b.next.FindByCode(ctx, code)
	})
}

// ProductsState reports the product breaker state, for health output.
func (b *Breaker) ProductsState() gobreaker.State {
	return b.products.State()
}

package catalog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/cart-service/internal/discount"
	"github.com/fjod/go_cart/cart-service/internal/domain"
)

type mockSource struct {
	m     sync.Mutex
	err   error
	calls int
}

func (m *mockSource) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Product{ID: id}, nil
}

func (m *mockSource) FindByCode(_ context.Context, code string) (*discount.Rule, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &discount.Rule{Code: code}, nil
}

func testSettings() BreakerSettings {
	return BreakerSettings{MaxRequests: 1, Interval: time.Minute, Timeout: time.Hour, ConsecutiveFailures: 2}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	src := &mockSource{err: errors.New("disk I/O error")}
	b := NewBreaker(src, testSettings(), zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := b.GetProduct(ctx, 1)
		require.ErrorContains(t, err, "disk I/O error")
	}
	assert.Equal(t, gobreaker.StateOpen, b.ProductsState())

	_, err := b.GetProduct(ctx, 1)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, src.calls)
}

func TestBreaker_NotFoundDoesNotTrip(t *testing.T) {
	src := &mockSource{err: errors.Wrap(domain.ErrUnknownProduct, "product 9")}
	b := NewBreaker(src, testSettings(), zap.NewNop())

	for i := 0; i < 5; i++ {
		_, err := b.GetProduct(context.Background(), 9)
		assert.ErrorIs(t, err, domain.ErrUnknownProduct)
	}
	assert.Equal(t, gobreaker.StateClosed, b.ProductsState())
}

func TestBreaker_CouponsPassThrough(t *testing.T) {
	b := NewBreaker(&mockSource{}, testSettings(), zap.NewNop())
	rule, err := b.FindByCode(context.Background(), "TENOFF")
	require.NoError(t, err)
	assert.Equal(t, "TENOFF", rule.Code)

	missing := NewBreaker(&mockSource{err: discount.ErrCouponNotFound}, testSettings(), zap.NewNop())
	_, err = missing.FindByCode(context.Background(), "NOPE")
	assert.ErrorIs(t, err, discount.ErrCouponNotFound)
}

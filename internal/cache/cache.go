package cache

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/fjod/go_cart/cart-service/internal/domain"
)

type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Snapshot, error)
	Set(ctx context.Context, userID string, snap domain.Snapshot) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")

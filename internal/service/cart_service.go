package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fjod/go_cart/cart-service/internal/cache"
	"github.com/fjod/go_cart/cart-service/internal/discount"
	"github.com/fjod/go_cart/cart-service/internal/domain"
	"github.com/fjod/go_cart/cart-service/internal/logger"
	"github.com/fjod/go_cart/cart-service/internal/repository"
)

var ErrEmptyCart = errors.New("cart is empty")

// CheckoutPublisher hands a converted cart to the order collaborator.
type CheckoutPublisher interface {
	PublishCheckout(ctx context.Context, event domain.CheckoutEvent) error
}

const lockShards = 64

type CartService struct {
	repo       repository.CartRepository
	cache      cache.CartCache
	publisher  CheckoutPublisher
	pricing    domain.Pricing
	convention domain.TaxConvention
	logger     *zap.Logger
	now        func() time.Time
	sfg        singleflight.Group // Prevents cache stampede
	locks      [lockShards]sync.Mutex
}

func NewCartService(
	repo repository.CartRepository,
	cache cache.CartCache,
	publisher CheckoutPublisher,
	pricing domain.Pricing,
	convention domain.TaxConvention,
	logger *zap.Logger,
) *CartService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartService{
		repo:       repo,
		cache:      cache,
		publisher:  publisher,
		pricing:    pricing,
		convention: convention,
		logger:     logger,
		now:        time.Now,
	}
}

// GetCart returns the stored cart of userID, or an empty cart when none exists.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Snapshot, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		snap, err := s.cache.Get(ctx, userID)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log(ctx).Warn("cache get failed", zap.String("user_id", userID), zap.Error(err))
		}

		snap, err = s.repo.GetCart(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			empty := s.newCart(userID).Export()
			return &empty, nil
		}
		if err != nil {
			return nil, err
		}

		stored := *snap
		go func() {
			if err := s.cache.Set(context.Background(), userID, stored); err != nil {
				s.logger.Warn("cache set failed", zap.String("user_id", userID), zap.Error(err))
			}
		}()

		return snap, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Snapshot), nil
}

func (s *CartService) AddItem(ctx context.Context, userID string, productID int64, qty int) (*domain.Snapshot, error) {
	return s.update(ctx, userID, "add item", func(c *domain.Cart) error {
		_, err := c.AddItem(ctx, productID, qty)
		return err
	})
}

func (s *CartService) UpdateItemQty(ctx context.Context, userID, itemID string, delta int, dir domain.Direction) (*domain.Snapshot, error) {
	return s.update(ctx, userID, "update item quantity", func(c *domain.Cart) error {
		_, _, err := c.UpdateItemQty(ctx, itemID, delta, dir)
		return err
	})
}

func (s *CartService) RemoveItem(ctx context.Context, userID, itemID string) (*domain.Snapshot, error) {
	return s.update(ctx, userID, "remove item", func(c *domain.Cart) error {
		return c.RemoveItem(ctx, itemID)
	})
}

// ApplyCoupon sets the cart coupon. recognized is false when the code is
// unknown; the cart is then returned unchanged and nothing is written.
func (s *CartService) ApplyCoupon(ctx context.Context, userID, code string) (snap *domain.Snapshot, recognized bool, err error) {
	snap, err = s.update(ctx, userID, "apply coupon", func(c *domain.Cart) error {
		ok, err := c.SetCoupon(ctx, code)
		if err != nil {
			return err
		}
		recognized = ok
		if !ok && discount.NormalizeCode(code) != "" {
			return errUnchanged
		}
		return nil
	})
	return snap, recognized, err
}

func (s *CartService) RemoveCoupon(ctx context.Context, userID string) (*domain.Snapshot, error) {
	return s.update(ctx, userID, "remove coupon", func(c *domain.Cart) error {
		return c.RemoveCoupon(ctx)
	})
}

func (s *CartService) SetShippingAddress(ctx context.Context, userID string, a domain.Address) (*domain.Snapshot, error) {
	return s.update(ctx, userID, "set shipping address", func(c *domain.Cart) error {
		return c.SetShippingAddress(a)
	})
}

func (s *CartService) SetBillingAddress(ctx context.Context, userID string, a domain.Address) (*domain.Snapshot, error) {
	return s.update(ctx, userID, "set billing address", func(c *domain.Cart) error {
		return c.SetBillingAddress(a)
	})
}

func (s *CartService) SetShippingMethod(ctx context.Context, userID, code string) (*domain.Snapshot, error) {
	return s.update(ctx, userID, "set shipping method", func(c *domain.Cart) error {
		return c.SetShippingMethod(code)
	})
}

func (s *CartService) SetStatus(ctx context.Context, userID string, status domain.Status) (*domain.Snapshot, error) {
	return s.update(ctx, userID, "set status", func(c *domain.Cart) error {
		c.SetStatus(status)
		return nil
	})
}

func (s *CartService) SetTaxConvention(ctx context.Context, userID string, convention domain.TaxConvention) (*domain.Snapshot, error) {
	return s.update(ctx, userID, "set tax convention", func(c *domain.Cart) error {
		return c.SetTaxConvention(ctx, convention)
	})
}

// Checkout reprices the cart against the current catalog and freezes it.
// The converted cart and its pending event are stored in one write before
// anything is published, so a failed store publishes nothing and a failed
// publish is retried by the outbox relay.
func (s *CartService) Checkout(ctx context.Context, userID string) (*domain.Snapshot, error) {
	event := domain.CheckoutEvent{EventID: uuid.NewString(), OccurredAt: s.now().UTC()}

	snap, err := s.updateWith(ctx, userID, "checkout", func(c *domain.Cart) error {
		if c.Status().IsReadOnly() {
			return domain.ErrCartReadOnly
		}
		if c.Len() == 0 {
			return ErrEmptyCart
		}
		if err := c.Build(ctx); err != nil {
			return err
		}
		c.MarkConverted()
		return nil
	}, func(ctx context.Context, snap domain.Snapshot) error {
		event.Cart = snap
		return s.repo.SaveCheckout(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	s.deliver(ctx, event)
	return snap, nil
}

// deliver makes the first publish attempt for a stored checkout.
func (s *CartService) deliver(ctx context.Context, event domain.CheckoutEvent) {
	if s.publisher == nil {
		return
	}
	log := s.log(ctx).With(zap.String("user_id", event.Cart.UserID), zap.String("event_id", event.EventID))
	if err := s.publisher.PublishCheckout(ctx, event); err != nil {
		log.Warn("publish checkout failed, left for outbox relay", zap.Error(err))
		return
	}
	if err := s.repo.MarkCheckoutPublished(ctx, event.Cart.UserID, event.EventID); err != nil {
		log.Warn("mark checkout published failed", zap.Error(err))
	}
}

// ClearCart deletes the stored cart of userID.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	mu := s.lock(userID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.repo.DeleteCart(ctx, userID); err != nil {
		s.log(ctx).Warn("repo delete cart failed", zap.String("user_id", userID), zap.Error(err))
		return err
	}

	s.invalidateCache(userID)
	return nil
}

// errUnchanged aborts an update without persisting and without failing.
var errUnchanged = errors.New("cart unchanged")

// update runs the load, mutate, persist, invalidate cycle under the user's lock.
func (s *CartService) update(ctx context.Context, userID, op string, fn func(c *domain.Cart) error) (*domain.Snapshot, error) {
	return s.updateWith(ctx, userID, op, fn, s.repo.UpsertCart)
}

func (s *CartService) updateWith(
	ctx context.Context,
	userID, op string,
	fn func(c *domain.Cart) error,
	persist func(ctx context.Context, snap domain.Snapshot) error,
) (*domain.Snapshot, error) {
	mu := s.lock(userID)
	mu.Lock()
	defer mu.Unlock()

	cart, err := s.load(ctx, userID)
	if err != nil {
		s.log(ctx).Warn("load cart failed", zap.String("op", op), zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	if err := fn(cart); err != nil {
		if errors.Is(err, errUnchanged) {
			snap := cart.Export()
			return &snap, nil
		}
		s.log(ctx).Warn(op+" failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	snap := cart.Export()
	if err := persist(ctx, snap); err != nil {
		s.log(ctx).Warn("repo upsert cart failed", zap.String("op", op), zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	s.invalidateCache(userID)
	return &snap, nil
}

func (s *CartService) load(ctx context.Context, userID string) (*domain.Cart, error) {
	snap, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return s.newCart(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return domain.Restore(*snap, s.pricing)
}

func (s *CartService) newCart(userID string) *domain.Cart {
	return domain.NewCart(userID, domain.StatusActive, s.convention, s.pricing)
}

func (s *CartService) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *CartService) lock(userID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &s.locks[h.Sum32()%lockShards]
}

func (s *CartService) log(ctx context.Context) *zap.Logger {
	return logger.WithContext(ctx, s.logger)
}

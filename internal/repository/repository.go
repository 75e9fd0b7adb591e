package repository

import (
	"context"

	"github.com/fjod/go_cart/cart-service/internal/domain"
)

// CartRepository persists cart snapshots keyed by user.
// Consumers define this interface, not the MongoDB implementation
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Snapshot, error)
	UpsertCart(ctx context.Context, snap domain.Snapshot) error
	DeleteCart(ctx context.Context, userID string) error

	// SaveCheckout writes the converted cart and its pending event in one
	// document update, so neither exists without the other.
	SaveCheckout(ctx context.Context, event domain.CheckoutEvent) error
	// PendingCheckouts returns unpublished checkouts, oldest first.
	PendingCheckouts(ctx context.Context, limit int) ([]domain.CheckoutEvent, error)
	// MarkCheckoutPublished drops the pending event. Marking an event that is
	// already gone is not an error.
	MarkCheckoutPublished(ctx context.Context, userID, eventID string) error
}

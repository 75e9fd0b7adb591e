package domain

import "time"

// CheckoutEvent is a converted cart on its way to the order collaborator.
// EventID is fixed when the checkout is stored, so every redelivery of the
// same checkout carries the same id.
type CheckoutEvent struct {
	EventID    string    `json:"event_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Cart       Snapshot  `json:"cart"`
}

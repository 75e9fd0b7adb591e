package publisher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/cart-service/internal/domain"
)

type mockOutbox struct {
	m        sync.RWMutex
	pending  []domain.CheckoutEvent
	fetchErr error
	markErr  error
}

func (o *mockOutbox) PendingCheckouts(_ context.Context, limit int) ([]domain.CheckoutEvent, error) {
	o.m.RLock()
	defer o.m.RUnlock()
	if o.fetchErr != nil {
		return nil, o.fetchErr
	}
	n := len(o.pending)
	if n > limit {
		n = limit
	}
	return append([]domain.CheckoutEvent(nil), o.pending[:n]...), nil
}

func (o *mockOutbox) MarkCheckoutPublished(_ context.Context, userID, eventID string) error {
	o.m.Lock()
	defer o.m.Unlock()
	if o.markErr != nil {
		return o.markErr
	}
	for i, e := range o.pending {
		if e.EventID == eventID && e.Cart.UserID == userID {
			o.pending = append(o.pending[:i], o.pending[i+1:]...)
			break
		}
	}
	return nil
}

func (o *mockOutbox) left() int {
	o.m.RLock()
	defer o.m.RUnlock()
	return len(o.pending)
}

func pendingEvent(id, userID string) domain.CheckoutEvent {
	return domain.CheckoutEvent{
		EventID: id,
		Cart:    domain.Snapshot{ID: "cart-" + userID, UserID: userID, Status: domain.StatusConverted},
	}
}

func TestOutboxRelay_Flush(t *testing.T) {
	store := &mockOutbox{pending: []domain.CheckoutEvent{pendingEvent("evt-1", "u1"), pendingEvent("evt-2", "u2")}}
	w := &mockWriter{}
	relay := NewOutboxRelay(store, NewPublisher(w), time.Second, zap.NewNop())

	assert.Equal(t, 2, relay.Flush(context.Background()))
	assert.Equal(t, 0, store.left())
	require.Len(t, w.messages, 2)
	assert.Equal(t, "evt-1", header(w.messages[0], "event_id"))
	assert.Equal(t, "u2", string(w.messages[1].Key))

	assert.Equal(t, 0, relay.Flush(context.Background()))
}

func TestOutboxRelay_PublishFailureKeepsEvent(t *testing.T) {
	store := &mockOutbox{pending: []domain.CheckoutEvent{pendingEvent("evt-1", "u1")}}
	w := &mockWriter{err: errors.New("leader not available")}
	relay := NewOutboxRelay(store, NewPublisher(w), time.Second, nil)

	assert.Equal(t, 0, relay.Flush(context.Background()))
	assert.Equal(t, 1, store.left())

	w.m.Lock()
	w.err = nil
	w.m.Unlock()
	assert.Equal(t, 1, relay.Flush(context.Background()))
	assert.Equal(t, 0, store.left())
}

func TestOutboxRelay_StoreErrors(t *testing.T) {
	store := &mockOutbox{fetchErr: errors.New("mongo down")}
	w := &mockWriter{}
	relay := NewOutboxRelay(store, NewPublisher(w), time.Second, nil)

	assert.Equal(t, 0, relay.Flush(context.Background()))
	assert.Empty(t, w.messages)

	store = &mockOutbox{pending: []domain.CheckoutEvent{pendingEvent("evt-1", "u1")}, markErr: errors.New("mongo down")}
	relay = NewOutboxRelay(store, NewPublisher(w), time.Second, nil)
	assert.Equal(t, 0, relay.Flush(context.Background()))
	assert.Equal(t, 1, store.left())
	assert.Len(t, w.messages, 1, "published but unmarked events are sent again next pass")
}

func TestOutboxRelay_RunStopsWithContext(t *testing.T) {
	store := &mockOutbox{pending: []domain.CheckoutEvent{pendingEvent("evt-1", "u1")}}
	relay := NewOutboxRelay(store, NewPublisher(&mockWriter{}), 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return store.left() == 0 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}

package events

import (
	"context"
	"time"

	"github.com/gofrs/uuid"
)

// Event types broadcast to the realtime channel. Each mutating component
// emits its own types explicitly after a successful commit; there is no
// implicit on-save hook.
const (
	TypeTableCreated     = "TABLE_CREATED"
	TypeTableUpdated     = "TABLE_UPDATED"
	TypeTableDeleted     = "TABLE_DELETED"
	TypeCartUpdated      = "CART_UPDATED"
	TypeOrderCreated     = "ORDER_CREATED"
	TypeOrderUpdated     = "ORDER_UPDATED"
	TypePaymentCompleted = "PAYMENT_COMPLETED"
)

type Event struct {
	ID        uuid.UUID   `json:"id"`
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

func New(eventType string, payload interface{}) Event {
	return Event{
		ID:        uuid.Must(uuid.NewV4()),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// Publisher is the broadcast sink. Delivery is fire-and-forget relative to
// the core state machine: callers log publish failures and move on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher discards every event. Used in tests and when the broker is
// not reachable at startup.
type NopPublisher struct{}

func (NopPublisher) Publish(_ context.Context, _ Event) error { return nil }
func (NopPublisher) Close() error                             { return nil }

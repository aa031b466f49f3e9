package domain

import "time"

// EventType identifies a notification event emitted by the core. Delivery
// is fire-and-forget; a failed emission never rolls back the operation
// that produced it.
type EventType string

const (
	EventOrderPlaced         EventType = "order.placed"
	EventOrderStatusChanged  EventType = "order.status_changed"
	EventOrderCancelled      EventType = "order.cancelled"
	EventReturnRequested     EventType = "return.requested"
	EventReturnStatusChanged EventType = "return.status_changed"
	EventRefundCreated       EventType = "refund.created"
	EventRefundSettled       EventType = "refund.settled"
	EventWalletRecharged     EventType = "wallet.recharged"
)

// Event is the payload handed to the notification emitter. A nil UserID
// addresses admins rather than a specific user.
type Event struct {
	Type       EventType      `json:"type"`
	UserID     *string        `json:"user_id,omitempty"`
	OrderID    string         `json:"order_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// UserEvent builds an event addressed to one user.
func UserEvent(t EventType, userID, orderID string, data map[string]any) Event {
	return Event{
		Type:       t,
		UserID:     &userID,
		OrderID:    orderID,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
}

// AdminEvent builds a broadcast event with no target user.
func AdminEvent(t EventType, orderID string, data map[string]any) Event {
	return Event{
		Type:       t,
		OrderID:    orderID,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
}

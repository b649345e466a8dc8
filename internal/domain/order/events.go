package order

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventCreated   = "order.created"
	EventCompleted = "order.completed"
	EventCancelled = "order.cancelled"
	EventFailed    = "order.failed"
)

// LifecycleEvents lists every event name an order emits.
var LifecycleEvents = []string{EventCreated, EventCompleted, EventCancelled, EventFailed}

// Snapshot is the order state carried by every lifecycle event.
type Snapshot struct {
	OrderID    string          `json:"order_id"`
	ProductID  string          `json:"product_id"`
	BuyerID    string          `json:"buyer_id"`
	SellerID   string          `json:"seller_id"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Status     Status          `json:"status"`
	Reason     string          `json:"reason,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func snapshot(o *Order, now time.Time) Snapshot {
	return Snapshot{
		OrderID:    o.ID,
		ProductID:  o.ProductID,
		BuyerID:    o.BuyerID,
		SellerID:   o.SellerID,
		Quantity:   o.Quantity,
		TotalPrice: o.TotalPrice,
		Status:     o.Status,
		Reason:     o.FailureReason,
		OccurredAt: now,
	}
}

// CreatedEvent is emitted once the pending order and its reservation exist.
type CreatedEvent struct{ Snapshot }

func (CreatedEvent) EventName() string { return EventCreated }

func NewCreatedEvent(o *Order) CreatedEvent {
	return CreatedEvent{snapshot(o, time.Now().UTC())}
}

// CompletedEvent is emitted after payment is confirmed and stock committed.
type CompletedEvent struct{ Snapshot }

func (CompletedEvent) EventName() string { return EventCompleted }

func NewCompletedEvent(o *Order) CompletedEvent {
	return CompletedEvent{snapshot(o, time.Now().UTC())}
}

// CancelledEvent is emitted when a pending order is cancelled or expires.
type CancelledEvent struct{ Snapshot }

func (CancelledEvent) EventName() string { return EventCancelled }

func NewCancelledEvent(o *Order) CancelledEvent {
	return CancelledEvent{snapshot(o, time.Now().UTC())}
}

// FailedEvent is emitted when payment fails or the session cannot be opened.
type FailedEvent struct{ Snapshot }

func (FailedEvent) EventName() string { return EventFailed }

func NewFailedEvent(o *Order) FailedEvent {
	return FailedEvent{snapshot(o, time.Now().UTC())}
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const EventTypeOrderCreated = "order_created"

// OrderCreatedEvent is published on the order-events topic once an order is
// persisted. Consumers use Consumed to finish clearing the cart.
type OrderCreatedEvent struct {
	EventType  string          `json:"event_type"`
	OrderID    uuid.UUID       `json:"order_id"`
	UserID     string          `json:"user_id"`
	TotalPrice decimal.Decimal `json:"total_price"`
	ItemCount  int             `json:"item_count"`
	Consumed   []ConsumedLine  `json:"consumed"`
	CreatedAt  time.Time       `json:"created_at"`
}

func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		EventType:  EventTypeOrderCreated,
		OrderID:    o.ID,
		UserID:     o.UserID,
		TotalPrice: o.TotalPrice,
		ItemCount:  len(o.Items),
		Consumed:   o.Consumed,
		CreatedAt:  o.CreatedAt,
	}
}

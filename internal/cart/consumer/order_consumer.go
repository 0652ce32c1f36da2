// Package consumer listens for order_created events and finishes the cart
// clear of each order.
package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const readErrorBackoff = time.Second

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type OrderLoader interface {
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, order *domain.Order) error
}

type OrderConsumer struct {
	reader     MessageReader
	orders     OrderLoader
	reconciler Reconciler
	log        *slog.Logger
}

func NewKafkaReader(topic, groupID string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

func NewOrderConsumer(reader MessageReader, orders OrderLoader, reconciler Reconciler, log *slog.Logger) *OrderConsumer {
	return &OrderConsumer{reader: reader, orders: orders, reconciler: reconciler, log: log}
}

func (c *OrderConsumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.ErrorContext(ctx, "error reading message", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(readErrorBackoff):
			}
			continue
		}
		c.handle(ctx, m)
	}
}

func (c *OrderConsumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Error("error closing reader", "error", err)
	}
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}

func (c *OrderConsumer) handle(ctx context.Context, m kafka.Message) {
	if t := eventType(m); t != "" && t != domain.EventTypeOrderCreated {
		return
	}

	var event domain.OrderCreatedEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		c.log.ErrorContext(ctx, "error parsing message", "offset", m.Offset, "error", err)
		return
	}
	if event.OrderID == uuid.Nil {
		c.log.ErrorContext(ctx, "missing or invalid order_id", "offset", m.Offset)
		return
	}

	order, err := c.orders.GetOrderByID(ctx, event.OrderID)
	if err != nil {
		c.log.ErrorContext(ctx, "failed to load order", "order_id", event.OrderID, "error", err)
		return
	}
	if order.CartCleared {
		return
	}

	if err := c.reconciler.Reconcile(ctx, order); err != nil {
		// the outbox poller's recovery tick retries it
		c.log.ErrorContext(ctx, "failed to clear cart of order",
			"order_id", order.ID, "user_id", order.UserID, "error", err)
		return
	}
	c.log.InfoContext(ctx, "cart of order reconciled", "order_id", order.ID, "user_id", order.UserID)
}

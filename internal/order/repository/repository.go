package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrDuplicateCheckout = errors.New("order for this checkout already exists")
)

type Credentials struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	MaxOpenConns int
	MaxIdleConns int
}

// OutboxEvent is an event written together with its order and published later.
type OutboxEvent struct {
	ID          uuid.UUID
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

type OrderRepository interface {
	// CreateOrder stores the order and its order_created outbox event in one
	// transaction. It returns ErrDuplicateCheckout when an order with the same
	// checkout key exists.
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrderByCheckoutKey(ctx context.Context, key string) (*domain.Order, error)
	// ListOrdersByUserID returns the user's orders, newest first.
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	MarkCartCleared(ctx context.Context, id uuid.UUID) error
	// ListUnclearedOrders returns orders created before olderThan whose cart
	// clear never completed.
	ListUnclearedOrders(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Order, error)

	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id uuid.UUID) error
}

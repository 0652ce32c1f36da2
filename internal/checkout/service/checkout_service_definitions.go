package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/google/uuid"
)

// ErrCartClearPending marks a checkout whose order is persisted but whose cart
// lines could not be removed yet. Reconciliation removes them later.
var ErrCartClearPending = errors.New("cart clear pending")

// CartManager is the part of the cart service a checkout needs.
type CartManager interface {
	Snapshot(ctx context.Context, userID string) ([]domain.CartLine, error)
	ClearConsumed(ctx context.Context, userID string, consumed []domain.ConsumedLine) error
}

type ProductCatalog interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

type OrderStore interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByCheckoutKey(ctx context.Context, key string) (*domain.Order, error)
	MarkCartCleared(ctx context.Context, id uuid.UUID) error
}

// Locker serializes checkouts of one user.
type Locker interface {
	Acquire(ctx context.Context, userID string) (release func(), err error)
}

type Config struct {
	// LookupTimeout bounds a single catalog call.
	LookupTimeout time.Duration
	// LookupAttempts is the number of tries for a product while the catalog is unavailable.
	LookupAttempts int
	RetryBaseDelay time.Duration
	// MaxConcurrentLookups caps the catalog calls in flight for one checkout.
	MaxConcurrentLookups int
	ClearAttempts        int
}

// Retry waits never grow past this however many attempts are configured.
const maxRetryInterval = 2 * time.Second

func (c Config) withDefaults() Config {
	if c.LookupTimeout <= 0 {
		c.LookupTimeout = 3 * time.Second
	}
	if c.LookupAttempts <= 0 {
		c.LookupAttempts = 1
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 100 * time.Millisecond
	}
	if c.MaxConcurrentLookups <= 0 {
		c.MaxConcurrentLookups = 8
	}
	if c.ClearAttempts <= 0 {
		c.ClearAttempts = 1
	}
	return c
}

type CheckoutServiceImpl struct {
	cart    CartManager
	catalog ProductCatalog
	orders  OrderStore
	locker  Locker
	cfg     Config
	log     *slog.Logger
	now     func() time.Time
}

func NewCheckoutService(
	cart CartManager,
	catalog ProductCatalog,
	orders OrderStore,
	locker Locker,
	cfg Config,
	log *slog.Logger,
) *CheckoutServiceImpl {
	return &CheckoutServiceImpl{
		cart:    cart,
		catalog: catalog,
		orders:  orders,
		locker:  locker,
		cfg:     cfg.withDefaults(),
		log:     log,
		now:     time.Now,
	}
}

package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/go_cart/internal/catalog"
	"github.com/fjod/go_cart/internal/checkout/lock"
	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/order/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockCart keeps cart lines in memory with the same versioning rules as the store.
type MockCart struct {
	mu        sync.Mutex
	lines     map[string][]domain.CartLine
	clock     time.Time
	ClearErrs int // number of ClearConsumed calls that fail before succeeding
	SnapErr   error
}

func NewMockCart() *MockCart {
	return &MockCart{lines: map[string][]domain.CartLine{}, clock: time.Unix(1700000000, 0)}
}

func (m *MockCart) Add(userID string, productID int64, qty int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Millisecond)
	lines := m.lines[userID]
	for i := range lines {
		if lines[i].ProductID == productID {
			lines[i].Quantity += qty
			lines[i].Version++
			lines[i].UpdatedAt = m.clock
			return
		}
	}
	m.lines[userID] = append(lines, domain.CartLine{
		UserID: userID, ProductID: productID, Quantity: qty, Version: 1, CreatedAt: m.clock, UpdatedAt: m.clock,
	})
}

func (m *MockCart) Lines(userID string) []domain.CartLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.CartLine(nil), m.lines[userID]...)
}

func (m *MockCart) Snapshot(_ context.Context, userID string) ([]domain.CartLine, error) {
	if m.SnapErr != nil {
		return nil, m.SnapErr
	}
	return m.Lines(userID), nil
}

func (m *MockCart) ClearConsumed(_ context.Context, userID string, consumed []domain.ConsumedLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClearErrs > 0 {
		m.ClearErrs--
		return errors.New("mongo unavailable")
	}
	var kept []domain.CartLine
	for _, l := range m.lines[userID] {
		drop := false
		for _, c := range consumed {
			if l.ProductID == c.ProductID && l.Version == c.Version {
				drop = true
			}
		}
		if !drop {
			kept = append(kept, l)
		}
	}
	m.lines[userID] = kept
	return nil
}

// MockCatalog answers from a price list and can fail or block on demand.
type MockCatalog struct {
	Products map[int64]*domain.Product
	// Unavailable maps a product id to the number of calls that fail with ErrUnavailable.
	Unavailable map[int64]int
	Invalid     map[int64]bool
	// Block makes lookups of these ids wait until their context is done.
	Block map[int64]bool
	// OnLookup runs before every lookup.
	OnLookup func(id int64)

	mu    sync.Mutex
	calls map[int64]int
	total atomic.Int32
}

func NewMockCatalog(prices map[int64]string) *MockCatalog {
	products := map[int64]*domain.Product{}
	for id, price := range prices {
		products[id] = &domain.Product{
			ID:    id,
			Title: "product",
			Price: decimal.RequireFromString(price),
			Image: "img",
		}
	}
	return &MockCatalog{
		Products:    products,
		Unavailable: map[int64]int{},
		Invalid:     map[int64]bool{},
		Block:       map[int64]bool{},
		calls:       map[int64]int{},
	}
}

func (m *MockCatalog) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	m.total.Add(1)
	if m.OnLookup != nil {
		m.OnLookup(id)
	}

	m.mu.Lock()
	m.calls[id]++
	failing := m.Unavailable[id] > 0
	if failing {
		m.Unavailable[id]--
	}
	m.mu.Unlock()

	if m.Block[id] {
		<-ctx.Done()
		return nil, errors.Join(catalog.ErrUnavailable, ctx.Err())
	}
	if failing {
		return nil, catalog.ErrUnavailable
	}
	if m.Invalid[id] {
		return nil, catalog.ErrInvalidProduct
	}
	p, ok := m.Products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockCatalog) Calls(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[id]
}

// MockOrders is an in-memory order store keyed by checkout key.
type MockOrders struct {
	mu        sync.Mutex
	byKey     map[string]*domain.Order
	CreateErr error
	MarkErr   error
	// Racer is stored under the checkout key right before CreateOrder runs,
	// as if a concurrent checkout had won.
	Racer   *domain.Order
	creates int
}

func NewMockOrders() *MockOrders {
	return &MockOrders{byKey: map[string]*domain.Order{}}
}

func (m *MockOrders) CreateOrder(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if m.Racer != nil {
		racer := *m.Racer
		racer.CheckoutKey = order.CheckoutKey
		m.byKey[order.CheckoutKey] = &racer
		m.Racer = nil
	}
	if _, ok := m.byKey[order.CheckoutKey]; ok {
		return repository.ErrDuplicateCheckout
	}
	cp := *order
	m.byKey[order.CheckoutKey] = &cp
	m.creates++
	return nil
}

func (m *MockOrders) GetOrderByCheckoutKey(_ context.Context, key string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byKey[key]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MockOrders) MarkCartCleared(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkErr != nil {
		return m.MarkErr
	}
	for _, o := range m.byKey {
		if o.ID == id {
			o.CartCleared = true
			return nil
		}
	}
	return repository.ErrOrderNotFound
}

func (m *MockOrders) All() []*domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Order
	for _, o := range m.byKey {
		cp := *o
		out = append(out, &cp)
	}
	return out
}

// MockLocker is a process-local per-user lock.
type MockLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]bool{}}
}

func (m *MockLocker) Acquire(_ context.Context, userID string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[userID] {
		return nil, lock.ErrNotAcquired
	}
	m.held[userID] = true
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.held, userID)
	}, nil
}

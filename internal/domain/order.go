package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderLineSnapshot is a frozen copy of catalog data captured at checkout time.
type OrderLineSnapshot struct {
	ProductID int64           `json:"product_id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Image     string          `json:"image"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// NewOrderLine snapshots product for qty units. The subtotal is always derived
// from the catalog price.
func NewOrderLine(p Product, qty int) OrderLineSnapshot {
	return OrderLineSnapshot{
		ProductID: p.ID,
		Title:     p.Title,
		UnitPrice: p.Price,
		Image:     p.Image,
		Quantity:  qty,
		Subtotal:  p.Price.Mul(decimal.NewFromInt(int64(qty))),
	}
}

// Order is the immutable record produced by a checkout.
type Order struct {
	ID         uuid.UUID           `json:"id"`
	UserID     string              `json:"user_id"`
	Items      []OrderLineSnapshot `json:"items"`
	TotalPrice decimal.Decimal     `json:"total_price"`
	CreatedAt  time.Time           `json:"created_at"`

	// CheckoutKey makes order creation idempotent for one cart state.
	CheckoutKey string         `json:"-"`
	Consumed    []ConsumedLine `json:"-"`
	CartCleared bool           `json:"-"`
}

// SumSubtotals returns the total of items' subtotals.
func SumSubtotals(items []OrderLineSnapshot) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal)
	}
	return total
}

package domain

import "github.com/shopspring/decimal"

// Product is a catalog record. The engine only relies on id, title, price,
// image and category.
type Product struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description,omitempty"`
	Image       string          `json:"image"`
	Category    string          `json:"category"`
}

// Package catalog resolves product ids against the product catalog this
// service does not own.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/internal/domain"
)

var (
	// ErrProductNotFound means the catalog answered and has no such product.
	ErrProductNotFound = errors.New("product not found")
	// ErrUnavailable means the catalog could not be reached or failed to answer.
	// Callers may retry.
	ErrUnavailable = errors.New("catalog unavailable")
	// ErrInvalidProduct means the catalog answered with a record the engine
	// cannot use. Retrying will not help.
	ErrInvalidProduct = errors.New("invalid product record")
)

// Catalog is the read-only product source.
type Catalog interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

func validate(p *domain.Product, wantID int64) error {
	if wantID != 0 && p.ID != wantID {
		return fmt.Errorf("%w: asked for id %d, got %d", ErrInvalidProduct, wantID, p.ID)
	}
	if p.ID <= 0 {
		return fmt.Errorf("%w: id %d", ErrInvalidProduct, p.ID)
	}
	if p.Title == "" {
		return fmt.Errorf("%w: product %d has no title", ErrInvalidProduct, p.ID)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: product %d has negative price %s", ErrInvalidProduct, p.ID, p.Price)
	}
	return nil
}

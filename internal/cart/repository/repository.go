package repository

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/internal/domain"
)

var ErrItemNotFound = errors.New("item not found in cart")

// CartRepository stores cart lines keyed by (user, product).
// Consumers define this interface, not the MongoDB implementation.
type CartRepository interface {
	// ListLines returns the user's lines in creation order. Unknown users have no lines.
	ListLines(ctx context.Context, userID string) ([]domain.CartLine, error)
	// AddItem adds quantity to the line, creating it when absent.
	AddItem(ctx context.Context, userID string, productID int64, quantity int) error
	// UpdateItemQuantity replaces the quantity of an existing line.
	// It returns ErrItemNotFound when the line does not exist.
	UpdateItemQuantity(ctx context.Context, userID string, productID int64, quantity int) error
	// RemoveItem deletes the line if present.
	RemoveItem(ctx context.Context, userID string, productID int64) error
	// DeleteConsumed deletes every listed line whose version is unchanged and
	// returns how many were deleted.
	DeleteConsumed(ctx context.Context, userID string, consumed []domain.ConsumedLine) (int64, error)
	// DeleteCart deletes all of the user's lines.
	DeleteCart(ctx context.Context, userID string) error
}

package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/internal/domain"
)

// CartCache holds the rendered cart listing of a user. Every invalidation
// moves the user's generation forward; a listing loaded under an older
// generation is never stored.
type CartCache interface {
	Get(ctx context.Context, userID string) ([]domain.CartLine, error)
	Generation(ctx context.Context, userID string) (int64, error)
	Set(ctx context.Context, userID string, gen int64, lines []domain.CartLine) error
	Invalidate(ctx context.Context, userID string) error
}

var (
	ErrCacheMiss = errors.New("cache miss")
	// ErrStaleGeneration means the cart was invalidated after the listing was
	// loaded, so the listing was dropped.
	ErrStaleGeneration = errors.New("cart generation moved")
)

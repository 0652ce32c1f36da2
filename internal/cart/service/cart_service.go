package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/fjod/go_cart/internal/cart/cache"
	"github.com/fjod/go_cart/internal/cart/repository"
	"github.com/fjod/go_cart/internal/domain"
	apperrors "github.com/fjod/go_cart/internal/platform/errors"
	"golang.org/x/sync/singleflight"
)

// CartService owns every write to cart lines. Listings are served through a
// read-through cache that each mutation invalidates; the catalog is never
// consulted here.
type CartService struct {
	repo  repository.CartRepository
	cache cache.CartCache
	log   *slog.Logger
	sfg   singleflight.Group // Prevents cache stampede
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache, log *slog.Logger) *CartService {
	return &CartService{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

var (
	errUserRequired    = apperrors.New(apperrors.CodeInvalidInput, "user_id is required")
	errInvalidProduct  = apperrors.New(apperrors.CodeInvalidInput, "product_id must be greater than 0")
	errInvalidQuantity = apperrors.New(apperrors.CodeInvalidInput, "quantity must be greater than 0")
)

func validateUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return errUserRequired
	}
	return nil
}

func validateLine(userID string, productID int64) error {
	if err := validateUser(userID); err != nil {
		return err
	}
	if productID <= 0 {
		return errInvalidProduct
	}
	return nil
}

const loadTimeout = 5 * time.Second

func storeError(op string, err error) error {
	return apperrors.Wrap(apperrors.CodePersistenceFailure, op, err)
}

// ListCart returns the user's lines. Unknown users get an empty cart.
func (s *CartService) ListCart(ctx context.Context, userID string) ([]domain.CartLine, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}

	// Concurrent misses for the same user share one load. The load is detached
	// from the caller that started it so a cancelled caller does not fail the
	// others; each caller still stops waiting on its own context.
	ch := s.sfg.DoChan(userID, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return s.loadCart(loadCtx, userID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]domain.CartLine)), nil
	}
}

func (s *CartService) loadCart(ctx context.Context, userID string) ([]domain.CartLine, error) {
	lines, err := s.cache.Get(ctx, userID)
	if err == nil {
		return lines, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.log.WarnContext(ctx, "cart cache get failed", "user_id", userID, "error", err)
	}

	// The generation is read before the store so a mutation that lands while
	// loading turns the cache write below into a no-op.
	gen, genErr := s.cache.Generation(ctx, userID)
	if genErr != nil {
		s.log.WarnContext(ctx, "cart cache generation failed", "user_id", userID, "error", genErr)
	}

	lines, err = s.repo.ListLines(ctx, userID)
	if err != nil {
		return nil, storeError("failed to load cart", err)
	}

	if genErr == nil {
		err := s.cache.Set(ctx, userID, gen, lines)
		switch {
		case errors.Is(err, cache.ErrStaleGeneration):
			s.log.DebugContext(ctx, "cart changed while loading, listing not cached", "user_id", userID)
		case err != nil:
			s.log.WarnContext(ctx, "cart cache set failed", "user_id", userID, "error", err)
		}
	}
	return lines, nil
}

// AddItem adds qty units of the product, creating the line on first add and
// accumulating afterwards. It returns the updated cart.
func (s *CartService) AddItem(ctx context.Context, userID string, productID int64, qty int) ([]domain.CartLine, error) {
	if err := validateLine(userID, productID); err != nil {
		return nil, err
	}
	if qty < 1 {
		return nil, errInvalidQuantity
	}

	if err := s.repo.AddItem(ctx, userID, productID, qty); err != nil {
		s.log.ErrorContext(ctx, "repo add item failed", "user_id", userID, "product_id", productID, "error", err)
		return nil, storeError("failed to add item", err)
	}

	s.invalidateCache(userID)
	return s.Snapshot(ctx, userID)
}

// SetQuantity replaces the quantity of a line the user already has. It never
// creates a line.
func (s *CartService) SetQuantity(ctx context.Context, userID string, productID int64, qty int) ([]domain.CartLine, error) {
	if err := validateLine(userID, productID); err != nil {
		return nil, err
	}
	if qty < 1 {
		return nil, errInvalidQuantity
	}

	err := s.repo.UpdateItemQuantity(ctx, userID, productID, qty)
	if errors.Is(err, repository.ErrItemNotFound) {
		return nil, apperrors.Wrap(apperrors.CodeNotFound, "item not found in cart", err)
	}
	if err != nil {
		s.log.ErrorContext(ctx, "repo update item quantity failed", "user_id", userID, "product_id", productID, "error", err)
		return nil, storeError("failed to update item quantity", err)
	}

	s.invalidateCache(userID)
	return s.Snapshot(ctx, userID)
}

// RemoveItem deletes the line if present. Removing a missing line is not an error.
func (s *CartService) RemoveItem(ctx context.Context, userID string, productID int64) ([]domain.CartLine, error) {
	if err := validateLine(userID, productID); err != nil {
		return nil, err
	}

	if err := s.repo.RemoveItem(ctx, userID, productID); err != nil {
		s.log.ErrorContext(ctx, "repo remove item failed", "user_id", userID, "product_id", productID, "error", err)
		return nil, storeError("failed to remove item", err)
	}

	s.invalidateCache(userID)
	return s.Snapshot(ctx, userID)
}

// ClearCart removes every line of the user.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	if err := validateUser(userID); err != nil {
		return err
	}

	if err := s.repo.DeleteCart(ctx, userID); err != nil {
		s.log.ErrorContext(ctx, "repo delete cart failed", "user_id", userID, "error", err)
		return storeError("failed to clear cart", err)
	}

	s.invalidateCache(userID)
	return nil
}

// Snapshot reads the user's lines straight from the store, bypassing the cache.
func (s *CartService) Snapshot(ctx context.Context, userID string) ([]domain.CartLine, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}

	lines, err := s.repo.ListLines(ctx, userID)
	if err != nil {
		return nil, storeError("failed to load cart", err)
	}
	return lines, nil
}

// ClearConsumed deletes the lines a checkout consumed, skipping any line that
// changed since it was read. Safe to repeat.
func (s *CartService) ClearConsumed(ctx context.Context, userID string, consumed []domain.ConsumedLine) error {
	if err := validateUser(userID); err != nil {
		return err
	}

	deleted, err := s.repo.DeleteConsumed(ctx, userID, consumed)
	if err != nil {
		return storeError("failed to clear consumed cart lines", err)
	}
	if deleted < int64(len(consumed)) {
		s.log.InfoContext(ctx, "some consumed cart lines were already gone or changed",
			"user_id", userID, "consumed", len(consumed), "deleted", deleted)
	}

	s.invalidateCache(userID)
	return nil
}

// invalidateCache must run after every store mutation. Later reads start a
// fresh load instead of joining one that may have read the old lines.
func (s *CartService) invalidateCache(userID string) {
	s.sfg.Forget(userID)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.log.Warn("cart cache invalidate failed", "user_id", userID, "error", err)
	}
}

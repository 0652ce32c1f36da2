package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/fjod/go_cart/internal/checkout/lock"
	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/order/repository"
	apperrors "github.com/fjod/go_cart/internal/platform/errors"
	"github.com/google/uuid"
)

// Checkout turns the user's cart into an order. On success the consumed cart
// lines are gone. If the order was stored but the cart could not be cleared,
// the order is returned together with an error wrapping ErrCartClearPending.
func (s *CheckoutServiceImpl) Checkout(ctx context.Context, userID string) (*domain.Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "user_id is required")
	}

	release, err := s.locker.Acquire(ctx, userID)
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, apperrors.Wrap(apperrors.CodeConflict, "another checkout for this user is in progress", err)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistenceFailure, "failed to acquire checkout lock", err)
	}
	defer release()

	lines, err := s.cart.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, apperrors.New(apperrors.CodeEmptyCart, "cart is empty")
	}

	key := domain.CheckoutKey(userID, lines)

	// a previous attempt may have stored the order and failed to clear the cart
	existing, err := s.orders.GetOrderByCheckoutKey(ctx, key)
	if err == nil {
		s.log.InfoContext(ctx, "reusing order from previous checkout attempt",
			"user_id", userID, "order_id", existing.ID)
		return s.finish(ctx, existing)
	}
	if !errors.Is(err, repository.ErrOrderNotFound) {
		return nil, apperrors.Wrap(apperrors.CodePersistenceFailure, "failed to check previous checkout", err)
	}

	products, err := s.resolveProducts(ctx, lines)
	if err != nil {
		return nil, err
	}

	order := s.buildOrder(userID, key, lines, products)
	err = s.orders.CreateOrder(ctx, order)
	if errors.Is(err, repository.ErrDuplicateCheckout) {
		order, err = s.orders.GetOrderByCheckoutKey(ctx, key)
	}
	if err != nil {
		s.log.ErrorContext(ctx, "failed to save order", "user_id", userID, "error", err)
		return nil, apperrors.Wrap(apperrors.CodePersistenceFailure, "failed to save order", err)
	}

	s.log.InfoContext(ctx, "order created",
		"user_id", userID, "order_id", order.ID, "total_price", order.TotalPrice.String(), "items", len(order.Items))
	return s.finish(ctx, order)
}

func (s *CheckoutServiceImpl) buildOrder(userID, key string, lines []domain.CartLine, products []*domain.Product) *domain.Order {
	items := make([]domain.OrderLineSnapshot, len(lines))
	for i, line := range lines {
		items[i] = domain.NewOrderLine(*products[i], line.Quantity)
	}

	return &domain.Order{
		ID:          uuid.New(),
		UserID:      userID,
		Items:       items,
		TotalPrice:  domain.SumSubtotals(items),
		CreatedAt:   s.now().UTC().Truncate(time.Microsecond),
		CheckoutKey: key,
		Consumed:    domain.Consumed(lines),
	}
}

// finish clears the consumed cart lines of a stored order. The order exists
// at this point, so the caller going away must not stop the clear.
func (s *CheckoutServiceImpl) finish(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if order.CartCleared {
		return order, nil
	}
	ctx = context.WithoutCancel(ctx)

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, s.Reconcile(ctx, order)
	}, backoff.WithBackOff(s.retryPolicy()), backoff.WithMaxTries(uint(s.cfg.ClearAttempts)))
	if err == nil {
		return order, nil
	}

	s.log.ErrorContext(ctx, "checkout persisted order but cart clear failed",
		"user_id", order.UserID, "order_id", order.ID, "attempts", s.cfg.ClearAttempts, "error", err)
	return order, apperrors.Wrap(apperrors.CodePersistenceFailure,
		"order placed but cart clear is pending", fmt.Errorf("%w: %w", ErrCartClearPending, err))
}

// Reconcile removes the cart lines an order consumed and marks the order as
// cleared. Lines changed after the checkout read them are kept. Safe to repeat.
func (s *CheckoutServiceImpl) Reconcile(ctx context.Context, order *domain.Order) error {
	if order.CartCleared {
		return nil
	}
	if err := s.cart.ClearConsumed(ctx, order.UserID, order.Consumed); err != nil {
		return err
	}
	if err := s.orders.MarkCartCleared(ctx, order.ID); err != nil {
		return apperrors.Wrap(apperrors.CodePersistenceFailure, "failed to mark cart cleared", err)
	}
	order.CartCleared = true
	return nil
}

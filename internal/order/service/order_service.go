package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/order/repository"
	apperrors "github.com/fjod/go_cart/internal/platform/errors"
	"github.com/google/uuid"
)

// OrderReader is the read side of the order store.
type OrderReader interface {
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
}

type OrderService struct {
	repo OrderReader
	log  *slog.Logger
}

func NewOrderService(repo OrderReader, log *slog.Logger) *OrderService {
	return &OrderService{repo: repo, log: log}
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	id, err := uuid.Parse(strings.TrimSpace(orderID))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid order id", err)
	}

	order, err := s.repo.GetOrderByID(ctx, id)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, apperrors.Wrap(apperrors.CodeNotFound, "order not found", err)
	}
	if err != nil {
		s.log.ErrorContext(ctx, "failed to load order", "order_id", id, "error", err)
		return nil, apperrors.Wrap(apperrors.CodePersistenceFailure, "failed to load order", err)
	}
	return order, nil
}

// ListOrders returns the user's orders newest first. Unknown users have none.
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "user_id is required")
	}

	orders, err := s.repo.ListOrdersByUserID(ctx, userID)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to list orders", "user_id", userID, "error", err)
		return nil, apperrors.Wrap(apperrors.CodePersistenceFailure, "failed to list orders", err)
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	return orders, nil
}

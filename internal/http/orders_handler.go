package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/go-chi/chi/v5"
)

type OrderService interface {
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	ListOrders(ctx context.Context, userID string) ([]*domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderService
	timeout time.Duration
	log     *slog.Logger
}

func NewOrdersHandler(orders OrderService, timeout time.Duration, log *slog.Logger) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
		log:     log,
	}
}

type OrdersResponseDTO struct {
	Orders []*domain.Order `json:"orders"`
}

// GET /api/v1/users/{user_id}/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.orders.ListOrders(ctx, chi.URLParam(r, "user_id"))
	if err != nil {
		handleServiceError(ctx, w, h.log, err)
		return
	}

	respondJSON(r.Context(), w, h.log, http.StatusOK, OrdersResponseDTO{Orders: orders})
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "order_id"))
	if err != nil {
		handleServiceError(ctx, w, h.log, err)
		return
	}

	respondJSON(r.Context(), w, h.log, http.StatusOK, order)
}

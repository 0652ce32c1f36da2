package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	checkout "github.com/fjod/go_cart/internal/checkout/service"
	"github.com/fjod/go_cart/internal/domain"
	"github.com/go-chi/chi/v5"
)

type CheckoutService interface {
	Checkout(ctx context.Context, userID string) (*domain.Order, error)
}

type CheckoutHandler struct {
	checkout CheckoutService
	timeout  time.Duration
	log      *slog.Logger
}

func NewCheckoutHandler(svc CheckoutService, timeout time.Duration, log *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: svc,
		timeout:  timeout,
		log:      log,
	}
}

type CheckoutResponseDTO struct {
	*domain.Order
	CartClearPending bool `json:"cart_clear_pending,omitempty"`
}

// POST /api/v1/users/{user_id}/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.checkout.Checkout(ctx, chi.URLParam(r, "user_id"))
	if errors.Is(err, checkout.ErrCartClearPending) && order != nil {
		// the order exists; only the cart clear is outstanding
		respondJSON(r.Context(), w, h.log, http.StatusAccepted, CheckoutResponseDTO{Order: order, CartClearPending: true})
		return
	}
	if err != nil {
		handleServiceError(ctx, w, h.log, err)
		return
	}

	respondJSON(r.Context(), w, h.log, http.StatusCreated, CheckoutResponseDTO{Order: order})
}

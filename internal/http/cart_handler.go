package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/go-chi/chi/v5"
)

type CartService interface {
	ListCart(ctx context.Context, userID string) ([]domain.CartLine, error)
	AddItem(ctx context.Context, userID string, productID int64, qty int) ([]domain.CartLine, error)
	SetQuantity(ctx context.Context, userID string, productID int64, qty int) ([]domain.CartLine, error)
	RemoveItem(ctx context.Context, userID string, productID int64) ([]domain.CartLine, error)
	ClearCart(ctx context.Context, userID string) error
}

type CartHandler struct {
	cart        CartService
	timeout     time.Duration
	maxBodySize int64
	log         *slog.Logger
}

func NewCartHandler(cart CartService, timeout time.Duration, maxBodySize int64, log *slog.Logger) *CartHandler {
	return &CartHandler{
		cart:        cart,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		log:         log,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartItemDTO struct {
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CartResponseDTO struct {
	UserID string        `json:"user_id"`
	Items  []CartItemDTO `json:"items"`
}

func toCartResponse(userID string, lines []domain.CartLine) CartResponseDTO {
	items := make([]CartItemDTO, len(lines))
	for i, l := range lines {
		items[i] = CartItemDTO{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			AddedAt:   l.CreatedAt,
			UpdatedAt: l.UpdatedAt,
		}
	}
	return CartResponseDTO{UserID: userID, Items: items}
}

// GET /api/v1/users/{user_id}/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := chi.URLParam(r, "user_id")
	lines, err := h.cart.ListCart(ctx, userID)
	if err != nil {
		handleServiceError(ctx, w, h.log, err)
		return
	}

	respondJSON(r.Context(), w, h.log, http.StatusOK, toCartResponse(userID, lines))
}

// POST /api/v1/users/{user_id}/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if !decodeJSON(w, r, h.log, h.maxBodySize, &req) {
		return
	}

	userID := chi.URLParam(r, "user_id")
	lines, err := h.cart.AddItem(ctx, userID, req.ProductID, req.Quantity)
	if err != nil {
		handleServiceError(ctx, w, h.log, err)
		return
	}

	respondJSON(r.Context(), w, h.log, http.StatusCreated, toCartResponse(userID, lines))
}

// PUT /api/v1/users/{user_id}/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := parseID(r.Context(), w, h.log, chi.URLParam(r, "product_id"), "product_id")
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, h.log, h.maxBodySize, &req) {
		return
	}

	userID := chi.URLParam(r, "user_id")
	lines, err := h.cart.SetQuantity(ctx, userID, productID, req.Quantity)
	if err != nil {
		handleServiceError(ctx, w, h.log, err)
		return
	}

	respondJSON(r.Context(), w, h.log, http.StatusOK, toCartResponse(userID, lines))
}

// DELETE /api/v1/users/{user_id}/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := parseID(r.Context(), w, h.log, chi.URLParam(r, "product_id"), "product_id")
	if !ok {
		return
	}

	userID := chi.URLParam(r, "user_id")
	lines, err := h.cart.RemoveItem(ctx, userID, productID)
	if err != nil {
		handleServiceError(ctx, w, h.log, err)
		return
	}

	respondJSON(r.Context(), w, h.log, http.StatusOK, toCartResponse(userID, lines))
}

// DELETE /api/v1/users/{user_id}/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := chi.URLParam(r, "user_id")
	if err := h.cart.ClearCart(ctx, userID); err != nil {
		handleServiceError(ctx, w, h.log, err)
		return
	}

	respondJSON(r.Context(), w, h.log, http.StatusOK, toCartResponse(userID, nil))
}

package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_cart/internal/catalog"
	"github.com/fjod/go_cart/internal/domain"
	apperrors "github.com/fjod/go_cart/internal/platform/errors"
	"github.com/go-chi/chi/v5"
)

type ProductCatalog interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

type ProductHandler struct {
	catalog ProductCatalog
	timeout time.Duration
	log     *slog.Logger
}

func NewProductHandler(c ProductCatalog, timeout time.Duration, log *slog.Logger) *ProductHandler {
	return &ProductHandler{catalog: c, timeout: timeout, log: log}
}

func catalogError(err error) error {
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		return apperrors.Wrap(apperrors.CodeNotFound, "product not found", err)
	case errors.Is(err, catalog.ErrUnavailable), errors.Is(err, catalog.ErrInvalidProduct):
		return apperrors.Wrap(apperrors.CodeCatalogUnavailable, "catalog unavailable", err)
	}
	return err
}

// GET /api/v1/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.ListProducts(ctx)
	if err != nil {
		handleServiceError(ctx, w, h.log, catalogError(err))
		return
	}

	respondJSON(r.Context(), w, h.log, http.StatusOK, products)
}

// GET /api/v1/products/{product_id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := parseID(r.Context(), w, h.log, chi.URLParam(r, "product_id"), "product_id")
	if !ok {
		return
	}

	product, err := h.catalog.GetProduct(ctx, id)
	if err != nil {
		handleServiceError(ctx, w, h.log, fmt.Errorf("get product %d: %w", id, catalogError(err)))
		return
	}

	respondJSON(r.Context(), w, h.log, http.StatusOK, product)
}

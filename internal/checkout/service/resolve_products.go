package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"github.com/fjod/go_cart/internal/catalog"
	"github.com/fjod/go_cart/internal/domain"
	apperrors "github.com/fjod/go_cart/internal/platform/errors"
	"golang.org/x/sync/errgroup"
)

// resolveProducts looks up every line concurrently. The first failure cancels
// the lookups still running. Products are returned in line order.
func (s *CheckoutServiceImpl) resolveProducts(ctx context.Context, lines []domain.CartLine) ([]*domain.Product, error) {
	products := make([]*domain.Product, len(lines))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrentLookups)
	for i, line := range lines {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			p, err := s.lookupProduct(gctx, line.ProductID)
			if err != nil {
				return err
			}
			products[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// the loop may have stopped early on a cancelled parent
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

// lookupProduct retries a product while the catalog is unavailable. A missing
// product, a malformed record or a cancelled checkout ends it at once.
func (s *CheckoutServiceImpl) lookupProduct(ctx context.Context, id int64) (*domain.Product, error) {
	attempt := 0
	return backoff.Retry(ctx, func() (*domain.Product, error) {
		attempt++
		lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.LookupTimeout)
		defer cancel()

		p, err := s.catalog.GetProduct(lookupCtx, id)
		switch {
		case err == nil:
			return p, nil
		case errors.Is(err, catalog.ErrProductNotFound):
			return nil, backoff.Permanent(apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("product %d not found", id), err))
		case errors.Is(err, catalog.ErrInvalidProduct):
			return nil, backoff.Permanent(apperrors.Wrap(apperrors.CodeCatalogUnavailable,
				fmt.Sprintf("catalog returned an invalid record for product %d", id), err))
		case ctx.Err() != nil:
			return nil, backoff.Permanent(ctx.Err())
		}

		s.log.WarnContext(ctx, "catalog lookup failed",
			"product_id", id, "attempt", attempt, "max_attempts", s.cfg.LookupAttempts, "error", err)
		return nil, apperrors.Wrap(apperrors.CodeCatalogUnavailable,
			fmt.Sprintf("catalog unavailable for product %d", id), err)
	}, backoff.WithBackOff(s.retryPolicy()), backoff.WithMaxTries(uint(s.cfg.LookupAttempts)))
}

// retryPolicy doubles the wait from RetryBaseDelay with up to 50% jitter
// either way. A policy holds state, so every retry loop takes its own.
func (s *CheckoutServiceImpl) retryPolicy() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.RetryBaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxInterval = maxRetryInterval
	b.Reset()
	return b
}

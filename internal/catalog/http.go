package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/pkg/circuitbreaker"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
)

const maxBodySize = 4 << 20

// HTTPClient talks to a fakestoreapi-compatible catalog:
// GET {base}/products and GET {base}/products/{id}.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	sfg     singleflight.Group
	log     *slog.Logger
}

const listTimeout = 10 * time.Second

type HTTPConfig struct {
	BaseURL          string
	Timeout          time.Duration
	BreakerFailures  uint32
	BreakerOpenDelay time.Duration
}

func NewHTTPClient(cfg HTTPConfig, log *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: circuitbreaker.New[[]byte](circuitbreaker.Config{
			Name:             "catalog",
			Timeout:          cfg.BreakerOpenDelay,
			FailureThreshold: cfg.BreakerFailures,
			IsSuccessful:     answered,
			Logger:           log,
		}),
		log: log,
	}
}

// answered reports whether the catalog itself behaved. A missing product or a
// caller that gave up says nothing about the catalog's health.
func answered(err error) bool {
	return err == nil ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrInvalidProduct) ||
		errors.Is(err, context.Canceled)
}

func (c *HTTPClient) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: id %d", ErrProductNotFound, id)
	}

	body, err := c.get(ctx, "/products/"+strconv.FormatInt(id, 10))
	if err != nil {
		return nil, err
	}

	// fakestoreapi answers unknown ids with 200 and an empty body.
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%w: id %d", ErrProductNotFound, id)
	}

	var p domain.Product
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, fmt.Errorf("%w: decode product %d: %v", ErrInvalidProduct, id, err)
	}
	if err := validate(&p, id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) ListProducts(ctx context.Context) ([]domain.Product, error) {
	ch := c.sfg.DoChan("products", func() (interface{}, error) {
		// Shared by every caller waiting on the listing; one of them giving up
		// must not cancel it for the rest.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), listTimeout)
		defer cancel()

		body, err := c.get(ctx, "/products")
		if err != nil {
			return nil, err
		}

		var products []domain.Product
		if err := json.Unmarshal(body, &products); err != nil {
			return nil, fmt.Errorf("%w: decode product list: %v", ErrInvalidProduct, err)
		}
		valid := make([]domain.Product, 0, len(products))
		for i := range products {
			if err := validate(&products[i], 0); err != nil {
				c.log.WarnContext(ctx, "skipping invalid catalog product", "error", err)
				continue
			}
			valid = append(valid, products[i])
		}
		return valid, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return append([]domain.Product(nil), res.Val.([]domain.Product)...), nil
	}
}

func (c *HTTPClient) get(ctx context.Context, path string) ([]byte, error) {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, path)
	})
	if circuitbreaker.IsRejected(err) {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return body, err
}

func (c *HTTPClient) do(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: GET %s: %w", ErrUnavailable, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrUnavailable, path, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: GET %s", ErrProductNotFound, path)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: GET %s: status %d", ErrUnavailable, path, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: GET %s: unexpected status %d", ErrInvalidProduct, path, resp.StatusCode)
	}
}

// Close releases idle connections held by the client.
func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

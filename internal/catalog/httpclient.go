package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/storefront-kit/cartengine/pkg/errors"
)

// HTTPClient fetches catalog truth from the remote commerce backend
// over plain JSON endpoints. Retry and backoff are the transport
// collaborator's business; a failed fetch is simply reported.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// HTTPClientConfig configures the catalog HTTP client.
type HTTPClientConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// NewHTTPClient builds a catalog client for the given backend.
func NewHTTPClient(cfg HTTPClientConfig) (*HTTPClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("catalog base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid catalog base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: base,
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// FetchProduct implements ProductReader.
func (c *HTTPClient) FetchProduct(ctx context.Context, productID string) (*Product, error) {
	var product Product
	if err := c.get(ctx, "/products/"+url.PathEscape(productID), &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// FetchCoupon implements CouponReader.
func (c *HTTPClient) FetchCoupon(ctx context.Context, code string) (*Coupon, error) {
	var coupon Coupon
	if err := c.get(ctx, "/coupons/"+url.PathEscape(code), &coupon); err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "building catalog request")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "catalog fetch")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, "catalog entry not found")
	case resp.StatusCode != http.StatusOK:
		return pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("catalog returned status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding catalog response")
	}
	return nil
}

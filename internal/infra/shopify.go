package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ShopifyVariant is one priced unit of a product. Prices arrive as
// strings on the wire; parsing into decimals happens in the catalog layer.
type ShopifyVariant struct {
	ID             int64   `json:"id"`
	Title          string  `json:"title"`
	Price          string  `json:"price"`
	CompareAtPrice *string `json:"compare_at_price"`
}

// ShopifyProduct carries the fields the updater and the filters need.
type ShopifyProduct struct {
	ID          int64            `json:"id"`
	Title       string           `json:"title"`
	ProductType string           `json:"product_type"`
	Vendor      string           `json:"vendor"`
	Variants    []ShopifyVariant `json:"variants"`
}

// ShopifyCollection is a custom or smart collection, whichever source
// produced it.
type ShopifyCollection struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Handle        string `json:"handle"`
	ProductsCount int    `json:"products_count"`
}

// ShopifyClient wraps the Shopify admin REST/GraphQL API.
//
// Every request is paced to stay under the admin API's request-rate
// ceiling (one call per minInterval) and runs through the circuit
// breaker so a dead shop fast-fails instead of stalling batch runs.
type ShopifyClient struct {
	shopURL    string
	token      string
	baseURL    string // overridable in tests
	publicURL  string // storefront base, for the unauthenticated collections fallback
	httpClient *http.Client
	breaker    *CircuitBreaker

	mu          sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

func NewShopifyClient(shopURL, token, apiVersion string, minInterval time.Duration, cb *CircuitBreaker) *ShopifyClient {
	return &ShopifyClient{
		shopURL:     shopURL,
		token:       token,
		baseURL:     fmt.Sprintf("https://%s/admin/api/%s", shopURL, apiVersion),
		publicURL:   fmt.Sprintf("https://%s", shopURL),
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		breaker:     cb,
		minInterval: minInterval,
	}
}

// pace blocks until the minimum interval since the previous request has
// elapsed. This is the only throttle: batch runs call one unit at a time,
// so pacing per request bounds the aggregate rate.
func (c *ShopifyClient) pace(ctx context.Context) error {
	c.mu.Lock()
	now := time.Now()
	wait := c.lastRequest.Add(c.minInterval).Sub(now)
	if wait < 0 {
		wait = 0
	}
	// Reserve the slot so concurrent callers queue behind it.
	c.lastRequest = now.Add(wait)
	c.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// request performs one admin API call and decodes the JSON response into
// out. 429 responses are retried after the server-provided delay.
func (c *ShopifyClient) request(ctx context.Context, method, endpoint string, query url.Values, body, out interface{}) error {
	if err := c.pace(ctx); err != nil {
		return err
	}

	fn := func() error {
		return c.doOnce(ctx, method, endpoint, query, body, out)
	}
	if c.breaker != nil {
		return c.breaker.Execute(fn)
	}
	return fn()
}

func (c *ShopifyClient) doOnce(ctx context.Context, method, endpoint string, query url.Values, body, out interface{}) error {
	u := c.baseURL + "/" + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("shopify: marshal payload: %w", err)
		}
		payload = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, payload)
	if err != nil {
		return fmt.Errorf("shopify: create request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("shopify: %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := 1
		if v := resp.Header.Get("Retry-After"); v != "" {
			if n, convErr := strconv.Atoi(v); convErr == nil {
				retryAfter = n
			}
		}
		log.Warn().Str("endpoint", endpoint).Int("retry_after", retryAfter).Msg("shopify rate limited")
		select {
		case <-time.After(time.Duration(retryAfter) * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
		return c.doOnce(ctx, method, endpoint, query, body, out)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("shopify: %s %s returned %d: %s", method, endpoint, resp.StatusCode, string(b))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("shopify: decode response: %w", err)
	}
	return nil
}

// GetProducts lists products, optionally narrowed by product type and/or
// vendor. Filters with empty values are not sent.
func (c *ShopifyClient) GetProducts(ctx context.Context, limit int, productType, vendor string) ([]ShopifyProduct, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(clampLimit(limit)))
	if productType != "" {
		q.Set("product_type", productType)
	}
	if vendor != "" {
		q.Set("vendor", vendor)
	}

	var resp struct {
		Products []ShopifyProduct `json:"products"`
	}
	if err := c.request(ctx, http.MethodGet, "products.json", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Products, nil
}

// GetProductsByCollectionID lists a collection's products by numeric id.
func (c *ShopifyClient) GetProductsByCollectionID(ctx context.Context, collectionID int64, limit int) ([]ShopifyProduct, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(clampLimit(limit)))

	var resp struct {
		Products []ShopifyProduct `json:"products"`
	}
	endpoint := fmt.Sprintf("collections/%d/products.json", collectionID)
	if err := c.request(ctx, http.MethodGet, endpoint, q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Products, nil
}

// GetProductsByCollectionHandle lists a collection's products by handle.
func (c *ShopifyClient) GetProductsByCollectionHandle(ctx context.Context, handle string, limit int) ([]ShopifyProduct, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(clampLimit(limit)))

	var resp struct {
		Products []ShopifyProduct `json:"products"`
	}
	endpoint := fmt.Sprintf("collections/%s/products.json", url.PathEscape(handle))
	if err := c.request(ctx, http.MethodGet, endpoint, q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Products, nil
}

// GetProductWithVariants fetches one product with all its variants.
func (c *ShopifyClient) GetProductWithVariants(ctx context.Context, productID int64) (*ShopifyProduct, error) {
	var resp struct {
		Product ShopifyProduct `json:"product"`
	}
	endpoint := fmt.Sprintf("products/%d.json", productID)
	if err := c.request(ctx, http.MethodGet, endpoint, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Product, nil
}

// variantUpdate is the PUT payload for a price update. CompareAtPrice
// carries raw JSON so the request can distinguish three intents the
// admin API treats differently: a quoted value sets the compare-at
// price, an explicit null clears it, and omitting the field entirely
// preserves whatever is stored (send-to-set, omit-to-preserve).
type variantUpdate struct {
	ID             int64           `json:"id"`
	Price          string          `json:"price"`
	CompareAtPrice json.RawMessage `json:"compare_at_price,omitempty"`
}

// UpdateVariantPrice sets a variant's price. compareAtPrice non-nil sets
// the compare-at price; nil with clearCompare sends an explicit null to
// remove it; nil without clearCompare leaves the stored value alone.
func (c *ShopifyClient) UpdateVariantPrice(ctx context.Context, variantID int64, price string, compareAtPrice *string, clearCompare bool) (*ShopifyVariant, error) {
	var compareRaw json.RawMessage
	switch {
	case compareAtPrice != nil:
		compareRaw = json.RawMessage(strconv.Quote(*compareAtPrice))
	case clearCompare:
		compareRaw = json.RawMessage("null")
	}
	payload := struct {
		Variant variantUpdate `json:"variant"`
	}{Variant: variantUpdate{ID: variantID, Price: price, CompareAtPrice: compareRaw}}

	var resp struct {
		Variant ShopifyVariant `json:"variant"`
	}
	endpoint := fmt.Sprintf("variants/%d.json", variantID)
	if err := c.request(ctx, http.MethodPut, endpoint, nil, payload, &resp); err != nil {
		return nil, err
	}
	return &resp.Variant, nil
}

// UpdatePrice applies a variant price change, discarding the returned
// payload. Batch runs only care whether the write succeeded.
func (c *ShopifyClient) UpdatePrice(ctx context.Context, variantID int64, price string, compareAtPrice *string, clearCompare bool) error {
	_, err := c.UpdateVariantPrice(ctx, variantID, price, compareAtPrice, clearCompare)
	return err
}

// clampLimit keeps the page size inside the admin API's 1..250 range.
func clampLimit(limit int) int {
	if limit < 1 || limit > 250 {
		return 250
	}
	return limit
}

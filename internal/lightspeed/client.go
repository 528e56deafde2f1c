// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package lightspeed implements a client for the Lightspeed eCom API.
// Endpoints are language-scoped: the same product has one URL per shop
// language, and content fields differ per language.
package lightspeed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	// pageLimit is the maximum page size the API accepts.
	pageLimit = 250

	requestTimeout = 30 * time.Second

	// maxRetryAttempts is the number of retries after the initial attempt,
	// with exponential backoff (1s, 2s, 4s).
	maxRetryAttempts = 3

	productFields = "id,visibility,url,title,fulltitle,description,content,image,createdAt,updatedAt"
	variantFields = "id,isDefault,sku,priceExcl,title,image,product"
)

// APIError is a non-2xx response from the shop API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lightspeed api: status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed on retry.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client is a shop API client bound to one shop's credentials.
// Language is passed per call since every endpoint is language-scoped.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a shop API client.
func NewClient(baseURL, apiKey, apiSecret string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do performs a request with retries. The request body, if any, is marshaled
// once and replayed on each attempt.
func (c *Client) do(ctx context.Context, method, lang, path string, query url.Values, body, out any) error {
	var jsonBody []byte
	if body != nil {
		var err error
		jsonBody, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	backoff := retry.WithMaxRetries(maxRetryAttempts, retry.NewExponential(time.Second))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.doOnce(ctx, method, lang, path, query, jsonBody, out)
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return err
		}
		return retry.RetryableError(err)
	})
}

func (c *Client) doOnce(ctx context.Context, method, lang, path string, query url.Values, jsonBody []byte, out any) error {
	reqURL := fmt.Sprintf("%s/%s/%s", c.baseURL, lang, path)
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if jsonBody != nil {
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.SetBasicAuth(c.apiKey, c.apiSecret)
	if jsonBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func pageQuery(page int, fields string) url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(pageLimit))
	q.Set("page", strconv.Itoa(page))
	q.Set("fields", fields)
	return q
}

// FetchProducts retrieves all products for one language, following
// pagination until a short page.
func (c *Client) FetchProducts(ctx context.Context, lang string) ([]Product, error) {
	var all []Product
	for page := 1; ; page++ {
		var resp struct {
			Products []Product `json:"products"`
		}
		if err := c.do(ctx, http.MethodGet, lang, "products.json", pageQuery(page, productFields), nil, &resp); err != nil {
			return nil, fmt.Errorf("fetching products page %d: %w", page, err)
		}
		if len(resp.Products) == 0 {
			break
		}
		all = append(all, resp.Products...)
		if len(resp.Products) < pageLimit {
			break
		}
	}
	return all, nil
}

// FetchVariants retrieves all variants for one language, following
// pagination until a short page.
func (c *Client) FetchVariants(ctx context.Context, lang string) ([]Variant, error) {
	var all []Variant
	for page := 1; ; page++ {
		var resp struct {
			Variants []Variant `json:"variants"`
		}
		if err := c.do(ctx, http.MethodGet, lang, "variants.json", pageQuery(page, variantFields), nil, &resp); err != nil {
			return nil, fmt.Errorf("fetching variants page %d: %w", page, err)
		}
		if len(resp.Variants) == 0 {
			break
		}
		all = append(all, resp.Variants...)
		if len(resp.Variants) < pageLimit {
			break
		}
	}
	return all, nil
}

// GetProduct retrieves one product in one language.
func (c *Client) GetProduct(ctx context.Context, lang string, id int64) (*Product, error) {
	var resp struct {
		Product Product `json:"product"`
	}
	path := fmt.Sprintf("products/%d.json", id)
	if err := c.do(ctx, http.MethodGet, lang, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Product, nil
}

// CreateProduct creates a product with the given fields in the default
// language and returns the created product.
func (c *Client) CreateProduct(ctx context.Context, lang string, fields map[string]any) (*Product, error) {
	var resp struct {
		Product Product `json:"product"`
	}
	if err := c.do(ctx, http.MethodPost, lang, "products.json", nil, map[string]any{"product": fields}, &resp); err != nil {
		return nil, err
	}
	return &resp.Product, nil
}

// UpdateProduct updates product fields in one language. Only the provided
// fields change; language-scoped content fields affect only lang.
func (c *Client) UpdateProduct(ctx context.Context, lang string, id int64, fields map[string]any) error {
	path := fmt.Sprintf("products/%d.json", id)
	return c.do(ctx, http.MethodPut, lang, path, nil, map[string]any{"product": fields}, nil)
}

// GetVariant retrieves one variant in one language.
func (c *Client) GetVariant(ctx context.Context, lang string, id int64) (*Variant, error) {
	var resp struct {
		Variant Variant `json:"variant"`
	}
	path := fmt.Sprintf("variants/%d.json", id)
	if err := c.do(ctx, http.MethodGet, lang, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Variant, nil
}

// CreateVariant creates a variant on a product and returns it. The product
// reference goes in the payload.
func (c *Client) CreateVariant(ctx context.Context, lang string, productID int64, fields map[string]any) (*Variant, error) {
	payload := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload["product"] = productID

	var resp struct {
		Variant Variant `json:"variant"`
	}
	if err := c.do(ctx, http.MethodPost, lang, "variants.json", nil, map[string]any{"variant": payload}, &resp); err != nil {
		return nil, err
	}
	return &resp.Variant, nil
}

// UpdateVariant updates variant fields in one language. The title field is
// language-scoped; a PUT in language X changes only that language's title.
func (c *Client) UpdateVariant(ctx context.Context, lang string, id int64, fields map[string]any) error {
	path := fmt.Sprintf("variants/%d.json", id)
	return c.do(ctx, http.MethodPut, lang, path, nil, map[string]any{"variant": fields}, nil)
}

// DeleteVariant removes a variant from the shop.
func (c *Client) DeleteVariant(ctx context.Context, lang string, id int64) error {
	path := fmt.Sprintf("variants/%d.json", id)
	return c.do(ctx, http.MethodDelete, lang, path, nil, nil, nil)
}

// ListImages retrieves the full image list of a product, freshly from the
// API. Image diffs must never be computed against a cached list alone.
func (c *Client) ListImages(ctx context.Context, lang string, productID int64) ([]Image, error) {
	var resp struct {
		ProductImages []Image `json:"productImages"`
	}
	path := fmt.Sprintf("products/%d/images.json", productID)
	if err := c.do(ctx, http.MethodGet, lang, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.ProductImages, nil
}

// CreateImage attaches a new image to a product from a source URL.
func (c *Client) CreateImage(ctx context.Context, lang string, productID int64, src string) (*Image, error) {
	var resp struct {
		ProductImage Image `json:"productImage"`
	}
	path := fmt.Sprintf("products/%d/images.json", productID)
	body := map[string]any{"productImage": map[string]any{"src": src}}
	if err := c.do(ctx, http.MethodPost, lang, path, nil, body, &resp); err != nil {
		return nil, err
	}
	return &resp.ProductImage, nil
}

// UpdateImage updates image fields, typically sortOrder.
func (c *Client) UpdateImage(ctx context.Context, lang string, productID, imageID int64, fields map[string]any) error {
	path := fmt.Sprintf("products/%d/images/%d.json", productID, imageID)
	return c.do(ctx, http.MethodPut, lang, path, nil, map[string]any{"productImage": fields}, nil)
}

// DeleteImage removes an image from a product.
func (c *Client) DeleteImage(ctx context.Context, lang string, productID, imageID int64) error {
	path := fmt.Sprintf("products/%d/images/%d.json", productID, imageID)
	return c.do(ctx, http.MethodDelete, lang, path, nil, nil, nil)
}

package backend

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
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/erp-billing/internal/billing"
	"github.com/noah-isme/erp-billing/internal/invoice"
	"github.com/noah-isme/erp-billing/internal/resilience"
)

// ErrNotFound is returned when the backend responds 404.
var ErrNotFound = errors.New("backend: not found")

// Page is a paginated list response.
type Page[T any] struct {
	Content    []T `json:"content"`
	TotalPages int `json:"totalPages"`
}

// ResponseError carries a non-2xx backend reply.
type ResponseError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *ResponseError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend: %s %s responded %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("backend: %s %s responded %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Config configures a Client.
type Config struct {
	BaseURL     string
	Token       string
	Timeout     time.Duration
	MaxAttempts int
	Breaker     *resilience.Breaker
	Metrics     *resilience.Metrics
	Transport   http.RoundTripper
}

// Client talks to the persistence backend.
type Client struct {
	base  *url.URL
	token string
	http  resilience.HTTPClient
}

// New constructs a client. The transport is wrapped with otelhttp so every
// attempt carries trace context.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if raw == "" {
		return nil, errors.New("backend: base url required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("backend: parse base url: %w", err)
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Client{
		base:  base,
		token: strings.TrimSpace(cfg.Token),
		http: resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(transport)},
			Breaker:     cfg.Breaker,
			Metrics:     cfg.Metrics,
			Target:      "backend",
			BaseBackoff: 200 * time.Millisecond,
			MaxAttempts: cfg.MaxAttempts,
			Jitter:      0.2,
			Timeout:     cfg.Timeout,
		},
	}, nil
}

// ListBills returns one zero-based page of bills.
func (c *Client) ListBills(ctx context.Context, page, size int) (Page[billing.PricedBill], error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	if size > 0 {
		q.Set("size", strconv.Itoa(size))
	}
	var out Page[billing.PricedBill]
	err := c.do(ctx, http.MethodGet, "/bills", q, nil, &out)
	if out.Content == nil {
		out.Content = []billing.PricedBill{}
	}
	return out, err
}

// GetBill fetches a stored bill.
func (c *Client) GetBill(ctx context.Context, id string) (billing.PricedBill, error) {
	var out billing.PricedBill
	err := c.do(ctx, http.MethodGet, "/bills/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

// CreateBill persists a priced bill and returns the stored copy. The POST is
// sent once; server errors are not retried.
func (c *Client) CreateBill(ctx context.Context, bill billing.PricedBill) (billing.PricedBill, error) {
	var out billing.PricedBill
	err := c.do(ctx, http.MethodPost, "/bills", nil, bill, &out)
	return out, err
}

// UpdateBill replaces a stored bill.
func (c *Client) UpdateBill(ctx context.Context, id string, bill billing.PricedBill) (billing.PricedBill, error) {
	var out billing.PricedBill
	err := c.do(ctx, http.MethodPut, "/bills/"+url.PathEscape(id), nil, bill, &out)
	return out, err
}

// DeleteBill removes a stored bill.
func (c *Client) DeleteBill(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/bills/"+url.PathEscape(id), nil, nil, nil)
}

// GetVendor fetches a vendor profile.
func (c *Client) GetVendor(ctx context.Context, id string) (invoice.Vendor, error) {
	var out invoice.Vendor
	err := c.do(ctx, http.MethodGet, "/vendors/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

// GetCustomer fetches a customer profile.
func (c *Client) GetCustomer(ctx context.Context, id string) (invoice.Customer, error) {
	var out invoice.Customer
	err := c.do(ctx, http.MethodGet, "/customers/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

// Ping checks the backend answers at all; any HTTP response counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.base.String(), nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	resp, err := c.http.Client.Do(req)
	if err != nil {
		return fmt.Errorf("backend: ping: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	target := c.base.JoinPath(path)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("backend: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &ResponseError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("backend: decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

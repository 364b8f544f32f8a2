package orderapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/platform/observability"
	"github.com/hanko-field/storefront/internal/storefront"
)

const maxErrorBody = 16 << 10

// Client calls the storefront REST API. It implements storefront.AddressAPI and storefront.OrderAPI.
type Client struct {
	baseURL    string
	httpClient *http.Client
	loginURL   string
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default traced HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLoginURL sets the login location reported when the API rejects the credential.
func WithLoginURL(loginURL string) ClientOption {
	return func(c *Client) {
		c.loginURL = loginURL
	}
}

// NewClient constructs a client for baseURL (for example http://localhost:8080/api/v1).
// Every request is bounded by timeout.
func NewClient(baseURL string, timeout time.Duration, opts ...ClientOption) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("orderapi: base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("orderapi: parse base url: %w", err)
	}
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: observability.TracingTransport(nil),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListAddresses implements storefront.AddressAPI.
func (c *Client) ListAddresses(ctx context.Context, token string) ([]domain.Address, error) {
	var out AddressListEnvelope
	err := c.do(ctx, call{op: "list addresses", method: http.MethodGet, path: "/addresses", token: token}, &out)
	return out.Addresses, err
}

// AddAddress implements storefront.AddressAPI.
func (c *Client) AddAddress(ctx context.Context, token string, address domain.Address) ([]domain.Address, error) {
	var out AddressListEnvelope
	err := c.do(ctx, call{op: "add address", method: http.MethodPost, path: "/addresses", token: token, body: address}, &out)
	return out.Addresses, err
}

// DeleteAddress implements storefront.AddressAPI.
func (c *Client) DeleteAddress(ctx context.Context, token, addressID string) ([]domain.Address, error) {
	var out AddressListEnvelope
	err := c.do(ctx, call{
		op:       "delete address",
		method:   http.MethodDelete,
		path:     "/addresses/" + url.PathEscape(addressID),
		token:    token,
		resource: "address",
		id:       addressID,
	}, &out)
	return out.Addresses, err
}

// CreateOrder implements storefront.OrderAPI.
func (c *Client) CreateOrder(ctx context.Context, token string, draft storefront.OrderDraft, idempotencyKey string) (domain.Order, error) {
	var out OrderEnvelope
	err := c.do(ctx, call{
		op:      "create order",
		method:  http.MethodPost,
		path:    "/orders",
		token:   token,
		body:    NewCreateOrderRequest(draft),
		headers: map[string]string{IdempotencyHeader: idempotencyKey},
	}, &out)
	if err != nil {
		return domain.Order{}, err
	}
	return out.Order.ToDomain(), nil
}

// ListMyOrders implements storefront.OrderAPI.
func (c *Client) ListMyOrders(ctx context.Context, token string) ([]domain.OrderSummary, error) {
	var out OrderListEnvelope
	err := c.do(ctx, call{op: "list orders", method: http.MethodGet, path: "/orders/mine", token: token}, &out)
	return out.Orders, err
}

// GetOrder implements storefront.OrderAPI.
func (c *Client) GetOrder(ctx context.Context, token, orderID string) (domain.Order, error) {
	var out OrderEnvelope
	err := c.do(ctx, call{
		op:       "get order",
		method:   http.MethodGet,
		path:     "/orders/" + url.PathEscape(orderID),
		token:    token,
		resource: "order",
		id:       orderID,
	}, &out)
	if err != nil {
		return domain.Order{}, err
	}
	return out.Order.ToDomain(), nil
}

// CancelOrder asks the API to cancel an order that has not been delivered.
func (c *Client) CancelOrder(ctx context.Context, token, orderID, reason string) (domain.Order, error) {
	var out OrderEnvelope
	err := c.do(ctx, call{
		op:       "cancel order",
		method:   http.MethodPost,
		path:     "/orders/" + url.PathEscape(orderID) + ":cancel",
		token:    token,
		body:     CancelOrderRequest{Reason: reason},
		resource: "order",
		id:       orderID,
	}, &out)
	if err != nil {
		return domain.Order{}, err
	}
	return out.Order.ToDomain(), nil
}

type call struct {
	op       string
	method   string
	path     string
	token    string
	body     any
	headers  map[string]string
	resource string
	id       string
}

func (c *Client) do(ctx context.Context, in call, out any) error {
	var body io.Reader
	if in.body != nil {
		payload, err := json.Marshal(in.body)
		if err != nil {
			return fmt.Errorf("orderapi: encode %s request: %w", in.op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, in.method, c.baseURL+in.path, body)
	if err != nil {
		return fmt.Errorf("orderapi: build %s request: %w", in.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if in.token != "" {
		req.Header.Set("Authorization", "Bearer "+in.token)
	}
	for k, v := range in.headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &storefront.NetworkError{Op: in.op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &storefront.AuthRequiredError{LoginURL: c.loginURL}
	case resp.StatusCode == http.StatusNotFound && in.resource != "":
		return &storefront.NotFoundError{Resource: in.resource, ID: in.id}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &storefront.NetworkError{Op: in.op, StatusCode: resp.StatusCode, Err: decodeError(resp)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &storefront.NetworkError{Op: in.op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body ErrorResponse
	if err := json.Unmarshal(data, &body); err == nil && body.Message != "" {
		if body.Error != "" {
			return fmt.Errorf("%s: %s", body.Error, body.Message)
		}
		return errors.New(body.Message)
	}
	if text := strings.TrimSpace(string(data)); text != "" {
		return errors.New(text)
	}
	return errors.New(http.StatusText(resp.StatusCode))
}

var (
	_ storefront.AddressAPI = (*Client)(nil)
	_ storefront.OrderAPI   = (*Client)(nil)
)

// Package client talks to the storefront REST API.
package client

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

	"github.com/sirupsen/logrus"

	"storefront/internal/domain"
)

// ErrNetwork marks requests that never got an HTTP response.
var ErrNetwork = errors.New("network error")

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("storefront API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("storefront API returned status %d: %s", e.StatusCode, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type InitResult struct {
	Message string
	Counts  domain.SeedResult
}

type ProductQuery struct {
	Category string
	Featured *bool
	Search   string
}

type Client struct {
	baseURL string
	http    *http.Client
	log     *logrus.Logger
}

func New(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: timeout,
		},
		log: logger,
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, headers map[string]string, out any) (string, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return "", fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	c.log.Debugf("Client: %s %s", method, target)
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warnf("Client: %s %s failed: %v", method, target, err)
		return "", fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warnf("Client: %s %s returned status %d: %s", method, target, resp.StatusCode, env.Message)
		return "", &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("failed to decode response from %s: %w", path, decodeErr)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return "", fmt.Errorf("failed to decode data from %s: %w", path, err)
		}
	}
	return env.Message, nil
}

func (c *Client) Initialize(ctx context.Context) (*InitResult, error) {
	var result InitResult
	msg, err := c.do(ctx, http.MethodPost, "/init", nil, nil, nil, &result.Counts)
	if err != nil {
		return nil, err
	}
	result.Message = msg
	return &result, nil
}

func (c *Client) ListProducts(ctx context.Context, q ProductQuery) ([]domain.Product, error) {
	query := url.Values{}
	if q.Category != "" {
		query.Set("category", q.Category)
	}
	if q.Featured != nil {
		query.Set("featured", strconv.FormatBool(*q.Featured))
	}
	if q.Search != "" {
		query.Set("search", q.Search)
	}
	var products []domain.Product
	_, err := c.do(ctx, http.MethodGet, "/products", query, nil, nil, &products)
	return products, err
}

func (c *Client) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product
	if _, err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(id), nil, nil, nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	_, err := c.do(ctx, http.MethodGet, "/users", nil, nil, nil, &users)
	return users, err
}

func (c *Client) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if _, err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser returns the existing record when the email is already registered.
func (c *Client) CreateUser(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	var user domain.User
	if _, err := c.do(ctx, http.MethodPost, "/users", nil, req, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	query := url.Values{}
	if filter.UserID != "" {
		query.Set("userId", filter.UserID)
	}
	if filter.Status != "" {
		query.Set("status", string(filter.Status))
	}
	var orders []domain.Order
	_, err := c.do(ctx, http.MethodGet, "/orders", query, nil, nil, &orders)
	return orders, err
}

func (c *Client) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var order domain.Order
	if _, err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(id), nil, nil, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateOrder sends the Idempotency-Key header when idempotencyKey is set.
func (c *Client) CreateOrder(ctx context.Context, req domain.CreateOrderRequest, idempotencyKey string) (*domain.Order, error) {
	var headers map[string]string
	if idempotencyKey != "" {
		headers = map[string]string{"Idempotency-Key": idempotencyKey}
	}
	var order domain.Order
	if _, err := c.do(ctx, http.MethodPost, "/orders", nil, req, headers, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	var order domain.Order
	body := map[string]domain.OrderStatus{"status": status}
	if _, err := c.do(ctx, http.MethodPatch, "/orders/"+url.PathEscape(id)+"/status", nil, body, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

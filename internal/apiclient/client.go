// Package apiclient calls the facade REST API on behalf of the bot.
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"crmbot/internal/facade"
	"crmbot/internal/metrics"

	"github.com/go-resty/resty/v2"
)

const defaultTimeout = 30 * time.Second

// ErrUnavailable is returned when the facade could not be reached or replied without a usable body.
var ErrUnavailable = errors.New("facade unavailable")

// Error is a non-2xx facade reply carrying its detail message.
type Error struct {
	Status int
	Detail string
	Fields map[string]string
}

func (e *Error) Error() string {
	return fmt.Sprintf("facade status %d: %s", e.Status, e.Detail)
}

// Config holds facade client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Page is one page of a list result. TotalPages is zero when the facade did not report it.
type Page[T any] struct {
	Items      []T
	Page       int
	Limit      int
	TotalPages int
	TotalCount int
}

// Client is a typed facade client.
type Client struct {
	rest    *resty.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New returns a Client for cfg. A nil metrics registry disables error counting.
func New(cfg Config, logger *slog.Logger, metricRegistry *metrics.Metrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rest := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "crmbot/bot")
	return &Client{
		rest:    rest,
		logger:  logger.With("component", "apiclient"),
		metrics: metricRegistry,
	}
}

// ListCustomers fetches one page of customers matching q.
func (c *Client) ListCustomers(ctx context.Context, q facade.CustomerQuery) (*Page[facade.CustomerView], error) {
	params := map[string]string{
		"page":  strconv.Itoa(q.Page),
		"limit": strconv.Itoa(q.Limit),
	}
	setParam(params, "first_name", q.FirstName)
	setParam(params, "last_name", q.LastName)
	setParam(params, "email", q.Email)
	setParam(params, "created_at_from", q.CreatedAtFrom)
	setParam(params, "created_at_to", q.CreatedAtTo)

	var items []facade.CustomerView
	res, err := c.send(ctx, http.MethodGet, "/customers", params, nil, &items)
	if err != nil {
		return nil, err
	}
	return newPage(items, q.Page, q.Limit, res), nil
}

// CreateCustomer creates a customer.
func (c *Client) CreateCustomer(ctx context.Context, req facade.CreateCustomerRequest) (*facade.CreateResult, error) {
	var out facade.CreateResult
	if _, err := c.send(ctx, http.MethodPost, "/customers", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListCustomerOrders fetches one page of a customer's orders.
func (c *Client) ListCustomerOrders(ctx context.Context, customerID int64, page, limit int) (*Page[facade.OrderView], error) {
	params := map[string]string{
		"page":  strconv.Itoa(page),
		"limit": strconv.Itoa(limit),
	}
	var items []facade.OrderView
	res, err := c.send(ctx, http.MethodGet, "/customers/"+strconv.FormatInt(customerID, 10)+"/orders", params, nil, &items)
	if err != nil {
		return nil, err
	}
	return newPage(items, page, limit, res), nil
}

// CreateOrder creates an order.
func (c *Client) CreateOrder(ctx context.Context, req facade.CreateOrderRequest) (*facade.CreateResult, error) {
	var out facade.CreateResult
	if _, err := c.send(ctx, http.MethodPost, "/orders", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePayment records a payment against orderID.
func (c *Client) CreatePayment(ctx context.Context, orderID int64, req facade.CreatePaymentRequest) (*facade.CreateResult, error) {
	var out facade.CreateResult
	if _, err := c.send(ctx, http.MethodPost, "/orders/"+strconv.FormatInt(orderID, 10)+"/payment", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func setParam(params map[string]string, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		params[key] = value
	}
}

func newPage[T any](items []T, page, limit int, res *resty.Response) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{
		Items:      items,
		Page:       page,
		Limit:      limit,
		TotalPages: headerInt(res, facade.HeaderTotalPages),
		TotalCount: headerInt(res, facade.HeaderTotalCount),
	}
}

func headerInt(res *resty.Response, name string) int {
	n, err := strconv.Atoi(res.Header().Get(name))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (c *Client) send(ctx context.Context, method, path string, params map[string]string, body, dest any) (*resty.Response, error) {
	req := c.rest.R().
		SetContext(ctx).
		SetResult(dest).
		SetError(&facade.ErrorResponse{})
	if params != nil {
		req.SetQueryParams(params)
	}
	if body != nil {
		req.SetBody(body)
	}

	start := time.Now()
	res, err := req.Execute(method, path)
	if err != nil {
		c.metrics.IncError("apiclient")
		c.logger.Warn("facade request failed", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	c.logger.Debug("facade request", "method", method, "path", path, "status", res.StatusCode(), "duration_ms", time.Since(start).Milliseconds())

	if res.IsError() {
		apiErr := &Error{Status: res.StatusCode()}
		if payload, ok := res.Error().(*facade.ErrorResponse); ok && payload.Detail != "" {
			apiErr.Detail = payload.Detail
			apiErr.Fields = payload.Errors
		} else {
			apiErr.Detail = http.StatusText(res.StatusCode())
		}
		return nil, apiErr
	}
	return res, nil
}

package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"crmbot/internal/metrics"
)

const (
	apiVersion      = "v5"
	defaultTimeout  = 30 * time.Second
	formContentType = "application/x-www-form-urlencoded"
	maxErrorSnippet = 200
)

// Config holds CRM client configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client provides typed access to the CRM REST API.
type Client struct {
	logger  *slog.Logger
	baseURL string
	apiKey  string
	http    *http.Client
	metrics *metrics.Metrics
}

// New creates a new CRM client. A nil metrics registry disables instrumentation.
func New(cfg Config, logger *slog.Logger, metrics *metrics.Metrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		logger:  logger.With("component", "crm"),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		metrics: metrics,
	}
}

// ListCustomers fetches one page of customers matching filter.
func (c *Client) ListCustomers(ctx context.Context, filter CustomerFilter, page, limit int) (*CustomerList, error) {
	params := pageParams(page, limit)
	setFilter(params, "firstName", filter.FirstName)
	setFilter(params, "lastName", filter.LastName)
	setFilter(params, "email", filter.Email)
	setFilter(params, "createdAtFrom", filter.CreatedAtFrom)
	setFilter(params, "createdAtTo", filter.CreatedAtTo)

	var list CustomerList
	if err := c.get(ctx, "customers", params, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// CreateCustomer creates a customer and returns its CRM id.
func (c *Client) CreateCustomer(ctx context.Context, payload CustomerPayload) (int64, error) {
	return c.create(ctx, "customers/create", "customer", payload)
}

// ListOrders fetches one page of orders, optionally restricted to a customer.
func (c *Client) ListOrders(ctx context.Context, customerID int64, page, limit int) (*OrderList, error) {
	params := pageParams(page, limit)
	if customerID > 0 {
		setFilter(params, "customerId", strconv.FormatInt(customerID, 10))
	}

	var list OrderList
	if err := c.get(ctx, "orders", params, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// CreateOrder creates an order and returns its CRM id.
func (c *Client) CreateOrder(ctx context.Context, payload OrderPayload) (int64, error) {
	return c.create(ctx, "orders/create", "order", payload)
}

// CreatePayment attaches a payment to orderID and returns the payment id.
func (c *Client) CreatePayment(ctx context.Context, orderID int64, payload PaymentPayload) (int64, error) {
	payload.Order = Reference{ID: orderID}
	return c.create(ctx, "orders/payments/create", "payment", payload)
}

func pageParams(page, limit int) url.Values {
	params := url.Values{}
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	return params
}

func setFilter(params url.Values, field, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	params.Set("filter["+field+"]", value)
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, dest any) error {
	_, body, err := c.do(ctx, http.MethodGet, endpoint, params, nil, "")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrMalformedResponse, endpoint, err)
	}
	return nil
}

// create posts payload JSON-encoded inside a single form field.
func (c *Client) create(ctx context.Context, endpoint, field string, payload any) (int64, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encode %s payload: %w", field, err)
	}
	form := url.Values{}
	form.Set(field, string(encoded))

	env, _, err := c.do(ctx, http.MethodPost, endpoint, url.Values{}, strings.NewReader(form.Encode()), formContentType)
	if err != nil {
		return 0, err
	}
	return env.ID, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, body io.Reader, contentType string) (*responseEnvelope, []byte, error) {
	if params == nil {
		params = url.Values{}
	}
	logParams := params.Encode()
	params.Set("apiKey", c.apiKey)
	reqURL := fmt.Sprintf("%s/api/%s/%s?%s", c.baseURL, apiVersion, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, nil, fmt.Errorf("new request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "crmbot/crm-client")

	c.logger.Debug("crm request", "method", method, "endpoint", endpoint, "params", logParams)

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		c.observe(endpoint, "error", start)
		// url.Error carries the full URL, api key included.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, nil, fmt.Errorf("%w: %s %s: %v", ErrTransport, method, endpoint, err)
	}
	defer res.Body.Close()

	c.observe(endpoint, strconv.Itoa(res.StatusCode), start)

	bodyBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read %s response: %v", ErrTransport, endpoint, err)
	}

	var env responseEnvelope
	decodeErr := json.Unmarshal(bodyBytes, &env)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		if decodeErr == nil && !env.Success {
			return nil, nil, &APIError{
				Endpoint:   endpoint,
				StatusCode: res.StatusCode,
				Message:    env.ErrorMsg,
				Errors:     env.Errors,
			}
		}
		return nil, nil, classifyHTTPError(endpoint, res.StatusCode, string(bodyBytes))
	}

	if decodeErr != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, endpoint, decodeErr)
	}
	if !env.Success {
		return nil, nil, &APIError{
			Endpoint:   endpoint,
			StatusCode: res.StatusCode,
			Message:    env.ErrorMsg,
			Errors:     env.Errors,
		}
	}
	return &env, bodyBytes, nil
}

func (c *Client) observe(endpoint, status string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.CRMRequests.WithLabelValues(endpoint, status).Inc()
	c.metrics.CRMLatency.WithLabelValues(endpoint, status).Observe(time.Since(start).Seconds())
}

func classifyHTTPError(endpoint string, status int, body string) error {
	snippet := strings.TrimSpace(body)
	if len(snippet) > maxErrorSnippet {
		snippet = snippet[:maxErrorSnippet]
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("%w: %w: %s status=%d", ErrTransport, ErrInvalidCredential, endpoint, status)
	}
	return fmt.Errorf("%w: %s status=%d body=%s", ErrTransport, endpoint, status, snippet)
}

package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crmbot/internal/facade"
	"crmbot/internal/logging"
	"crmbot/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/api/v1/", Timeout: 2 * time.Second}, logging.Discard(), nil)
}

func TestListCustomersSendsFiltersAndReadsTotals(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/customers", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "20", q.Get("limit"))
		assert.Equal(t, "Anna", q.Get("first_name"))
		assert.False(t, q.Has("email"), "empty filters are omitted")
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set(facade.HeaderTotalPages, "3")
		w.Header().Set(facade.HeaderTotalCount, "45")
		_, _ = w.Write([]byte(`[{"id":1,"first_name":"Anna","phone":"+7900"}]`))
	})

	page, err := client.ListCustomers(context.Background(), facade.CustomerQuery{FirstName: "Anna", Page: 2, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, []facade.CustomerView{{ID: 1, FirstName: "Anna", Phone: "+7900"}}, page.Items)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 45, page.TotalCount)
	assert.Equal(t, 2, page.Page)
}

func TestListOrdersWithoutTotals(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/customers/5/orders", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})

	page, err := client.ListCustomerOrders(context.Background(), 5, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
	assert.Zero(t, page.TotalPages)
}

func TestCreateOrderBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/orders", r.URL.Path)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 3, body["customer_id"])
		items, _ := body["items"].([]any)
		assert.Len(t, items, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"id":77,"message":"Order created successfully"}`))
	})

	res, err := client.CreateOrder(context.Background(), facade.CreateOrderRequest{
		CustomerID: 3,
		Items:      []facade.OrderItemRequest{{ProductName: "Tea", Quantity: 2, Price: money.FromFloat(1500)}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(77), res.ID)
}

func TestErrorDetailIsSurfaced(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"detail":"CRM request failed: timeout"}`))
	})

	_, err := client.CreatePayment(context.Background(), 9, facade.CreatePaymentRequest{Amount: money.FromFloat(10)})
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "CRM request failed: timeout", apiErr.Detail)
}

func TestErrorWithoutBodyUsesStatusText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.CreateCustomer(context.Background(), facade.CreateCustomerRequest{FirstName: "A"})
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Service Unavailable", apiErr.Detail)
}

func TestUnreachableFacade(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := New(Config{BaseURL: url}, logging.Discard(), nil)
	_, err := client.ListCustomerOrders(context.Background(), 1, 1, 20)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

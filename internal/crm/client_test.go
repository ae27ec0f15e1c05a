package crm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crmbot/internal/logging"
	"crmbot/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/", APIKey: "key-123"}, logging.Discard(), nil)
}

func TestListCustomersSendsFiltersAndKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v5/customers", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "key-123", q.Get("apiKey"))
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "50", q.Get("limit"))
		assert.Equal(t, "Anna", q.Get("filter[firstName]"))
		assert.Equal(t, "2024-01-01 00:00:00", q.Get("filter[createdAtFrom]"))
		_, hasLast := q["filter[lastName]"]
		assert.False(t, hasLast, "empty filters must be omitted")
		_, _ = w.Write([]byte(`{"success":true,"customers":[{"id":7,"firstName":"Anna","phones":[{"number":"+100"}],"createdAt":"2024-02-01 10:00:00"}],"pagination":{"limit":50,"totalCount":51,"currentPage":2,"totalPageCount":2}}`))
	})

	list, err := client.ListCustomers(context.Background(), CustomerFilter{FirstName: "Anna", LastName: "  ", CreatedAtFrom: "2024-01-01 00:00:00"}, 2, 50)
	require.NoError(t, err)
	require.Len(t, list.Customers, 1)
	assert.Equal(t, int64(7), list.Customers[0].ID)
	assert.Equal(t, "+100", list.Customers[0].PrimaryPhone())
	require.NotNil(t, list.Pagination)
	assert.Equal(t, 2, list.Pagination.TotalPageCount)
}

func TestCreateCustomerEncodesSingleFormField(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v5/customers/create", r.URL.Path)
		assert.Equal(t, "key-123", r.URL.Query().Get("apiKey"))
		assert.Equal(t, formContentType, r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())
		assert.Len(t, r.PostForm, 1)
		assert.JSONEq(t, `{"firstName":"Иван"}`, r.PostForm.Get("customer"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"id":42}`))
	})

	id, err := client.CreateCustomer(context.Background(), CustomerPayload{FirstName: "Иван"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestCreateOrderAndPaymentPayloads(t *testing.T) {
	var seen []map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		for _, field := range []string{"order", "payment"} {
			if raw := r.PostForm.Get(field); raw != "" {
				var decoded map[string]any
				assert.NoError(t, json.Unmarshal([]byte(raw), &decoded))
				seen = append(seen, decoded)
			}
		}
		_, _ = w.Write([]byte(`{"success":true,"id":"9"}`))
	})

	id, err := client.CreateOrder(context.Background(), OrderPayload{
		Customer: Reference{ID: 5},
		Items:    []OrderItem{{ProductName: "Tea", Quantity: 2, InitialPrice: money.FromFloat(150.5)}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)

	_, err = client.CreatePayment(context.Background(), 9, PaymentPayload{Amount: money.FromFloat(301), Type: "cash", Status: "paid"})
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, map[string]any{"id": float64(5)}, seen[0]["customer"])
	assert.NotContains(t, seen[0], "number")
	items := seen[0]["items"].([]any)
	assert.Equal(t, 150.5, items[0].(map[string]any)["initialPrice"])
	assert.Equal(t, map[string]any{"id": float64(9)}, seen[1]["order"])
	assert.Equal(t, float64(301), seen[1]["amount"])
}

func TestBusinessFailureReturnsAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"errorMsg":"Customer is not loaded","errors":{"email":"invalid"}}`))
	})

	_, err := client.CreateCustomer(context.Background(), CustomerPayload{FirstName: "A"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Customer is not loaded. Errors: email: invalid", apiErr.Detail())
	assert.False(t, errors.Is(err, ErrTransport))
}

func TestServerErrorIsTransportFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.ListCustomers(context.Background(), CustomerFilter{}, 1, 20)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Contains(t, err.Error(), "status=500")
}

func TestUnauthorizedWrapsInvalidCredential(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.ListOrders(context.Background(), 1, 1, 20)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestMalformedBodyIsDistinct(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	})

	_, err := client.ListOrders(context.Background(), 3, 1, 20)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.NotErrorIs(t, err, ErrTransport)
}

func TestListOrdersFilterAndDecoding(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/orders", r.URL.Path)
		assert.Equal(t, "12", r.URL.Query().Get("filter[customerId]"))
		_, _ = w.Write([]byte(`{"success":true,"orders":[{"id":1,"number":"1A","customer":{"id":12},"status":"new","totalSumm":99.9}]}`))
	})

	list, err := client.ListOrders(context.Background(), 12, 1, 20)
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, int64(12), list.Orders[0].CustomerID())
	assert.Equal(t, "99.9", list.Orders[0].TotalSumm.String())
	assert.Nil(t, list.Pagination)
}

func TestTimeoutIsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)
	client := New(Config{BaseURL: srv.URL, APIKey: "k", Timeout: 20 * time.Millisecond}, logging.Discard(), nil)

	_, err := client.ListCustomers(context.Background(), CustomerFilter{}, 1, 20)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestParseFieldErrorsArray(t *testing.T) {
	errs := parseFieldErrors(json.RawMessage(`["first","second"]`))
	assert.Equal(t, map[string]string{"0": "first", "1": "second"}, errs)
	assert.Nil(t, parseFieldErrors(json.RawMessage(`[]`)))
	assert.Nil(t, parseFieldErrors(nil))
}

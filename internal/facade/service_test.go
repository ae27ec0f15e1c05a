package facade

import (
	"context"
	"errors"
	"testing"

	"crmbot/internal/crm"
	"crmbot/internal/logging"
	"crmbot/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	calls       int
	customer    crm.CustomerPayload
	order       crm.OrderPayload
	payment     crm.PaymentPayload
	paymentFor  int64
	filter      crm.CustomerFilter
	page, limit int
	customerID  int64
	customers   *crm.CustomerList
	orders      *crm.OrderList
	err         error
}

func (f *fakeGateway) ListCustomers(_ context.Context, filter crm.CustomerFilter, page, limit int) (*crm.CustomerList, error) {
	f.calls++
	f.filter, f.page, f.limit = filter, page, limit
	if f.err != nil {
		return nil, f.err
	}
	if f.customers == nil {
		return &crm.CustomerList{}, nil
	}
	return f.customers, nil
}

func (f *fakeGateway) CreateCustomer(_ context.Context, payload crm.CustomerPayload) (int64, error) {
	f.calls++
	f.customer = payload
	return 11, f.err
}

func (f *fakeGateway) ListOrders(_ context.Context, customerID int64, page, limit int) (*crm.OrderList, error) {
	f.calls++
	f.customerID, f.page, f.limit = customerID, page, limit
	if f.err != nil {
		return nil, f.err
	}
	if f.orders == nil {
		return &crm.OrderList{}, nil
	}
	return f.orders, nil
}

func (f *fakeGateway) CreateOrder(_ context.Context, payload crm.OrderPayload) (int64, error) {
	f.calls++
	f.order = payload
	return 22, f.err
}

func (f *fakeGateway) CreatePayment(_ context.Context, orderID int64, payload crm.PaymentPayload) (int64, error) {
	f.calls++
	f.paymentFor, f.payment = orderID, payload
	return 33, f.err
}

func newTestService(gw Gateway) *Service {
	return NewService(gw, logging.Discard())
}

func TestCreateCustomerFirstNameOnly(t *testing.T) {
	gw := &fakeGateway{}
	res, err := newTestService(gw).CreateCustomer(context.Background(), CreateCustomerRequest{FirstName: " Anna "})
	require.NoError(t, err)
	assert.Equal(t, &CreateResult{Success: true, ID: 11, Message: "Customer created successfully"}, res)
	assert.Equal(t, crm.CustomerPayload{FirstName: "Anna"}, gw.customer)
}

func TestCreateCustomerMapsPhone(t *testing.T) {
	gw := &fakeGateway{}
	_, err := newTestService(gw).CreateCustomer(context.Background(), CreateCustomerRequest{
		FirstName: "A", LastName: "B", Email: "a@x.com", Phone: "+7900",
	})
	require.NoError(t, err)
	assert.Equal(t, []crm.Phone{{Number: "+7900"}}, gw.customer.Phones)
	assert.Equal(t, "a@x.com", gw.customer.Email)
}

func TestCreateCustomerValidation(t *testing.T) {
	cases := map[string]CreateCustomerRequest{
		"blank first name": {FirstName: "   "},
		"bad email":        {FirstName: "A", Email: "not-an-email"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			gw := &fakeGateway{}
			_, err := newTestService(gw).CreateCustomer(context.Background(), req)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Zero(t, gw.calls, "no CRM call on invalid input")
		})
	}
}

func TestCreateOrderValidation(t *testing.T) {
	valid := OrderItemRequest{ProductName: "Tea", Quantity: 1, Price: money.FromFloat(10)}
	cases := map[string]CreateOrderRequest{
		"no items":       {CustomerID: 1},
		"zero quantity":  {CustomerID: 1, Items: []OrderItemRequest{valid, {ProductName: "X", Quantity: 0, Price: money.FromFloat(1)}}},
		"negative price": {CustomerID: 1, Items: []OrderItemRequest{{ProductName: "X", Quantity: 1, Price: money.FromFloat(-1)}}},
		"blank name":     {CustomerID: 1, Items: []OrderItemRequest{{ProductName: " ", Quantity: 1, Price: money.FromFloat(1)}}},
		"no customer":    {Items: []OrderItemRequest{valid}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			gw := &fakeGateway{}
			_, err := newTestService(gw).CreateOrder(context.Background(), req)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Zero(t, gw.calls)
		})
	}
}

func TestCreateOrderPayload(t *testing.T) {
	gw := &fakeGateway{}
	_, err := newTestService(gw).CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: 5,
		Number:     "A-1",
		Items:      []OrderItemRequest{{ProductName: "Tea", Quantity: 2, Price: money.FromFloat(1500)}},
	})
	require.NoError(t, err)
	assert.Equal(t, crm.Reference{ID: 5}, gw.order.Customer)
	assert.Equal(t, "A-1", gw.order.Number)
	require.Len(t, gw.order.Items, 1)
	assert.Equal(t, "Tea", gw.order.Items[0].ProductName)
	assert.Equal(t, "1500", gw.order.Items[0].InitialPrice.String())
}

func TestCreatePaymentDefaults(t *testing.T) {
	gw := &fakeGateway{}
	res, err := newTestService(gw).CreatePayment(context.Background(), 9, CreatePaymentRequest{Amount: money.FromFloat(100)})
	require.NoError(t, err)
	assert.Equal(t, int64(33), res.ID)
	assert.Equal(t, int64(9), gw.paymentFor)
	assert.Equal(t, "cash", gw.payment.Type)
	assert.Equal(t, "paid", gw.payment.Status)
}

func TestCreatePaymentRejectsNonPositiveAmount(t *testing.T) {
	for _, amount := range []float64{0, -5} {
		gw := &fakeGateway{}
		_, err := newTestService(gw).CreatePayment(context.Background(), 9, CreatePaymentRequest{Amount: money.FromFloat(amount)})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Zero(t, gw.calls)
	}
}

func TestListCustomerOrdersCoercesLimit(t *testing.T) {
	for limit, want := range map[int]int{15: 20, 0: 20, 20: 20, 50: 50, 100: 100, 101: 20, -3: 20} {
		gw := &fakeGateway{}
		_, err := newTestService(gw).ListCustomerOrders(context.Background(), 4, OrderQuery{Page: 1, Limit: limit})
		require.NoError(t, err)
		assert.Equal(t, want, gw.limit, "limit %d", limit)
		assert.Equal(t, int64(4), gw.customerID)
	}
}

func TestListCustomersValidatesPaging(t *testing.T) {
	for _, q := range []CustomerQuery{{Page: -1, Limit: 20}, {Page: 1, Limit: 101}, {Page: 1, Limit: -1}} {
		gw := &fakeGateway{}
		_, err := newTestService(gw).ListCustomers(context.Background(), q)
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr, "query %+v", q)
		assert.Zero(t, gw.calls)
	}
}

func TestListCustomersNormalisesDatesAndMaps(t *testing.T) {
	gw := &fakeGateway{customers: &crm.CustomerList{
		Customers:  []crm.Customer{{ID: 1, FirstName: "A", Email: "a@x.com", Phones: []crm.Phone{{Number: "1"}, {Number: "2"}}}},
		Pagination: &crm.Pagination{TotalCount: 41, TotalPageCount: 3},
	}}
	page, err := newTestService(gw).ListCustomers(context.Background(), CustomerQuery{
		CreatedAtFrom: "2024-03-01",
		CreatedAtTo:   "2024-03-02T10:11:12Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01 00:00:00", gw.filter.CreatedAtFrom)
	assert.Equal(t, "2024-03-02 10:11:12", gw.filter.CreatedAtTo)
	assert.Equal(t, 1, gw.page)
	assert.Equal(t, 20, gw.limit)
	assert.Equal(t, []CustomerView{{ID: 1, FirstName: "A", Email: "a@x.com", Phone: "1"}}, page.Customers)
	assert.Equal(t, 3, page.Paging.TotalPages)

	_, err = newTestService(gw).ListCustomers(context.Background(), CustomerQuery{CreatedAtFrom: "yesterday"})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "created_at_from")
}

func TestGatewayErrorsAreWrapped(t *testing.T) {
	gw := &fakeGateway{err: crm.ErrTransport}
	_, err := newTestService(gw).ListCustomers(context.Background(), CustomerQuery{})
	assert.True(t, errors.Is(err, crm.ErrTransport))
}

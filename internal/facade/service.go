package facade

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"crmbot/internal/crm"

	"github.com/go-playground/validator/v10"
)

// Gateway is the subset of the CRM client the facade delegates to.
type Gateway interface {
	ListCustomers(ctx context.Context, filter crm.CustomerFilter, page, limit int) (*crm.CustomerList, error)
	CreateCustomer(ctx context.Context, payload crm.CustomerPayload) (int64, error)
	ListOrders(ctx context.Context, customerID int64, page, limit int) (*crm.OrderList, error)
	CreateOrder(ctx context.Context, payload crm.OrderPayload) (int64, error)
	CreatePayment(ctx context.Context, orderID int64, payload crm.PaymentPayload) (int64, error)
}

// crmTimeLayout is the timestamp format the CRM expects in filters.
const crmTimeLayout = "2006-01-02 15:04:05"

var timestampLayouts = []string{
	crmTimeLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// Service validates and reshapes facade requests. It holds no per-request state.
type Service struct {
	gateway  Gateway
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService wires a Service over gateway.
func NewService(gateway Gateway, logger *slog.Logger) *Service {
	return &Service{
		gateway:  gateway,
		logger:   logger.With("component", "facade"),
		validate: newValidator(),
	}
}

// ListCustomers returns one page of customers.
func (s *Service) ListCustomers(ctx context.Context, q CustomerQuery) (*CustomerPage, error) {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = defaultPageSize
	}
	if err := toValidationError(s.validate.Struct(q)); err != nil {
		return nil, err
	}
	from, err := normaliseTimestamp("created_at_from", q.CreatedAtFrom)
	if err != nil {
		return nil, err
	}
	to, err := normaliseTimestamp("created_at_to", q.CreatedAtTo)
	if err != nil {
		return nil, err
	}

	list, err := s.gateway.ListCustomers(ctx, crm.CustomerFilter{
		FirstName:     strings.TrimSpace(q.FirstName),
		LastName:      strings.TrimSpace(q.LastName),
		Email:         strings.TrimSpace(q.Email),
		CreatedAtFrom: from,
		CreatedAtTo:   to,
	}, q.Page, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}

	page := &CustomerPage{
		Customers: make([]CustomerView, 0, len(list.Customers)),
		Paging:    paging(q.Page, q.Limit, list.Pagination),
	}
	for _, c := range list.Customers {
		page.Customers = append(page.Customers, CustomerView{
			ID:        c.ID,
			FirstName: c.FirstName,
			LastName:  c.LastName,
			Email:     c.Email,
			Phone:     c.PrimaryPhone(),
			CreatedAt: c.CreatedAt,
		})
	}
	return page, nil
}

// CreateCustomer creates a customer. Only non-empty optional fields are forwarded.
func (s *Service) CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*CreateResult, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	if err := toValidationError(s.validate.Struct(req)); err != nil {
		return nil, err
	}

	payload := crm.CustomerPayload{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	}
	if req.Phone != "" {
		payload.Phones = []crm.Phone{{Number: req.Phone}}
	}

	id, err := s.gateway.CreateCustomer(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	s.logger.Info("customer created", "crm_id", id)
	return &CreateResult{Success: true, ID: id, Message: "Customer created successfully"}, nil
}

// ListCustomerOrders returns one page of a customer's orders.
// Limits outside {20, 50, 100} fall back to 20.
func (s *Service) ListCustomerOrders(ctx context.Context, customerID int64, q OrderQuery) (*OrderPage, error) {
	if customerID <= 0 {
		return nil, invalid("customer_id", "must be greater than 0")
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if err := toValidationError(s.validate.Struct(q)); err != nil {
		return nil, err
	}
	q.Limit = coerceOrderLimit(q.Limit)

	list, err := s.gateway.ListOrders(ctx, customerID, q.Page, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	page := &OrderPage{
		Orders: make([]OrderView, 0, len(list.Orders)),
		Paging: paging(q.Page, q.Limit, list.Pagination),
	}
	for _, o := range list.Orders {
		page.Orders = append(page.Orders, OrderView{
			ID:         o.ID,
			Number:     o.Number,
			CustomerID: o.CustomerID(),
			CreatedAt:  o.CreatedAt,
			Status:     o.Status,
			TotalSum:   o.TotalSumm,
		})
	}
	return page, nil
}

// CreateOrder creates an order with its line items.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateResult, error) {
	req.Number = strings.TrimSpace(req.Number)
	for i := range req.Items {
		req.Items[i].ProductName = strings.TrimSpace(req.Items[i].ProductName)
	}
	if err := toValidationError(s.validate.Struct(req)); err != nil {
		return nil, err
	}

	payload := crm.OrderPayload{
		Number:   req.Number,
		Customer: crm.Reference{ID: req.CustomerID},
		Items:    make([]crm.OrderItem, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		payload.Items = append(payload.Items, crm.OrderItem{
			ProductName:  item.ProductName,
			Quantity:     item.Quantity,
			InitialPrice: item.Price,
		})
	}

	id, err := s.gateway.CreateOrder(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.logger.Info("order created", "crm_id", id, "customer_id", req.CustomerID, "items", len(req.Items))
	return &CreateResult{Success: true, ID: id, Message: "Order created successfully"}, nil
}

// CreatePayment records a payment against orderID. Type defaults to cash, status to paid.
func (s *Service) CreatePayment(ctx context.Context, orderID int64, req CreatePaymentRequest) (*CreateResult, error) {
	if orderID <= 0 {
		return nil, invalid("order_id", "must be greater than 0")
	}
	if err := toValidationError(s.validate.Struct(req)); err != nil {
		return nil, err
	}
	paymentType := strings.TrimSpace(req.Type)
	if paymentType == "" {
		paymentType = defaultPaymentType
	}
	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = defaultPaymentStatus
	}

	id, err := s.gateway.CreatePayment(ctx, orderID, crm.PaymentPayload{
		Amount: req.Amount,
		Type:   paymentType,
		Status: status,
	})
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	s.logger.Info("payment created", "crm_id", id, "order_id", orderID)
	return &CreateResult{Success: true, ID: id, Message: "Payment created successfully"}, nil
}

func coerceOrderLimit(limit int) int {
	if orderPageSizes[limit] {
		return limit
	}
	return defaultPageSize
}

func normaliseTimestamp(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.Format(crmTimeLayout), nil
		}
	}
	return "", invalid(field, "must be a date or datetime")
}

func paging(page, limit int, p *crm.Pagination) Paging {
	out := Paging{Page: page, Limit: limit}
	if p != nil {
		out.TotalCount = p.TotalCount
		out.TotalPages = p.TotalPageCount
	}
	return out
}

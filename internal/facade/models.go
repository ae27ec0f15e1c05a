package facade

import "crmbot/internal/money"

// Allowed page sizes for order listing.
var orderPageSizes = map[int]bool{20: true, 50: true, 100: true}

const (
	defaultPageSize      = 20
	maxCustomerLimit     = 100
	defaultPaymentType   = "cash"
	defaultPaymentStatus = "paid"
)

// CustomerQuery carries customer list filters and paging.
type CustomerQuery struct {
	FirstName     string `form:"first_name"`
	LastName      string `form:"last_name"`
	Email         string `form:"email"`
	CreatedAtFrom string `form:"created_at_from"`
	CreatedAtTo   string `form:"created_at_to"`
	Page          int    `form:"page,default=1" binding:"min=1"`
	Limit         int    `form:"limit,default=20" binding:"min=1,max=100"`
}

// OrderQuery carries order list paging. Limit is coerced, never rejected.
type OrderQuery struct {
	Page  int `form:"page,default=1" binding:"min=1"`
	Limit int `form:"limit,default=20"`
}

// CustomerView is the external customer representation.
type CustomerView struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// OrderView is the external order representation.
type OrderView struct {
	ID         int64        `json:"id"`
	Number     string       `json:"number,omitempty"`
	CustomerID int64        `json:"customer_id,omitempty"`
	CreatedAt  string       `json:"created_at,omitempty"`
	Status     string       `json:"status,omitempty"`
	TotalSum   money.Amount `json:"total_sum"`
}

// Paging reports what the CRM said about the result set. Zero values mean unknown.
type Paging struct {
	Page       int
	Limit      int
	TotalCount int
	TotalPages int
}

// CustomerPage is one page of customers.
type CustomerPage struct {
	Customers []CustomerView
	Paging    Paging
}

// OrderPage is one page of orders.
type OrderPage struct {
	Orders []OrderView
	Paging Paging
}

// CreateCustomerRequest is the POST /customers body.
type CreateCustomerRequest struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty" binding:"omitempty,email"`
	Phone     string `json:"phone,omitempty"`
}

// OrderItemRequest is a single order line.
type OrderItemRequest struct {
	ProductName string       `json:"product_name" binding:"required"`
	Quantity    int          `json:"quantity" binding:"required,gt=0"`
	Price       money.Amount `json:"price" binding:"required,gt=0"`
}

// CreateOrderRequest is the POST /orders body.
type CreateOrderRequest struct {
	CustomerID int64              `json:"customer_id" binding:"required,gt=0"`
	Items      []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	Number     string             `json:"number,omitempty"`
}

// CreatePaymentRequest is the POST /orders/{id}/payment body.
type CreatePaymentRequest struct {
	Amount money.Amount `json:"amount" binding:"required,gt=0"`
	Type   string       `json:"type,omitempty"`
	Status string       `json:"status,omitempty"`
}

// CreateResult is returned by every create endpoint.
type CreateResult struct {
	Success bool   `json:"success"`
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx facade reply.
type ErrorResponse struct {
	Detail string            `json:"detail"`
	Errors map[string]string `json:"errors,omitempty"`
}

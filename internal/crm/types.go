package crm

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"crmbot/internal/money"
)

// CustomerFilter narrows ListCustomers. Empty fields are not sent.
type CustomerFilter struct {
	FirstName     string
	LastName      string
	Email         string
	CreatedAtFrom string
	CreatedAtTo   string
}

// Phone is a customer phone entry.
type Phone struct {
	Number string `json:"number"`
}

// Customer is the subset of the CRM customer object the facade exposes.
type Customer struct {
	ID        int64   `json:"id"`
	FirstName string  `json:"firstName,omitempty"`
	LastName  string  `json:"lastName,omitempty"`
	Email     string  `json:"email,omitempty"`
	Phones    []Phone `json:"phones,omitempty"`
	CreatedAt string  `json:"createdAt,omitempty"`
}

// PrimaryPhone returns the first phone number or an empty string.
func (c Customer) PrimaryPhone() string {
	if len(c.Phones) == 0 {
		return ""
	}
	return c.Phones[0].Number
}

// Pagination mirrors the CRM pagination block of list responses.
type Pagination struct {
	Limit          int `json:"limit"`
	TotalCount     int `json:"totalCount"`
	CurrentPage    int `json:"currentPage"`
	TotalPageCount int `json:"totalPageCount"`
}

// CustomerList is the decoded customers list response.
type CustomerList struct {
	Customers  []Customer  `json:"customers"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Reference points at another CRM entity by id.
type Reference struct {
	ID int64 `json:"id"`
}

// Order is the subset of the CRM order object the facade exposes.
type Order struct {
	ID        int64        `json:"id"`
	Number    string       `json:"number,omitempty"`
	Customer  *Reference   `json:"customer,omitempty"`
	CreatedAt string       `json:"createdAt,omitempty"`
	Status    string       `json:"status,omitempty"`
	TotalSumm money.Amount `json:"totalSumm"`
}

// CustomerID returns the owning customer id or zero.
func (o Order) CustomerID() int64 {
	if o.Customer == nil {
		return 0
	}
	return o.Customer.ID
}

// OrderList is the decoded orders list response.
type OrderList struct {
	Orders     []Order     `json:"orders"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// CustomerPayload is the JSON object sent in the `customer` form field.
type CustomerPayload struct {
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName,omitempty"`
	Email     string  `json:"email,omitempty"`
	Phones    []Phone `json:"phones,omitempty"`
}

// OrderItem is a line item inside OrderPayload.
type OrderItem struct {
	ProductName  string       `json:"productName"`
	Quantity     int          `json:"quantity"`
	InitialPrice money.Amount `json:"initialPrice"`
}

// OrderPayload is the JSON object sent in the `order` form field.
type OrderPayload struct {
	Number   string      `json:"number,omitempty"`
	Customer Reference   `json:"customer"`
	Items    []OrderItem `json:"items"`
}

// PaymentPayload is the JSON object sent in the `payment` form field.
// Order is filled in by CreatePayment.
type PaymentPayload struct {
	Order  Reference    `json:"order"`
	Amount money.Amount `json:"amount"`
	Type   string       `json:"type,omitempty"`
	Status string       `json:"status,omitempty"`
}

// responseEnvelope mirrors the CRM's standard response shape.
type responseEnvelope struct {
	Success  bool
	ID       int64
	ErrorMsg string
	Errors   map[string]string
}

func (r *responseEnvelope) UnmarshalJSON(data []byte) error {
	type alias struct {
		Success  *bool           `json:"success"`
		ID       json.RawMessage `json:"id"`
		ErrorMsg string          `json:"errorMsg"`
		Errors   json.RawMessage `json:"errors"`
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Success == nil {
		return fmt.Errorf("response has no success flag")
	}
	r.Success = *a.Success
	r.ErrorMsg = strings.TrimSpace(a.ErrorMsg)
	r.Errors = parseFieldErrors(a.Errors)
	if len(a.ID) != 0 {
		var id int64
		if err := json.Unmarshal(a.ID, &id); err == nil {
			r.ID = id
		} else {
			str := strings.Trim(strings.TrimSpace(string(a.ID)), `"`)
			if parsed, err := strconv.ParseInt(str, 10, 64); err == nil {
				r.ID = parsed
			}
		}
	}
	return nil
}

// parseFieldErrors accepts either {"field": "msg"} or ["msg", ...].
func parseFieldErrors(raw json.RawMessage) map[string]string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var asMap map[string]any
	if err := json.Unmarshal(raw, &asMap); err == nil {
		if len(asMap) == 0 {
			return nil
		}
		out := make(map[string]string, len(asMap))
		for key, val := range asMap {
			out[key] = fmt.Sprint(val)
		}
		return out
	}
	var asSlice []any
	if err := json.Unmarshal(raw, &asSlice); err == nil {
		if len(asSlice) == 0 {
			return nil
		}
		out := make(map[string]string, len(asSlice))
		for i, val := range asSlice {
			out[strconv.Itoa(i)] = fmt.Sprint(val)
		}
		return out
	}
	return map[string]string{"error": strings.TrimSpace(string(raw))}
}

// formatFieldErrors renders field errors in a stable order.
func formatFieldErrors(errs map[string]string) string {
	keys := make([]string, 0, len(errs))
	for key := range errs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+": "+errs[key])
	}
	return strings.Join(parts, "; ")
}

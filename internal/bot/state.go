// Package bot implements the conversational forms that drive the facade.
//
// Transition is pure: it maps a session State and an Input to the next State and an Effect.
// Engine loads and stores sessions, runs effects against the facade and renders replies.
package bot

import "crmbot/internal/facade"

// Form names the active multi-step sequence.
type Form string

const (
	FormNone           Form = ""
	FormCustomerCreate Form = "customer_create"
	FormCustomerFilter Form = "customer_filter"
	FormOrderCreate    Form = "order_create"
	FormOrderBrowse    Form = "order_browse"
	FormPaymentCreate  Form = "payment_create"
)

// Step is a position inside a form.
type Step string

const (
	StepIdle       Step = ""
	StepFirstName  Step = "awaiting_first_name"
	StepLastName   Step = "awaiting_last_name"
	StepEmail      Step = "awaiting_email"
	StepPhone      Step = "awaiting_phone"
	StepCustomerID Step = "awaiting_customer_id"
	StepNumber     Step = "awaiting_number"
	StepItems      Step = "awaiting_items"
	StepOrderID    Step = "awaiting_order_id"
	StepAmount     Step = "awaiting_amount"
	StepType       Step = "awaiting_type"
	StepSubmit     Step = "submit"
)

// ListKind identifies a paginated list. The value doubles as the page callback prefix.
type ListKind string

const (
	ListCustomers ListKind = "customers_list"
	ListOrders    ListKind = "orders_list"
)

// PageSize is the number of rows requested per list page.
const PageSize = 20

// CustomerFilters are the stored customer search terms.
type CustomerFilters struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Browse is the list context kept across page navigation.
type Browse struct {
	Kind       ListKind        `json:"kind"`
	Filters    CustomerFilters `json:"filters"`
	CustomerID int64           `json:"customer_id,omitempty"`
	Page       int             `json:"page"`
}

// Query returns the facade query for this browse context.
func (b Browse) Query() facade.CustomerQuery {
	return facade.CustomerQuery{
		FirstName: b.Filters.FirstName,
		LastName:  b.Filters.LastName,
		Email:     b.Filters.Email,
		Page:      b.Page,
		Limit:     PageSize,
	}
}

// State is everything remembered about one chat.
type State struct {
	Form   Form              `json:"form,omitempty"`
	Step   Step              `json:"step,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
	Browse *Browse           `json:"browse,omitempty"`
}

// IsZero reports whether there is nothing worth persisting.
func (s State) IsZero() bool {
	return s.Form == FormNone && s.Browse == nil
}

func (s State) field(name string) string {
	return s.Fields[name]
}

// with returns a copy of s carrying name=value. The receiver's map is left untouched.
func (s State) with(name, value string) State {
	fields := make(map[string]string, len(s.Fields)+1)
	for k, v := range s.Fields {
		fields[k] = v
	}
	fields[name] = value
	s.Fields = fields
	return s
}

// without returns a copy of s lacking name.
func (s State) without(name string) State {
	fields := make(map[string]string, len(s.Fields))
	for k, v := range s.Fields {
		if k != name {
			fields[k] = v
		}
	}
	s.Fields = fields
	return s
}

// Action is what an input asks for.
type Action string

const (
	ActionText             Action = "text"
	ActionUnknown          Action = "unknown"
	ActionStart            Action = "start"
	ActionMainMenu         Action = "back_main"
	ActionCancel           Action = "cancel"
	ActionSkip             Action = "skip"
	ActionHelp             Action = "help"
	ActionCustomersSection Action = "customers"
	ActionOrdersSection    Action = "orders"
	ActionCustomersList    Action = "customers_list"
	ActionCustomersFilter  Action = "customers_filter"
	ActionCustomersCreate  Action = "customers_create"
	ActionOrdersByCustomer Action = "orders_by_customer"
	ActionOrdersCreate     Action = "orders_create"
	ActionPaymentCreate    Action = "payment_create"
	ActionPageInfo         Action = "page_info"
	ActionCustomersPage    Action = "customers_list_page"
	ActionOrdersPage       Action = "orders_list_page"
)

// Input is one normalised user event.
type Input struct {
	Action Action
	Text   string
	Page   int
}

// EffectKind tells the engine what to do after a transition.
type EffectKind int

const (
	EffectNone EffectKind = iota
	EffectReply
	EffectListCustomers
	EffectListOrders
	EffectCreateCustomer
	EffectCreateOrder
	EffectCreatePayment
)

// Effect is the side effect requested by Transition.
type Effect struct {
	Kind     EffectKind
	Reply    Reply
	Browse   Browse
	Customer facade.CreateCustomerRequest
	Order    facade.CreateOrderRequest
	OrderID  int64
	Payment  facade.CreatePaymentRequest
}

func replyEffect(r Reply) Effect {
	return Effect{Kind: EffectReply, Reply: r}
}

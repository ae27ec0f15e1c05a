package bot

import (
	"fmt"
	"strconv"
	"strings"

	"crmbot/internal/facade"
	"crmbot/internal/money"

	"github.com/go-playground/validator/v10"
)

// Field keys collected by the forms.
const (
	fieldFirstName  = "first_name"
	fieldLastName   = "last_name"
	fieldEmail      = "email"
	fieldPhone      = "phone"
	fieldCustomerID = "customer_id"
	fieldNumber     = "number"
	fieldItems      = "items"
	fieldOrderID    = "order_id"
	fieldAmount     = "amount"
	fieldType       = "type"
)

var stepFields = map[Step]string{
	StepFirstName:  fieldFirstName,
	StepLastName:   fieldLastName,
	StepEmail:      fieldEmail,
	StepPhone:      fieldPhone,
	StepCustomerID: fieldCustomerID,
	StepNumber:     fieldNumber,
	StepItems:      fieldItems,
	StepOrderID:    fieldOrderID,
	StepAmount:     fieldAmount,
	StepType:       fieldType,
}

var formActions = map[Action]Form{
	ActionCustomersFilter:  FormCustomerFilter,
	ActionCustomersCreate:  FormCustomerCreate,
	ActionOrdersByCustomer: FormOrderBrowse,
	ActionOrdersCreate:     FormOrderCreate,
	ActionPaymentCreate:    FormPaymentCreate,
}

var emailCheck = validator.New()

// Transition computes the next session state and the effect to run. It performs no I/O.
func Transition(s State, in Input) (State, Effect) {
	if form, ok := formActions[in.Action]; ok {
		return startForm(s, form)
	}

	switch in.Action {
	case ActionStart:
		return State{}, replyEffect(welcomeReply())
	case ActionMainMenu:
		return State{}, replyEffect(mainMenuReply())
	case ActionCancel:
		return State{}, replyEffect(cancelledReply())
	case ActionHelp:
		return s, replyEffect(helpReply())
	case ActionCustomersSection:
		return State{}, replyEffect(customersMenu("Customers\n\nChoose an action:"))
	case ActionOrdersSection:
		return State{}, replyEffect(ordersMenu("Orders\n\nChoose an action:"))
	case ActionCustomersList:
		b := Browse{Kind: ListCustomers, Page: 1}
		return State{Browse: &b}, Effect{Kind: EffectListCustomers, Browse: b}
	case ActionCustomersPage, ActionOrdersPage:
		return turnPage(s, in)
	case ActionPageInfo:
		return s, Effect{Kind: EffectNone}
	case ActionSkip:
		return skip(s)
	case ActionText:
		return answer(s, in.Text)
	default:
		return s, replyEffect(unknownReply())
	}
}

// startForm discards any collected fields. The browse context survives so older list
// messages keep paging.
func startForm(s State, form Form) (State, Effect) {
	step := firstSteps[form]
	return State{Form: form, Step: step, Browse: s.Browse}, replyEffect(promptReply(form, step))
}

func turnPage(s State, in Input) (State, Effect) {
	kind, effect := ListCustomers, EffectListCustomers
	if in.Action == ActionOrdersPage {
		kind, effect = ListOrders, EffectListOrders
	}
	if s.Browse == nil || s.Browse.Kind != kind || in.Page < 1 {
		return s, replyEffect(expiredListReply())
	}
	if kind == ListOrders && s.Browse.CustomerID <= 0 {
		return s, replyEffect(expiredListReply())
	}
	b := *s.Browse
	b.Page = in.Page
	s.Browse = &b
	return s, Effect{Kind: effect, Browse: b}
}

func skip(s State) (State, Effect) {
	if s.Form == FormNone {
		return s, replyEffect(Reply{Text: "There is nothing to skip."})
	}
	next, ok := advance(s.Form, s.Step, triggerSkip)
	if !ok {
		return s, replyEffect(repromptReply(s.Form, s.Step, "This field is required."))
	}
	field := stepFields[s.Step]
	if _, had := s.Fields[field]; had {
		s = s.without(field)
	}
	return moveTo(s, next)
}

func answer(s State, text string) (State, Effect) {
	if s.Form == FormNone {
		return s, replyEffect(idleReply())
	}
	value, problem := validateAnswer(s.Form, s.Step, text)
	if problem != "" {
		return s, replyEffect(repromptReply(s.Form, s.Step, problem))
	}
	next, ok := advance(s.Form, s.Step, triggerAnswer)
	if !ok {
		return State{}, replyEffect(internalErrorReply())
	}
	return moveTo(s.with(stepFields[s.Step], value), next)
}

func moveTo(s State, next Step) (State, Effect) {
	if next != StepSubmit {
		s.Step = next
		return s, replyEffect(promptReply(s.Form, next))
	}
	return submit(s)
}

// submit always ends the form, whatever the facade later answers.
func submit(s State) (State, Effect) {
	done := State{Browse: s.Browse}

	switch s.Form {
	case FormCustomerCreate:
		return done, Effect{Kind: EffectCreateCustomer, Customer: facade.CreateCustomerRequest{
			FirstName: s.field(fieldFirstName),
			LastName:  s.field(fieldLastName),
			Email:     s.field(fieldEmail),
			Phone:     s.field(fieldPhone),
		}}
	case FormCustomerFilter:
		b := Browse{
			Kind: ListCustomers,
			Filters: CustomerFilters{
				FirstName: s.field(fieldFirstName),
				LastName:  s.field(fieldLastName),
				Email:     s.field(fieldEmail),
			},
			Page: 1,
		}
		return State{Browse: &b}, Effect{Kind: EffectListCustomers, Browse: b}
	case FormOrderBrowse:
		customerID, _ := strconv.ParseInt(s.field(fieldCustomerID), 10, 64)
		b := Browse{Kind: ListOrders, CustomerID: customerID, Page: 1}
		return State{Browse: &b}, Effect{Kind: EffectListOrders, Browse: b}
	case FormOrderCreate:
		customerID, _ := strconv.ParseInt(s.field(fieldCustomerID), 10, 64)
		items, problem := parseItems(s.field(fieldItems))
		if problem != "" {
			return done, replyEffect(internalErrorReply())
		}
		return done, Effect{Kind: EffectCreateOrder, Order: facade.CreateOrderRequest{
			CustomerID: customerID,
			Number:     s.field(fieldNumber),
			Items:      items,
		}}
	case FormPaymentCreate:
		orderID, _ := strconv.ParseInt(s.field(fieldOrderID), 10, 64)
		amount, err := money.Parse(s.field(fieldAmount))
		if err != nil {
			return done, replyEffect(internalErrorReply())
		}
		paymentType := s.field(fieldType)
		if paymentType == "" {
			paymentType = "cash"
		}
		return done, Effect{Kind: EffectCreatePayment, OrderID: orderID, Payment: facade.CreatePaymentRequest{
			Amount: amount,
			Type:   paymentType,
		}}
	default:
		return State{}, replyEffect(internalErrorReply())
	}
}

// validateAnswer normalises text for step. A non-empty problem means the answer is rejected.
func validateAnswer(form Form, step Step, text string) (value, problem string) {
	value = strings.TrimSpace(text)
	switch step {
	case StepCustomerID, StepOrderID:
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil || id <= 0 {
			return "", "The ID must be a positive whole number."
		}
		return strconv.FormatInt(id, 10), ""
	case StepAmount:
		amount, err := money.Parse(value)
		if err != nil || !amount.Positive() {
			return "", "The amount must be a positive number, for example 1500 or 99.90."
		}
		return amount.String(), ""
	case StepItems:
		if _, problem := parseItems(text); problem != "" {
			return "", problem + "\n\n" + itemsFormat
		}
		return text, ""
	case StepEmail:
		if value == "" {
			return "", "The email cannot be empty."
		}
		if form == FormCustomerCreate && emailCheck.Var(value, "email") != nil {
			return "", "That does not look like an email address."
		}
		return value, ""
	case StepType:
		if value == "" {
			return "", "The payment type cannot be empty."
		}
		return strings.ToLower(value), ""
	default:
		if value == "" {
			return "", "The value cannot be empty."
		}
		return value, ""
	}
}

// parseItems reads newline-separated name|quantity|price records. Blank lines are ignored;
// one bad record rejects the whole batch and the problem names its line.
func parseItems(text string) ([]facade.OrderItemRequest, string) {
	var items []facade.OrderItemRequest
	for n, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) != 3 {
			return nil, fmt.Sprintf("Line %d: expected name|quantity|price.", n+1)
		}
		name := strings.TrimSpace(parts[0])
		if name == "" {
			return nil, fmt.Sprintf("Line %d: the item name is empty.", n+1)
		}
		qty, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || qty <= 0 {
			return nil, fmt.Sprintf("Line %d: the quantity must be a positive whole number.", n+1)
		}
		price, err := money.Parse(parts[2])
		if err != nil || !price.Positive() {
			return nil, fmt.Sprintf("Line %d: the price must be a positive number.", n+1)
		}
		items = append(items, facade.OrderItemRequest{ProductName: name, Quantity: qty, Price: price})
	}
	if len(items) == 0 {
		return nil, "Enter at least one item."
	}
	return items, ""
}

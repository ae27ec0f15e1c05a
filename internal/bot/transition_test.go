package bot

import (
	"testing"

	"crmbot/internal/facade"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func text(s string) Input { return Input{Action: ActionText, Text: s} }

// run feeds inputs in order and returns the final state and the last effect.
func run(t *testing.T, s State, inputs ...Input) (State, Effect) {
	t.Helper()
	var eff Effect
	for _, in := range inputs {
		s, eff = Transition(s, in)
	}
	return s, eff
}

func TestCustomerCreateFirstNameOnly(t *testing.T) {
	s, eff := run(t, State{},
		Input{Action: ActionCustomersCreate},
		text("  Anna "),
		Input{Action: ActionSkip},
		Input{Action: ActionSkip},
		Input{Action: ActionSkip},
	)
	require.Equal(t, EffectCreateCustomer, eff.Kind)
	assert.Equal(t, facade.CreateCustomerRequest{FirstName: "Anna"}, eff.Customer)
	assert.Equal(t, FormNone, s.Form, "submit ends the form")
	assert.True(t, s.IsZero())
}

func TestCustomerCreateAllFields(t *testing.T) {
	_, eff := run(t, State{},
		Input{Action: ActionCustomersCreate},
		text("Anna"), text("Petrova"), text("anna@example.com"), text("+7 900 000"),
	)
	require.Equal(t, EffectCreateCustomer, eff.Kind)
	assert.Equal(t, facade.CreateCustomerRequest{
		FirstName: "Anna", LastName: "Petrova", Email: "anna@example.com", Phone: "+7 900 000",
	}, eff.Customer)
}

func TestFirstNameCannotBeSkippedOrBlank(t *testing.T) {
	start, _ := Transition(State{}, Input{Action: ActionCustomersCreate})
	require.Equal(t, StepFirstName, start.Step)

	s, eff := Transition(start, Input{Action: ActionSkip})
	assert.Equal(t, start, s)
	assert.Contains(t, eff.Reply.Text, "required")

	s, eff = Transition(start, text("   "))
	assert.Equal(t, start, s)
	assert.Equal(t, EffectReply, eff.Kind)
}

func TestCustomerCreateRejectsBadEmail(t *testing.T) {
	s, _ := run(t, State{}, Input{Action: ActionCustomersCreate}, text("Anna"), Input{Action: ActionSkip})
	require.Equal(t, StepEmail, s.Step)

	next, eff := Transition(s, text("not-an-email"))
	assert.Equal(t, s, next)
	assert.Contains(t, eff.Reply.Text, "email")
}

func TestPromptsOfferSkipOnlyWhenAllowed(t *testing.T) {
	s, eff := Transition(State{}, Input{Action: ActionCustomersCreate})
	assert.Equal(t, [][]Button{{cancelButton}}, eff.Reply.Keyboard.Rows)

	_, eff = Transition(s, text("Anna"))
	assert.Equal(t, [][]Button{{skipButton}, {cancelButton}}, eff.Reply.Keyboard.Rows)
}

func TestFilterStoresBrowseContext(t *testing.T) {
	s, eff := run(t, State{},
		Input{Action: ActionCustomersFilter},
		Input{Action: ActionSkip},
		text("Petrov"),
		Input{Action: ActionSkip},
	)
	require.Equal(t, EffectListCustomers, eff.Kind)
	want := Browse{Kind: ListCustomers, Filters: CustomerFilters{LastName: "Petrov"}, Page: 1}
	assert.Equal(t, want, eff.Browse)
	require.NotNil(t, s.Browse)
	assert.Equal(t, want, *s.Browse)
	assert.Equal(t, FormNone, s.Form)
	assert.Equal(t, "Petrov", eff.Browse.Query().LastName)
	assert.Equal(t, PageSize, eff.Browse.Query().Limit)
}

func TestNavigationIsIdempotent(t *testing.T) {
	s, _ := run(t, State{},
		Input{Action: ActionCustomersFilter},
		text("Anna"), Input{Action: ActionSkip}, text("a@x.com"),
	)
	original := *s.Browse

	s, eff := Transition(s, Input{Action: ActionCustomersPage, Page: 2})
	require.Equal(t, EffectListCustomers, eff.Kind)
	assert.Equal(t, 2, eff.Browse.Page)
	assert.Equal(t, original.Filters, eff.Browse.Filters)

	s, eff = Transition(s, Input{Action: ActionCustomersPage, Page: 1})
	require.Equal(t, EffectListCustomers, eff.Kind)
	assert.Equal(t, original, eff.Browse)
	assert.Equal(t, original, *s.Browse)
}

func TestPagingWithoutContextExpires(t *testing.T) {
	s, eff := Transition(State{}, Input{Action: ActionOrdersPage, Page: 2})
	assert.True(t, s.IsZero())
	assert.Equal(t, EffectReply, eff.Kind)

	customers := Browse{Kind: ListCustomers, Page: 1}
	_, eff = Transition(State{Browse: &customers}, Input{Action: ActionOrdersPage, Page: 2})
	assert.Equal(t, EffectReply, eff.Kind, "orders paging needs an orders context")
}

func TestOrderBrowseKeepsCustomerID(t *testing.T) {
	s, eff := run(t, State{}, Input{Action: ActionOrdersByCustomer}, text("abc"))
	assert.Equal(t, EffectReply, eff.Kind)
	assert.Equal(t, StepCustomerID, s.Step)

	s, eff = Transition(s, text(" 42 "))
	require.Equal(t, EffectListOrders, eff.Kind)
	assert.Equal(t, Browse{Kind: ListOrders, CustomerID: 42, Page: 1}, eff.Browse)

	s, eff = Transition(s, Input{Action: ActionOrdersPage, Page: 3})
	require.Equal(t, EffectListOrders, eff.Kind)
	assert.Equal(t, int64(42), eff.Browse.CustomerID)
	assert.Equal(t, 3, s.Browse.Page)
}

func TestOrderCreate(t *testing.T) {
	s, eff := run(t, State{},
		Input{Action: ActionOrdersCreate},
		text("7"),
		Input{Action: ActionSkip},
	)
	require.Equal(t, StepItems, s.Step)
	assert.Equal(t, itemsFormat, eff.Reply.Text)

	_, eff = Transition(s, text("Tea|2|1500\n\n  Cup | 1 | 99,50 \n"))
	require.Equal(t, EffectCreateOrder, eff.Kind)
	assert.Equal(t, int64(7), eff.Order.CustomerID)
	assert.Empty(t, eff.Order.Number)
	require.Len(t, eff.Order.Items, 2)
	assert.Equal(t, "Cup", eff.Order.Items[1].ProductName)
	assert.Equal(t, 1, eff.Order.Items[1].Quantity)
	assert.Equal(t, "99.5", eff.Order.Items[1].Price.String())
}

func TestOrderItemsBatchRejection(t *testing.T) {
	s, _ := run(t, State{}, Input{Action: ActionOrdersCreate}, text("7"), text("A-1"))
	require.Equal(t, StepItems, s.Step)
	assert.Equal(t, "A-1", s.Fields[fieldNumber])

	for _, bad := range []string{
		"Tea|2|1500\nCup|x|10",
		"Tea|2|1500\nCup|1",
		"Tea|0|1500",
		"Tea|1|-5",
		"|1|5",
		"\n  \n",
	} {
		next, eff := Transition(s, text(bad))
		assert.Equal(t, s, next, "input %q", bad)
		assert.Equal(t, EffectReply, eff.Kind, "input %q", bad)
	}

	_, eff := Transition(s, text("Tea|2|1500\nCup|x|10"))
	assert.Contains(t, eff.Reply.Text, "Line 2")
}

func TestOrderItemsCannotBeSkipped(t *testing.T) {
	s, _ := run(t, State{}, Input{Action: ActionOrdersCreate}, text("7"), Input{Action: ActionSkip})
	next, _ := Transition(s, Input{Action: ActionSkip})
	assert.Equal(t, s, next)
}

func TestPaymentAmountReprompts(t *testing.T) {
	s, _ := run(t, State{}, Input{Action: ActionPaymentCreate}, text("15"))
	require.Equal(t, StepAmount, s.Step)

	for _, bad := range []string{"abc", "0", "-10", ""} {
		next, eff := Transition(s, text(bad))
		assert.Equal(t, s, next, "amount %q", bad)
		assert.Contains(t, eff.Reply.Text, "positive", "amount %q", bad)
	}

	s, _ = Transition(s, text("250,75"))
	require.Equal(t, StepType, s.Step)

	_, eff := Transition(s, Input{Action: ActionSkip})
	require.Equal(t, EffectCreatePayment, eff.Kind)
	assert.Equal(t, int64(15), eff.OrderID)
	assert.Equal(t, "250.75", eff.Payment.Amount.String())
	assert.Equal(t, "cash", eff.Payment.Type)
}

func TestPaymentType(t *testing.T) {
	_, eff := run(t, State{}, Input{Action: ActionPaymentCreate}, text("15"), text("10"), text("Card"))
	require.Equal(t, EffectCreatePayment, eff.Kind)
	assert.Equal(t, "card", eff.Payment.Type)
}

func TestCancelAndMenusClearSession(t *testing.T) {
	mid, _ := run(t, State{}, Input{Action: ActionCustomersList}, Input{Action: ActionOrdersCreate}, text("3"))
	require.Equal(t, FormOrderCreate, mid.Form)
	require.NotNil(t, mid.Browse)

	for _, action := range []Action{ActionCancel, ActionMainMenu, ActionStart, ActionCustomersSection, ActionOrdersSection} {
		s, eff := Transition(mid, Input{Action: action})
		assert.True(t, s.IsZero(), "action %s", action)
		assert.Equal(t, EffectReply, eff.Kind)
	}
}

func TestStartingFormDiscardsFields(t *testing.T) {
	mid, _ := run(t, State{}, Input{Action: ActionCustomersCreate}, text("Anna"))
	require.NotEmpty(t, mid.Fields)

	s, _ := Transition(mid, Input{Action: ActionPaymentCreate})
	assert.Equal(t, FormPaymentCreate, s.Form)
	assert.Equal(t, StepOrderID, s.Step)
	assert.Empty(t, s.Fields)
}

func TestTransitionDoesNotMutateInput(t *testing.T) {
	s, _ := run(t, State{}, Input{Action: ActionCustomersCreate}, text("Anna"))
	before := map[string]string{}
	for k, v := range s.Fields {
		before[k] = v
	}
	_, _ = Transition(s, text("Petrova"))
	assert.Equal(t, before, s.Fields)
}

func TestIdleInputs(t *testing.T) {
	s, eff := Transition(State{}, text("hello"))
	assert.True(t, s.IsZero())
	assert.True(t, eff.Reply.MainMenu)

	_, eff = Transition(State{}, Input{Action: ActionSkip})
	assert.Equal(t, EffectReply, eff.Kind)

	_, eff = Transition(State{}, Input{Action: ActionPageInfo})
	assert.Equal(t, EffectNone, eff.Kind)

	_, eff = Transition(State{}, Input{Action: ActionUnknown, Text: "/nope"})
	assert.Contains(t, eff.Reply.Text, "Unknown command")
}

func TestHelpKeepsForm(t *testing.T) {
	mid, _ := run(t, State{}, Input{Action: ActionPaymentCreate})
	s, eff := Transition(mid, Input{Action: ActionHelp})
	assert.Equal(t, mid, s)
	assert.Contains(t, eff.Reply.Text, "Customers")
}

package bot

import (
	"fmt"
	"strconv"
	"strings"

	"crmbot/internal/facade"
)

// Button is an action the user can tap. Data is parsed back with ParseAction.
type Button struct {
	Label string
	Data  string
}

// Keyboard is a grid of buttons attached to a reply.
type Keyboard struct {
	Rows [][]Button
}

// Reply is a transport-neutral outgoing message. MainMenu asks the transport to show the
// persistent section menu.
type Reply struct {
	Text     string
	Keyboard *Keyboard
	MainMenu bool
}

const notSet = "not set"

var (
	cancelButton = Button{Label: "Cancel", Data: string(ActionCancel)}
	skipButton   = Button{Label: "Skip", Data: string(ActionSkip)}
	backButton   = Button{Label: "Back to menu", Data: string(ActionMainMenu)}
)

func welcomeReply() Reply {
	return Reply{Text: "Welcome to the CRM bot.\n\nChoose a section:", MainMenu: true}
}

func mainMenuReply() Reply {
	return Reply{Text: "Main menu\n\nChoose a section:", MainMenu: true}
}

func cancelledReply() Reply {
	return Reply{Text: "Action cancelled.", MainMenu: true}
}

func helpReply() Reply {
	return Reply{Text: "Available sections:\n\n" +
		"Customers:\n" +
		"- list customers\n" +
		"- search customers by name or email\n" +
		"- create a customer\n\n" +
		"Orders:\n" +
		"- list a customer's orders\n" +
		"- create an order\n" +
		"- add a payment to an order\n\n" +
		"Send /cancel at any time to abandon the current form."}
}

func customersMenu(text string) Reply {
	return Reply{Text: text, Keyboard: &Keyboard{Rows: [][]Button{
		{{Label: "List customers", Data: string(ActionCustomersList)}},
		{{Label: "Find customers", Data: string(ActionCustomersFilter)}},
		{{Label: "Create customer", Data: string(ActionCustomersCreate)}},
		{{Label: "Back", Data: string(ActionMainMenu)}},
	}}}
}

func ordersMenu(text string) Reply {
	return Reply{Text: text, Keyboard: &Keyboard{Rows: [][]Button{
		{{Label: "Customer orders", Data: string(ActionOrdersByCustomer)}},
		{{Label: "Create order", Data: string(ActionOrdersCreate)}},
		{{Label: "Add payment", Data: string(ActionPaymentCreate)}},
		{{Label: "Back", Data: string(ActionMainMenu)}},
	}}}
}

func idleReply() Reply {
	return Reply{Text: "Choose an action from the menu.", MainMenu: true}
}

func unknownReply() Reply {
	return Reply{Text: "Unknown command. Send /help to see what the bot can do."}
}

func expiredListReply() Reply {
	return Reply{Text: "This list is no longer available. Open it again from the menu.", MainMenu: true}
}

const itemsFormat = "Enter the items, one per line, as:\n" +
	"name|quantity|price\n\n" +
	"Example:\n" +
	"Item 1|2|1500\n" +
	"Item 2|1|3000"

var promptTexts = map[Form]map[Step]string{
	FormCustomerCreate: {
		StepFirstName: "New customer\n\nEnter the first name:",
		StepLastName:  "Enter the last name:",
		StepEmail:     "Enter the email:",
		StepPhone:     "Enter the phone number:",
	},
	FormCustomerFilter: {
		StepFirstName: "Enter a first name to search for:",
		StepLastName:  "Enter a last name to search for:",
		StepEmail:     "Enter an email to search for:",
	},
	FormOrderCreate: {
		StepCustomerID: "New order\n\nEnter the customer ID:",
		StepNumber:     "Enter the order number:",
		StepItems:      itemsFormat,
	},
	FormOrderBrowse: {
		StepCustomerID: "Enter the customer ID to view orders:",
	},
	FormPaymentCreate: {
		StepOrderID: "New payment\n\nEnter the order ID:",
		StepAmount:  "Enter the payment amount:",
		StepType:    "Enter the payment type (cash, card, online):",
	},
}

func formKeyboard(form Form, step Step) *Keyboard {
	kb := &Keyboard{}
	if canSkip(form, step) {
		kb.Rows = append(kb.Rows, []Button{skipButton})
	}
	kb.Rows = append(kb.Rows, []Button{cancelButton})
	return kb
}

func promptReply(form Form, step Step) Reply {
	return Reply{Text: promptTexts[form][step], Keyboard: formKeyboard(form, step)}
}

// repromptReply explains problem and repeats the current step's keyboard.
func repromptReply(form Form, step Step, problem string) Reply {
	return Reply{Text: problem + "\n\nTry again:", Keyboard: formKeyboard(form, step)}
}

// totalPages is the reported page count when known, otherwise page+1 while pages come back full.
func totalPages(page, items, reported int) int {
	if reported > 0 {
		if reported < page {
			return page
		}
		return reported
	}
	if items >= PageSize {
		return page + 1
	}
	return page
}

func pagerKeyboard(kind ListKind, page, total int) *Keyboard {
	var nav []Button
	if page > 1 {
		nav = append(nav, Button{Label: "« Prev", Data: pageData(kind, page-1)})
	}
	nav = append(nav, Button{Label: fmt.Sprintf("%d/%d", page, total), Data: string(ActionPageInfo)})
	if page < total {
		nav = append(nav, Button{Label: "Next »", Data: pageData(kind, page+1)})
	}
	return &Keyboard{Rows: [][]Button{nav, {backButton}}}
}

func orNotSet(v string) string {
	if strings.TrimSpace(v) == "" {
		return notSet
	}
	return v
}

func customersReply(b Browse, customers []facade.CustomerView, reported int) Reply {
	total := totalPages(b.Page, len(customers), reported)
	if len(customers) == 0 {
		return Reply{Text: "No customers found.", Keyboard: pagerKeyboard(ListCustomers, b.Page, total)}
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Customers (page %d):\n", b.Page)
	if f := describeFilters(b.Filters); f != "" {
		fmt.Fprintf(&sb, "Filters: %s\n", f)
	}
	for _, c := range customers {
		fmt.Fprintf(&sb, "\nID: %d\nFirst name: %s\nLast name: %s\nEmail: %s\nPhone: %s\nCreated: %s\n",
			c.ID, orNotSet(c.FirstName), orNotSet(c.LastName), orNotSet(c.Email), orNotSet(c.Phone), orNotSet(c.CreatedAt))
	}
	return Reply{Text: sb.String(), Keyboard: pagerKeyboard(ListCustomers, b.Page, total)}
}

func describeFilters(f CustomerFilters) string {
	var parts []string
	if f.FirstName != "" {
		parts = append(parts, "first name "+f.FirstName)
	}
	if f.LastName != "" {
		parts = append(parts, "last name "+f.LastName)
	}
	if f.Email != "" {
		parts = append(parts, "email "+f.Email)
	}
	return strings.Join(parts, ", ")
}

func ordersReply(b Browse, orders []facade.OrderView, reported int) Reply {
	total := totalPages(b.Page, len(orders), reported)
	if len(orders) == 0 {
		return Reply{Text: "No orders found.", Keyboard: pagerKeyboard(ListOrders, b.Page, total)}
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Orders of customer %d (page %d):\n", b.CustomerID, b.Page)
	for _, o := range orders {
		fmt.Fprintf(&sb, "\nID: %d\nNumber: %s\nStatus: %s\nTotal: %s\nCreated: %s\n",
			o.ID, orNotSet(o.Number), orNotSet(o.Status), o.TotalSum.String(), orNotSet(o.CreatedAt))
	}
	return Reply{Text: sb.String(), Keyboard: pagerKeyboard(ListOrders, b.Page, total)}
}

func createdReply(what string, id int64, menu func(string) Reply) Reply {
	return menu(what + " created\nID: " + strconv.FormatInt(id, 10))
}

func failedReply(what, detail string, menu func(string) Reply) Reply {
	return menu("Could not " + what + ":\n" + detail)
}

func internalErrorReply() Reply {
	return Reply{Text: "Something went wrong. Send /cancel and try again.", MainMenu: true}
}

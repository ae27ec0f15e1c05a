package bot

import (
	"strconv"
	"strings"
)

// Main menu labels. The Russian labels of the first release are still recognised.
const (
	LabelCustomers = "Customers"
	LabelOrders    = "Orders"
	LabelHelp      = "Help"
)

var menuLabels = map[string]Action{
	"customers": ActionCustomersSection,
	"orders":    ActionOrdersSection,
	"help":      ActionHelp,
	"клиенты":   ActionCustomersSection,
	"заказы":    ActionOrdersSection,
	"помощь":    ActionHelp,
}

var commands = map[string]Action{
	"start":     ActionStart,
	"cancel":    ActionCancel,
	"menu":      ActionMainMenu,
	"skip":      ActionSkip,
	"help":      ActionHelp,
	"customers": ActionCustomersSection,
	"orders":    ActionOrdersSection,
}

var callbackActions = map[string]Action{
	string(ActionCustomersList):    ActionCustomersList,
	string(ActionCustomersFilter):  ActionCustomersFilter,
	string(ActionCustomersCreate):  ActionCustomersCreate,
	string(ActionOrdersByCustomer): ActionOrdersByCustomer,
	string(ActionOrdersCreate):     ActionOrdersCreate,
	string(ActionPaymentCreate):    ActionPaymentCreate,
	string(ActionMainMenu):         ActionMainMenu,
	string(ActionCancel):           ActionCancel,
	string(ActionSkip):             ActionSkip,
	string(ActionPageInfo):         ActionPageInfo,
}

// ParseText classifies a typed message: slash command, menu label, or free text.
func ParseText(text string) Input {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "/") {
		word := strings.Fields(trimmed)[0][1:]
		if at := strings.IndexByte(word, '@'); at >= 0 {
			word = word[:at]
		}
		word = strings.ToLower(word)
		if action, ok := commands[word]; ok {
			return Input{Action: action}
		}
		if in := ParseAction(word); in.Action != ActionUnknown {
			return in
		}
		return Input{Action: ActionUnknown, Text: trimmed}
	}
	if action, ok := menuLabels[strings.ToLower(trimmed)]; ok {
		return Input{Action: action}
	}
	return Input{Action: ActionText, Text: text}
}

// ParseAction classifies button callback data.
func ParseAction(data string) Input {
	data = strings.TrimSpace(data)
	if action, ok := callbackActions[data]; ok {
		return Input{Action: action}
	}
	for prefix, action := range map[string]Action{
		string(ListCustomers) + "_page_": ActionCustomersPage,
		string(ListOrders) + "_page_":    ActionOrdersPage,
	} {
		if rest, found := strings.CutPrefix(data, prefix); found {
			page, err := strconv.Atoi(rest)
			if err != nil || page < 1 {
				break
			}
			return Input{Action: action, Page: page}
		}
	}
	return Input{Action: ActionUnknown, Text: data}
}

// pageData is the callback data for page of kind.
func pageData(kind ListKind, page int) string {
	return string(kind) + "_page_" + strconv.Itoa(page)
}

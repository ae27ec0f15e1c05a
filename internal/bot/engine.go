package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"crmbot/internal/apiclient"
	"crmbot/internal/facade"
	"crmbot/internal/journal"
	"crmbot/internal/metrics"
	"crmbot/internal/session"
)

// FacadeAPI is the part of the facade the bot drives.
type FacadeAPI interface {
	ListCustomers(ctx context.Context, q facade.CustomerQuery) (*apiclient.Page[facade.CustomerView], error)
	CreateCustomer(ctx context.Context, req facade.CreateCustomerRequest) (*facade.CreateResult, error)
	ListCustomerOrders(ctx context.Context, customerID int64, page, limit int) (*apiclient.Page[facade.OrderView], error)
	CreateOrder(ctx context.Context, req facade.CreateOrderRequest) (*facade.CreateResult, error)
	CreatePayment(ctx context.Context, orderID int64, req facade.CreatePaymentRequest) (*facade.CreateResult, error)
}

// Engine runs transitions for many chats. Inputs of one chat are handled one at a time.
type Engine struct {
	api       FacadeAPI
	sessions  session.Store[State]
	locks     *session.Locker
	journal   journal.Journal
	logger    *slog.Logger
	metrics   *metrics.Metrics
	transport string
}

// Config wires an Engine. Journal and Metrics are optional.
type Config struct {
	API       FacadeAPI
	Sessions  session.Store[State]
	Journal   journal.Journal
	Metrics   *metrics.Metrics
	Transport string
}

// NewEngine builds an Engine.
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	j := cfg.Journal
	if j == nil {
		j = journal.Nop{}
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = session.NewMemory[State]()
	}
	return &Engine{
		api:       cfg.API,
		sessions:  sessions,
		locks:     session.NewLocker(),
		journal:   j,
		logger:    logger.With("component", "bot", "transport", cfg.Transport),
		metrics:   cfg.Metrics,
		transport: cfg.Transport,
	}
}

// Handle processes one input and returns the replies to send. It never panics.
func (e *Engine) Handle(ctx context.Context, chatID int64, in Input) (replies []Reply) {
	unlock := e.locks.Lock(chatID)
	defer unlock()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic handling input", "chat_id", chatID, "action", in.Action, "panic", r)
			e.metrics.IncError("bot_panic")
			replies = []Reply{internalErrorReply()}
		}
		e.recordReplies(ctx, chatID, replies)
	}()

	if e.metrics != nil {
		e.metrics.BotInputs.WithLabelValues(e.transport, string(in.Action)).Inc()
	}
	e.record(ctx, journal.Message{ChatID: chatID, Direction: journal.Inbound, Kind: string(in.Action), Text: in.Text})

	state, _, err := e.sessions.Get(ctx, chatID)
	if err != nil {
		e.logger.Warn("session unreadable, starting fresh", "chat_id", chatID, "error", err)
		e.metrics.IncError("bot_session")
		state = State{}
	}

	next, effect := Transition(state, in)

	if next.IsZero() {
		err = e.sessions.Clear(ctx, chatID)
	} else {
		err = e.sessions.Set(ctx, chatID, next)
	}
	if err != nil {
		e.logger.Error("failed saving session", "chat_id", chatID, "error", err)
		e.metrics.IncError("bot_session")
	}

	return e.execute(ctx, chatID, effect)
}

func (e *Engine) execute(ctx context.Context, chatID int64, effect Effect) []Reply {
	switch effect.Kind {
	case EffectNone:
		return nil
	case EffectReply:
		return []Reply{effect.Reply}
	case EffectListCustomers:
		page, err := e.api.ListCustomers(ctx, effect.Browse.Query())
		if err != nil {
			return []Reply{e.failure(chatID, "load customers", err, customersMenu)}
		}
		return []Reply{customersReply(effect.Browse, page.Items, page.TotalPages)}
	case EffectListOrders:
		b := effect.Browse
		page, err := e.api.ListCustomerOrders(ctx, b.CustomerID, b.Page, PageSize)
		if err != nil {
			return []Reply{e.failure(chatID, "load orders", err, ordersMenu)}
		}
		return []Reply{ordersReply(b, page.Items, page.TotalPages)}
	case EffectCreateCustomer:
		res, err := e.api.CreateCustomer(ctx, effect.Customer)
		return []Reply{e.submitted(ctx, chatID, FormCustomerCreate, effect.Customer, res, err, "Customer", "create the customer", customersMenu)}
	case EffectCreateOrder:
		res, err := e.api.CreateOrder(ctx, effect.Order)
		return []Reply{e.submitted(ctx, chatID, FormOrderCreate, effect.Order, res, err, "Order", "create the order", ordersMenu)}
	case EffectCreatePayment:
		res, err := e.api.CreatePayment(ctx, effect.OrderID, effect.Payment)
		payload := struct {
			OrderID int64 `json:"order_id"`
			facade.CreatePaymentRequest
		}{effect.OrderID, effect.Payment}
		return []Reply{e.submitted(ctx, chatID, FormPaymentCreate, payload, res, err, "Payment", "add the payment", ordersMenu)}
	default:
		e.logger.Error("unknown effect", "chat_id", chatID, "kind", effect.Kind)
		return []Reply{internalErrorReply()}
	}
}

func (e *Engine) submitted(ctx context.Context, chatID int64, form Form, payload any, res *facade.CreateResult, err error, what, verb string, menu func(string) Reply) Reply {
	sub := journal.Submission{ChatID: chatID, Form: string(form)}
	if encoded, mErr := json.Marshal(payload); mErr == nil {
		sub.Payload = encoded
	}

	var reply Reply
	switch {
	case err == nil && res != nil && res.Success:
		sub.Outcome = journal.OutcomeSuccess
		sub.CRMID = res.ID
		reply = createdReply(what, res.ID, menu)
		e.logger.Info("form submitted", "chat_id", chatID, "form", form, "crm_id", res.ID)
	case err == nil:
		sub.Outcome = journal.OutcomeRejected
		sub.Error = "unsuccessful response"
		reply = failedReply(verb, "Unknown error", menu)
	default:
		var apiErr *apiclient.Error
		if errors.As(err, &apiErr) && apiErr.Status < 500 {
			sub.Outcome = journal.OutcomeRejected
		} else {
			sub.Outcome = journal.OutcomeFailed
		}
		sub.Error = err.Error()
		reply = e.failure(chatID, verb, err, menu)
	}

	if e.metrics != nil {
		e.metrics.FormSubmissions.WithLabelValues(string(form), sub.Outcome).Inc()
	}
	if jErr := e.journal.RecordSubmission(ctx, sub); jErr != nil {
		e.logger.Warn("failed journaling submission", "chat_id", chatID, "error", jErr)
		e.metrics.IncError("journal")
	}
	return reply
}

// failure renders err for the user. Facade details are shown verbatim; transport errors are not.
func (e *Engine) failure(chatID int64, verb string, err error, menu func(string) Reply) Reply {
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) {
		e.logger.Warn("facade rejected request", "chat_id", chatID, "action", verb, "status", apiErr.Status, "detail", apiErr.Detail)
		return failedReply(verb, apiErr.Detail, menu)
	}
	e.logger.Error("facade call failed", "chat_id", chatID, "action", verb, "error", err)
	e.metrics.IncError("bot_facade")
	return failedReply(verb, "The service is unavailable. Try again later.", menu)
}

func (e *Engine) record(ctx context.Context, msg journal.Message) {
	if err := e.journal.RecordMessage(ctx, msg); err != nil {
		e.logger.Warn("failed journaling message", "chat_id", msg.ChatID, "error", err)
		e.metrics.IncError("journal")
	}
}

func (e *Engine) recordReplies(ctx context.Context, chatID int64, replies []Reply) {
	if e.metrics != nil && len(replies) > 0 {
		e.metrics.BotReplies.WithLabelValues(e.transport).Add(float64(len(replies)))
	}
	for _, r := range replies {
		e.record(ctx, journal.Message{ChatID: chatID, Direction: journal.Outbound, Kind: "reply", Text: r.Text})
	}
}

// String renders an effect kind for logs.
func (k EffectKind) String() string {
	switch k {
	case EffectNone:
		return "none"
	case EffectReply:
		return "reply"
	case EffectListCustomers:
		return "list_customers"
	case EffectListOrders:
		return "list_orders"
	case EffectCreateCustomer:
		return "create_customer"
	case EffectCreateOrder:
		return "create_order"
	case EffectCreatePayment:
		return "create_payment"
	default:
		return fmt.Sprintf("effect(%d)", int(k))
	}
}

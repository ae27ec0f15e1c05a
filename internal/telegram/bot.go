// Package telegram delivers bot replies over the Telegram Bot API using long polling.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"crmbot/internal/bot"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const pollTimeoutSeconds = 60

// Handler turns one input into replies.
type Handler interface {
	Handle(ctx context.Context, chatID int64, in bot.Input) []bot.Reply
}

type api interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Client polls Telegram and dispatches updates to a Handler.
type Client struct {
	api     api
	handler Handler
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// New authenticates with token.
func New(token string, handler Handler, logger *slog.Logger) (*Client, error) {
	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		// url.Error carries the request URL, token included.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	c := newClient(botAPI, handler, logger)
	c.logger.Info("telegram bot authorised", "username", botAPI.Self.UserName)
	return c, nil
}

func newClient(a api, handler Handler, logger *slog.Logger) *Client {
	return &Client{
		api:     a,
		handler: handler,
		logger:  logger.With("component", "telegram"),
	}
}

// Run polls until ctx is cancelled, then waits for in-flight updates.
func (c *Client) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeoutSeconds
	updates := c.api.GetUpdatesChan(cfg)

	c.logger.Info("telegram polling started")
	defer func() {
		c.api.StopReceivingUpdates()
		c.wg.Wait()
		c.logger.Info("telegram polling stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return fmt.Errorf("telegram updates channel closed")
			}
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				c.dispatch(ctx, update)
			}()
		}
	}
}

func (c *Client) dispatch(ctx context.Context, update tgbotapi.Update) {
	chatID, in, ok := toInput(update)
	if !ok {
		return
	}
	if cb := update.CallbackQuery; cb != nil {
		if _, err := c.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
			c.logger.Warn("failed answering callback", "chat_id", chatID, "error", err)
		}
	}

	for _, reply := range c.handler.Handle(ctx, chatID, in) {
		if _, err := c.api.Send(buildMessage(chatID, reply)); err != nil {
			c.logger.Error("failed sending reply", "chat_id", chatID, "error", err)
		}
	}
}

// toInput extracts the chat and input from an update. ok is false for updates the bot ignores.
func toInput(update tgbotapi.Update) (chatID int64, in bot.Input, ok bool) {
	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.Message == nil || cb.Message.Chat == nil {
			return 0, bot.Input{}, false
		}
		return cb.Message.Chat.ID, bot.ParseAction(cb.Data), true
	case update.Message != nil:
		msg := update.Message
		if msg.Chat == nil || msg.Text == "" {
			return 0, bot.Input{}, false
		}
		return msg.Chat.ID, bot.ParseText(msg.Text), true
	default:
		return 0, bot.Input{}, false
	}
}

var mainMenu = func() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(bot.LabelCustomers),
			tgbotapi.NewKeyboardButton(bot.LabelOrders),
		),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(bot.LabelHelp)),
	)
	kb.ResizeKeyboard = true
	return kb
}()

func buildMessage(chatID int64, reply bot.Reply) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	switch {
	case reply.Keyboard != nil && len(reply.Keyboard.Rows) > 0:
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(reply.Keyboard.Rows))
		for _, row := range reply.Keyboard.Rows {
			buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
			for _, b := range row {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
			}
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	case reply.MainMenu:
		msg.ReplyMarkup = mainMenu
	}
	return msg
}

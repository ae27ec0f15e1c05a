package wa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"crmbot/internal/bot"

	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
	_ "modernc.org/sqlite"
)

// Config holds configuration to initialise the WhatsApp client.
type Config struct {
	StorePath string
	LogLevel  string
}

// Handler turns one input into replies.
type Handler interface {
	Handle(ctx context.Context, chatID int64, in bot.Input) []bot.Reply
}

// Client wraps the WhatsMeow client and feeds direct text messages to a Handler.
type Client struct {
	client  *whatsmeow.Client
	logger  *slog.Logger
	handler Handler

	mu  sync.RWMutex
	ctx context.Context
	wg  sync.WaitGroup
}

// New creates a new WhatsApp client instance backed by an SQLite store.
func New(ctx context.Context, cfg Config, handler Handler, logger *slog.Logger) (*Client, error) {
	if cfg.StorePath == "" {
		return nil, errors.New("store path is required")
	}

	if err := ensureDir(filepath.Dir(cfg.StorePath)); err != nil {
		return nil, fmt.Errorf("ensure store dir: %w", err)
	}

	storeLogger := waLog.Stdout("whatsmeow/sqlstore", cfg.LogLevel, true)
	container, err := sqlstore.New(ctx, "sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout=10000&_pragma=foreign_keys(ON)", cfg.StorePath), storeLogger)
	if err != nil {
		return nil, fmt.Errorf("create sqlstore: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}

	waLogger := waLog.Stdout("whatsmeow/client", cfg.LogLevel, true)
	client := whatsmeow.NewClient(deviceStore, waLogger)

	wc := &Client{
		client:  client,
		logger:  logger.With("component", "wa"),
		handler: handler,
		ctx:     context.Background(),
	}
	client.AddEventHandler(wc.handleEvent)

	return wc, nil
}

// Run connects, handles the QR pairing flow when needed and blocks until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	if c.client.Store.ID == nil {
		c.logger.Info("pairing required, waiting for QR scan")
		qrChan, err := c.client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("get qr channel: %w", err)
		}

		go func() {
			for evt := range qrChan {
				if evt.Event == "code" {
					c.logger.Info("scan the QR code with WhatsApp", "qr", evt.Code)
				} else {
					c.logger.Info("pairing event received", "event", evt.Event)
				}
			}
		}()
	}

	if err := c.client.Connect(); err != nil {
		return fmt.Errorf("connect wa client: %w", err)
	}
	c.logger.Info("whatsapp client connected")

	<-ctx.Done()
	c.client.Disconnect()
	c.wg.Wait()
	c.logger.Info("whatsapp client stopped")
	return nil
}

func (c *Client) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		c.handleMessage(v)
	case *events.Connected:
		c.logger.Info("device connected")
	case *events.Disconnected:
		c.logger.Warn("device disconnected")
	}
}

func (c *Client) handleMessage(evt *events.Message) {
	if evt.Info.IsFromMe || evt.Info.IsGroup {
		return
	}
	chatID, ok := chatIDFromJID(evt.Info.Chat)
	if !ok {
		c.logger.Warn("ignoring message from unsupported chat", "chat", evt.Info.Chat.String())
		return
	}

	text := messageText(evt.Message)
	c.mu.RLock()
	ctx := c.ctx
	c.mu.RUnlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if text == "" {
			c.send(ctx, evt.Info.Chat, "Only text messages are supported.")
			return
		}
		for _, reply := range c.handler.Handle(ctx, chatID, bot.ParseText(text)) {
			c.send(ctx, evt.Info.Chat, Render(reply))
		}
	}()
}

func (c *Client) send(ctx context.Context, to types.JID, text string) {
	if err := c.SendText(ctx, to, text); err != nil {
		c.logger.Error("failed sending reply", "to", to.String(), "error", err)
	}
}

// SendText sends a text message to the specified JID.
func (c *Client) SendText(ctx context.Context, to types.JID, text string) error {
	message := &waProto.Message{
		Conversation: proto.String(text),
	}
	if _, err := c.client.SendMessage(ctx, to, message); err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	return nil
}

func messageText(msg *waProto.Message) string {
	if msg == nil {
		return ""
	}
	if text := msg.GetConversation(); text != "" {
		return text
	}
	return msg.GetExtendedTextMessage().GetText()
}

// chatIDFromJID maps a direct-chat JID to the numeric session key.
func chatIDFromJID(jid types.JID) (int64, bool) {
	id, err := strconv.ParseInt(jid.User, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Render flattens a reply into plain text. Buttons become commands the user can type.
func Render(reply bot.Reply) string {
	var sb strings.Builder
	sb.WriteString(reply.Text)

	var lines []string
	if reply.Keyboard != nil {
		for _, row := range reply.Keyboard.Rows {
			for _, b := range row {
				if b.Data == string(bot.ActionPageInfo) {
					lines = append(lines, b.Label)
					continue
				}
				lines = append(lines, "/"+b.Data+" — "+b.Label)
			}
		}
	} else if reply.MainMenu {
		lines = []string{
			"/customers — " + bot.LabelCustomers,
			"/orders — " + bot.LabelOrders,
			"/help — " + bot.LabelHelp,
		}
	}
	if len(lines) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(strings.Join(lines, "\n"))
	}
	return sb.String()
}

func ensureDir(dir string) error {
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}

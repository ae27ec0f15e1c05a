// Package journal keeps an optional audit trail of bot traffic and form submissions.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"
)

// Direction of a chat message.
type Direction string

const (
	Inbound  Direction = "in"
	Outbound Direction = "out"
)

// Submission outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Message is one chat message seen by the bot.
type Message struct {
	ChatID    int64
	Direction Direction
	Kind      string
	Text      string
}

// Submission is one completed form sent to the facade.
type Submission struct {
	ChatID  int64
	Form    string
	Outcome string
	CRMID   int64
	Error   string
	Payload json.RawMessage
}

// SubmissionRecord is a stored Submission.
type SubmissionRecord struct {
	ID string
	Submission
	CreatedAt time.Time
}

// Journal defines the audit store.
type Journal interface {
	Close()
	Ping(ctx context.Context) error
	RunMigrations(ctx context.Context, filesystem fs.FS) error

	RecordMessage(ctx context.Context, msg Message) error
	RecordSubmission(ctx context.Context, sub Submission) error
	RecentSubmissions(ctx context.Context, chatID int64, limit int) ([]SubmissionRecord, error)
}

// Open picks a backend from dsn: Postgres for postgres:// URLs, SQLite for anything else.
// An empty dsn returns a journal that records nothing.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (Journal, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "":
		return Nop{}, nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgres(ctx, dsn, logger)
	default:
		return NewSQLite(ctx, dsn, logger)
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) Close()                                       {}
func (Nop) Ping(context.Context) error                   { return nil }
func (Nop) RunMigrations(context.Context, fs.FS) error   { return nil }
func (Nop) RecordMessage(context.Context, Message) error { return nil }
func (Nop) RecordSubmission(context.Context, Submission) error {
	return nil
}
func (Nop) RecentSubmissions(context.Context, int64, int) ([]SubmissionRecord, error) {
	return nil, nil
}

func validateMessage(msg Message) error {
	if msg.Direction != Inbound && msg.Direction != Outbound {
		return fmt.Errorf("invalid message direction %q", msg.Direction)
	}
	return nil
}

func payloadText(p json.RawMessage) *string {
	if len(p) == 0 {
		return nil
	}
	s := string(p)
	return &s
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}

package journal

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLite is the journal backed by a local SQLite file.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLite opens databasePath with WAL and a busy timeout.
func NewSQLite(ctx context.Context, databasePath string, logger *slog.Logger) (*SQLite, error) {
	path := strings.TrimSpace(databasePath)
	if path == "" {
		return nil, fmt.Errorf("sqlite database path is empty")
	}
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn = fmt.Sprintf("%s%s_pragma=busy_timeout=10000&_pragma=journal_mode=WAL", dsn, sep)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLite{
		db:     db,
		logger: logger.With("component", "journal_sqlite"),
	}, nil
}

// Close releases the database connection.
func (s *SQLite) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// Ping ensures the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunMigrations applies the sqlite/ migrations.
func (s *SQLite) RunMigrations(ctx context.Context, filesystem fs.FS) error {
	return applyMigrations(ctx, filesystem, "sqlite", func(ctx context.Context, query string) error {
		_, err := s.db.ExecContext(ctx, query)
		return err
	})
}

// RecordMessage stores a chat message.
func (s *SQLite) RecordMessage(ctx context.Context, msg Message) error {
	if err := validateMessage(msg); err != nil {
		return err
	}
	const q = `
INSERT INTO chat_messages (id, chat_id, direction, kind, content, created_at)
VALUES (?, ?, ?, ?, ?, ?);`
	_, err := s.db.ExecContext(ctx, q, uuid.NewString(), msg.ChatID, string(msg.Direction), msg.Kind, msg.Text, now())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// RecordSubmission stores a form submission.
func (s *SQLite) RecordSubmission(ctx context.Context, sub Submission) error {
	const q = `
INSERT INTO form_submissions (id, chat_id, form, outcome, crm_id, error, payload, created_at)
VALUES (?, ?, ?, ?, NULLIF(?, 0), NULLIF(?, ''), ?, ?);`
	_, err := s.db.ExecContext(ctx, q, uuid.NewString(), sub.ChatID, sub.Form, sub.Outcome, sub.CRMID, sub.Error, payloadText(sub.Payload), now())
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// RecentSubmissions returns the latest submissions of chatID, newest first.
func (s *SQLite) RecentSubmissions(ctx context.Context, chatID int64, limit int) ([]SubmissionRecord, error) {
	const q = `
SELECT id, chat_id, form, outcome, COALESCE(crm_id, 0), COALESCE(error, ''), COALESCE(payload, ''), created_at
FROM form_submissions
WHERE chat_id = ?
ORDER BY created_at DESC, rowid DESC
LIMIT ?;`
	rows, err := s.db.QueryContext(ctx, q, chatID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var res []SubmissionRecord
	for rows.Next() {
		var (
			rec       SubmissionRecord
			payload   string
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.ChatID, &rec.Form, &rec.Outcome, &rec.CRMID, &rec.Error, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		if payload != "" {
			rec.Payload = []byte(payload)
		}
		if ts, err := time.Parse(sqliteTimeLayout, createdAt); err == nil {
			rec.CreatedAt = ts
		}
		res = append(res, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list submissions rows: %w", err)
	}
	return res, nil
}

// sqliteTimeLayout is fixed width so timestamps sort as text.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

func now() string {
	return time.Now().UTC().Format(sqliteTimeLayout)
}

package journal

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the pgx-backed journal.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres opens a connection pool and verifies it.
func NewPostgres(ctx context.Context, databaseURL string, logger *slog.Logger) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	p := &Postgres{
		pool:   pool,
		logger: logger.With("component", "journal_postgres"),
	}
	if err := p.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// Ping ensures the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// RunMigrations applies the postgres/ migrations, each in its own transaction.
func (p *Postgres) RunMigrations(ctx context.Context, filesystem fs.FS) error {
	return applyMigrations(ctx, filesystem, "postgres", func(ctx context.Context, sql string) error {
		return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, sql)
			return err
		})
	})
}

// RecordMessage stores a chat message.
func (p *Postgres) RecordMessage(ctx context.Context, msg Message) error {
	if err := validateMessage(msg); err != nil {
		return err
	}
	const q = `
INSERT INTO chat_messages (id, chat_id, direction, kind, content)
VALUES ($1, $2, $3, $4, $5);`
	if _, err := p.pool.Exec(ctx, q, uuid.NewString(), msg.ChatID, string(msg.Direction), msg.Kind, msg.Text); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// RecordSubmission stores a form submission.
func (p *Postgres) RecordSubmission(ctx context.Context, sub Submission) error {
	const q = `
INSERT INTO form_submissions (id, chat_id, form, outcome, crm_id, error, payload)
VALUES ($1, $2, $3, $4, NULLIF($5, 0), NULLIF($6, ''), $7);`
	_, err := p.pool.Exec(ctx, q, uuid.NewString(), sub.ChatID, sub.Form, sub.Outcome, sub.CRMID, sub.Error, payloadText(sub.Payload))
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// RecentSubmissions returns the latest submissions of chatID, newest first.
func (p *Postgres) RecentSubmissions(ctx context.Context, chatID int64, limit int) ([]SubmissionRecord, error) {
	const q = `
SELECT id::text, chat_id, form, outcome, COALESCE(crm_id, 0), COALESCE(error, ''), COALESCE(payload::text, ''), created_at
FROM form_submissions
WHERE chat_id = $1
ORDER BY created_at DESC
LIMIT $2;`
	rows, err := p.pool.Query(ctx, q, chatID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var res []SubmissionRecord
	for rows.Next() {
		var (
			rec     SubmissionRecord
			payload string
		)
		if err := rows.Scan(&rec.ID, &rec.ChatID, &rec.Form, &rec.Outcome, &rec.CRMID, &rec.Error, &payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		if payload != "" {
			rec.Payload = []byte(payload)
		}
		res = append(res, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list submissions rows: %w", err)
	}
	return res, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/ecomarket/internal/domain/webhook"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InboxRepository is the durable webhook inbox. The event id primary key deduplicates deliveries.
type InboxRepository struct {
	pool *pgxpool.Pool
}

var _ webhook.Inbox = (*InboxRepository)(nil)

func NewInboxRepository(pool *pgxpool.Pool) *InboxRepository {
	return &InboxRepository{pool: pool}
}

const entryColumns = `event_id, type, session_id, order_id, payment_intent, paid, payload, status, outcome,
	attempts, last_error, next_attempt_at, received_at, processed_at`

func scanEntry(row pgx.Row) (*webhook.Entry, error) {
	var (
		e         webhook.Entry
		processed *time.Time
	)
	err := row.Scan(&e.EventID, &e.Type, &e.SessionID, &e.OrderID, &e.PaymentIntent, &e.Paid, &e.Payload, &e.Status,
		&e.Outcome, &e.Attempts, &e.LastError, &e.NextAttemptAt, &e.ReceivedAt, &processed)
	if err != nil {
		return nil, err
	}
	e.NextAttemptAt = e.NextAttemptAt.UTC()
	e.ReceivedAt = e.ReceivedAt.UTC()
	e.ProcessedAt = fromNull(processed)
	return &e, nil
}

func (r *InboxRepository) Add(ctx context.Context, e *webhook.Entry) (bool, error) {
	payload := e.Payload
	if payload == nil {
		payload = []byte{}
	}
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO webhook_events (event_id, type, session_id, order_id, payment_intent, paid, payload, status,
			outcome, attempts, last_error, next_attempt_at, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '', 0, '', $9, $10)
		ON CONFLICT (event_id) DO NOTHING`,
		e.EventID, e.Type, e.SessionID, e.OrderID, e.PaymentIntent, e.Paid, payload,
		string(webhook.StatusPending), e.NextAttemptAt, e.ReceivedAt,
	)
	if err != nil {
		return false, fmt.Errorf("postgres: add webhook event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *InboxRepository) Get(ctx context.Context, eventID string) (*webhook.Entry, error) {
	e, err := scanEntry(r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM webhook_events WHERE event_id = $1`, eventID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, webhook.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get webhook event: %w", err)
	}
	return e, nil
}

func (r *InboxRepository) MarkProcessed(ctx context.Context, eventID, outcome string, at time.Time) error {
	return r.exec(ctx, `
		UPDATE webhook_events SET status = $2, outcome = $3, attempts = attempts + 1, processed_at = $4
		WHERE event_id = $1`,
		eventID, string(webhook.StatusProcessed), outcome, at)
}

func (r *InboxRepository) MarkFailed(ctx context.Context, eventID, lastError string, next time.Time) error {
	return r.exec(ctx, `
		UPDATE webhook_events SET attempts = attempts + 1, last_error = $2, next_attempt_at = $3
		WHERE event_id = $1`,
		eventID, lastError, next)
}

func (r *InboxRepository) MarkDead(ctx context.Context, eventID, lastError string) error {
	return r.exec(ctx, `
		UPDATE webhook_events SET status = $2, attempts = attempts + 1, last_error = $3
		WHERE event_id = $1`,
		eventID, string(webhook.StatusDead), lastError)
}

func (r *InboxRepository) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("postgres: update webhook event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return webhook.ErrNotFound
	}
	return nil
}

// Pending does not claim rows: two retriers may see the same entry, and the order transitions are idempotent.
func (r *InboxRepository) Pending(ctx context.Context, now time.Time, limit int) ([]*webhook.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+` FROM webhook_events
		WHERE status = $1 AND next_attempt_at <= $2
		ORDER BY received_at
		LIMIT $3`,
		string(webhook.StatusPending), now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: pending webhook events: %w", err)
	}
	defer rows.Close()

	due := make([]*webhook.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan webhook event: %w", err)
		}
		due = append(due, e)
	}
	return due, rows.Err()
}

func (r *InboxRepository) Purge(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM webhook_events WHERE status = $1 AND processed_at < $2`,
		string(webhook.StatusProcessed), olderThan)
	if err != nil {
		return 0, fmt.Errorf("postgres: purge webhook events: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

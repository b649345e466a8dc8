package webhook

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("webhook: event not found")

type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusDead      Status = "dead"
)

// Entry is one provider event recorded in the inbox, keyed by the provider event id.
type Entry struct {
	EventID       string
	Type          string
	SessionID     string
	OrderID       string
	PaymentIntent string
	Paid          bool
	Payload       []byte
	Status        Status
	Outcome       string
	Attempts      int
	LastError     string
	NextAttemptAt time.Time
	ReceivedAt    time.Time
	ProcessedAt   time.Time
}

func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	c.Payload = append([]byte(nil), e.Payload...)
	return &c
}

// Inbox is the durable record of received provider events.
type Inbox interface {
	// Add records e as pending. It returns false, without error, when the event id is already present.
	Add(ctx context.Context, e *Entry) (bool, error)
	MarkProcessed(ctx context.Context, eventID, outcome string, at time.Time) error
	// MarkFailed counts an attempt and schedules the next one.
	MarkFailed(ctx context.Context, eventID, lastError string, next time.Time) error
	MarkDead(ctx context.Context, eventID, lastError string) error
	// Pending lists pending entries due at or before now, oldest first.
	Pending(ctx context.Context, now time.Time, limit int) ([]*Entry, error)
	// Purge deletes processed entries processed before olderThan.
	Purge(ctx context.Context, olderThan time.Time) (int, error)
}

// Backoff returns the delay before retry number attempts: base doubled per attempt, capped at one hour.
func Backoff(base time.Duration, attempts int) time.Duration {
	const ceiling = time.Hour
	if attempts < 1 {
		attempts = 1
	}
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= ceiling {
			return ceiling
		}
	}
	return d
}

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Zhima-Mochi/ecomarket/internal/domain/webhook"
)

type InboxRepository struct {
	mu      sync.Mutex
	entries map[string]*webhook.Entry
}

var _ webhook.Inbox = (*InboxRepository)(nil)

func NewInboxRepository() *InboxRepository {
	return &InboxRepository{entries: make(map[string]*webhook.Entry)}
}

func (r *InboxRepository) Add(ctx context.Context, e *webhook.Entry) (bool, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[e.EventID]; exists {
		return false, nil
	}
	stored := e.Clone()
	stored.Status = webhook.StatusPending
	r.entries[e.EventID] = stored
	return true, nil
}

func (r *InboxRepository) Get(ctx context.Context, eventID string) (*webhook.Entry, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[eventID]
	if !ok {
		return nil, webhook.ErrNotFound
	}
	return e.Clone(), nil
}

func (r *InboxRepository) MarkProcessed(ctx context.Context, eventID, outcome string, at time.Time) error {
	return r.mutate(ctx, eventID, func(e *webhook.Entry) {
		e.Status = webhook.StatusProcessed
		e.Outcome = outcome
		e.Attempts++
		e.ProcessedAt = at
	})
}

func (r *InboxRepository) MarkFailed(ctx context.Context, eventID, lastError string, next time.Time) error {
	return r.mutate(ctx, eventID, func(e *webhook.Entry) {
		e.Attempts++
		e.LastError = lastError
		e.NextAttemptAt = next
	})
}

func (r *InboxRepository) MarkDead(ctx context.Context, eventID, lastError string) error {
	return r.mutate(ctx, eventID, func(e *webhook.Entry) {
		e.Status = webhook.StatusDead
		e.Attempts++
		e.LastError = lastError
	})
}

func (r *InboxRepository) Pending(ctx context.Context, now time.Time, limit int) ([]*webhook.Entry, error) {
	_ = ctx

	r.mu.Lock()
	due := make([]*webhook.Entry, 0)
	for _, e := range r.entries {
		if e.Status == webhook.StatusPending && !e.NextAttemptAt.After(now) {
			due = append(due, e.Clone())
		}
	}
	r.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].ReceivedAt.Before(due[j].ReceivedAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *InboxRepository) Purge(ctx context.Context, olderThan time.Time) (int, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, e := range r.entries {
		if e.Status == webhook.StatusProcessed && e.ProcessedAt.Before(olderThan) {
			delete(r.entries, id)
			n++
		}
	}
	return n, nil
}

func (r *InboxRepository) mutate(ctx context.Context, eventID string, fn func(*webhook.Entry)) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[eventID]
	if !ok {
		return webhook.ErrNotFound
	}
	fn(e)
	return nil
}

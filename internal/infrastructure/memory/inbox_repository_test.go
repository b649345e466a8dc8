package memory

import (
	"context"
	"testing"
	"time"

	"github.com/Zhima-Mochi/ecomarket/internal/domain/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInboxLifecycle(t *testing.T) {
	ctx := context.Background()
	inbox := NewInboxRepository()

	inserted, err := inbox.Add(ctx, &webhook.Entry{EventID: "evt_1", ReceivedAt: t0, NextAttemptAt: t0})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = inbox.Add(ctx, &webhook.Entry{EventID: "evt_1", ReceivedAt: t0})
	require.NoError(t, err)
	assert.False(t, inserted)

	require.NoError(t, inbox.MarkFailed(ctx, "evt_1", "db down", t0.Add(time.Minute)))
	due, err := inbox.Pending(ctx, t0.Add(30*time.Second), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = inbox.Pending(ctx, t0.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 1, due[0].Attempts)
	assert.Equal(t, "db down", due[0].LastError)

	require.NoError(t, inbox.MarkProcessed(ctx, "evt_1", "confirmed", t0.Add(2*time.Minute)))
	due, err = inbox.Pending(ctx, t0.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	n, err := inbox.Purge(ctx, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = inbox.Purge(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.ErrorIs(t, inbox.MarkDead(ctx, "evt_1", "gone"), webhook.ErrNotFound)
}

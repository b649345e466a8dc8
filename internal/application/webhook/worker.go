package webhook

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/ecomarket/internal/observability"
)

const purgeEvery = time.Hour

// Retrier re-drives failed deliveries on a ticker and purges processed entries past retention.
type Retrier struct {
	receiver  *Receiver
	interval  time.Duration
	retention time.Duration
	log       observability.Logger
}

func NewRetrier(r *Receiver, interval, retention time.Duration, tel observability.Observability) *Retrier {
	if interval <= 0 {
		interval = defaultRetryBase
	}
	return &Retrier{
		receiver:  r,
		interval:  interval,
		retention: retention,
		log:       observability.Or(tel).Logger().With(observability.F("component", "webhook_retrier")),
	}
}

func (w *Retrier) Run(ctx context.Context) {
	retry := time.NewTicker(w.interval)
	defer retry.Stop()
	purge := time.NewTicker(purgeEvery)
	defer purge.Stop()

	w.log.Info("webhook_retrier_started", observability.F("interval", w.interval.String()))
	for {
		select {
		case <-ctx.Done():
			w.log.Info("webhook_retrier_stopped")
			return
		case <-retry.C:
			if _, err := w.receiver.RetryPending(ctx); err != nil && ctx.Err() == nil {
				w.log.Error("webhook_retry_failed", observability.Err(err))
			}
		case <-purge.C:
			if w.retention <= 0 {
				continue
			}
			n, err := w.receiver.Purge(ctx, w.retention)
			if err != nil {
				w.log.Error("webhook_purge_failed", observability.Err(err))
				continue
			}
			if n > 0 {
				w.log.Info("webhook_events_purged", observability.F("count", n))
			}
		}
	}
}

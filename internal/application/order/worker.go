package order

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/ecomarket/internal/observability"
)

const defaultSweepInterval = time.Minute

// Sweeper periodically expires reservations that were never paid.
type Sweeper struct {
	manager  *Manager
	interval time.Duration
	log      observability.Logger
}

func NewSweeper(m *Manager, interval time.Duration, tel observability.Observability) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{
		manager:  m,
		interval: interval,
		log:      observability.Or(tel).Logger().With(observability.F("component", "reservation_sweeper")),
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("sweeper_started", observability.F("interval", s.interval.String()))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper_stopped")
			return
		case <-ticker.C:
			if _, err := s.manager.Sweep(ctx, s.manager.now()); err != nil && ctx.Err() == nil {
				s.log.Error("sweep_failed", observability.Err(err))
			}
		}
	}
}

package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Poller is one settlement cycle. The reconciler's own guard decides what
// happens when a tick fires while a cycle is still running.
type Poller interface {
	Poll(ctx context.Context)
}

// Scheduler fires the reconciler on a fixed wall-clock interval. It owns no
// business logic.
type Scheduler struct {
	interval time.Duration
	poller   Poller
	logger   *zap.Logger
}

func New(interval time.Duration, poller Poller, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		interval: interval,
		poller:   poller,
		logger:   logger,
	}
}

// Start runs the tick loop until ctx is cancelled. Call it in a goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("settlement scheduler started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("settlement scheduler shutting down")
			return
		case <-ticker.C:
			s.poller.Poll(ctx)
		}
	}
}

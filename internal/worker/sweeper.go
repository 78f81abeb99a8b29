package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"vidvest/internal/logger"
	"vidvest/internal/services"
)

// Sweeper runs RefreshAll on a fixed interval.
type Sweeper struct {
	refresh  services.RefreshServicer
	interval time.Duration
	log      *zap.SugaredLogger
}

// NewSweeper creates a sweeper. A non-positive interval disables it.
func NewSweeper(refresh services.RefreshServicer, interval time.Duration) *Sweeper {
	return &Sweeper{
		refresh:  refresh,
		interval: interval,
		log:      logger.Named("worker.sweeper"),
	}
}

// Enabled reports whether RunForever will do any work.
func (s *Sweeper) Enabled() bool {
	return s.interval > 0
}

// RunForever sweeps every interval until ctx is cancelled. The first sweep
// starts after one interval.
func (s *Sweeper) RunForever(ctx context.Context) {
	if !s.Enabled() {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Infow("refresh sweeper started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("refresh sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs one sweep and logs its summary.
func (s *Sweeper) RunOnce(ctx context.Context) *services.RefreshResult {
	result, err := s.refresh.RefreshAll(ctx)
	if err != nil {
		s.log.Errorw("refresh sweep failed", "error", err)
		return nil
	}
	if len(result.Failures) > 0 {
		s.log.Warnw("refresh sweep had failures",
			"failed", len(result.Failures),
			"refreshed", result.VideosRefreshed,
		)
	}
	return result
}

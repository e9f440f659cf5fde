package service

import (
	"context"
	"time"

	"github.com/hostelcart/batch-engine/internal/observability"
	"go.uber.org/zap"
)

const defaultTickInterval = time.Minute

// Scheduler drives the periodic lifecycle work: lock due batches, then scan
// for stale ones. The two phases run sequentially inside one tick so they
// never overlap; a slow tick delays the next one instead.
type Scheduler struct {
	lifecycle *LifecycleService
	monitor   *StaleMonitor
	logger    *zap.Logger
	metrics   *observability.Metrics
	interval  time.Duration
}

func NewScheduler(
	lifecycle *LifecycleService,
	monitor *StaleMonitor,
	interval time.Duration,
	logger *zap.Logger,
) (*Scheduler, error) {
	if interval <= 0 {
		interval = defaultTickInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		lifecycle: lifecycle,
		monitor:   monitor,
		logger:    logger,
		interval:  interval,
	}, nil
}

func (s *Scheduler) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start ticks until context cancellation. Tick errors are logged, never
// fatal; the predicates re-discover pending work next tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveTickDuration(time.Since(start))
	}()

	locked, err := s.lifecycle.CloseDueBatches(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("lock tick failed", zap.Error(err))
	} else if locked > 0 {
		s.logger.Info("locked due batches", zap.Int("count", locked))
	}

	fired, err := s.monitor.Scan(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("stale scan failed", zap.Error(err))
	} else if fired > 0 {
		s.logger.Info("escalated stale batches", zap.Int("count", fired))
	}
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hostelcart/batch-engine/internal/domain"
	"github.com/hostelcart/batch-engine/internal/repository"
	"go.uber.org/zap"
)

func newSchedulerForTest(t *testing.T, batches *fakeBatchRepo, publisher *fakePublisher) *Scheduler {
	t.Helper()

	lifecycle, err := NewLifecycleService(batches, &fakeOrderRepo{}, &fakeShopRepo{}, publisher, &fakeAttemptLimiter{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewLifecycleService() error = %v", err)
	}
	monitor, err := NewStaleMonitor(batches, &fakeShopRepo{}, publisher, 30*time.Minute, zap.NewNop())
	if err != nil {
		t.Fatalf("NewStaleMonitor() error = %v", err)
	}
	scheduler, err := NewScheduler(lifecycle, monitor, time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	return scheduler
}

func TestNewSchedulerAppliesDefaultInterval(t *testing.T) {
	t.Parallel()

	scheduler, err := NewScheduler(nil, nil, 0, nil)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	if scheduler.interval != defaultTickInterval {
		t.Fatalf("interval = %s, want %s", scheduler.interval, defaultTickInterval)
	}
}

func TestSchedulerTickRunsLockThenScan(t *testing.T) {
	t.Parallel()

	calls := make([]string, 0, 2)
	batches := &fakeBatchRepo{
		findDueForLockFn: func(ctx context.Context, now time.Time, limit int) ([]domain.Batch, error) {
			calls = append(calls, "lock")
			return nil, nil
		},
		findStaleLockedFn: func(ctx context.Context, cutoffBefore time.Time) ([]repository.BatchWithCount, error) {
			calls = append(calls, "scan")
			return nil, nil
		},
	}

	scheduler := newSchedulerForTest(t, batches, &fakePublisher{})
	scheduler.tick(context.Background())

	if len(calls) != 2 || calls[0] != "lock" || calls[1] != "scan" {
		t.Fatalf("tick calls = %v, want [lock scan]", calls)
	}
}

func TestSchedulerTickScanRunsDespiteLockError(t *testing.T) {
	t.Parallel()

	scanCalled := false
	batches := &fakeBatchRepo{
		findDueForLockFn: func(ctx context.Context, now time.Time, limit int) ([]domain.Batch, error) {
			return nil, errors.New("db unavailable")
		},
		findStaleLockedFn: func(ctx context.Context, cutoffBefore time.Time) ([]repository.BatchWithCount, error) {
			scanCalled = true
			return nil, nil
		},
	}

	scheduler := newSchedulerForTest(t, batches, &fakePublisher{})
	scheduler.tick(context.Background())

	if !scanCalled {
		t.Fatal("stale scan should still run after a lock tick error")
	}
}

func TestSchedulerStartRunsInitialTickAndStopsOnCancel(t *testing.T) {
	t.Parallel()

	lockCalls := 0
	batches := &fakeBatchRepo{
		findDueForLockFn: func(ctx context.Context, now time.Time, limit int) ([]domain.Batch, error) {
			lockCalls++
			return nil, nil
		},
	}

	scheduler := newSchedulerForTest(t, batches, &fakePublisher{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := scheduler.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if lockCalls != 1 {
		t.Fatalf("lock calls = %d, want 1 initial tick", lockCalls)
	}
}

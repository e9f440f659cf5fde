package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hostelcart/batch-engine/internal/domain"
	"github.com/hostelcart/batch-engine/internal/observability"
	"github.com/hostelcart/batch-engine/internal/queue"
	"github.com/hostelcart/batch-engine/internal/repository"
	"go.uber.org/zap"
)

const defaultIdleThreshold = 30 * time.Minute

// StaleMonitor escalates LOCKED batches that sit undelivered past the idle
// threshold. It only observes and notifies; it never mutates batch state, so
// an escalation re-fires on every scan until the vendor acts.
type StaleMonitor struct {
	batches   repository.BatchRepository
	shops     repository.ShopRepository
	publisher queue.Publisher
	logger    *zap.Logger
	metrics   *observability.Metrics

	threshold time.Duration
	now       func() time.Time
}

func NewStaleMonitor(
	batches repository.BatchRepository,
	shops repository.ShopRepository,
	publisher queue.Publisher,
	threshold time.Duration,
	logger *zap.Logger,
) (*StaleMonitor, error) {
	if threshold <= 0 {
		threshold = defaultIdleThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StaleMonitor{
		batches:   batches,
		shops:     shops,
		publisher: publisher,
		logger:    logger,
		threshold: threshold,
		now:       time.Now,
	}, nil
}

func (m *StaleMonitor) SetMetrics(metrics *observability.Metrics) {
	if m == nil {
		return
	}
	m.metrics = metrics
}

// Scan finds LOCKED batches idle past the threshold with at least one member
// order and enqueues one escalation per batch. Returns how many escalations
// were enqueued.
func (m *StaleMonitor) Scan(ctx context.Context) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	now := m.now()
	stale, err := m.batches.FindStaleLocked(ctx, now.Add(-m.threshold))
	if err != nil {
		return 0, fmt.Errorf("failed to scan stale batches: %w", err)
	}

	fired := 0
	for i := range stale {
		batch := stale[i].Batch
		if err := m.escalate(ctx, &batch, stale[i].OrderCount, now); err != nil {
			if ctx.Err() != nil {
				return fired, ctx.Err()
			}
			m.logger.Error("failed to escalate stale batch",
				zap.String("batchId", batch.ID),
				zap.String("shopId", batch.ShopID),
				zap.Error(err),
			)
			continue
		}
		fired++
	}

	return fired, nil
}

func (m *StaleMonitor) escalate(ctx context.Context, batch *domain.Batch, orderCount int, now time.Time) error {
	shop, err := m.shops.GetByID(ctx, batch.ShopID)
	if err != nil {
		return fmt.Errorf("failed to resolve shop owner: %w", err)
	}

	idleMinutes := int(batch.IdleSince(now).Minutes())
	message := fmt.Sprintf("Batch %s has %d orders waiting %d minutes past cutoff. Start the delivery run or cancel.",
		batchLabel(batch), orderCount, idleMinutes)

	msg, err := queue.NewJobMessage(queue.JobSendNotification, correlationID(ctx), queue.SendNotificationPayload{
		UserID:    shop.OwnerID,
		Title:     "Batch awaiting dispatch",
		Message:   message,
		Category:  domain.CategoryEscalation,
		ActionURL: fmt.Sprintf("/vendor/batches/%s", batch.ID),
	})
	if err != nil {
		return err
	}

	if err := m.publisher.Publish(ctx, queue.QueueNotifications, msg); err != nil {
		return err
	}

	m.metrics.IncStaleEscalation()
	m.metrics.IncJobPublished(queue.QueueNotifications)
	return nil
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hostelcart/batch-engine/internal/alert"
	"github.com/hostelcart/batch-engine/internal/domain"
	"github.com/hostelcart/batch-engine/internal/observability"
	"github.com/hostelcart/batch-engine/internal/pubsub"
	"github.com/hostelcart/batch-engine/internal/queue"
	"github.com/hostelcart/batch-engine/internal/repository"
	"github.com/hostelcart/batch-engine/internal/search"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minWorkerConcurrency = 1

// WorkerService consumes the three work queues: notification jobs become
// persisted rows plus a live pub/sub push, audit jobs become immutable audit
// rows, search jobs become index document upserts or deletes. Every handler
// is idempotent, so at-least-once redelivery is safe.
type WorkerService struct {
	notifications repository.NotificationRepository
	audits        repository.AuditRepository
	consumer      queue.Consumer
	live          pubsub.LivePublisher
	index         search.Index
	alerter       alert.Alerter
	logger        *zap.Logger
	metrics       *observability.Metrics
	concurrency   int
	now           func() time.Time
}

func NewWorkerService(
	notifications repository.NotificationRepository,
	audits repository.AuditRepository,
	consumer queue.Consumer,
	live pubsub.LivePublisher,
	index search.Index,
	alerter alert.Alerter,
	concurrency int,
	logger *zap.Logger,
) (*WorkerService, error) {
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if alerter == nil {
		alerter = alert.NopAlerter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		notifications: notifications,
		audits:        audits,
		consumer:      consumer,
		live:          live,
		index:         index,
		alerter:       alerter,
		logger:        logger,
		concurrency:   concurrency,
		now:           time.Now,
	}, nil
}

func (s *WorkerService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start consumes every work queue with the configured number of concurrent
// handlers per queue, until context cancellation.
func (s *WorkerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	queueNames := queue.WorkQueueNames()
	if len(queueNames) == 0 {
		return fmt.Errorf("no work queues configured")
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for _, queueName := range queueNames {
		for i := 0; i < s.concurrency; i++ {
			queueName := queueName
			workerID := i + 1

			g.Go(func() error {
				s.logger.Info("worker started",
					zap.Int("workerId", workerID),
					zap.String("queue", queueName),
				)

				err := s.consumer.Consume(groupCtx, queueName, s.handlerFor(queueName))
				if err != nil {
					s.logger.Error("worker stopped with error",
						zap.Int("workerId", workerID),
						zap.String("queue", queueName),
						zap.Error(err),
					)
					return err
				}

				s.logger.Info("worker stopped",
					zap.Int("workerId", workerID),
					zap.String("queue", queueName),
				)
				return nil
			})
		}
	}

	return g.Wait()
}

func (s *WorkerService) handlerFor(queueName string) queue.MessageHandler {
	return func(ctx context.Context, msg queue.JobMessage) error {
		s.metrics.IncWorkerInFlight(queueName)
		defer s.metrics.DecWorkerInFlight(queueName)

		start := s.now()
		err := s.processJob(ctx, queueName, msg)
		s.metrics.ObserveJobHandleDuration(queueName, s.now().Sub(start))
		s.metrics.IncJobProcessed(queueName, jobResultLabel(err))

		return err
	}
}

func (s *WorkerService) processJob(ctx context.Context, queueName string, msg queue.JobMessage) error {
	if msg.Type.Queue() != queueName {
		return queue.Permanent(fmt.Errorf("job type %s does not belong on queue %s", msg.Type, queueName))
	}

	switch queueName {
	case queue.QueueNotifications:
		return s.handleNotificationJob(ctx, msg)
	case queue.QueueAudit:
		return s.handleAuditJob(ctx, msg)
	case queue.QueueSearch:
		return s.handleSearchJob(ctx, msg)
	}
	return queue.Permanent(fmt.Errorf("unknown queue %s", queueName))
}

// handleNotificationJob persists the notification once, keyed by the job id,
// then pushes it to the live channel. The push is best-effort: a connected
// client gets it immediately, everyone else reads the row later.
func (s *WorkerService) handleNotificationJob(ctx context.Context, msg queue.JobMessage) error {
	var recipientID *string
	var title, message, actionURL string
	var category domain.NotificationCategory
	var channel string

	switch msg.Type {
	case queue.JobSendNotification:
		var p queue.SendNotificationPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return queue.Permanent(fmt.Errorf("malformed notification payload: %w", err))
		}
		userID := strings.TrimSpace(p.UserID)
		if userID == "" {
			return queue.Permanent(fmt.Errorf("%w: notification user id is required", domain.ErrValidation))
		}
		recipientID = &userID
		title, message, category, actionURL = p.Title, p.Message, p.Category, p.ActionURL
		channel = pubsub.UserChannel(userID)
	case queue.JobBroadcastNotification:
		var p queue.BroadcastNotificationPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return queue.Permanent(fmt.Errorf("malformed broadcast payload: %w", err))
		}
		title, message, category, actionURL = p.Title, p.Message, p.Category, p.ActionURL
		channel = pubsub.BroadcastChannel()
	default:
		return queue.Permanent(fmt.Errorf("unexpected notification job type %s", msg.Type))
	}

	notification := &domain.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Title:       strings.TrimSpace(title),
		Message:     strings.TrimSpace(message),
		Category:    category,
		SourceJobID: msg.JobID,
		CreatedAt:   s.now().UTC(),
	}
	if trimmed := strings.TrimSpace(actionURL); trimmed != "" {
		notification.ActionURL = &trimmed
	}
	if err := notification.Validate(); err != nil {
		return err
	}

	created, err := s.notifications.Create(ctx, notification)
	if err != nil {
		return fmt.Errorf("failed to persist notification: %w", err)
	}
	if !created {
		s.logger.Info("duplicate notification job skipped", zap.String("jobId", msg.JobID))
		return nil
	}

	s.pushLive(ctx, channel, notification)
	return nil
}

func (s *WorkerService) pushLive(ctx context.Context, channel string, notification *domain.Notification) {
	if s.live == nil {
		return
	}

	body, err := json.Marshal(map[string]any{
		"id":        notification.ID,
		"title":     notification.Title,
		"message":   notification.Message,
		"category":  notification.Category,
		"actionUrl": notification.ActionURL,
		"createdAt": notification.CreatedAt,
	})
	if err != nil {
		s.logger.Error("failed to marshal live notification", zap.String("notificationId", notification.ID), zap.Error(err))
		return
	}

	if err := s.live.Publish(ctx, channel, body); err != nil {
		s.logger.Warn("live notification push failed",
			zap.String("notificationId", notification.ID),
			zap.String("channel", channel),
			zap.Error(err),
		)
	}
}

// handleAuditJob inserts the audit row; the idempotency key turns redelivery
// into a no-op. A permanently failing audit job raises an ops alert before it
// dead-letters, because audit loss is not acceptable.
func (s *WorkerService) handleAuditJob(ctx context.Context, msg queue.JobMessage) error {
	var p queue.RecordAuditPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return s.auditDeadLetter(ctx, msg.JobID, queue.Permanent(fmt.Errorf("malformed audit payload: %w", err)))
	}

	record := &domain.AuditLog{
		ID:             uuid.NewString(),
		AdminID:        strings.TrimSpace(p.AdminID),
		Action:         p.Action,
		TargetType:     strings.TrimSpace(p.TargetType),
		TargetID:       strings.TrimSpace(p.TargetID),
		Details:        p.Details,
		IdempotencyKey: strings.TrimSpace(p.IdempotencyKey),
		CreatedAt:      s.now().UTC(),
	}
	if ip := strings.TrimSpace(p.IP); ip != "" {
		record.IP = &ip
	}
	if ua := strings.TrimSpace(p.UserAgent); ua != "" {
		record.UserAgent = &ua
	}
	if err := record.Validate(); err != nil {
		return s.auditDeadLetter(ctx, msg.JobID, err)
	}

	created, err := s.audits.Create(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to persist audit record: %w", err)
	}
	if !created {
		s.logger.Info("duplicate audit job skipped",
			zap.String("jobId", msg.JobID),
			zap.String("idempotencyKey", record.IdempotencyKey),
		)
	}
	return nil
}

func (s *WorkerService) auditDeadLetter(ctx context.Context, jobID string, err error) error {
	alertErr := s.alerter.Send(ctx, alert.Alert{
		Severity: alert.SeverityCritical,
		Summary:  "audit job dead-lettered",
		Detail:   fmt.Sprintf("job %s: %v", jobID, err),
		At:       s.now().UTC(),
	})
	if alertErr != nil {
		s.logger.Error("failed to send audit-loss alert",
			zap.String("jobId", jobID),
			zap.Error(alertErr),
		)
	}
	return err
}

// handleSearchJob applies one document operation. Upserts overwrite and
// deletes tolerate missing documents, so replays converge.
func (s *WorkerService) handleSearchJob(ctx context.Context, msg queue.JobMessage) error {
	entity := msg.Type.SearchEntity()

	if msg.Type.IsDelete() {
		var p queue.DeleteDocumentPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return queue.Permanent(fmt.Errorf("malformed delete payload: %w", err))
		}
		if strings.TrimSpace(p.EntityID) == "" {
			return queue.Permanent(fmt.Errorf("%w: entity id is required", domain.ErrValidation))
		}
		if err := s.index.Delete(ctx, entity, strings.TrimSpace(p.EntityID)); err != nil {
			return fmt.Errorf("failed to delete %s document: %w", entity, err)
		}
		return nil
	}

	var p queue.IndexDocumentPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return queue.Permanent(fmt.Errorf("malformed index payload: %w", err))
	}
	if strings.TrimSpace(p.EntityID) == "" {
		return queue.Permanent(fmt.Errorf("%w: entity id is required", domain.ErrValidation))
	}
	if len(p.Document) == 0 {
		return queue.Permanent(fmt.Errorf("%w: document is required", domain.ErrValidation))
	}

	if err := s.index.Upsert(ctx, entity, strings.TrimSpace(p.EntityID), p.Document); err != nil {
		return fmt.Errorf("failed to upsert %s document: %w", entity, err)
	}
	return nil
}

func jobResultLabel(err error) string {
	switch {
	case err == nil:
		return "acked"
	case queue.IsPermanent(err):
		return "rejected"
	default:
		return "requeued"
	}
}

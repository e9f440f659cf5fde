package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hostelcart/batch-engine/internal/domain"
	"github.com/hostelcart/batch-engine/internal/observability"
	"github.com/hostelcart/batch-engine/internal/otp"
	"github.com/hostelcart/batch-engine/internal/queue"
	"github.com/hostelcart/batch-engine/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultLockScanLimit = 100
	defaultSlotDuration  = time.Hour
)

// LifecycleService drives the batch state machine. Cron ticks and vendor
// actions go through the same transition functions, so OTP generation and
// notification fan-out never diverge by trigger.
type LifecycleService struct {
	batches   repository.BatchRepository
	orders    repository.OrderRepository
	shops     repository.ShopRepository
	publisher queue.Publisher
	limiter   otp.AttemptLimiter
	logger    *zap.Logger
	metrics   *observability.Metrics

	otpGen     otp.Generator
	now        func() time.Time
	nextCutoff func(now time.Time) time.Time
	scanLimit  int
}

// HostelBlockGroup holds one batch's member orders for a single hostel block,
// in delivery walking order.
type HostelBlockGroup struct {
	Block  string
	Orders []domain.Order
}

// OpenBatchView is the vendor dashboard projection of the shop's OPEN batch.
type OpenBatchView struct {
	Batch       domain.Batch
	TotalOrders int
	Blocks      []HostelBlockGroup
}

func NewLifecycleService(
	batches repository.BatchRepository,
	orders repository.OrderRepository,
	shops repository.ShopRepository,
	publisher queue.Publisher,
	limiter otp.AttemptLimiter,
	logger *zap.Logger,
) (*LifecycleService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &LifecycleService{
		batches:    batches,
		orders:     orders,
		shops:      shops,
		publisher:  publisher,
		limiter:    limiter,
		logger:     logger,
		otpGen:     otp.NewGenerator(nil),
		now:        time.Now,
		nextCutoff: nextSlotCutoff,
		scanLimit:  defaultLockScanLimit,
	}, nil
}

func (s *LifecycleService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// nextSlotCutoff returns the next top-of-hour slot boundary. A batch created
// at 14:20 closes at 15:00.
func nextSlotCutoff(now time.Time) time.Time {
	return now.UTC().Truncate(defaultSlotDuration).Add(defaultSlotDuration)
}

// CloseDueBatches locks every OPEN batch whose cutoff has passed and returns
// how many were locked. A failure on one batch abandons that batch only; the
// predicate re-discovers it on the next tick.
func (s *LifecycleService) CloseDueBatches(ctx context.Context) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	due, err := s.batches.FindDueForLock(ctx, s.now(), s.scanLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to scan due batches: %w", err)
	}

	locked := 0
	for i := range due {
		batch := due[i]
		didLock, err := s.lockBatch(ctx, batch.ID, "cutoff")
		if err != nil {
			if ctx.Err() != nil {
				return locked, ctx.Err()
			}
			s.logger.Error("failed to lock due batch",
				zap.String("batchId", batch.ID),
				zap.String("shopId", batch.ShopID),
				zap.Error(err),
			)
			continue
		}
		if didLock {
			locked++
		}
	}

	return locked, nil
}

// LockNow closes a batch early on vendor request. Same transition as the
// cutoff tick.
func (s *LifecycleService) LockNow(ctx context.Context, batchID string) (*domain.Batch, error) {
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return nil, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}

	didLock, err := s.lockBatch(ctx, batchID, "manual")
	if err != nil {
		return nil, err
	}
	if !didLock {
		if _, err := s.batches.GetByID(ctx, batchID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: batch is not open", domain.ErrConflict)
	}

	return s.batches.GetByID(ctx, batchID)
}

// lockBatch runs the OPEN to LOCKED transition and, when the batch has member
// orders, enqueues the shop owner's "ready to dispatch" notification. Returns
// false when a concurrent transition already won.
func (s *LifecycleService) lockBatch(ctx context.Context, batchID string, trigger string) (bool, error) {
	result, err := s.batches.TransitionOpenToLocked(ctx, batchID, s.otpGen)
	if err != nil {
		return false, fmt.Errorf("failed to lock batch: %w", err)
	}
	if !result.Locked {
		return false, nil
	}

	s.metrics.IncBatchTransition(domain.BatchStatusLocked.String(), trigger)

	if len(result.Orders) == 0 {
		return true, nil
	}

	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		s.logger.Error("locked batch vanished before notification", zap.String("batchId", batchID), zap.Error(err))
		return true, nil
	}

	s.notifyOwner(ctx, batch.ShopID,
		"Batch locked",
		fmt.Sprintf("Batch %s is locked with %d orders and ready to prepare.", batchLabel(batch), len(result.Orders)),
		fmt.Sprintf("/vendor/batches/%s", batch.ID),
	)
	return true, nil
}

// StartDelivery moves a LOCKED batch to IN_TRANSIT. Member orders keep their
// own prep statuses.
func (s *LifecycleService) StartDelivery(ctx context.Context, batchID string) (*domain.Batch, error) {
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return nil, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}

	if err := s.batches.UpdateStatusIf(ctx, batchID, domain.BatchStatusLocked, domain.BatchStatusInTransit); err != nil {
		return nil, err
	}
	s.metrics.IncBatchTransition(domain.BatchStatusInTransit.String(), "manual")

	return s.batches.GetByID(ctx, batchID)
}

// VerifyDelivery checks a buyer's delivery code against the order. A matching
// code completes the order exactly once; re-submitting the same code after
// completion is a no-op success. A mismatch changes nothing.
func (s *LifecycleService) VerifyDelivery(ctx context.Context, orderID, code string) (*domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	code = strings.TrimSpace(code)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", domain.ErrValidation)
	}
	if !domain.ValidOTPFormat(code) {
		s.metrics.IncOTPVerification("malformed")
		return nil, fmt.Errorf("%w: delivery code must be %d digits", domain.ErrValidation, domain.OTPLength)
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, orderID)
		if err != nil {
			// Fail open: the limiter is a brute-force guard, not a
			// correctness gate.
			s.logger.Warn("attempt limiter unavailable", zap.String("orderId", orderID), zap.Error(err))
		} else if !allowed {
			s.metrics.IncOTPVerification("limited")
			return nil, fmt.Errorf("%w: too many verification attempts, try again shortly", domain.ErrValidation)
		}
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BatchID == nil {
		return nil, fmt.Errorf("%w: order is not part of a batch", domain.ErrConflict)
	}

	if order.Status == domain.OrderStatusCompleted && order.OTPMatches(code) {
		s.metrics.IncOTPVerification("repeat")
		return order, nil
	}

	batch, err := s.batches.GetByID(ctx, *order.BatchID)
	if err != nil {
		return nil, err
	}
	if batch.Status != domain.BatchStatusInTransit {
		return nil, fmt.Errorf("%w: batch is not in transit", domain.ErrConflict)
	}

	if !order.OTPMatches(code) {
		s.metrics.IncOTPVerification("mismatch")
		return nil, fmt.Errorf("%w: delivery code does not match", domain.ErrValidation)
	}

	deliveredAt := s.now().UTC()
	delivered, err := s.orders.MarkDelivered(ctx, orderID, code, deliveredAt)
	if err != nil {
		return nil, fmt.Errorf("failed to mark order delivered: %w", err)
	}
	if !delivered {
		// A concurrent submission of the same code completed the order
		// first; treat ours as the repeat.
		s.metrics.IncOTPVerification("repeat")
		return s.orders.GetByID(ctx, orderID)
	}

	s.metrics.IncOTPVerification("ok")

	order.Status = domain.OrderStatusCompleted
	order.DeliveredAt = &deliveredAt

	s.notifyUser(ctx, order.BuyerID,
		"Order delivered",
		fmt.Sprintf("Your order %s has been delivered.", order.DisplayID),
		domain.CategoryOrder,
		fmt.Sprintf("/orders/%s", order.ID),
	)

	return order, nil
}

// CompleteBatch closes out an IN_TRANSIT batch. Orders still unverified stay
// as they are for individual follow-up.
func (s *LifecycleService) CompleteBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return nil, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}

	if err := s.batches.UpdateStatusIf(ctx, batchID, domain.BatchStatusInTransit, domain.BatchStatusCompleted); err != nil {
		return nil, err
	}
	s.metrics.IncBatchTransition(domain.BatchStatusCompleted.String(), "manual")

	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	s.notifyOwner(ctx, batch.ShopID,
		"Batch completed",
		fmt.Sprintf("Batch %s delivery run is complete.", batchLabel(batch)),
		fmt.Sprintf("/vendor/batches/%s", batch.ID),
	)
	return batch, nil
}

// CancelBatch cancels an OPEN or LOCKED batch with all member orders and
// notifies each distinct buyer once. When actorID is set, the cancellation is
// also recorded in the audit trail.
func (s *LifecycleService) CancelBatch(ctx context.Context, batchID, actorID, reason string) (*domain.Batch, error) {
	batchID = strings.TrimSpace(batchID)
	reason = strings.TrimSpace(reason)
	if batchID == "" {
		return nil, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: cancel reason is required", domain.ErrValidation)
	}

	cancelled, err := s.batches.TransitionToCancelled(ctx, batchID, reason)
	if err != nil {
		return nil, err
	}
	s.metrics.IncBatchTransition(domain.BatchStatusCancelled.String(), "manual")

	for _, buyerID := range distinctBuyers(cancelled) {
		s.notifyUser(ctx, buyerID,
			"Batch cancelled",
			fmt.Sprintf("Your order batch was cancelled: %s", reason),
			domain.CategoryBatch,
			"/orders",
		)
	}

	if actorID = strings.TrimSpace(actorID); actorID != "" {
		s.enqueueAudit(ctx, actorID, domain.AuditActionBatchCancel, "batch", batchID, map[string]string{
			"reason": reason,
		}, "", "")
	}

	return s.batches.GetByID(ctx, batchID)
}

// AssignOrder places a NEW, unbatched order into its shop's OPEN batch,
// creating one at the next slot cutoff when none exists. The order stays NEW
// until the batch locks.
func (s *LifecycleService) AssignOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", domain.ErrValidation)
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BatchID != nil || order.Status != domain.OrderStatusNew {
		return nil, fmt.Errorf("%w: order is already batched", domain.ErrConflict)
	}

	shop, err := s.shops.GetByID(ctx, order.ShopID)
	if err != nil {
		return nil, err
	}
	if !shop.Active {
		return nil, fmt.Errorf("%w: shop is inactive", domain.ErrConflict)
	}

	cutoff := s.nextCutoff(s.now())
	batch, err := s.batches.EnsureOpenBatch(ctx, shop.ID, cutoff, cutoff.Format("15:04"))
	if err != nil {
		return nil, fmt.Errorf("failed to ensure open batch: %w", err)
	}

	if err := s.orders.AssignToBatch(ctx, order.ID, batch.ID); err != nil {
		return nil, err
	}

	order.BatchID = &batch.ID
	return order, nil
}

// AdminOverrideOrderStatus force-sets an order's status, bypassing the
// delivery-code gate. Every override enqueues an audit record and a search
// re-index for the order.
func (s *LifecycleService) AdminOverrideOrderStatus(
	ctx context.Context,
	adminID, orderID string,
	status domain.OrderStatus,
	reason, ip, userAgent string,
) (*domain.Order, error) {
	adminID = strings.TrimSpace(adminID)
	orderID = strings.TrimSpace(orderID)
	if adminID == "" {
		return nil, fmt.Errorf("%w: admin id is required", domain.ErrValidation)
	}
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", domain.ErrValidation)
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: invalid order status %q", domain.ErrValidation, status)
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	previous := order.Status

	if err := s.orders.UpdateStatus(ctx, orderID, status); err != nil {
		return nil, err
	}
	order.Status = status

	if err := s.enqueueAudit(ctx, adminID, domain.AuditActionOrderStatusOverride, "order", orderID, map[string]string{
		"from":   previous.String(),
		"to":     status.String(),
		"reason": strings.TrimSpace(reason),
	}, ip, userAgent); err != nil {
		// Audit loss is not acceptable; surface the failure so the admin
		// retries the override.
		return nil, fmt.Errorf("failed to enqueue audit record: %w", err)
	}

	s.enqueueOrderReindex(ctx, order)

	return order, nil
}

// OpenBatch returns the shop's OPEN batch with member orders grouped per
// hostel block, in delivery walking order.
func (s *LifecycleService) OpenBatch(ctx context.Context, shopID string) (*OpenBatchView, error) {
	shopID = strings.TrimSpace(shopID)
	if shopID == "" {
		return nil, fmt.Errorf("%w: shop id is required", domain.ErrValidation)
	}

	batch, err := s.batches.FindOpenByShop(ctx, shopID)
	if err != nil {
		return nil, err
	}

	orders, err := s.orders.ListByBatch(ctx, batch.ID)
	if err != nil {
		return nil, err
	}

	view := &OpenBatchView{
		Batch:       *batch,
		TotalOrders: len(orders),
	}
	for i := range orders {
		order := orders[i]
		if n := len(view.Blocks); n == 0 || view.Blocks[n-1].Block != order.HostelBlock {
			view.Blocks = append(view.Blocks, HostelBlockGroup{Block: order.HostelBlock})
		}
		last := &view.Blocks[len(view.Blocks)-1]
		last.Orders = append(last.Orders, order)
	}
	return view, nil
}

// ActiveBatches returns the shop's LOCKED and IN_TRANSIT batches with order
// counts.
func (s *LifecycleService) ActiveBatches(ctx context.Context, shopID string) ([]repository.BatchWithCount, error) {
	shopID = strings.TrimSpace(shopID)
	if shopID == "" {
		return nil, fmt.Errorf("%w: shop id is required", domain.ErrValidation)
	}
	return s.batches.ActiveByShop(ctx, shopID)
}

func (s *LifecycleService) notifyOwner(ctx context.Context, shopID, title, message, actionURL string) {
	shop, err := s.shops.GetByID(ctx, shopID)
	if err != nil {
		s.logger.Error("failed to resolve shop owner for notification",
			zap.String("shopId", shopID),
			zap.Error(err),
		)
		return
	}
	s.notifyUser(ctx, shop.OwnerID, title, message, domain.CategoryBatch, actionURL)
}

func (s *LifecycleService) notifyUser(ctx context.Context, userID, title, message string, category domain.NotificationCategory, actionURL string) {
	msg, err := queue.NewJobMessage(queue.JobSendNotification, correlationID(ctx), queue.SendNotificationPayload{
		UserID:    userID,
		Title:     title,
		Message:   message,
		Category:  category,
		ActionURL: actionURL,
	})
	if err != nil {
		s.logger.Error("failed to build notification job", zap.String("userId", userID), zap.Error(err))
		return
	}

	if err := s.publisher.Publish(ctx, queue.QueueNotifications, msg); err != nil {
		s.logger.Error("failed to enqueue notification job",
			zap.String("userId", userID),
			zap.String("jobId", msg.JobID),
			zap.Error(err),
		)
		return
	}
	s.metrics.IncJobPublished(queue.QueueNotifications)
}

func (s *LifecycleService) enqueueAudit(
	ctx context.Context,
	adminID string,
	action domain.AuditAction,
	targetType, targetID string,
	details map[string]string,
	ip, userAgent string,
) error {
	body, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}

	msg, err := queue.NewJobMessage(queue.JobRecordAudit, correlationID(ctx), queue.RecordAuditPayload{
		AdminID:        adminID,
		Action:         action,
		TargetType:     targetType,
		TargetID:       targetID,
		Details:        body,
		IP:             strings.TrimSpace(ip),
		UserAgent:      strings.TrimSpace(userAgent),
		IdempotencyKey: domain.AuditIdempotencyKey(adminID, action, targetType, targetID, s.now()),
	})
	if err != nil {
		return err
	}

	if err := s.publisher.Publish(ctx, queue.QueueAudit, msg); err != nil {
		return err
	}
	s.metrics.IncJobPublished(queue.QueueAudit)
	return nil
}

type orderDocument struct {
	ID          string  `json:"id"`
	DisplayID   string  `json:"displayId"`
	ShopID      string  `json:"shopId"`
	BuyerID     string  `json:"buyerId"`
	BatchID     *string `json:"batchId,omitempty"`
	Status      string  `json:"status"`
	HostelBlock string  `json:"hostelBlock"`
}

func (s *LifecycleService) enqueueOrderReindex(ctx context.Context, order *domain.Order) {
	doc, err := json.Marshal(orderDocument{
		ID:          order.ID,
		DisplayID:   order.DisplayID,
		ShopID:      order.ShopID,
		BuyerID:     order.BuyerID,
		BatchID:     order.BatchID,
		Status:      order.Status.String(),
		HostelBlock: order.HostelBlock,
	})
	if err != nil {
		s.logger.Error("failed to marshal order document", zap.String("orderId", order.ID), zap.Error(err))
		return
	}

	msg, err := queue.NewJobMessage(queue.JobIndexOrder, correlationID(ctx), queue.IndexDocumentPayload{
		EntityID: order.ID,
		Document: doc,
	})
	if err != nil {
		s.logger.Error("failed to build order index job", zap.String("orderId", order.ID), zap.Error(err))
		return
	}

	if err := s.publisher.Publish(ctx, queue.QueueSearch, msg); err != nil {
		s.logger.Error("failed to enqueue order index job",
			zap.String("orderId", order.ID),
			zap.String("jobId", msg.JobID),
			zap.Error(err),
		)
		return
	}
	s.metrics.IncJobPublished(queue.QueueSearch)
}

func correlationID(ctx context.Context) string {
	id, _ := observability.CorrelationIDFromContext(ctx)
	return id
}

func batchLabel(b *domain.Batch) string {
	if strings.TrimSpace(b.Label) != "" {
		return b.Label
	}
	return b.ID
}

func distinctBuyers(orders []domain.Order) []string {
	seen := make(map[string]struct{}, len(orders))
	buyers := make([]string, 0, len(orders))
	for i := range orders {
		buyerID := orders[i].BuyerID
		if buyerID == "" {
			continue
		}
		if _, ok := seen[buyerID]; ok {
			continue
		}
		seen[buyerID] = struct{}{}
		buyers = append(buyers, buyerID)
	}
	return buyers
}

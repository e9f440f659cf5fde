package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hostelcart/batch-engine/internal/alert"
	"github.com/hostelcart/batch-engine/internal/domain"
	"github.com/hostelcart/batch-engine/internal/otp"
	"github.com/hostelcart/batch-engine/internal/pubsub"
	"github.com/hostelcart/batch-engine/internal/queue"
	"github.com/hostelcart/batch-engine/internal/repository"
	"github.com/hostelcart/batch-engine/internal/search"
)

type fakeBatchRepo struct {
	createFn                 func(ctx context.Context, b *domain.Batch) error
	getByIDFn                func(ctx context.Context, id string) (*domain.Batch, error)
	findOpenByShopFn         func(ctx context.Context, shopID string) (*domain.Batch, error)
	ensureOpenBatchFn        func(ctx context.Context, shopID string, cutoff time.Time, label string) (*domain.Batch, error)
	findDueForLockFn         func(ctx context.Context, now time.Time, limit int) ([]domain.Batch, error)
	transitionOpenToLockedFn func(ctx context.Context, batchID string, otpGen func() string) (*repository.LockResult, error)
	updateStatusIfFn         func(ctx context.Context, id string, from, to domain.BatchStatus) error
	transitionToCancelledFn  func(ctx context.Context, id string, reason string) ([]domain.Order, error)
	findStaleLockedFn        func(ctx context.Context, cutoffBefore time.Time) ([]repository.BatchWithCount, error)
	activeByShopFn           func(ctx context.Context, shopID string) ([]repository.BatchWithCount, error)
}

func (f *fakeBatchRepo) Create(ctx context.Context, b *domain.Batch) error {
	if f.createFn != nil {
		return f.createFn(ctx, b)
	}
	return nil
}

func (f *fakeBatchRepo) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeBatchRepo) FindOpenByShop(ctx context.Context, shopID string) (*domain.Batch, error) {
	if f.findOpenByShopFn != nil {
		return f.findOpenByShopFn(ctx, shopID)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeBatchRepo) EnsureOpenBatch(ctx context.Context, shopID string, cutoff time.Time, label string) (*domain.Batch, error) {
	if f.ensureOpenBatchFn != nil {
		return f.ensureOpenBatchFn(ctx, shopID, cutoff, label)
	}
	return &domain.Batch{ID: "b-open", ShopID: shopID, CutoffTime: cutoff, Label: label, Status: domain.BatchStatusOpen}, nil
}

func (f *fakeBatchRepo) FindDueForLock(ctx context.Context, now time.Time, limit int) ([]domain.Batch, error) {
	if f.findDueForLockFn != nil {
		return f.findDueForLockFn(ctx, now, limit)
	}
	return nil, nil
}

func (f *fakeBatchRepo) TransitionOpenToLocked(ctx context.Context, batchID string, otpGen func() string) (*repository.LockResult, error) {
	if f.transitionOpenToLockedFn != nil {
		return f.transitionOpenToLockedFn(ctx, batchID, otpGen)
	}
	return &repository.LockResult{}, nil
}

func (f *fakeBatchRepo) UpdateStatusIf(ctx context.Context, id string, from, to domain.BatchStatus) error {
	if f.updateStatusIfFn != nil {
		return f.updateStatusIfFn(ctx, id, from, to)
	}
	return nil
}

func (f *fakeBatchRepo) TransitionToCancelled(ctx context.Context, id string, reason string) ([]domain.Order, error) {
	if f.transitionToCancelledFn != nil {
		return f.transitionToCancelledFn(ctx, id, reason)
	}
	return nil, nil
}

func (f *fakeBatchRepo) FindStaleLocked(ctx context.Context, cutoffBefore time.Time) ([]repository.BatchWithCount, error) {
	if f.findStaleLockedFn != nil {
		return f.findStaleLockedFn(ctx, cutoffBefore)
	}
	return nil, nil
}

func (f *fakeBatchRepo) ActiveByShop(ctx context.Context, shopID string) ([]repository.BatchWithCount, error) {
	if f.activeByShopFn != nil {
		return f.activeByShopFn(ctx, shopID)
	}
	return nil, nil
}

var _ repository.BatchRepository = (*fakeBatchRepo)(nil)

type fakeOrderRepo struct {
	getByIDFn       func(ctx context.Context, id string) (*domain.Order, error)
	listByBatchFn   func(ctx context.Context, batchID string) ([]domain.Order, error)
	countByBatchFn  func(ctx context.Context, batchID string) (int64, error)
	assignToBatchFn func(ctx context.Context, orderID, batchID string) error
	markDeliveredFn func(ctx context.Context, orderID, code string, at time.Time) (bool, error)
	updateStatusFn  func(ctx context.Context, id string, status domain.OrderStatus) error
}

func (f *fakeOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeOrderRepo) ListByBatch(ctx context.Context, batchID string) ([]domain.Order, error) {
	if f.listByBatchFn != nil {
		return f.listByBatchFn(ctx, batchID)
	}
	return nil, nil
}

func (f *fakeOrderRepo) CountByBatch(ctx context.Context, batchID string) (int64, error) {
	if f.countByBatchFn != nil {
		return f.countByBatchFn(ctx, batchID)
	}
	return 0, nil
}

func (f *fakeOrderRepo) AssignToBatch(ctx context.Context, orderID, batchID string) error {
	if f.assignToBatchFn != nil {
		return f.assignToBatchFn(ctx, orderID, batchID)
	}
	return nil
}

func (f *fakeOrderRepo) MarkDelivered(ctx context.Context, orderID, code string, at time.Time) (bool, error) {
	if f.markDeliveredFn != nil {
		return f.markDeliveredFn(ctx, orderID, code, at)
	}
	return false, nil
}

func (f *fakeOrderRepo) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	if f.updateStatusFn != nil {
		return f.updateStatusFn(ctx, id, status)
	}
	return nil
}

var _ repository.OrderRepository = (*fakeOrderRepo)(nil)

type fakeShopRepo struct {
	getByIDFn func(ctx context.Context, id string) (*domain.Shop, error)
}

func (f *fakeShopRepo) GetByID(ctx context.Context, id string) (*domain.Shop, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return &domain.Shop{ID: id, OwnerID: "owner-" + id, Name: "shop", Active: true}, nil
}

var _ repository.ShopRepository = (*fakeShopRepo)(nil)

type fakeNotificationRepo struct {
	createFn           func(ctx context.Context, n *domain.Notification) (bool, error)
	getBySourceJobIDFn func(ctx context.Context, jobID string) (*domain.Notification, error)
	listForUserFn      func(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	markReadFn         func(ctx context.Context, id string) error
}

func (f *fakeNotificationRepo) Create(ctx context.Context, n *domain.Notification) (bool, error) {
	if f.createFn != nil {
		return f.createFn(ctx, n)
	}
	return true, nil
}

func (f *fakeNotificationRepo) GetBySourceJobID(ctx context.Context, jobID string) (*domain.Notification, error) {
	if f.getBySourceJobIDFn != nil {
		return f.getBySourceJobIDFn(ctx, jobID)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeNotificationRepo) ListForUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if f.listForUserFn != nil {
		return f.listForUserFn(ctx, userID, limit)
	}
	return nil, nil
}

func (f *fakeNotificationRepo) MarkRead(ctx context.Context, id string) error {
	if f.markReadFn != nil {
		return f.markReadFn(ctx, id)
	}
	return nil
}

var _ repository.NotificationRepository = (*fakeNotificationRepo)(nil)

type fakeAuditRepo struct {
	createFn       func(ctx context.Context, a *domain.AuditLog) (bool, error)
	listByTargetFn func(ctx context.Context, targetType, targetID string, limit int) ([]domain.AuditLog, error)
}

func (f *fakeAuditRepo) Create(ctx context.Context, a *domain.AuditLog) (bool, error) {
	if f.createFn != nil {
		return f.createFn(ctx, a)
	}
	return true, nil
}

func (f *fakeAuditRepo) ListByTarget(ctx context.Context, targetType, targetID string, limit int) ([]domain.AuditLog, error) {
	if f.listByTargetFn != nil {
		return f.listByTargetFn(ctx, targetType, targetID, limit)
	}
	return nil, nil
}

var _ repository.AuditRepository = (*fakeAuditRepo)(nil)

type fakePublisher struct {
	publishFn func(ctx context.Context, queueName string, msg queue.JobMessage) error
	published []queue.JobMessage
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, msg queue.JobMessage) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, queueName, msg)
	}
	f.published = append(f.published, msg)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

var _ queue.Publisher = (*fakePublisher)(nil)

type fakeConsumer struct {
	consumeFn func(ctx context.Context, queueName string, handler queue.MessageHandler) error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, queueName, handler)
	}
	return nil
}

func (f *fakeConsumer) Close() error { return nil }

var _ queue.Consumer = (*fakeConsumer)(nil)

type fakeLivePublisher struct {
	publishFn func(ctx context.Context, channel string, payload []byte) error
}

func (f *fakeLivePublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, channel, payload)
	}
	return nil
}

var _ pubsub.LivePublisher = (*fakeLivePublisher)(nil)

type fakeIndex struct {
	upsertFn func(ctx context.Context, entity, id string, document json.RawMessage) error
	deleteFn func(ctx context.Context, entity, id string) error
}

func (f *fakeIndex) Upsert(ctx context.Context, entity, id string, document json.RawMessage) error {
	if f.upsertFn != nil {
		return f.upsertFn(ctx, entity, id, document)
	}
	return nil
}

func (f *fakeIndex) Delete(ctx context.Context, entity, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, entity, id)
	}
	return nil
}

var _ search.Index = (*fakeIndex)(nil)

type fakeAlerter struct {
	sendFn func(ctx context.Context, a alert.Alert) error
	sent   []alert.Alert
}

func (f *fakeAlerter) Send(ctx context.Context, a alert.Alert) error {
	if f.sendFn != nil {
		return f.sendFn(ctx, a)
	}
	f.sent = append(f.sent, a)
	return nil
}

var _ alert.Alerter = (*fakeAlerter)(nil)

type fakeAttemptLimiter struct {
	allowFn func(ctx context.Context, orderID string) (bool, error)
}

func (f *fakeAttemptLimiter) Allow(ctx context.Context, orderID string) (bool, error) {
	if f.allowFn != nil {
		return f.allowFn(ctx, orderID)
	}
	return true, nil
}

var _ otp.AttemptLimiter = (*fakeAttemptLimiter)(nil)

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hostelcart/batch-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockResult reports the outcome of an OPEN to LOCKED transition. Locked is
// false when a concurrent transition won the conditional update.
type LockResult struct {
	Locked bool
	Orders []domain.Order
}

// BatchWithCount pairs a batch with its member order count.
type BatchWithCount struct {
	Batch      domain.Batch
	OrderCount int
}

type BatchRepository interface {
	Create(ctx context.Context, b *domain.Batch) error
	GetByID(ctx context.Context, id string) (*domain.Batch, error)
	FindOpenByShop(ctx context.Context, shopID string) (*domain.Batch, error)
	EnsureOpenBatch(ctx context.Context, shopID string, cutoff time.Time, label string) (*domain.Batch, error)
	FindDueForLock(ctx context.Context, now time.Time, limit int) ([]domain.Batch, error)
	TransitionOpenToLocked(ctx context.Context, batchID string, otpGen func() string) (*LockResult, error)
	UpdateStatusIf(ctx context.Context, id string, from, to domain.BatchStatus) error
	TransitionToCancelled(ctx context.Context, id string, reason string) ([]domain.Order, error)
	FindStaleLocked(ctx context.Context, cutoffBefore time.Time) ([]BatchWithCount, error)
	ActiveByShop(ctx context.Context, shopID string) ([]BatchWithCount, error)
}

type GormBatchRepo struct {
	db *gorm.DB
}

func NewGormBatchRepo(db *gorm.DB) *GormBatchRepo {
	return &GormBatchRepo{db: db}
}

func (r *GormBatchRepo) Create(ctx context.Context, b *domain.Batch) error {
	model := batchModelFromDomain(b)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if b != nil {
		*b = *batchModelToDomain(model)
	}
	return nil
}

func (r *GormBatchRepo) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	var model BatchModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return batchModelToDomain(&model), nil
}

func (r *GormBatchRepo) FindOpenByShop(ctx context.Context, shopID string) (*domain.Batch, error) {
	var model BatchModel
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND status = ?", shopID, domain.BatchStatusOpen).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return batchModelToDomain(&model), nil
}

// EnsureOpenBatch returns the shop's OPEN batch, creating one with the given
// cutoff when none exists. The partial unique index on (shop_id) WHERE
// status = 'OPEN' arbitrates concurrent creators; the loser re-reads.
func (r *GormBatchRepo) EnsureOpenBatch(ctx context.Context, shopID string, cutoff time.Time, label string) (*domain.Batch, error) {
	existing, err := r.FindOpenByShop(ctx, shopID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	model := &BatchModel{
		ID:         uuid.NewString(),
		ShopID:     shopID,
		Label:      label,
		CutoffTime: cutoff,
		Status:     domain.BatchStatusOpen,
	}

	createErr := r.db.WithContext(ctx).Create(model).Error
	if createErr == nil {
		return batchModelToDomain(model), nil
	}
	if isUniqueViolation(createErr) {
		return r.FindOpenByShop(ctx, shopID)
	}
	return nil, createErr
}

func (r *GormBatchRepo) FindDueForLock(ctx context.Context, now time.Time, limit int) ([]domain.Batch, error) {
	if limit < 1 {
		limit = 100
	}

	var models []BatchModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND cutoff_time < ?", domain.BatchStatusOpen, now).
		Order("cutoff_time ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	batches := make([]domain.Batch, 0, len(models))
	for i := range models {
		batches = append(batches, *batchModelToDomain(&models[i]))
	}
	return batches, nil
}

// TransitionOpenToLocked applies the cutoff-close transition as one unit of
// work: conditional OPEN guard, member orders to BATCHED, and a fresh OTP per
// order. A second concurrent run observes RowsAffected = 0 and skips, so OTPs
// are never regenerated.
func (r *GormBatchRepo) TransitionOpenToLocked(ctx context.Context, batchID string, otpGen func() string) (*LockResult, error) {
	result := &LockResult{}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&BatchModel{}).
			Where("id = ? AND status = ?", batchID, domain.BatchStatusOpen).
			Update("status", domain.BatchStatusLocked)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		var orderModels []OrderModel
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("batch_id = ?", batchID).
			Find(&orderModels).Error; err != nil {
			return err
		}

		for i := range orderModels {
			otp := otpGen()
			if err := tx.Model(&OrderModel{}).
				Where("id = ?", orderModels[i].ID).
				Updates(map[string]any{
					"status":       domain.OrderStatusBatched,
					"delivery_otp": otp,
				}).Error; err != nil {
				return err
			}
			orderModels[i].Status = domain.OrderStatusBatched
			orderModels[i].DeliveryOTP = &otp
		}

		result.Locked = true
		result.Orders = make([]domain.Order, 0, len(orderModels))
		for i := range orderModels {
			result.Orders = append(result.Orders, *orderModelToDomain(&orderModels[i]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// UpdateStatusIf applies a from/to transition guarded by the current status.
// Returns ErrConflict when the batch exists in a different state.
func (r *GormBatchRepo) UpdateStatusIf(ctx context.Context, id string, from, to domain.BatchStatus) error {
	result := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrConflict
	}
	return nil
}

// TransitionToCancelled cancels an OPEN or LOCKED batch and all member orders
// in one transaction. Returns the affected orders for buyer notification
// fan-out.
func (r *GormBatchRepo) TransitionToCancelled(ctx context.Context, id string, reason string) ([]domain.Order, error) {
	var cancelled []domain.Order

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&BatchModel{}).
			Where("id = ? AND status IN ?", id, []domain.BatchStatus{domain.BatchStatusOpen, domain.BatchStatusLocked}).
			Updates(map[string]any{
				"status":        domain.BatchStatusCancelled,
				"cancel_reason": reason,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var model BatchModel
			err := tx.First(&model, "id = ?", id).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			if err != nil {
				return err
			}
			return domain.ErrConflict
		}

		var orderModels []OrderModel
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("batch_id = ?", id).
			Find(&orderModels).Error; err != nil {
			return err
		}

		if len(orderModels) > 0 {
			if err := tx.Model(&OrderModel{}).
				Where("batch_id = ?", id).
				Update("status", domain.OrderStatusCancelled).Error; err != nil {
				return err
			}
		}

		cancelled = make([]domain.Order, 0, len(orderModels))
		for i := range orderModels {
			orderModels[i].Status = domain.OrderStatusCancelled
			cancelled = append(cancelled, *orderModelToDomain(&orderModels[i]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return cancelled, nil
}

func (r *GormBatchRepo) FindStaleLocked(ctx context.Context, cutoffBefore time.Time) ([]BatchWithCount, error) {
	var models []BatchModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND cutoff_time < ?", domain.BatchStatusLocked, cutoffBefore).
		Order("cutoff_time ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}

	counts, err := r.orderCounts(ctx, batchIDs(models))
	if err != nil {
		return nil, err
	}

	stale := make([]BatchWithCount, 0, len(models))
	for i := range models {
		count := counts[models[i].ID]
		if count < 1 {
			continue
		}
		stale = append(stale, BatchWithCount{
			Batch:      *batchModelToDomain(&models[i]),
			OrderCount: count,
		})
	}
	return stale, nil
}

func (r *GormBatchRepo) ActiveByShop(ctx context.Context, shopID string) ([]BatchWithCount, error) {
	var models []BatchModel
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND status IN ?", shopID, []domain.BatchStatus{domain.BatchStatusLocked, domain.BatchStatusInTransit}).
		Order("cutoff_time ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}

	counts, err := r.orderCounts(ctx, batchIDs(models))
	if err != nil {
		return nil, err
	}

	active := make([]BatchWithCount, 0, len(models))
	for i := range models {
		active = append(active, BatchWithCount{
			Batch:      *batchModelToDomain(&models[i]),
			OrderCount: counts[models[i].ID],
		})
	}
	return active, nil
}

type batchOrderCount struct {
	BatchID string `gorm:"column:batch_id"`
	Count   int    `gorm:"column:count"`
}

func (r *GormBatchRepo) orderCounts(ctx context.Context, ids []string) (map[string]int, error) {
	var rows []batchOrderCount
	err := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Select("batch_id, COUNT(*) as count").
		Where("batch_id IN ?", ids).
		Group("batch_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.BatchID] = row.Count
	}
	return counts, nil
}

func batchIDs(models []BatchModel) []string {
	ids := make([]string, 0, len(models))
	for i := range models {
		ids = append(ids, models[i].ID)
	}
	return ids
}

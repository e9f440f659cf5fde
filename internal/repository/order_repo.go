package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hostelcart/batch-engine/internal/domain"
	"gorm.io/gorm"
)

type OrderRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByBatch(ctx context.Context, batchID string) ([]domain.Order, error)
	CountByBatch(ctx context.Context, batchID string) (int64, error)
	AssignToBatch(ctx context.Context, orderID, batchID string) error
	MarkDelivered(ctx context.Context, orderID, code string, at time.Time) (bool, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error
}

type GormOrderRepo struct {
	db *gorm.DB
}

func NewGormOrderRepo(db *gorm.DB) *GormOrderRepo {
	return &GormOrderRepo{db: db}
}

func (r *GormOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return orderModelToDomain(&model), nil
}

func (r *GormOrderRepo) ListByBatch(ctx context.Context, batchID string) ([]domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("hostel_block ASC, created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(models))
	for i := range models {
		orders = append(orders, *orderModelToDomain(&models[i]))
	}
	return orders, nil
}

func (r *GormOrderRepo) CountByBatch(ctx context.Context, batchID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("batch_id = ?", batchID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// AssignToBatch places an unbatched NEW order into a batch. Returns
// ErrConflict when the order is already batched or past NEW.
func (r *GormOrderRepo) AssignToBatch(ctx context.Context, orderID, batchID string) error {
	result := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("id = ? AND batch_id IS NULL AND status = ?", orderID, domain.OrderStatusNew).
		Update("batch_id", batchID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, orderID); err != nil {
			return err
		}
		return domain.ErrConflict
	}
	return nil
}

// MarkDelivered completes an order once, guarded by the stored OTP. Returns
// false without error when the order was already completed (or the code lost
// a race), so the caller can treat resubmission as a no-op.
func (r *GormOrderRepo) MarkDelivered(ctx context.Context, orderID, code string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("id = ? AND delivery_otp = ? AND status <> ?", orderID, code, domain.OrderStatusCompleted).
		Updates(map[string]any{
			"status":       domain.OrderStatusCompleted,
			"delivered_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormOrderRepo) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	result := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

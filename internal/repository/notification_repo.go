package repository

import (
	"context"
	"errors"

	"github.com/hostelcart/batch-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NotificationRepository interface {
	// Create persists a notification row. Returns false without error when a
	// row with the same source job id already exists (redelivered job).
	Create(ctx context.Context, n *domain.Notification) (bool, error)
	GetBySourceJobID(ctx context.Context, jobID string) (*domain.Notification, error)
	ListForUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id string) error
}

type GormNotificationRepo struct {
	db *gorm.DB
}

func NewGormNotificationRepo(db *gorm.DB) *GormNotificationRepo {
	return &GormNotificationRepo{db: db}
}

func (r *GormNotificationRepo) Create(ctx context.Context, n *domain.Notification) (bool, error) {
	model := notificationModelFromDomain(n)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_job_id"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	if n != nil {
		*n = *notificationModelToDomain(model)
	}
	return true, nil
}

func (r *GormNotificationRepo) GetBySourceJobID(ctx context.Context, jobID string) (*domain.Notification, error) {
	var model NotificationModel
	err := r.db.WithContext(ctx).
		Where("source_job_id = ?", jobID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return notificationModelToDomain(&model), nil
}

func (r *GormNotificationRepo) ListForUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit < 1 {
		limit = 50
	}

	var models []NotificationModel
	err := r.db.WithContext(ctx).
		Where("recipient_id = ? OR recipient_id IS NULL", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	notifications := make([]domain.Notification, 0, len(models))
	for i := range models {
		notifications = append(notifications, *notificationModelToDomain(&models[i]))
	}
	return notifications, nil
}

func (r *GormNotificationRepo) MarkRead(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ?", id).
		Update("read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

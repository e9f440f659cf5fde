package repository

import (
	"context"

	"github.com/hostelcart/batch-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AuditRepository interface {
	// Create persists an immutable audit row. Returns false without error
	// when the idempotency key already exists (redelivered job).
	Create(ctx context.Context, a *domain.AuditLog) (bool, error)
	ListByTarget(ctx context.Context, targetType, targetID string, limit int) ([]domain.AuditLog, error)
}

type GormAuditRepo struct {
	db *gorm.DB
}

func NewGormAuditRepo(db *gorm.DB) *GormAuditRepo {
	return &GormAuditRepo{db: db}
}

func (r *GormAuditRepo) Create(ctx context.Context, a *domain.AuditLog) (bool, error) {
	model := auditLogModelFromDomain(a)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "idempotency_key"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	if a != nil {
		*a = *auditLogModelToDomain(model)
	}
	return true, nil
}

func (r *GormAuditRepo) ListByTarget(ctx context.Context, targetType, targetID string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 50
	}

	var models []AuditLogModel
	err := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	logs := make([]domain.AuditLog, 0, len(models))
	for i := range models {
		logs = append(logs, *auditLogModelToDomain(&models[i]))
	}
	return logs, nil
}

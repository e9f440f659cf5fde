package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/hostelcart/batch-engine/internal/domain"
	"gorm.io/gorm"
)

type ShopRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Shop, error)
}

type GormShopRepo struct {
	db *gorm.DB
}

func NewGormShopRepo(db *gorm.DB) *GormShopRepo {
	return &GormShopRepo{db: db}
}

func (r *GormShopRepo) GetByID(ctx context.Context, id string) (*domain.Shop, error) {
	var model ShopModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return shopModelToDomain(&model), nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

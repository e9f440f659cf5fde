package repository

import (
	"encoding/json"
	"time"

	"github.com/hostelcart/batch-engine/internal/domain"
)

// ShopModel is the persistence model for the shops table.
type ShopModel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	OwnerID   string `gorm:"type:uuid;not null"`
	Name      string `gorm:"type:varchar(255);not null"`
	Active    bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ShopModel) TableName() string {
	return "shops"
}

// BatchModel is the persistence model for the batches table.
type BatchModel struct {
	ID           string             `gorm:"type:uuid;primaryKey"`
	ShopID       string             `gorm:"type:uuid;not null"`
	Label        string             `gorm:"type:varchar(100)"`
	SortOrder    int                `gorm:"not null;default:0"`
	CutoffTime   time.Time          `gorm:"type:timestamptz;not null"`
	Status       domain.BatchStatus `gorm:"type:varchar(20);not null"`
	CancelReason *string            `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (BatchModel) TableName() string {
	return "batches"
}

// OrderModel is the persistence model for the orders table.
type OrderModel struct {
	ID          string             `gorm:"type:uuid;primaryKey"`
	DisplayID   string             `gorm:"type:varchar(20);not null"`
	ShopID      string             `gorm:"type:uuid;not null"`
	BuyerID     string             `gorm:"type:uuid;not null"`
	BatchID     *string            `gorm:"type:uuid"`
	Status      domain.OrderStatus `gorm:"type:varchar(20);not null"`
	DeliveryOTP *string            `gorm:"type:varchar(4)"`
	HostelBlock string             `gorm:"type:varchar(50)"`
	DeliveredAt *time.Time         `gorm:"type:timestamptz"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (OrderModel) TableName() string {
	return "orders"
}

// NotificationModel is the persistence model for the notifications table.
type NotificationModel struct {
	ID          string                      `gorm:"type:uuid;primaryKey"`
	RecipientID *string                     `gorm:"type:uuid"`
	Title       string                      `gorm:"type:varchar(255);not null"`
	Message     string                      `gorm:"type:text;not null"`
	Category    domain.NotificationCategory `gorm:"type:varchar(20);not null"`
	ActionURL   *string                     `gorm:"type:varchar(512)"`
	Read        bool                        `gorm:"not null;default:false"`
	SourceJobID string                      `gorm:"type:uuid;not null;uniqueIndex:idx_notifications_source_job"`
	CreatedAt   time.Time
}

func (NotificationModel) TableName() string {
	return "notifications"
}

// AuditLogModel is the persistence model for the audit_logs table.
type AuditLogModel struct {
	ID             string             `gorm:"type:uuid;primaryKey"`
	AdminID        string             `gorm:"type:uuid;not null"`
	Action         domain.AuditAction `gorm:"type:varchar(40);not null"`
	TargetType     string             `gorm:"type:varchar(40);not null"`
	TargetID       string             `gorm:"type:varchar(64);not null"`
	Details        json.RawMessage    `gorm:"type:jsonb"`
	IP             *string            `gorm:"type:varchar(45)"`
	UserAgent      *string            `gorm:"type:text"`
	IdempotencyKey string             `gorm:"type:varchar(64);not null;uniqueIndex:idx_audit_logs_idempotency"`
	CreatedAt      time.Time
}

func (AuditLogModel) TableName() string {
	return "audit_logs"
}

func shopModelToDomain(m *ShopModel) *domain.Shop {
	if m == nil {
		return nil
	}

	return &domain.Shop{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Name:      m.Name,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func batchModelFromDomain(b *domain.Batch) *BatchModel {
	if b == nil {
		return nil
	}

	return &BatchModel{
		ID:           b.ID,
		ShopID:       b.ShopID,
		Label:        b.Label,
		SortOrder:    b.SortOrder,
		CutoffTime:   b.CutoffTime,
		Status:       b.Status,
		CancelReason: b.CancelReason,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

func batchModelToDomain(m *BatchModel) *domain.Batch {
	if m == nil {
		return nil
	}

	return &domain.Batch{
		ID:           m.ID,
		ShopID:       m.ShopID,
		Label:        m.Label,
		SortOrder:    m.SortOrder,
		CutoffTime:   m.CutoffTime,
		Status:       m.Status,
		CancelReason: m.CancelReason,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func orderModelToDomain(m *OrderModel) *domain.Order {
	if m == nil {
		return nil
	}

	return &domain.Order{
		ID:          m.ID,
		DisplayID:   m.DisplayID,
		ShopID:      m.ShopID,
		BuyerID:     m.BuyerID,
		BatchID:     m.BatchID,
		Status:      m.Status,
		DeliveryOTP: m.DeliveryOTP,
		HostelBlock: m.HostelBlock,
		DeliveredAt: m.DeliveredAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func notificationModelFromDomain(n *domain.Notification) *NotificationModel {
	if n == nil {
		return nil
	}

	return &NotificationModel{
		ID:          n.ID,
		RecipientID: n.RecipientID,
		Title:       n.Title,
		Message:     n.Message,
		Category:    n.Category,
		ActionURL:   n.ActionURL,
		Read:        n.Read,
		SourceJobID: n.SourceJobID,
		CreatedAt:   n.CreatedAt,
	}
}

func notificationModelToDomain(m *NotificationModel) *domain.Notification {
	if m == nil {
		return nil
	}

	return &domain.Notification{
		ID:          m.ID,
		RecipientID: m.RecipientID,
		Title:       m.Title,
		Message:     m.Message,
		Category:    m.Category,
		ActionURL:   m.ActionURL,
		Read:        m.Read,
		SourceJobID: m.SourceJobID,
		CreatedAt:   m.CreatedAt,
	}
}

func auditLogModelFromDomain(a *domain.AuditLog) *AuditLogModel {
	if a == nil {
		return nil
	}

	return &AuditLogModel{
		ID:             a.ID,
		AdminID:        a.AdminID,
		Action:         a.Action,
		TargetType:     a.TargetType,
		TargetID:       a.TargetID,
		Details:        a.Details,
		IP:             a.IP,
		UserAgent:      a.UserAgent,
		IdempotencyKey: a.IdempotencyKey,
		CreatedAt:      a.CreatedAt,
	}
}

func auditLogModelToDomain(m *AuditLogModel) *domain.AuditLog {
	if m == nil {
		return nil
	}

	return &domain.AuditLog{
		ID:             m.ID,
		AdminID:        m.AdminID,
		Action:         m.Action,
		TargetType:     m.TargetType,
		TargetID:       m.TargetID,
		Details:        m.Details,
		IP:             m.IP,
		UserAgent:      m.UserAgent,
		IdempotencyKey: m.IdempotencyKey,
		CreatedAt:      m.CreatedAt,
	}
}

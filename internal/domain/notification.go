package domain

import (
	"fmt"
	"strings"
	"time"
)

// NotificationCategory groups notifications for client-side filtering.
type NotificationCategory string

const (
	CategoryBatch      NotificationCategory = "BATCH"
	CategoryOrder      NotificationCategory = "ORDER"
	CategoryEscalation NotificationCategory = "ESCALATION"
	CategorySystem     NotificationCategory = "SYSTEM"
)

func (c NotificationCategory) String() string { return string(c) }

func (c NotificationCategory) IsValid() bool {
	switch c {
	case CategoryBatch, CategoryOrder, CategoryEscalation, CategorySystem:
		return true
	}
	return false
}

func ParseNotificationCategoryFromString(s string) (NotificationCategory, error) {
	c := NotificationCategory(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("%w: invalid notification category %q", ErrValidation, s)
	}
	return c, nil
}

const maxNotificationTitle = 255

// Notification is a persisted in-app message. Rows are written only by the
// notification queue consumer; RecipientID is nil for broadcasts.
// SourceJobID dedupes at-least-once queue redelivery.
type Notification struct {
	ID          string
	RecipientID *string
	Title       string
	Message     string
	Category    NotificationCategory
	ActionURL   *string
	Read        bool
	SourceJobID string
	CreatedAt   time.Time
}

func (n *Notification) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if len([]rune(n.Title)) > maxNotificationTitle {
		return fmt.Errorf("%w: title exceeds %d characters", ErrValidation, maxNotificationTitle)
	}
	if strings.TrimSpace(n.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	if !n.Category.IsValid() {
		return fmt.Errorf("%w: invalid category %q", ErrValidation, n.Category)
	}
	if strings.TrimSpace(n.SourceJobID) == "" {
		return fmt.Errorf("%w: source job id is required", ErrValidation)
	}
	return nil
}

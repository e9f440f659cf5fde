package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AuditAction identifies the kind of admin or system action recorded.
type AuditAction string

const (
	AuditActionOrderStatusOverride AuditAction = "ORDER_STATUS_OVERRIDE"
	AuditActionBatchCancel         AuditAction = "BATCH_CANCEL"
	AuditActionShopUpdate          AuditAction = "SHOP_UPDATE"
	AuditActionUserUpdate          AuditAction = "USER_UPDATE"
)

func (a AuditAction) String() string { return string(a) }

func (a AuditAction) IsValid() bool {
	switch a {
	case AuditActionOrderStatusOverride, AuditActionBatchCancel, AuditActionShopUpdate, AuditActionUserUpdate:
		return true
	}
	return false
}

func ParseAuditActionFromString(s string) (AuditAction, error) {
	a := AuditAction(strings.ToUpper(strings.TrimSpace(s)))
	if !a.IsValid() {
		return "", fmt.Errorf("%w: invalid audit action %q", ErrValidation, s)
	}
	return a, nil
}

// AuditLog is an immutable record of an admin or system action. Rows are
// written only by the audit queue consumer; IdempotencyKey makes redelivered
// jobs a no-op insert conflict instead of a duplicate row.
type AuditLog struct {
	ID             string
	AdminID        string
	Action         AuditAction
	TargetType     string
	TargetID       string
	Details        json.RawMessage
	IP             *string
	UserAgent      *string
	IdempotencyKey string
	CreatedAt      time.Time
}

func (a *AuditLog) Validate() error {
	if strings.TrimSpace(a.AdminID) == "" {
		return fmt.Errorf("%w: admin id is required", ErrValidation)
	}
	if !a.Action.IsValid() {
		return fmt.Errorf("%w: invalid audit action %q", ErrValidation, a.Action)
	}
	if strings.TrimSpace(a.TargetType) == "" {
		return fmt.Errorf("%w: target type is required", ErrValidation)
	}
	if strings.TrimSpace(a.TargetID) == "" {
		return fmt.Errorf("%w: target id is required", ErrValidation)
	}
	if strings.TrimSpace(a.IdempotencyKey) == "" {
		return fmt.Errorf("%w: idempotency key is required", ErrValidation)
	}
	return nil
}

// AuditIdempotencyKey derives a stable dedupe key from the acting admin, the
// action, its target, and the event time bucketed to the second.
func AuditIdempotencyKey(adminID string, action AuditAction, targetType, targetID string, at time.Time) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%d", adminID, action, targetType, targetID, at.UTC().Unix())
	return hex.EncodeToString(h.Sum(nil))
}

package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hostelcart/batch-engine/internal/domain"
)

// JobType discriminates job payloads within a queue.
type JobType string

const (
	JobSendNotification      JobType = "SEND_NOTIFICATION"
	JobBroadcastNotification JobType = "BROADCAST_NOTIFICATION"

	JobRecordAudit JobType = "RECORD_AUDIT"

	JobIndexShop     JobType = "INDEX_SHOP"
	JobIndexProduct  JobType = "INDEX_PRODUCT"
	JobIndexOrder    JobType = "INDEX_ORDER"
	JobIndexUser     JobType = "INDEX_USER"
	JobDeleteShop    JobType = "DELETE_SHOP"
	JobDeleteProduct JobType = "DELETE_PRODUCT"
	JobDeleteOrder   JobType = "DELETE_ORDER"
	JobDeleteUser    JobType = "DELETE_USER"
)

func (t JobType) String() string { return string(t) }

func (t JobType) IsValid() bool {
	return t.Queue() != ""
}

// Queue maps a job type to the work queue that carries it.
func (t JobType) Queue() string {
	switch t {
	case JobSendNotification, JobBroadcastNotification:
		return QueueNotifications
	case JobRecordAudit:
		return QueueAudit
	case JobIndexShop, JobIndexProduct, JobIndexOrder, JobIndexUser,
		JobDeleteShop, JobDeleteProduct, JobDeleteOrder, JobDeleteUser:
		return QueueSearch
	}
	return ""
}

// IsDelete reports whether a search job removes a document instead of
// upserting it.
func (t JobType) IsDelete() bool {
	switch t {
	case JobDeleteShop, JobDeleteProduct, JobDeleteOrder, JobDeleteUser:
		return true
	}
	return false
}

// SearchEntity returns the index name for a search job type, e.g. "orders".
func (t JobType) SearchEntity() string {
	switch t {
	case JobIndexShop, JobDeleteShop:
		return "shops"
	case JobIndexProduct, JobDeleteProduct:
		return "products"
	case JobIndexOrder, JobDeleteOrder:
		return "orders"
	case JobIndexUser, JobDeleteUser:
		return "users"
	}
	return ""
}

// JobMessage is the broker envelope for all queues. Payload is decoded per
// Type by the consumer.
type JobMessage struct {
	JobID         string          `json:"jobId"`
	Type          JobType         `json:"type"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	EnqueuedAt    time.Time       `json:"enqueuedAt"`
}

func (m JobMessage) Validate() error {
	if strings.TrimSpace(m.JobID) == "" {
		return fmt.Errorf("jobId is required")
	}
	if !m.Type.IsValid() {
		return fmt.Errorf("invalid job type %q", m.Type)
	}
	if len(m.Payload) == 0 {
		return fmt.Errorf("payload is required")
	}
	return nil
}

// NewJobMessage builds an envelope with a fresh job id and the payload
// marshalled in place.
func NewJobMessage(jobType JobType, correlationID string, payload any) (JobMessage, error) {
	if !jobType.IsValid() {
		return JobMessage{}, fmt.Errorf("invalid job type %q", jobType)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return JobMessage{}, fmt.Errorf("failed to marshal job payload: %w", err)
	}

	return JobMessage{
		JobID:         uuid.NewString(),
		Type:          jobType,
		CorrelationID: correlationID,
		Payload:       body,
		EnqueuedAt:    time.Now().UTC(),
	}, nil
}

// SendNotificationPayload targets one user.
type SendNotificationPayload struct {
	UserID    string                      `json:"userId"`
	Title     string                      `json:"title"`
	Message   string                      `json:"message"`
	Category  domain.NotificationCategory `json:"category"`
	ActionURL string                      `json:"actionUrl,omitempty"`
}

// BroadcastNotificationPayload targets all users.
type BroadcastNotificationPayload struct {
	Title     string                      `json:"title"`
	Message   string                      `json:"message"`
	Category  domain.NotificationCategory `json:"category"`
	ActionURL string                      `json:"actionUrl,omitempty"`
}

// RecordAuditPayload carries one immutable admin/system action record.
type RecordAuditPayload struct {
	AdminID        string             `json:"adminId"`
	Action         domain.AuditAction `json:"action"`
	TargetType     string             `json:"targetType"`
	TargetID       string             `json:"targetId"`
	Details        json.RawMessage    `json:"details,omitempty"`
	IP             string             `json:"ip,omitempty"`
	UserAgent      string             `json:"userAgent,omitempty"`
	IdempotencyKey string             `json:"idempotencyKey"`
}

// IndexDocumentPayload upserts one search document, keyed by entity id.
type IndexDocumentPayload struct {
	EntityID string          `json:"entityId"`
	Document json.RawMessage `json:"document"`
}

// DeleteDocumentPayload removes one search document.
type DeleteDocumentPayload struct {
	EntityID string `json:"entityId"`
}

package domain

import (
	"fmt"
	"strings"
	"time"
)

// BatchStatus represents the lifecycle state of a delivery batch.
type BatchStatus string

const (
	BatchStatusOpen      BatchStatus = "OPEN"
	BatchStatusLocked    BatchStatus = "LOCKED"
	BatchStatusInTransit BatchStatus = "IN_TRANSIT"
	BatchStatusCompleted BatchStatus = "COMPLETED"
	BatchStatusCancelled BatchStatus = "CANCELLED"
)

func (s BatchStatus) String() string { return string(s) }

func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusOpen, BatchStatusLocked, BatchStatusInTransit, BatchStatusCompleted, BatchStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusCompleted || s == BatchStatusCancelled
}

// CanCancel reports whether bulk cancellation is allowed from this state.
// Deliveries in motion cannot be bulk-cancelled.
func (s BatchStatus) CanCancel() bool {
	return s == BatchStatusOpen || s == BatchStatusLocked
}

func ParseBatchStatusFromString(s string) (BatchStatus, error) {
	st := BatchStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid batch status %q", ErrValidation, s)
	}
	return st, nil
}

// Batch is a time-boxed group of orders for one shop, delivered together in
// one vendor trip. A shop has at most one OPEN batch at any time.
type Batch struct {
	ID           string
	ShopID       string
	Label        string
	SortOrder    int
	CutoffTime   time.Time
	Status       BatchStatus
	CancelReason *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PastCutoff reports whether the batch should stop accepting orders.
func (b *Batch) PastCutoff(now time.Time) bool {
	return b.CutoffTime.Before(now)
}

// IdleSince returns how long the batch has sat locked past its cutoff.
func (b *Batch) IdleSince(now time.Time) time.Duration {
	if !b.PastCutoff(now) {
		return 0
	}
	return now.Sub(b.CutoffTime)
}

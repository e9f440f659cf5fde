package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseBatchStatusFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    BatchStatus
		wantErr bool
	}{
		{name: "valid uppercase", input: "LOCKED", want: BatchStatusLocked},
		{name: "valid lowercase with spaces", input: " in_transit ", want: BatchStatusInTransit},
		{name: "invalid", input: "SHIPPED", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseBatchStatusFromString(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseBatchStatusFromString() error = %v, want ErrValidation", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseBatchStatusFromString() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseBatchStatusFromString() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBatchStatusCanCancel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status BatchStatus
		want   bool
	}{
		{BatchStatusOpen, true},
		{BatchStatusLocked, true},
		{BatchStatusInTransit, false},
		{BatchStatusCompleted, false},
		{BatchStatusCancelled, false},
	}

	for _, tt := range tests {
		if got := tt.status.CanCancel(); got != tt.want {
			t.Fatalf("CanCancel(%s) = %t, want %t", tt.status, got, tt.want)
		}
	}
}

func TestBatchStatusIsTerminal(t *testing.T) {
	t.Parallel()

	if BatchStatusInTransit.IsTerminal() {
		t.Fatal("IN_TRANSIT must not be terminal")
	}
	if !BatchStatusCompleted.IsTerminal() || !BatchStatusCancelled.IsTerminal() {
		t.Fatal("COMPLETED and CANCELLED must be terminal")
	}
}

func TestBatchIdleSince(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := &Batch{CutoffTime: now.Add(-45 * time.Minute)}

	if got := b.IdleSince(now); got != 45*time.Minute {
		t.Fatalf("IdleSince() = %s, want 45m", got)
	}

	future := &Batch{CutoffTime: now.Add(10 * time.Minute)}
	if got := future.IdleSince(now); got != 0 {
		t.Fatalf("IdleSince() before cutoff = %s, want 0", got)
	}
}

// Package alert delivers operator alerts to an external webhook endpoint.
// Notification loss is tolerated, audit loss is not; dead-lettered audit jobs
// and repeated infrastructure failures end up here.
package alert

import (
	"context"
	"time"
)

// Severity ranks an operator alert.
type Severity string

const (
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

func (s Severity) String() string { return string(s) }

// Alert is one operator-facing event.
type Alert struct {
	Severity Severity
	Summary  string
	Detail   string
	At       time.Time
}

// Alerter is the outbound operator-alert port.
type Alerter interface {
	Send(ctx context.Context, a Alert) error
}

// NopAlerter drops alerts; used when no ops endpoint is configured.
type NopAlerter struct{}

func (NopAlerter) Send(ctx context.Context, a Alert) error { return nil }

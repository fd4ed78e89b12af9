package domain

import (
	"context"
	"time"
)

// AuditEvent is one record of engine activity for the downstream audit
// stream: a job run, a city broadcast, or a personalized fanout batch.
type AuditEvent struct {
	ID          string    `json:"id"`
	Job         string    `json:"job"`
	CityID      int64     `json:"city_id,omitempty"`
	Probability float64   `json:"probability,omitempty"`
	Channel     string    `json:"channel,omitempty"`
	Delivered   int       `json:"delivered"`
	Failed      int       `json:"failed"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// AuditSink receives engine audit events. Publishing is best effort: jobs log
// sink failures and carry on, alert delivery never depends on the audit
// stream.
type AuditSink interface {
	Publish(ctx context.Context, events []AuditEvent) error
	Close() error
}

// NopAuditSink discards events. Used when no audit stream is configured.
type NopAuditSink struct{}

func (NopAuditSink) Publish(context.Context, []AuditEvent) error { return nil }
func (NopAuditSink) Close() error                                { return nil }

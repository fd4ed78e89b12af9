// Package lifecycle holds the batch state-transition jobs: releasing
// free-tier throttles after the cool-off window and expiring subscriptions
// that outlived their tier.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/auroralabs/aurora-alerts/internal/domain"
	"github.com/auroralabs/aurora-alerts/internal/observability"
)

// ThrottleWindow is how long a free-tier subscriber stays throttled after a
// confirmed alert. The boundary is inclusive: exactly seven days qualifies
// for release.
const ThrottleWindow = 7 * 24 * time.Hour

// Manager runs the lifecycle jobs against the subscriber store.
type Manager struct {
	store   domain.SubscriberStore
	audit   domain.AuditSink
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
}

// NewManager creates a Manager. The audit sink may be domain.NopAuditSink.
func NewManager(store domain.SubscriberStore, audit domain.AuditSink, logger *slog.Logger, metrics *observability.Metrics) *Manager {
	return &Manager{
		store:   store,
		audit:   audit,
		logger:  logger,
		metrics: metrics,
		clock:   clockwork.NewRealClock(),
	}
}

// SetClock replaces the manager's clock. Tests only.
func (m *Manager) SetClock(c clockwork.Clock) { m.clock = c }

// ResetThrottles releases every subscriber whose throttle stamp is at least
// ThrottleWindow old. Returns the number of subscribers released; a run with
// nobody eligible writes nothing and returns zero.
func (m *Manager) ResetThrottles(ctx context.Context) (int64, error) {
	cutoff := m.clock.Now().Add(-ThrottleWindow)

	eligible, err := m.store.ListThrottledBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("listing throttled subscribers: %w", err)
	}
	if len(eligible) == 0 {
		return 0, nil
	}

	ids := make([]int64, len(eligible))
	for i, sub := range eligible {
		ids[i] = sub.ID
	}

	n, err := m.store.MarkUnthrottled(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("releasing throttles: %w", err)
	}

	m.metrics.ThrottleTransitions.WithLabelValues("unthrottled").Add(float64(n))
	m.logger.Info("throttles released", "subscribers", n)
	m.publishAudit(ctx, "throttle_reset", int(n))
	return n, nil
}

// ExpireSubscriptions flips active subscriptions whose tier length has
// elapsed to inactive. Idempotent: rows already inactive are untouched, so a
// second run over the same state returns zero.
func (m *Manager) ExpireSubscriptions(ctx context.Context) (int64, error) {
	now := m.clock.Now()

	active, err := m.store.ListActiveSubscriptions(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing active subscriptions: %w", err)
	}

	var expired []uuid.UUID
	for _, sub := range active {
		if sub.Expired(now) {
			expired = append(expired, sub.ID)
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}

	n, err := m.store.MarkSubscriptionsInactive(ctx, expired)
	if err != nil {
		return 0, fmt.Errorf("expiring subscriptions: %w", err)
	}

	m.metrics.SubscriptionsExpired.Add(float64(n))
	m.logger.Info("subscriptions expired", "subscriptions", n)
	m.publishAudit(ctx, "subscription_expiry", int(n))
	return n, nil
}

func (m *Manager) publishAudit(ctx context.Context, job string, count int) {
	event := domain.AuditEvent{
		ID:         uuid.NewString(),
		Job:        job,
		Delivered:  count,
		OccurredAt: m.clock.Now().UTC(),
	}
	if err := m.audit.Publish(ctx, []domain.AuditEvent{event}); err != nil {
		m.logger.Warn("audit publish failed", "job", job, "error", err)
	}
}

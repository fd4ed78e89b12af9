package lifecycle

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auroralabs/aurora-alerts/internal/domain"
	"github.com/auroralabs/aurora-alerts/internal/observability"
)

// fakeStore keeps throttle and subscription state in memory so the jobs can
// be exercised end to end, including idempotency.
type fakeStore struct {
	subscribers     map[int64]*domain.Subscriber
	subscriptions   map[uuid.UUID]*domain.Subscription
	unthrottleCalls int
	inactivateCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		subscribers:   make(map[int64]*domain.Subscriber),
		subscriptions: make(map[uuid.UUID]*domain.Subscription),
	}
}

func (f *fakeStore) ListCities(context.Context) ([]domain.City, error) { return nil, nil }

func (f *fakeStore) ListActiveSubscriptionsByCity(context.Context, int64) ([]domain.Subscription, error) {
	return nil, nil
}

func (f *fakeStore) ListActiveSubscriptions(context.Context) ([]domain.Subscription, error) {
	var out []domain.Subscription
	for _, sub := range f.subscriptions {
		if sub.Active {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (f *fakeStore) ListFreeTierCandidates(context.Context, []int64) ([]domain.Subscriber, error) {
	return nil, nil
}

func (f *fakeStore) GetSubscribers(context.Context, []int64) ([]domain.Subscriber, error) {
	return nil, nil
}

func (f *fakeStore) MarkThrottled(_ context.Context, ids []int64, when time.Time) (int64, error) {
	for _, id := range ids {
		sub := f.subscribers[id]
		sub.Throttled = true
		at := when
		sub.ThrottledAt = &at
	}
	return int64(len(ids)), nil
}

func (f *fakeStore) MarkUnthrottled(_ context.Context, ids []int64) (int64, error) {
	f.unthrottleCalls++
	var n int64
	for _, id := range ids {
		sub := f.subscribers[id]
		if sub.Throttled {
			sub.Throttled = false
			sub.ThrottledAt = nil
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ListThrottledBefore(_ context.Context, cutoff time.Time) ([]domain.Subscriber, error) {
	var out []domain.Subscriber
	for _, sub := range f.subscribers {
		if sub.Throttled && sub.ThrottledAt != nil && !sub.ThrottledAt.After(cutoff) {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkSubscriptionsInactive(_ context.Context, ids []uuid.UUID) (int64, error) {
	f.inactivateCalls++
	var n int64
	for _, id := range ids {
		sub := f.subscriptions[id]
		if sub.Active {
			sub.Active = false
			n++
		}
	}
	return n, nil
}

func newTestManager(store *fakeStore, clock clockwork.Clock) *Manager {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(store, domain.NopAuditSink{}, logger, observability.NewMetricsForTesting())
	m.SetClock(clock)
	return m
}

func TestResetThrottles(t *testing.T) {
	clock := clockwork.NewFakeClock()
	now := clock.Now()
	store := newFakeStore()

	exactly := now.Add(-ThrottleWindow)
	older := now.Add(-ThrottleWindow - time.Hour)
	recent := now.Add(-ThrottleWindow + time.Minute)

	store.subscribers[1] = &domain.Subscriber{ID: 1, Throttled: true, ThrottledAt: &exactly}
	store.subscribers[2] = &domain.Subscriber{ID: 2, Throttled: true, ThrottledAt: &older}
	store.subscribers[3] = &domain.Subscriber{ID: 3, Throttled: true, ThrottledAt: &recent}
	store.subscribers[4] = &domain.Subscriber{ID: 4}

	m := newTestManager(store, clock)

	n, err := m.ResetThrottles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "exactly seven days qualifies, six days twenty-three hours does not")

	assert.False(t, store.subscribers[1].Throttled)
	assert.False(t, store.subscribers[2].Throttled)
	assert.True(t, store.subscribers[3].Throttled)
}

func TestResetThrottles_NobodyEligible(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newFakeStore()
	recent := clock.Now().Add(-time.Hour)
	store.subscribers[1] = &domain.Subscriber{ID: 1, Throttled: true, ThrottledAt: &recent}

	m := newTestManager(store, clock)

	n, err := m.ResetThrottles(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, store.unthrottleCalls, "no writes when nobody is eligible")
}

func TestResetThrottles_AfterAdvance(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newFakeStore()
	at := clock.Now()
	store.subscribers[1] = &domain.Subscriber{ID: 1, Throttled: true, ThrottledAt: &at}

	m := newTestManager(store, clock)

	n, err := m.ResetThrottles(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	clock.Advance(ThrottleWindow)
	n, err = m.ResetThrottles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestExpireSubscriptions(t *testing.T) {
	clock := clockwork.NewFakeClock()
	now := clock.Now()
	store := newFakeStore()

	lapsed := uuid.New()
	boundary := uuid.New()
	fresh := uuid.New()

	store.subscriptions[lapsed] = &domain.Subscription{
		ID: lapsed, TierDays: 1, Active: true, CreatedAt: now.Add(-36 * time.Hour),
	}
	store.subscriptions[boundary] = &domain.Subscription{
		ID: boundary, TierDays: 3, Active: true, CreatedAt: now.Add(-3 * 24 * time.Hour),
	}
	store.subscriptions[fresh] = &domain.Subscription{
		ID: fresh, TierDays: 30, Active: true, CreatedAt: now.Add(-24 * time.Hour),
	}

	m := newTestManager(store, clock)

	n, err := m.ExpireSubscriptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "the expiry instant itself counts as expired")

	assert.False(t, store.subscriptions[lapsed].Active)
	assert.False(t, store.subscriptions[boundary].Active)
	assert.True(t, store.subscriptions[fresh].Active)
}

func TestExpireSubscriptions_Idempotent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newFakeStore()
	id := uuid.New()
	store.subscriptions[id] = &domain.Subscription{
		ID: id, TierDays: 1, Active: true, CreatedAt: clock.Now().Add(-48 * time.Hour),
	}

	m := newTestManager(store, clock)

	n, err := m.ExpireSubscriptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = m.ExpireSubscriptions(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "a second run over the same state changes nothing")
}

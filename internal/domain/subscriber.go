package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// City is a reference location the grid is sampled at. Per-city probabilities
// use the city coordinate, not individual user positions.
type City struct {
	ID   int64   `db:"id"`
	Name string  `db:"name"`
	Lat  float64 `db:"lat"`
	Lon  float64 `db:"lon"`
}

// Subscriber is a registered device owner. Owned by the surrounding CRUD
// application; the engine reads it and flips only the throttle fields.
type Subscriber struct {
	ID          int64      `db:"id"`
	CityID      int64      `db:"city_id"`
	Locale      string     `db:"locale"`
	PushToken   string     `db:"push_token"`
	Throttled   bool       `db:"throttled"`
	ThrottledAt *time.Time `db:"throttled_at"`
}

// Subscription tier lengths, in days. Created active, flipped inactive once
// the tier length has elapsed, never resurrected.
var SubscriptionTierDays = [4]int{1, 3, 7, 30}

// Subscription is a paid alert subscription with a subscriber-chosen
// probability threshold.
type Subscription struct {
	ID               uuid.UUID `db:"id"`
	SubscriberID     int64     `db:"subscriber_id"`
	AlertProbability int       `db:"alert_probability"` // 0-100
	TierDays         int       `db:"tier_days"`         // one of SubscriptionTierDays
	Active           bool      `db:"active"`
	CreatedAt        time.Time `db:"created_at"`
}

// ExpiresAt is the instant the subscription's tier length elapses.
func (s Subscription) ExpiresAt() time.Time {
	return s.CreatedAt.Add(time.Duration(s.TierDays) * 24 * time.Hour)
}

// Expired reports whether the subscription has outlived its tier at now.
func (s Subscription) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt())
}

// ValidateSubscription rejects out-of-range thresholds and unknown tiers
// before any state is written.
func ValidateSubscription(s Subscription) error {
	if s.AlertProbability < 0 || s.AlertProbability > 100 {
		return &ValidationError{Field: "alert_probability", Reason: "must be in [0, 100]"}
	}
	for _, d := range SubscriptionTierDays {
		if s.TierDays == d {
			return nil
		}
	}
	return &ValidationError{Field: "tier_days", Reason: "must be one of 1, 3, 7, 30"}
}

// SubscriberStore is the read/write boundary to the subscriber base. The
// production store lives in the CRUD application; the engine ships a SQLite
// implementation for self-contained deployments and tests.
type SubscriberStore interface {
	ListCities(ctx context.Context) ([]City, error)

	ListActiveSubscriptionsByCity(ctx context.Context, cityID int64) ([]Subscription, error)
	ListActiveSubscriptions(ctx context.Context) ([]Subscription, error)

	// ListFreeTierCandidates returns subscribers in the given cities who are
	// not throttled and hold no active subscription (an inactive or absent
	// subscription both qualify).
	ListFreeTierCandidates(ctx context.Context, cityIDs []int64) ([]Subscriber, error)

	// GetSubscribers resolves subscriber rows by id, preserving no particular order.
	GetSubscribers(ctx context.Context, ids []int64) ([]Subscriber, error)

	MarkThrottled(ctx context.Context, subscriberIDs []int64, when time.Time) (int64, error)
	MarkUnthrottled(ctx context.Context, subscriberIDs []int64) (int64, error)
	ListThrottledBefore(ctx context.Context, cutoff time.Time) ([]Subscriber, error)

	MarkSubscriptionsInactive(ctx context.Context, ids []uuid.UUID) (int64, error)
}

// Channel distinguishes topic broadcasts from per-device pushes.
type Channel string

const (
	ChannelTopic Channel = "topic"
	ChannelToken Channel = "token"
)

// Message is one push to deliver: a broadcast (Topic set) or a personalized
// push (Token set). Built per job run, never persisted.
type Message struct {
	SubscriberID int64
	Channel      Channel
	Topic        string
	Token        string
	Locale       string
	Notification Notification
}

// SendOutcome is the per-message delivery result from the transport.
type SendOutcome struct {
	OK        bool
	MessageID string
	Error     string
}

// BatchResult aggregates a batch send.
type BatchResult struct {
	Outcomes []SendOutcome
}

// SuccessCount is the number of confirmed deliveries in the batch.
func (r BatchResult) SuccessCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK {
			n++
		}
	}
	return n
}

// FailureCount is the number of unconfirmed deliveries in the batch.
func (r BatchResult) FailureCount() int { return len(r.Outcomes) - r.SuccessCount() }

// PushTransport is the delivery boundary. SendBatch is fire-once per job run:
// failures are reported in the result, never retried within the same run.
// Dry-run implementations short-circuit with synthetic success outcomes.
type PushTransport interface {
	SendBatch(ctx context.Context, messages []Message) (BatchResult, error)
	SubscribeTopic(ctx context.Context, token, topic string) error
	UnsubscribeTopic(ctx context.Context, token, topic string) error
}

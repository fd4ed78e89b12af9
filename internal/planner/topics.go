package planner

import (
	"context"
	"fmt"

	"github.com/auroralabs/aurora-alerts/internal/domain"
)

// SyncTopics reconciles a subscriber's device token with its city topics:
// the free topic plus the given tier topic, with every other tier topic
// unsubscribed. Called by the surrounding CRUD layer when a subscriber
// registers, moves city, or changes tier; tier 0 means free only.
func (p *Planner) SyncTopics(ctx context.Context, sub domain.Subscriber, tier int) error {
	if sub.PushToken == "" {
		return &domain.ValidationError{Field: "push_token", Reason: "must not be empty"}
	}

	free := domain.TopicKey{Env: p.env, CityID: sub.CityID, Locale: sub.Locale}
	if err := p.transport.SubscribeTopic(ctx, sub.PushToken, free.String()); err != nil {
		return fmt.Errorf("subscribing free topic: %w", err)
	}

	for _, t := range domain.Tiers {
		key := domain.TopicKey{Env: p.env, CityID: sub.CityID, Locale: sub.Locale, Tier: t.Label}
		if t.Label == tier {
			if err := p.transport.SubscribeTopic(ctx, sub.PushToken, key.String()); err != nil {
				return fmt.Errorf("subscribing tier topic: %w", err)
			}
			continue
		}
		if err := p.transport.UnsubscribeTopic(ctx, sub.PushToken, key.String()); err != nil {
			return fmt.Errorf("unsubscribing tier topic: %w", err)
		}
	}

	p.logger.Info("topics reconciled", "subscriber_id", sub.ID, "city_id", sub.CityID, "tier", tier)
	return nil
}

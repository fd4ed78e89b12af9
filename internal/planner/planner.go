// Package planner turns a probability map into push notifications. It owns
// the fanout strategies and the free-tier throttle flip; reading the
// subscriber base and delivering pushes stay behind the domain interfaces.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/auroralabs/aurora-alerts/internal/domain"
	"github.com/auroralabs/aurora-alerts/internal/observability"
)

// Strategy selects how a fanout run addresses its audience.
type Strategy string

const (
	// StrategyTopic broadcasts one message per (city, tier, locale) topic.
	StrategyTopic Strategy = "topic"
	// StrategyPerUser sends personalized pushes: paid subscriptions against
	// their own thresholds, free-tier users against the global threshold.
	StrategyPerUser Strategy = "per_user"
)

// GridSource provides the current OVATION grid.
type GridSource interface {
	FetchGrid(ctx context.Context) (*domain.Grid, error)
}

// FanoutResult summarizes one fanout run. Per-item faults land in Errors;
// the run as a whole still counts as executed.
type FanoutResult struct {
	Delivered int      `json:"delivered"`
	TargetIDs []int64  `json:"target_ids,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

func (r *FanoutResult) merge(other FanoutResult) {
	r.Delivered += other.Delivered
	r.TargetIDs = append(r.TargetIDs, other.TargetIDs...)
	r.Errors = append(r.Errors, other.Errors...)
}

// Planner plans and executes notification fanout runs.
type Planner struct {
	store     domain.SubscriberStore
	transport domain.PushTransport
	grids     GridSource
	audit     domain.AuditSink
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock

	env               string
	freeTierThreshold float64
}

// New creates a Planner. The audit sink may be domain.NopAuditSink when no
// audit stream is configured.
func New(
	store domain.SubscriberStore,
	transport domain.PushTransport,
	grids GridSource,
	audit domain.AuditSink,
	env string,
	freeTierThreshold float64,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Planner {
	return &Planner{
		store:             store,
		transport:         transport,
		grids:             grids,
		audit:             audit,
		logger:            logger,
		metrics:           metrics,
		clock:             clockwork.NewRealClock(),
		env:               env,
		freeTierThreshold: freeTierThreshold,
	}
}

// SetClock replaces the planner's clock. Tests only.
func (p *Planner) SetClock(c clockwork.Clock) { p.clock = c }

// Fanout executes one run of the given strategy. When override is non-nil it
// is used as the probability map verbatim and the grid is not consulted.
// The returned error covers only pre-send failures (listing cities, fetching
// the grid); delivery faults are reported in the result.
func (p *Planner) Fanout(ctx context.Context, strategy Strategy, override map[int64]float64) (FanoutResult, error) {
	cities, err := p.store.ListCities(ctx)
	if err != nil {
		return FanoutResult{}, fmt.Errorf("listing cities: %w", err)
	}

	probs := override
	if probs == nil {
		grid, err := p.grids.FetchGrid(ctx)
		if err != nil {
			return FanoutResult{}, fmt.Errorf("fetching grid: %w", err)
		}
		probs = p.CityProbabilities(grid, cities)
	}

	var result FanoutResult
	switch strategy {
	case StrategyTopic:
		result = p.topicFanout(ctx, probs)
	case StrategyPerUser:
		result = p.perUserFanout(ctx, probs)
	default:
		return FanoutResult{}, &domain.ValidationError{Field: "strategy", Reason: "unknown strategy: " + string(strategy)}
	}

	p.publishAudit(ctx, "fanout_"+string(strategy), result)
	return result, nil
}

// topicFanout broadcasts one message per (city, tier, locale) for every city
// at or above the lowest tier.
func (p *Planner) topicFanout(ctx context.Context, probs map[int64]float64) FanoutResult {
	var messages []domain.Message
	for _, cityID := range sortedKeys(probs) {
		tier, ok := domain.TierFor(probs[cityID])
		if !ok {
			continue
		}
		p.metrics.CitiesAlerted.Inc()
		for _, locale := range domain.Locales {
			key := domain.TopicKey{Env: p.env, CityID: cityID, Locale: locale, Tier: tier}
			messages = append(messages, domain.Message{
				Channel:      domain.ChannelTopic,
				Topic:        key.String(),
				Locale:       locale,
				Notification: domain.LocalizedNotification(locale),
			})
		}
	}
	if len(messages) == 0 {
		return FanoutResult{}
	}

	batch, err := p.transport.SendBatch(ctx, messages)
	result := p.collectOutcomes(messages, batch, "topic")
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
	return result
}

// perUserFanout runs the paid-subscription and free-tier sends concurrently.
// The two audiences are disjoint: a free-tier candidate by definition holds
// no active subscription. A pre-send store failure on either path cancels the
// sibling through the group context; delivery faults stay in the results.
func (p *Planner) perUserFanout(ctx context.Context, probs map[int64]float64) FanoutResult {
	var subscriptionResult, freeTierResult FanoutResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		subscriptionResult, err = p.subscriptionFanout(gctx, probs)
		return err
	})
	g.Go(func() error {
		var err error
		freeTierResult, err = p.freeTierFanout(gctx, probs)
		return err
	})
	err := g.Wait()

	result := subscriptionResult
	result.merge(freeTierResult)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
	return result
}

// subscriptionFanout messages subscribers whose active subscription threshold
// is met by their city's probability, at most once per subscriber per run.
// The returned error covers only pre-send store failures; nothing has been
// sent when it is non-nil.
func (p *Planner) subscriptionFanout(ctx context.Context, probs map[int64]float64) (FanoutResult, error) {
	var result FanoutResult
	seen := make(map[int64]bool)
	var targetIDs []int64

	for _, cityID := range sortedKeys(probs) {
		prob := probs[cityID]
		subs, err := p.store.ListActiveSubscriptionsByCity(ctx, cityID)
		if err != nil {
			p.logger.Error("listing subscriptions failed", "city_id", cityID, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("city %d: %v", cityID, err))
			continue
		}
		for _, sub := range subs {
			if prob < float64(sub.AlertProbability) || seen[sub.SubscriberID] {
				continue
			}
			seen[sub.SubscriberID] = true
			targetIDs = append(targetIDs, sub.SubscriberID)
		}
	}
	if len(targetIDs) == 0 {
		return result, nil
	}

	subscribers, err := p.store.GetSubscribers(ctx, targetIDs)
	if err != nil {
		return result, fmt.Errorf("resolving subscribers: %w", err)
	}

	messages := tokenMessages(subscribers)
	batch, err := p.transport.SendBatch(ctx, messages)
	sent := p.collectOutcomes(messages, batch, "token")
	if err != nil {
		sent.Errors = append(sent.Errors, err.Error())
	}
	result.merge(sent)
	return result, nil
}

// freeTierFanout messages unthrottled users without an active subscription in
// cities at or above the free-tier threshold, then throttles exactly the
// confirmed deliveries. A failed send leaves the user available for the next
// run. The returned error covers only pre-send store failures.
func (p *Planner) freeTierFanout(ctx context.Context, probs map[int64]float64) (FanoutResult, error) {
	var result FanoutResult

	var cityIDs []int64
	for _, cityID := range sortedKeys(probs) {
		if probs[cityID] >= p.freeTierThreshold {
			cityIDs = append(cityIDs, cityID)
		}
	}
	if len(cityIDs) == 0 {
		return result, nil
	}

	candidates, err := p.store.ListFreeTierCandidates(ctx, cityIDs)
	if err != nil {
		return result, fmt.Errorf("listing free-tier candidates: %w", err)
	}
	if len(candidates) == 0 {
		return result, nil
	}

	messages := tokenMessages(candidates)
	batch, err := p.transport.SendBatch(ctx, messages)
	sent := p.collectOutcomes(messages, batch, "token")
	if err != nil {
		sent.Errors = append(sent.Errors, err.Error())
	}
	result.merge(sent)

	if len(sent.TargetIDs) == 0 {
		return result, nil
	}

	n, err := p.store.MarkThrottled(ctx, sent.TargetIDs, p.clock.Now())
	if err != nil {
		p.logger.Error("marking throttled failed", "error", err, "subscribers", len(sent.TargetIDs))
		result.Errors = append(result.Errors, err.Error())
		return result, nil
	}
	p.metrics.ThrottleTransitions.WithLabelValues("throttled").Add(float64(n))
	p.logger.Info("free-tier fanout complete", "delivered", sent.Delivered, "throttled", n)
	return result, nil
}

// collectOutcomes folds a batch result into a FanoutResult, counting metrics
// per outcome. Outcomes align with messages by index.
func (p *Planner) collectOutcomes(messages []domain.Message, batch domain.BatchResult, channel string) FanoutResult {
	var result FanoutResult
	for i, outcome := range batch.Outcomes {
		if !outcome.OK {
			p.metrics.NotificationsSent.WithLabelValues(channel, "error").Inc()
			result.Errors = append(result.Errors, outcome.Error)
			continue
		}
		p.metrics.NotificationsSent.WithLabelValues(channel, "success").Inc()
		result.Delivered++
		if i < len(messages) && messages[i].SubscriberID != 0 {
			result.TargetIDs = append(result.TargetIDs, messages[i].SubscriberID)
		}
	}
	return result
}

func (p *Planner) publishAudit(ctx context.Context, job string, result FanoutResult) {
	event := domain.AuditEvent{
		ID:         uuid.NewString(),
		Job:        job,
		Delivered:  result.Delivered,
		Failed:     len(result.Errors),
		OccurredAt: p.clock.Now().UTC(),
	}
	if err := p.audit.Publish(ctx, []domain.AuditEvent{event}); err != nil {
		p.logger.Warn("audit publish failed", "job", job, "error", err)
	}
}

func tokenMessages(subscribers []domain.Subscriber) []domain.Message {
	messages := make([]domain.Message, len(subscribers))
	for i, sub := range subscribers {
		messages[i] = domain.Message{
			SubscriberID: sub.ID,
			Channel:      domain.ChannelToken,
			Token:        sub.PushToken,
			Locale:       sub.Locale,
			Notification: domain.LocalizedNotification(sub.Locale),
		}
	}
	return messages
}

func sortedKeys(m map[int64]float64) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

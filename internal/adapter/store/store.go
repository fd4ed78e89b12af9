// Package store implements the subscriber store on SQLite for self-contained
// deployments and tests. The production subscriber base lives in the
// surrounding CRUD application; this package speaks the same schema.
package store

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/auroralabs/aurora-alerts/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLite implements domain.SubscriberStore on a local SQLite database.
type SQLite struct {
	db *sqlx.DB
}

// Open opens (or creates) the database at path and applies pending
// migrations.
func Open(path string) (*SQLite, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func runMigrations(db *sqlx.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db.DB, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CheckReadiness reports whether the database is reachable.
func (s *SQLite) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ListCities returns all reference cities ordered by id.
func (s *SQLite) ListCities(ctx context.Context) ([]domain.City, error) {
	var cities []domain.City
	err := s.db.SelectContext(ctx, &cities, "SELECT * FROM cities ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing cities: %w", err)
	}
	return cities, nil
}

// ListActiveSubscriptionsByCity returns active subscriptions whose
// subscribers live in the given city.
func (s *SQLite) ListActiveSubscriptionsByCity(ctx context.Context, cityID int64) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	err := s.db.SelectContext(ctx, &subs, `
		SELECT sub.* FROM subscriptions sub
		JOIN subscribers u ON u.id = sub.subscriber_id
		WHERE sub.active = 1 AND u.city_id = ?
		ORDER BY sub.created_at`, cityID)
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions for city %d: %w", cityID, err)
	}
	return subs, nil
}

// ListActiveSubscriptions returns every active subscription.
func (s *SQLite) ListActiveSubscriptions(ctx context.Context) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	err := s.db.SelectContext(ctx, &subs,
		"SELECT * FROM subscriptions WHERE active = 1 ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("listing active subscriptions: %w", err)
	}
	return subs, nil
}

// ListFreeTierCandidates returns subscribers in the given cities who are not
// throttled and hold no active subscription.
func (s *SQLite) ListFreeTierCandidates(ctx context.Context, cityIDs []int64) ([]domain.Subscriber, error) {
	if len(cityIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT u.* FROM subscribers u
		WHERE u.city_id IN (?)
		  AND u.throttled = 0
		  AND NOT EXISTS (
			SELECT 1 FROM subscriptions sub
			WHERE sub.subscriber_id = u.id AND sub.active = 1
		  )
		ORDER BY u.id`, cityIDs)
	if err != nil {
		return nil, fmt.Errorf("building candidate query: %w", err)
	}

	var subscribers []domain.Subscriber
	err = s.db.SelectContext(ctx, &subscribers, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing free-tier candidates: %w", err)
	}
	return subscribers, nil
}

// GetSubscribers resolves subscriber rows by id.
func (s *SQLite) GetSubscribers(ctx context.Context, ids []int64) ([]domain.Subscriber, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In("SELECT * FROM subscribers WHERE id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("building subscriber query: %w", err)
	}

	var subscribers []domain.Subscriber
	err = s.db.SelectContext(ctx, &subscribers, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("getting subscribers: %w", err)
	}
	return subscribers, nil
}

// MarkThrottled flips the throttle flag on the given subscribers and stamps
// the transition time. Returns the number of rows changed.
func (s *SQLite) MarkThrottled(ctx context.Context, subscriberIDs []int64, when time.Time) (int64, error) {
	if len(subscriberIDs) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(
		"UPDATE subscribers SET throttled = 1, throttled_at = ? WHERE id IN (?) AND throttled = 0",
		when.UTC(), subscriberIDs)
	if err != nil {
		return 0, fmt.Errorf("building throttle query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("marking throttled: %w", err)
	}
	return res.RowsAffected()
}

// MarkUnthrottled clears the throttle flag and stamp on the given
// subscribers. Returns the number of rows changed.
func (s *SQLite) MarkUnthrottled(ctx context.Context, subscriberIDs []int64) (int64, error) {
	if len(subscriberIDs) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(
		"UPDATE subscribers SET throttled = 0, throttled_at = NULL WHERE id IN (?) AND throttled = 1",
		subscriberIDs)
	if err != nil {
		return 0, fmt.Errorf("building unthrottle query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("marking unthrottled: %w", err)
	}
	return res.RowsAffected()
}

// ListThrottledBefore returns throttled subscribers whose transition stamp is
// at or before cutoff.
func (s *SQLite) ListThrottledBefore(ctx context.Context, cutoff time.Time) ([]domain.Subscriber, error) {
	var subscribers []domain.Subscriber
	err := s.db.SelectContext(ctx, &subscribers,
		"SELECT * FROM subscribers WHERE throttled = 1 AND throttled_at <= ? ORDER BY id",
		cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("listing throttled subscribers: %w", err)
	}
	return subscribers, nil
}

// MarkSubscriptionsInactive flips the given subscriptions inactive. Already
// inactive rows are untouched, so a repeated call reports zero.
func (s *SQLite) MarkSubscriptionsInactive(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(
		"UPDATE subscriptions SET active = 0 WHERE id IN (?) AND active = 1", ids)
	if err != nil {
		return 0, fmt.Errorf("building expiry query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("marking subscriptions inactive: %w", err)
	}
	return res.RowsAffected()
}

// CreateCity inserts a reference city and returns its id. Used by the
// ops CLI and tests; the CRUD application owns city management in production.
func (s *SQLite) CreateCity(ctx context.Context, city domain.City) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO cities (name, lat, lon) VALUES (?, ?, ?)",
		city.Name, city.Lat, city.Lon)
	if err != nil {
		return 0, fmt.Errorf("creating city %q: %w", city.Name, err)
	}
	return res.LastInsertId()
}

// CreateSubscriber inserts a subscriber and returns its id.
func (s *SQLite) CreateSubscriber(ctx context.Context, sub domain.Subscriber) (int64, error) {
	if sub.Locale == "" {
		sub.Locale = domain.DefaultLocale
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO subscribers (city_id, locale, push_token, throttled, throttled_at)
		VALUES (?, ?, ?, ?, ?)`,
		sub.CityID, sub.Locale, sub.PushToken, sub.Throttled, sub.ThrottledAt)
	if err != nil {
		return 0, fmt.Errorf("creating subscriber: %w", err)
	}
	return res.LastInsertId()
}

// CreateSubscription validates and inserts a subscription. A zero ID is
// assigned; a zero CreatedAt is stamped with the current time.
func (s *SQLite) CreateSubscription(ctx context.Context, sub domain.Subscription) (uuid.UUID, error) {
	if err := domain.ValidateSubscription(sub); err != nil {
		return uuid.Nil, err
	}
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = domain.Clock().Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, subscriber_id, alert_probability, tier_days, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.SubscriberID, sub.AlertProbability, sub.TierDays, sub.Active, sub.CreatedAt.UTC())
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating subscription: %w", err)
	}
	return sub.ID, nil
}

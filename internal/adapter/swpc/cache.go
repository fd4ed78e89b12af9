package swpc

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/auroralabs/aurora-alerts/internal/domain"
	"github.com/auroralabs/aurora-alerts/internal/observability"
)

// GridFetcher is the grid source the cache decorates.
type GridFetcher interface {
	FetchGrid(ctx context.Context) (*domain.Grid, error)
}

// CachedGridFetcher wraps a GridFetcher with a single-value TTL cache. The
// OVATION feed refreshes on a fixed cadence upstream, so every job run within
// one window sees the same grid. Flush drops the cached value on operator
// request; the cache owns no other invalidation logic.
type CachedGridFetcher struct {
	inner   GridFetcher
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics

	mu        sync.Mutex
	grid      *domain.Grid
	fetchedAt time.Time
}

// NewCachedGridFetcher creates the cache decorator. A non-positive ttl
// disables caching entirely.
func NewCachedGridFetcher(inner GridFetcher, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *CachedGridFetcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CachedGridFetcher{inner: inner, ttl: ttl, clock: clock, metrics: metrics}
}

// FetchGrid returns the cached grid while fresh, otherwise fetches and
// caches. Errors are never cached; the next call retries.
func (c *CachedGridFetcher) FetchGrid(ctx context.Context) (*domain.Grid, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.grid != nil && c.ttl > 0 && c.clock.Since(c.fetchedAt) < c.ttl {
		c.metrics.GridFetches.WithLabelValues("cached").Inc()
		return c.grid, nil
	}

	grid, err := c.inner.FetchGrid(ctx)
	if err != nil {
		c.metrics.GridFetches.WithLabelValues("error").Inc()
		return nil, err
	}
	c.metrics.GridFetches.WithLabelValues("success").Inc()
	if c.ttl > 0 {
		c.grid = grid
		c.fetchedAt = c.clock.Now()
	}
	return grid, nil
}

// Flush drops the cached grid so the next fetch hits the feed.
func (c *CachedGridFetcher) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grid = nil
}

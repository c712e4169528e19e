// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/danielhkuo/factcheck-votes/metrics"
	"github.com/danielhkuo/factcheck-votes/models"
)

const (
	// DefaultTTL is how long an aggregate is served before it is reloaded
	DefaultTTL = 5 * time.Minute

	// LoadTimeout bounds a shared load. Loads run detached from the
	// caller's context so one canceled caller cannot fail the others.
	LoadTimeout = 10 * time.Second
)

// OriginCache is the origin GetOrLoad reports for a cache hit
const OriginCache = "cache"

// Loader fetches an aggregate on a cache miss and names where it came from
type Loader func(ctx context.Context) (agg models.Aggregate, origin string, err error)

type loaded struct {
	agg    models.Aggregate
	origin string
}

type entry struct {
	agg      models.Aggregate
	storedAt time.Time
}

// AggregateCache is a short-TTL in-memory view of stored aggregates.
// Safe for concurrent use. Construct one per process with New; nothing is shared
// between instances.
type AggregateCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	loading map[string]bool // keys with a load in flight
	dirty   map[string]bool // invalidated while loading; the load result is not stored
	flight  singleflight.Group

	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures an AggregateCache
type Option func(*AggregateCache)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(c *AggregateCache) { c.now = now }
}

// WithSweepInterval sets how often Start's janitor drops expired entries
func WithSweepInterval(d time.Duration) Option {
	return func(c *AggregateCache) { c.sweepInterval = d }
}

// New creates a cache whose entries live for ttl
func New(ttl time.Duration, opts ...Option) *AggregateCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &AggregateCache{
		entries:       make(map[string]entry),
		loading:       make(map[string]bool),
		dirty:         make(map[string]bool),
		ttl:           ttl,
		sweepInterval: ttl,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached aggregate if present and younger than the TTL
func (c *AggregateCache) Get(itemID string) (models.Aggregate, bool) {
	c.mu.RLock()
	e, ok := c.entries[itemID]
	c.mu.RUnlock()

	if !ok {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return models.Aggregate{}, false
	}
	if c.expired(e) {
		metrics.CacheLookups.WithLabelValues("expired").Inc()
		return models.Aggregate{}, false
	}

	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return e.agg, true
}

// Stale returns the entry for itemID even if it has expired, as long as the
// janitor has not swept it yet. Invalidated entries are gone.
func (c *AggregateCache) Stale(itemID string) (models.Aggregate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[itemID]
	return e.agg, ok
}

// Set stores agg for itemID
func (c *AggregateCache) Set(itemID string, agg models.Aggregate) {
	c.mu.Lock()
	c.entries[itemID] = entry{agg: agg, storedAt: c.now()}
	c.mu.Unlock()
}

// Invalidate drops the given items. A load already in flight for one of them
// still returns its result to its callers but does not repopulate the cache.
func (c *AggregateCache) Invalidate(itemIDs ...string) {
	c.mu.Lock()
	for _, id := range itemIDs {
		delete(c.entries, id)
		if c.loading[id] {
			c.dirty[id] = true
		}
	}
	c.mu.Unlock()
}

// GetOrLoad returns the cached aggregate or calls load, sharing one load
// between concurrent callers for the same item. origin is OriginCache for a
// hit, otherwise whatever the shared load reported.
func (c *AggregateCache) GetOrLoad(ctx context.Context, itemID string, load Loader) (agg models.Aggregate, origin string, err error) {
	if agg, ok := c.Get(itemID); ok {
		return agg, OriginCache, nil
	}

	ch := c.flight.DoChan(itemID, func() (interface{}, error) {
		c.mu.Lock()
		c.loading[itemID] = true
		delete(c.dirty, itemID)
		c.mu.Unlock()

		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), LoadTimeout)
		defer cancel()
		agg, origin, err := load(loadCtx)

		c.mu.Lock()
		if err == nil && !c.dirty[itemID] {
			c.entries[itemID] = entry{agg: agg, storedAt: c.now()}
		}
		delete(c.loading, itemID)
		delete(c.dirty, itemID)
		c.mu.Unlock()

		return loaded{agg: agg, origin: origin}, err
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return models.Aggregate{}, "", res.Err
		}
		l := res.Val.(loaded)
		return l.agg, l.origin, nil
	case <-ctx.Done():
		return models.Aggregate{}, "", ctx.Err()
	}
}

// Len returns the number of entries, expired ones included until swept
func (c *AggregateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Start runs the janitor until ctx is canceled or Stop is called
func (c *AggregateCache) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ticker := time.NewTicker(c.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n := c.sweep(); n > 0 {
					slog.Debug("swept expired aggregates", "count", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop shuts down the janitor and waits for it to exit
func (c *AggregateCache) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

func (c *AggregateCache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

func (c *AggregateCache) expired(e entry) bool {
	return c.now().Sub(e.storedAt) >= c.ttl
}

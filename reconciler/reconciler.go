// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/danielhkuo/factcheck-votes/aggregate"
	"github.com/danielhkuo/factcheck-votes/metrics"
	"github.com/danielhkuo/factcheck-votes/models"
)

const (
	DefaultInterval   = 5 * time.Second
	DefaultBackoff    = time.Second
	DefaultMaxBackoff = time.Minute

	finalFlushTimeout = 10 * time.Second
	flushLogRetention = 24 * time.Hour
)

// BatchStore is the durable side of the reconciler, normally *aggregate.Store
type BatchStore interface {
	ApplyBatch(ctx context.Context, batchID string, deltas []models.Delta) error
	PruneFlushes(ctx context.Context, cutoff time.Time) (int64, error)
}

// Invalidator drops cached aggregates once their flush has committed
type Invalidator interface {
	Invalidate(itemIDs ...string)
}

type batch struct {
	id     string
	deltas []models.Delta
}

// Reconciler accumulates per-item vote deltas and periodically commits them
// to the aggregate store as atomic increments.
//
// A delta leaves the pending map when its batch is cut. If the batch fails it
// is queued for retry under the same batch id, which the store uses to reject
// replays, so every delta is counted exactly once per successful commit.
type Reconciler struct {
	store BatchStore
	cache Invalidator

	mu      sync.Mutex
	pending map[string]models.Delta
	retry   []batch

	flushMu     sync.Mutex // one flush at a time
	failures    int
	nextAttempt time.Time
	lastPrune   time.Time

	interval   time.Duration
	batchSize  int
	backoff    time.Duration
	maxBackoff time.Duration
	now        func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Reconciler
type Option func(*Reconciler)

func WithInterval(d time.Duration) Option {
	return func(r *Reconciler) { r.interval = d }
}

// WithBatchSize caps items per transaction; values above aggregate.MaxBatchSize are clamped
func WithBatchSize(n int) Option {
	return func(r *Reconciler) { r.batchSize = n }
}

func WithBackoff(base, max time.Duration) Option {
	return func(r *Reconciler) {
		r.backoff = base
		r.maxBackoff = max
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// New creates a reconciler. cache may be nil.
func New(store BatchStore, cache Invalidator, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:      store,
		cache:      cache,
		pending:    make(map[string]models.Delta),
		interval:   DefaultInterval,
		batchSize:  aggregate.MaxBatchSize,
		backoff:    DefaultBackoff,
		maxBackoff: DefaultMaxBackoff,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.batchSize <= 0 || r.batchSize > aggregate.MaxBatchSize {
		r.batchSize = aggregate.MaxBatchSize
	}
	if r.interval <= 0 {
		r.interval = DefaultInterval
	}
	return r
}

// Interval is the flush period, and so the staleness bound of stored aggregates
func (r *Reconciler) Interval() time.Duration {
	return r.interval
}

// Add queues a delta. Zero deltas are dropped, but an entry whose deltas
// cancel out stays queued: the item's cached aggregate may predate the
// cancellation and the flush is what invalidates it.
func (r *Reconciler) Add(d models.Delta) {
	if d.IsZero() {
		return
	}

	r.mu.Lock()
	cur := r.pending[d.ItemID]
	cur.ItemID = d.ItemID
	cur.Add(d)
	r.pending[d.ItemID] = cur
	r.updateGaugeLocked()
	r.mu.Unlock()
}

// Pending returns the unflushed delta for itemID, retries included
func (r *Reconciler) Pending(itemID string) models.Delta {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.pending[itemID]
	d.ItemID = itemID
	for _, b := range r.retry {
		for _, bd := range b.deltas {
			if bd.ItemID == itemID {
				d.Add(bd)
			}
		}
	}
	return d
}

// PendingItems returns how many items have unflushed deltas
func (r *Reconciler) PendingItems() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pendingItemsLocked()
}

func (r *Reconciler) pendingItemsLocked() int {
	seen := make(map[string]struct{}, len(r.pending))
	for id := range r.pending {
		seen[id] = struct{}{}
	}
	for _, b := range r.retry {
		for _, d := range b.deltas {
			seen[d.ItemID] = struct{}{}
		}
	}
	return len(seen)
}

func (r *Reconciler) updateGaugeLocked() {
	metrics.PendingItems.Set(float64(r.pendingItemsLocked()))
}

// Flush commits everything queued so far: retries first, then pending deltas
// in batches of at most the batch size. Failed batches are requeued and their
// errors joined into the result.
func (r *Reconciler) Flush(ctx context.Context) error {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	start := time.Now()
	defer func() { metrics.FlushDuration.Observe(time.Since(start).Seconds()) }()

	batches := r.cutBatches()
	if len(batches) == 0 {
		return nil
	}

	var errs []error
	var failed []batch
	flushed := 0

	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			failed = append(failed, b)
			continue
		}

		err := r.store.ApplyBatch(ctx, b.id, b.deltas)
		switch {
		case err == nil:
			metrics.FlushBatches.WithLabelValues("committed").Inc()
		case errors.Is(err, aggregate.ErrBatchApplied):
			// An earlier attempt committed but we never saw the result
			metrics.FlushBatches.WithLabelValues("replayed").Inc()
			slog.Info("flush batch already applied", "batch_id", b.id)
		default:
			metrics.FlushBatches.WithLabelValues("failed").Inc()
			errs = append(errs, fmt.Errorf("batch %s: %w", b.id, err))
			failed = append(failed, b)
			continue
		}

		flushed += len(b.deltas)
		if r.cache != nil {
			r.cache.Invalidate(itemIDs(b.deltas)...)
		}
	}

	if len(failed) > 0 {
		r.mu.Lock()
		r.retry = append(failed, r.retry...)
		r.updateGaugeLocked()
		r.mu.Unlock()
	}

	if flushed > 0 {
		slog.Info("flushed vote deltas",
			"items", flushed,
			"batches", len(batches)-len(failed),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	if err := ctx.Err(); err != nil && len(errs) == 0 && len(failed) > 0 {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// cutBatches takes ownership of everything queued
func (r *Reconciler) cutBatches() []batch {
	r.mu.Lock()
	defer r.mu.Unlock()

	batches := r.retry
	r.retry = nil

	if len(r.pending) > 0 {
		ids := make([]string, 0, len(r.pending))
		for id := range r.pending {
			ids = append(ids, id)
		}
		// Deterministic order keeps batches stable in logs and tests
		sort.Strings(ids)

		for start := 0; start < len(ids); start += r.batchSize {
			end := min(start+r.batchSize, len(ids))
			deltas := make([]models.Delta, 0, end-start)
			for _, id := range ids[start:end] {
				deltas = append(deltas, r.pending[id])
			}
			batches = append(batches, batch{id: uuid.NewString(), deltas: deltas})
		}
		r.pending = make(map[string]models.Delta)
	}

	r.updateGaugeLocked()
	return batches
}

// Start runs the flush loop until ctx is canceled or Stop is called.
// Failed flushes are retried on later ticks with exponential backoff, forever.
func (r *Reconciler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		slog.Info("reconciler started", "interval", r.interval, "batch_size", r.batchSize)

		for {
			select {
			case <-ticker.C:
				r.tick(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (r *Reconciler) tick(ctx context.Context) {
	now := r.now()
	if now.Before(r.nextAttempt) {
		return
	}

	if err := r.Flush(ctx); err != nil {
		r.failures++
		delay := r.backoffDelay(r.failures)
		r.nextAttempt = now.Add(delay)
		slog.Warn("vote flush failed",
			"error", err,
			"consecutive_failures", r.failures,
			"next_attempt", humanize.Time(r.nextAttempt),
			"pending_items", r.PendingItems(),
		)
		return
	}

	if r.failures > 0 {
		slog.Info("vote flush recovered", "after_failures", r.failures)
	}
	r.failures = 0
	r.nextAttempt = time.Time{}

	if now.Sub(r.lastPrune) >= time.Hour {
		r.lastPrune = now
		n, err := r.store.PruneFlushes(ctx, now.Add(-flushLogRetention))
		if err != nil {
			slog.Warn("failed to prune flush log", "error", err)
		} else if n > 0 {
			slog.Debug("pruned flush log", "removed", humanize.Comma(n))
		}
	}
}

// backoffDelay is base * 2^(failures-1), capped at maxBackoff
func (r *Reconciler) backoffDelay(failures int) time.Duration {
	delay := r.backoff
	for i := 1; i < failures && delay < r.maxBackoff; i++ {
		delay *= 2
	}
	return min(delay, r.maxBackoff)
}

// Stop ends the loop and makes one last attempt to flush what is queued.
// Deltas that still fail are lost from the aggregate but remain in the
// ledger, so the aggregate can be rebuilt.
func (r *Reconciler) Stop() error {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
	defer cancel()

	if err := r.Flush(ctx); err != nil {
		slog.Error("final vote flush failed", "error", err, "pending_items", r.PendingItems())
		return err
	}
	slog.Info("reconciler stopped")
	return nil
}

func itemIDs(deltas []models.Delta) []string {
	ids := make([]string, len(deltas))
	for i, d := range deltas {
		ids[i] = d.ItemID
	}
	return ids
}

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/danielhkuo/factcheck-votes/models"
	"github.com/danielhkuo/factcheck-votes/scoring"
)

const (
	DefaultSubmitTimeout = 10 * time.Second
	// DefaultReconcileDelay is one default flush interval plus a second of slack
	DefaultReconcileDelay = 6 * time.Second
)

var (
	// ErrBusy rejects a toggle while the previous one is still in flight
	ErrBusy = errors.New("vote already in flight")

	ErrClosed = errors.New("controller closed")

	// ErrRejected is a 2xx answer that did not report success
	ErrRejected = errors.New("vote rejected by server")
)

// API is the slice of the vote API the controller needs
type API interface {
	SubmitVote(ctx context.Context, itemID string, value models.Vote) (models.VoteResponse, error)
	DeleteVote(ctx context.Context, itemID string) (models.VoteResponse, error)
	GetStats(ctx context.Context, itemID string) (models.VoteStats, error)
	GetUserVote(ctx context.Context, itemID string) (models.Vote, error)
}

type State int

const (
	StateIdle State = iota
	StateVoting
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateVoting:
		return "voting"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Snapshot is what a vote widget renders
type Snapshot struct {
	ItemID     string
	MyVote     models.Vote
	Upvotes    int64
	Downvotes  int64
	Score      int64
	TrustScore float64

	// Provisional is set while the counts include a local change the
	// server has not yet reported back through a stats read.
	Provisional bool

	State State
	Err   error // Last failure, cleared by the next action
}

// Controller drives the vote buttons for one item. User actions are applied
// locally first and rolled back if the server refuses them.
//
// Subscribers are called from whichever goroutine changed the state, in
// order. They must not call Toggle or Subscribe.
type Controller struct {
	api            API
	itemID         string
	submitTimeout  time.Duration
	reconcileDelay time.Duration
	trust          scoring.TrustPolicy

	mu        sync.Mutex
	snap      Snapshot
	seq       uint64 // bumped by every user action and adopted server read
	version   uint64
	reconcile *time.Timer
	closed    bool

	pubMu     sync.Mutex
	published uint64
	subs      map[int]func(Snapshot)
	nextSub   int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type ControllerOption func(*Controller)

func WithSubmitTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) { c.submitTimeout = d }
}

// WithReconcileDelay sets how long after a successful vote the controller
// re-reads stats. It should be at least the server's flush interval.
func WithReconcileDelay(d time.Duration) ControllerOption {
	return func(c *Controller) { c.reconcileDelay = d }
}

func WithTrustPolicy(p scoring.TrustPolicy) ControllerOption {
	return func(c *Controller) { c.trust = p }
}

func NewController(api API, itemID string, opts ...ControllerOption) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		api:            api,
		itemID:         itemID,
		submitTimeout:  DefaultSubmitTimeout,
		reconcileDelay: DefaultReconcileDelay,
		trust:          scoring.DefaultTrustPolicy(),
		subs:           make(map[int]func(Snapshot)),
		ctx:            ctx,
		cancel:         cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.snap = Snapshot{ItemID: itemID, TrustScore: c.trust.Neutral}
	return c
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Subscribe registers fn for state changes and returns its cancel func
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	c.pubMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.pubMu.Unlock()

	return func() {
		c.pubMu.Lock()
		delete(c.subs, id)
		c.pubMu.Unlock()
	}
}

// Toggle presses the up or down button. Pressing the held vote clears it.
// The local state changes before Toggle returns; the server call runs in
// the background. While it runs, further presses get ErrBusy.
func (c *Controller) Toggle(value models.Vote) error {
	if value != models.VoteUp && value != models.VoteDown {
		return models.ErrUnknownVote
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.snap.State == StateVoting {
		c.mu.Unlock()
		return ErrBusy
	}

	prev := c.snap
	prev.State = StateIdle

	next := scoring.Toggle(prev.MyVote, value)
	c.applyLocked(prev.MyVote, next)
	c.snap.State = StateVoting
	c.snap.Err = nil
	c.snap.Provisional = true

	c.seq++
	seq := c.seq
	c.stopReconcileLocked()
	snap, ver := c.snapshotLocked()

	c.wg.Add(1)
	c.mu.Unlock()

	c.publish(snap, ver)
	go c.submit(prev, next, seq)
	return nil
}

func (c *Controller) submit(prev Snapshot, next models.Vote, seq uint64) {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(c.ctx, c.submitTimeout)
	defer cancel()

	var resp models.VoteResponse
	var err error
	if next == models.VoteNone {
		resp, err = c.api.DeleteVote(ctx, c.itemID)
	} else {
		resp, err = c.api.SubmitVote(ctx, c.itemID, next)
	}
	if err == nil && !resp.Success {
		err = ErrRejected
	}
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrNetworkTimeout) {
		err = fmt.Errorf("%w: %v", ErrNetworkTimeout, err)
	}

	c.mu.Lock()
	if err != nil {
		// Exact rollback, then surface the error and settle back to idle
		c.snap = prev
		c.snap.State = StateError
		c.snap.Err = err
		failed, v1 := c.snapshotLocked()

		c.snap.State = StateIdle
		idle, v2 := c.snapshotLocked()
		c.mu.Unlock()

		slog.Debug("vote rolled back", "item_id", c.itemID, "error", err)
		c.publish(failed, v1)
		c.publish(idle, v2)
		return
	}

	// The server's view of our own vote wins immediately
	serverVote := models.VoteNone
	if resp.Vote != nil {
		serverVote = *resp.Vote
	}
	if serverVote != c.snap.MyVote {
		c.applyLocked(c.snap.MyVote, serverVote)
	}

	c.snap.State = StateIdle
	if !c.closed {
		c.reconcile = time.AfterFunc(c.reconcileDelay, func() { c.reconcileStats(seq) })
	}
	snap, ver := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap, ver)
}

// reconcileStats replaces provisional counts with a server read, unless
// the user acted after the vote that scheduled it.
func (c *Controller) reconcileStats(seq uint64) {
	c.mu.Lock()
	if c.closed || c.seq != seq {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(c.ctx, c.submitTimeout)
	defer cancel()

	stats, err := c.api.GetStats(ctx, c.itemID)
	if err != nil {
		// Keep the provisional numbers; the next action or Refresh fixes them
		slog.Debug("vote stats reconcile failed", "item_id", c.itemID, "error", err)
		return
	}

	c.mu.Lock()
	if c.seq != seq || c.snap.State == StateVoting {
		c.mu.Unlock()
		return
	}
	c.adoptStatsLocked(stats)
	snap, ver := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap, ver)
}

// Refresh loads the voter's vote and the item's stats from the server.
// A result that arrives after a newer user action is dropped.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	seq := c.seq
	c.mu.Unlock()

	myVote, err := c.api.GetUserVote(ctx, c.itemID)
	if err != nil {
		return fmt.Errorf("load user vote: %w", err)
	}
	stats, err := c.api.GetStats(ctx, c.itemID)
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}

	c.mu.Lock()
	if c.seq != seq || c.snap.State == StateVoting {
		c.mu.Unlock()
		return nil
	}
	c.seq++
	c.stopReconcileLocked()
	c.snap.MyVote = myVote
	c.adoptStatsLocked(stats)
	snap, ver := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap, ver)
	return nil
}

// Close stops pending reconciliation and waits for in-flight calls.
// An in-flight vote still completes or rolls back before Close returns.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.stopReconcileLocked()
	c.mu.Unlock()

	c.wg.Wait()
	c.cancel()
}

func (c *Controller) applyLocked(from, to models.Vote) {
	d := scoring.BucketDelta(c.itemID, from, to)
	c.snap.MyVote = to
	c.snap.Upvotes += d.Up
	c.snap.Downvotes += d.Down
	c.snap.Score += scoring.DeltaFor(from, to)
	c.snap.TrustScore = c.trust.Score(c.snap.Upvotes, c.snap.Downvotes)
}

func (c *Controller) adoptStatsLocked(stats models.VoteStats) {
	c.snap.Upvotes = stats.Upvotes
	c.snap.Downvotes = stats.Downvotes
	c.snap.Score = stats.Score
	c.snap.TrustScore = stats.TrustScore
	c.snap.Provisional = false
}

func (c *Controller) stopReconcileLocked() {
	if c.reconcile != nil {
		c.reconcile.Stop()
		c.reconcile = nil
	}
}

func (c *Controller) snapshotLocked() (Snapshot, uint64) {
	c.version++
	return c.snap, c.version
}

// publish delivers snap unless a newer one already went out
func (c *Controller) publish(snap Snapshot, ver uint64) {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	if ver <= c.published {
		return
	}
	c.published = ver
	for _, fn := range c.subs {
		fn(snap)
	}
}

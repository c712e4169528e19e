// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/factcheck-votes/aggregate"
	"github.com/danielhkuo/factcheck-votes/auth"
	"github.com/danielhkuo/factcheck-votes/cache"
	"github.com/danielhkuo/factcheck-votes/ledger"
	"github.com/danielhkuo/factcheck-votes/metrics"
	"github.com/danielhkuo/factcheck-votes/models"
	"github.com/danielhkuo/factcheck-votes/scoring"
)

var (
	// ErrValidation is returned for malformed input such as an unknown vote value
	ErrValidation = errors.New("validation failed")
	// ErrStoreUnavailable wraps ledger failures on the write path
	ErrStoreUnavailable = errors.New("vote store unavailable")
)

const batchReadConcurrency = 8

// VoteLedger is the source of truth for individual votes
type VoteLedger interface {
	SubmitVote(ctx context.Context, voterID, itemID string, value models.Vote) (ledger.Outcome, error)
	DeleteVote(ctx context.Context, voterID, itemID string) (ledger.Outcome, error)
	GetVote(ctx context.Context, voterID, itemID string) (models.Vote, error)
	CountItem(ctx context.Context, itemID string) (models.Aggregate, error)
}

// AggregateReader reads stored aggregates
type AggregateReader interface {
	Get(ctx context.Context, itemID string) (models.Aggregate, error)
}

// StatsCache fronts the aggregate store
type StatsCache interface {
	GetOrLoad(ctx context.Context, itemID string, load cache.Loader) (models.Aggregate, string, error)
	Stale(itemID string) (models.Aggregate, bool)
}

// DeltaSink receives ledger deltas, normally the reconciler
type DeltaSink interface {
	Add(d models.Delta)
}

// Status tags how trustworthy a stats read is
type Status int

const (
	StatusOK Status = iota
	StatusDegraded
)

func (s Status) String() string {
	if s == StatusDegraded {
		return "degraded"
	}
	return "ok"
}

// Source names the layer that answered a stats read
type Source string

const (
	SourceCache   Source = cache.OriginCache
	SourceStore   Source = "store"
	SourceLedger  Source = "ledger"
	SourceStale   Source = "stale"
	SourceDefault Source = "default"
)

// StatsResult is either OK with real counts or Degraded. Degraded results
// carry an expired cached aggregate when one is left, zero counts otherwise.
type StatsResult struct {
	Stats  models.VoteStats
	Status Status
	Source Source
}

// SubmitResult is returned by SubmitVote and DeleteVote. Stats is a
// best-effort snapshot and may not include this vote yet.
type SubmitResult struct {
	Action models.Action
	Vote   models.Vote
	Stats  models.VoteStats
}

// Service is the vote intake service
type Service struct {
	ledger VoteLedger
	store  AggregateReader
	cache  StatsCache
	deltas DeltaSink
	trust  scoring.TrustPolicy
}

func NewService(l VoteLedger, store AggregateReader, c StatsCache, deltas DeltaSink, trust scoring.TrustPolicy) *Service {
	return &Service{ledger: l, store: store, cache: c, deltas: deltas, trust: trust}
}

// SubmitVote records a vote with toggle semantics and queues its delta
func (s *Service) SubmitVote(ctx context.Context, voterID, itemID, rawValue string) (SubmitResult, error) {
	if voterID == "" {
		return SubmitResult{}, auth.ErrAuthRequired
	}
	if err := ValidateItemID(itemID); err != nil {
		return SubmitResult{}, err
	}
	value, err := models.ParseVote(rawValue)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: vote must be \"up\" or \"down\", got %q", ErrValidation, rawValue)
	}

	out, err := s.ledger.SubmitVote(ctx, voterID, itemID, value)
	if err != nil {
		slog.Error("failed to submit vote", "error", err, "item_id", itemID)
		return SubmitResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return s.finish(ctx, itemID, out), nil
}

// DeleteVote removes the voter's vote, if any
func (s *Service) DeleteVote(ctx context.Context, voterID, itemID string) (SubmitResult, error) {
	if voterID == "" {
		return SubmitResult{}, auth.ErrAuthRequired
	}
	if err := ValidateItemID(itemID); err != nil {
		return SubmitResult{}, err
	}

	out, err := s.ledger.DeleteVote(ctx, voterID, itemID)
	if err != nil {
		slog.Error("failed to delete vote", "error", err, "item_id", itemID)
		return SubmitResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return s.finish(ctx, itemID, out), nil
}

func (s *Service) finish(ctx context.Context, itemID string, out ledger.Outcome) SubmitResult {
	s.deltas.Add(out.Delta)
	metrics.VotesSubmitted.WithLabelValues(string(out.Action)).Inc()

	slog.Info("vote recorded",
		"item_id", itemID,
		"action", out.Action,
		"previous", out.Previous,
		"current", out.Current,
	)

	return SubmitResult{
		Action: out.Action,
		Vote:   out.Current,
		Stats:  s.GetStats(ctx, itemID).Stats,
	}
}

// GetUserVote returns the voter's current vote on itemID
func (s *Service) GetUserVote(ctx context.Context, voterID, itemID string) (models.Vote, error) {
	if voterID == "" {
		return models.VoteNone, auth.ErrAuthRequired
	}
	if err := ValidateItemID(itemID); err != nil {
		return models.VoteNone, err
	}

	v, err := s.ledger.GetVote(ctx, voterID, itemID)
	if err != nil {
		return models.VoteNone, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return v, nil
}

// GetStats reads an item's stats: cache, then store, then a ledger recount.
// It never fails. If nothing can be read the result is Degraded, carrying the
// expired cache entry when there is one and neutral zero counts otherwise.
func (s *Service) GetStats(ctx context.Context, itemID string) StatsResult {
	if err := ValidateItemID(itemID); err != nil {
		return s.degraded(models.Aggregate{ItemID: itemID}, SourceDefault)
	}

	agg, origin, err := s.cache.GetOrLoad(ctx, itemID, func(ctx context.Context) (models.Aggregate, string, error) {
		agg, err := s.store.Get(ctx, itemID)
		if err == nil {
			return agg, string(SourceStore), nil
		}
		if !errors.Is(err, aggregate.ErrNotFound) {
			slog.Warn("aggregate store read failed, recounting ledger", "error", err, "item_id", itemID)
		}

		// Either never flushed or the store is down
		agg, err = s.ledger.CountItem(ctx, itemID)
		return agg, string(SourceLedger), err
	})
	if err != nil {
		if stale, ok := s.cache.Stale(itemID); ok {
			slog.Error("stats unavailable, serving expired cache entry", "error", err, "item_id", itemID)
			return s.degraded(stale, SourceStale)
		}
		slog.Error("stats unavailable, serving defaults", "error", err, "item_id", itemID)
		return s.degraded(models.Aggregate{ItemID: itemID}, SourceDefault)
	}

	source := Source(origin)
	metrics.StatsReads.WithLabelValues(string(source)).Inc()
	return StatsResult{Stats: s.trust.Stats(agg), Status: StatusOK, Source: source}
}

func (s *Service) degraded(agg models.Aggregate, source Source) StatsResult {
	metrics.StatsReads.WithLabelValues(string(source)).Inc()
	stats := s.trust.Stats(agg)
	stats.Degraded = true
	return StatsResult{Stats: stats, Status: StatusDegraded, Source: source}
}

// GetStatsBatch reads several items concurrently, in request order
func (s *Service) GetStatsBatch(ctx context.Context, itemIDs []string) ([]models.VoteStats, error) {
	if err := models.Validate(models.StatsBatchRequest{ItemIDs: itemIDs}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	results := make([]models.VoteStats, len(itemIDs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchReadConcurrency)

	for i, id := range itemIDs {
		g.Go(func() error {
			results[i] = s.GetStats(ctx, id).Stats
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ValidateItemID rejects blank ids and ids longer than 128 bytes
func ValidateItemID(itemID string) error {
	if strings.TrimSpace(itemID) == "" {
		return fmt.Errorf("%w: item id is required", ErrValidation)
	}
	if len(itemID) > 128 {
		return fmt.Errorf("%w: item id too long", ErrValidation)
	}
	return nil
}

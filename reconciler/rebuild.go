// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/factcheck-votes/models"
)

// Recounter recomputes aggregates from the vote ledger, normally *ledger.Ledger
type Recounter interface {
	ItemIDs(ctx context.Context) ([]string, error)
	CountItem(ctx context.Context, itemID string) (models.Aggregate, error)
}

// AggregateWriter overwrites stored counters, normally *aggregate.Store
type AggregateWriter interface {
	ItemIDs(ctx context.Context) ([]string, error)
	Replace(ctx context.Context, agg models.Aggregate) error
}

// Rebuild recounts every item that has votes or a stored aggregate and
// overwrites its stored counters with the ledger's totals. Items whose votes
// are all gone are reset to zero. It returns the number of items rewritten.
//
// Nothing may flush while it runs: an increment committed between an item's
// recount and its Replace would be lost.
func Rebuild(ctx context.Context, src Recounter, dst AggregateWriter) (int, error) {
	start := time.Now()

	voted, err := src.ItemIDs(ctx)
	if err != nil {
		return 0, err
	}
	stored, err := dst.ItemIDs(ctx)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool, len(voted)+len(stored))
	ids := make([]string, 0, len(voted)+len(stored))
	for _, id := range append(voted, stored...) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	for i, id := range ids {
		agg, err := src.CountItem(ctx, id)
		if err != nil {
			return i, fmt.Errorf("recount %s: %w", id, err)
		}
		if err := dst.Replace(ctx, agg); err != nil {
			return i, fmt.Errorf("rewrite %s: %w", id, err)
		}
	}

	slog.Info("rebuilt aggregates from ledger",
		"items", humanize.Comma(int64(len(ids))),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return len(ids), nil
}

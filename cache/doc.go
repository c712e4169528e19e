// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cache keeps a short-TTL in-memory copy of stored aggregates.

	c := cache.New(5 * time.Minute)
	c.Start(ctx)
	defer c.Stop()

	agg, origin, err := c.GetOrLoad(ctx, itemID, func(ctx context.Context) (models.Aggregate, string, error) {
		agg, err := store.Get(ctx, itemID)
		return agg, "store", err
	})

Concurrent misses for one item share a single load (singleflight), and every
caller gets the origin that load reported. The load runs on a context detached
from whichever caller started it, bounded by LoadTimeout, so a caller that
gives up only abandons its own wait.

Stale returns an expired entry until the janitor sweeps it, for callers that
prefer old data to none when the backing stores are down.

# Invalidation

The reconciler calls Invalidate after each committed flush. If a load for the
same item is running at that moment, it read the store before the flush and
its result is handed back to its callers without being cached. The next read
loads fresh data.
*/
package cache

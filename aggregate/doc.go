// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package aggregate is the durable store of per-item vote counters.

Request handlers never write here. The reconciler is the only writer, through
ApplyBatch:

	store := aggregate.NewStore(db)
	err := store.ApplyBatch(ctx, batchID, []models.Delta{
		{ItemID: "claim-1", Up: 3, Down: -1},
	})

# Atomic Increments

Each delta becomes an INSERT ... ON CONFLICT DO UPDATE that adds to the
existing counters, so concurrent flushes from several processes compose
without read-modify-write. version is bumped on every write.

# Idempotent Batches

The batch id goes into aggregate_flush in the same transaction as the
increments. A retry of a batch whose commit did land gets ErrBatchApplied
instead of counting twice. PruneFlushes trims old ids.
*/
package aggregate

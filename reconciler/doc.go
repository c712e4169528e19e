// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package reconciler batches vote deltas into the aggregate store.

Every ledger write emits a signed delta. Rather than read-modify-write the
aggregate on each request, the intake service hands the delta to the
reconciler, which sums deltas per item in memory and flushes them on a timer:

	r := reconciler.New(store, cache, reconciler.WithInterval(5*time.Second))
	r.Start(ctx)
	defer r.Stop()

	r.Add(models.Delta{ItemID: "claim-1", Up: 1})

# Flushing

Each tick cuts the pending map into batches of at most 500 items. Every batch
gets a uuid and is applied in one transaction of atomic increments. After a
batch commits, its items are invalidated in the aggregate cache.

A failed batch goes to a retry queue with its id unchanged. The store records
applied ids, so if the "failed" commit actually landed the retry is reported
as ErrBatchApplied and nothing is counted twice. Failures back off
exponentially (1s doubling to 1m) and are retried indefinitely.

# Staleness

Stored aggregates lag the ledger by at most one interval plus flush time
while the store is healthy. The pending map is process-local and not
durable; batching only saves writes, since individual increments would be
just as correct.

# Rebuilding

Pending deltas lost in a crash or a failed final flush leave stored
aggregates behind the ledger. Rebuild recounts every item from the ledger
and overwrites the stored counters; main runs it under -rebuild before the
flush loop starts:

	n, err := reconciler.Rebuild(ctx, ledger, store)
*/
package reconciler

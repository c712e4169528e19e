// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ledger is the vote ledger: the source of truth for who voted what.

There is at most one vote_record row per (item, voter). Absence of a row
means no vote.

# Toggle Semantics

	l := ledger.New(db)
	out, err := l.SubmitVote(ctx, voterID, itemID, models.VoteUp)

  - no record: insert it, ActionCreated, delta +1 to the value's bucket
  - same value: delete it, ActionRemoved, delta -1 to that bucket
  - other value: update it, ActionUpdated, -1 old bucket and +1 new bucket

DeleteVote is the same cycle with the target always being no vote.

# Atomicity

Each write runs in a transaction and is conditional on what was read:
INSERT ... ON CONFLICT DO NOTHING, and UPDATE/DELETE ... WHERE value = old.
If a concurrent request for the same pair committed first the write affects
no rows, the transaction is abandoned and the whole cycle runs again (up to
five times). Different voters never touch the same row.

# Recounting

CountItem counts an item's votes directly. It is the last-resort read path
and the way to rebuild an aggregate.
*/
package ledger

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package voting is the vote intake service that sits behind the HTTP handlers.

# Write Path

	res, err := svc.SubmitVote(ctx, voterID, itemID, "up")

validates the input, applies the vote to the ledger with toggle semantics,
hands the resulting delta to the reconciler and returns the action, the
voter's resulting vote and a stats snapshot. The snapshot comes from the
read path below and may not include this vote yet. Callers must treat its
counts as provisional for up to one flush interval.

DeleteVote is the explicit removal and goes through the same delta path.

# Read Path

GetStats tries, in order:

  - the aggregate cache
  - the aggregate store (populating the cache)
  - a ledger recount, when the store has no row or cannot be read
  - zeroed neutral stats

The result is tagged StatusOK or StatusDegraded; it never returns an error,
so a failing store degrades the numbers rather than the page.

# Errors

	ErrValidation        unknown vote value, bad item id
	auth.ErrAuthRequired no voter identity
	ErrStoreUnavailable  ledger read or write failed
*/
package voting

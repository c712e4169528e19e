// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package scoring holds the pure vote arithmetic shared by the server and the client.

# Transitions

DeltaFor gives the score change for each transition:

	none → up    +1
	none → down  -1
	up   → none  -1
	down → none  +1
	up   → down  -2
	down → up    +2

BucketDelta gives the same transition as up/down counter changes, which is
what the ledger emits and the reconciler accumulates.

# Trust Score

There is one trust score formula:

	trust = 100 * wu*up / (wu*up + wd*down)

clamped to [0, 100] and rounded to one decimal. With no votes it returns the
policy's Neutral value (50 by default).
*/
package scoring

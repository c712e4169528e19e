// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package client is the Go side of a vote widget: an HTTP client for the vote
API and a per-item Controller that applies votes optimistically.

# API Client

	c := client.New("https://votes.example.com", voterToken)
	resp, err := c.SubmitVote(ctx, "claim-42", models.VoteUp)

Non-2xx answers come back as *APIError. Requests that run past their
deadline return an error wrapping ErrNetworkTimeout.

# Controller

A Controller owns the state of one item's buttons:

	ctl := client.NewController(c, "claim-42")
	defer ctl.Close()

	unsubscribe := ctl.Subscribe(render)
	ctl.Refresh(ctx)
	ctl.Toggle(models.VoteUp)

States:

	Idle   ──Toggle──▶ Voting ──ok──────▶ Idle
	                     │
	                     └──error/timeout──▶ Error ──▶ Idle

Toggle applies the change locally before the request is sent, using the
same delta table as the server. Only one request per item is in flight; a
press while Voting returns ErrBusy and changes nothing. A failed or timed
out request (10s by default) restores the exact snapshot from before the
press and publishes the error. Nothing is retried automatically.

# Staleness

After a successful vote the controller trusts the server's answer for the
voter's own vote at once, but treats the counts as provisional. The server
folds votes into its counters on a flush interval, so the controller
re-reads stats after the reconcile delay (flush interval plus one second by
default) and replaces the provisional counts. A newer press cancels the
pending read.
*/
package client

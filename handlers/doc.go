// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the vote API.

# Handler Types

VotingHandler wraps the vote intake service and config:

	votingHandler := handlers.NewVotingHandler(svc, cfg)

# Routes

	POST   /items/{id}/votes    → SubmitVote  {"value": "up"|"down"}
	DELETE /items/{id}/votes    → DeleteVote
	GET    /items/{id}/votes/me → GetUserVote
	GET    /items/{id}/stats    → GetStats
	GET    /stats?ids=a,b       → GetStatsBatch (up to 100 ids)

Vote operations require the X-Voter-Token header (or Authorization: Bearer).

# Toggle Semantics

Posting the value the voter already holds removes the vote. The response
carries the resulting action (created, updated, removed) and the voter's
vote afterwards, null when removed.

# Snapshots

The aggregate in a vote response and GET /stats are served from the
aggregate cache. They may lag a vote by one flush interval plus network
latency. When nothing can be read, stats come back as zeros with
"degraded": true and an X-Stats-Degraded header, never as an error.

# Status Codes

	400 invalid JSON, unknown vote value, bad item id
	401 missing or invalid voter token
	503 vote ledger unavailable
*/
package handlers

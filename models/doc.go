// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - SubmitVoteRequest: value ("up" or "down")
  - StatsBatchRequest: item ids for a batch stats read (1-100)

Both are checked with Validate, which uses go-playground/validator tags.

# Response Types

Types for JSON responses:

  - VoteResponse: success, action, vote, aggregate
  - UserVoteResponse: value (null when the voter has no vote)
  - VoteStats: upvotes, downvotes, score, total, trust_score, last_updated
  - StatsBatchResponse: items
  - ErrorResponse: error, message

# Domain Types

Internal data structures:

  - VoteRecord: the single ledger row per (item, voter)
  - Aggregate: durable per-item counters
  - Delta: signed change to an item's up/down buckets

# Constants

Vote values:

	VoteNone = ""
	VoteUp   = "up"
	VoteDown = "down"

Ledger actions:

	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionRemoved = "removed"
	ActionNone    = "none"
*/
package models

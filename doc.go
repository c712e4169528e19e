// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the fact-check vote API server.

Readers vote items (fact-check claims) up or down. Each voter holds at most
one vote per item, and repeating a vote removes it. Every vote is recorded
in a durable ledger right away, while the per-item counters that readers
see are folded in by a background reconciler every few seconds.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=file:votes.db VOTER_TOKEN_SALT=... go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..." -voter-salt ...

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite file URL or PostgreSQL connection string
  - VOTER_TOKEN_SALT (-voter-salt): Secret for voter token HMAC

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - FLUSH_INTERVAL, CACHE_TTL, BATCH_SIZE, RATE_LIMIT, RATE_BURST
  - TRUST_PROXY (-trust-proxy): Rate limit by X-Forwarded-For, only behind a proxy
  - REBUILD_AGGREGATES (-rebuild): Recount aggregates from the ledger at startup
  - CONFIG_FILE (-config): YAML file with any of the above plus trust weights

# Architecture

  - ledger: Per-voter vote records, the source of truth
  - aggregate: Per-item counters updated in idempotent batches
  - cache: TTL cache in front of the aggregate store
  - reconciler: Buffers count deltas and flushes them on a ticker
  - voting: Intake service tying the above together
  - scoring: Toggle rules, deltas and trust score
  - client: API client and optimistic per-item vote controller
  - handlers, router, middleware: HTTP surface
  - models, auth, db, metrics, cliparse: Supporting packages

# Shutdown

On SIGINT or SIGTERM the server stops accepting requests, waits for
in-flight ones, then flushes pending deltas one last time. If that flush
fails the stored aggregates undercount; restart with -rebuild to recount them.

See package documentation for each component.
*/
package main

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database connections and schema creation.

# Connecting

Open picks the driver from the configured database type:

	conn, err := db.Open(db.TypePostgres, "postgres://...")
	conn, err := db.Open(db.TypeSQLite, "file:votes.db")

PostgreSQL uses lib/pq. SQLite uses the pure-Go modernc.org/sqlite driver and
is capped at a single open connection.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

  - vote_record: the vote ledger, UNIQUE (item_id, voter_id)
  - vote_aggregate: per-item up/down counters, written only by flushes
  - aggregate_flush: ids of applied flush batches

The aggregate is derived data. It can always be rebuilt by counting
vote_record rows for the item.
*/
package db

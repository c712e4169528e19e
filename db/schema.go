// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// The statements are plain enough to run on both PostgreSQL and SQLite.
const schema = `
-- Vote ledger: one row per (item, voter)
CREATE TABLE IF NOT EXISTS vote_record (
    id TEXT PRIMARY KEY,
    item_id TEXT NOT NULL,
    voter_id TEXT NOT NULL,
    value TEXT NOT NULL CHECK (value IN ('up', 'down')),
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    UNIQUE (item_id, voter_id)
);

CREATE INDEX IF NOT EXISTS idx_vote_record_item_id ON vote_record(item_id);

-- Aggregates: written only by the reconciler
CREATE TABLE IF NOT EXISTS vote_aggregate (
    item_id TEXT PRIMARY KEY,
    up_count BIGINT NOT NULL DEFAULT 0,
    down_count BIGINT NOT NULL DEFAULT 0,
    version BIGINT NOT NULL DEFAULT 0,
    last_updated TIMESTAMP NOT NULL
);

-- Applied flush batches, so a retried batch is never counted twice
CREATE TABLE IF NOT EXISTS aggregate_flush (
    batch_id TEXT PRIMARY KEY,
    item_count INTEGER NOT NULL,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_aggregate_flush_applied_at ON aggregate_flush(applied_at);
`

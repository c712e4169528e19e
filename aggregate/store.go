// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package aggregate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/danielhkuo/factcheck-votes/models"
)

// MaxBatchSize bounds the number of items written in one transaction
const MaxBatchSize = 500

var (
	// ErrNotFound is returned when an item has no stored aggregate yet
	ErrNotFound = errors.New("aggregate not found")
	// ErrBatchApplied means the batch id was committed by an earlier attempt
	ErrBatchApplied = errors.New("batch already applied")
	// ErrBatchTooLarge is returned for batches over MaxBatchSize
	ErrBatchTooLarge = errors.New("batch exceeds maximum size")
)

// Store persists per-item counters. All writes are relative increments so
// several service instances can flush into the same table.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Get returns the stored aggregate for itemID
func (s *Store) Get(ctx context.Context, itemID string) (models.Aggregate, error) {
	agg := models.Aggregate{ItemID: itemID}
	err := s.db.QueryRowContext(ctx, `
		SELECT up_count, down_count, version, last_updated
		FROM vote_aggregate WHERE item_id = $1
	`, itemID).Scan(&agg.UpCount, &agg.DownCount, &agg.Version, &agg.LastUpdated)
	if err == sql.ErrNoRows {
		return models.Aggregate{}, ErrNotFound
	}
	if err != nil {
		return models.Aggregate{}, fmt.Errorf("failed to read aggregate: %w", err)
	}
	return agg, nil
}

// ApplyBatch adds every delta to its item's counters in a single transaction.
// The batch id is recorded in the same transaction; replaying an id that
// already committed returns ErrBatchApplied and changes nothing.
func (s *Store) ApplyBatch(ctx context.Context, batchID string, deltas []models.Delta) error {
	if len(deltas) > MaxBatchSize {
		return ErrBatchTooLarge
	}
	if len(deltas) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO aggregate_flush (batch_id, item_count, applied_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (batch_id) DO NOTHING
	`, batchID, len(deltas), now)
	if err != nil {
		return fmt.Errorf("failed to record batch: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to record batch: %w", err)
	} else if n == 0 {
		return ErrBatchApplied
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vote_aggregate (item_id, up_count, down_count, version, last_updated)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (item_id) DO UPDATE SET
			up_count = vote_aggregate.up_count + excluded.up_count,
			down_count = vote_aggregate.down_count + excluded.down_count,
			version = vote_aggregate.version + 1,
			last_updated = excluded.last_updated
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare increment: %w", err)
	}
	defer stmt.Close()

	for _, d := range deltas {
		if d.IsZero() {
			continue
		}
		if _, err := stmt.ExecContext(ctx, d.ItemID, d.Up, d.Down, now); err != nil {
			return fmt.Errorf("failed to increment aggregate %s: %w", d.ItemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// Replace overwrites an item's counters, e.g. after recounting the ledger
func (s *Store) Replace(ctx context.Context, agg models.Aggregate) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vote_aggregate (item_id, up_count, down_count, version, last_updated)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (item_id) DO UPDATE SET
			up_count = excluded.up_count,
			down_count = excluded.down_count,
			version = vote_aggregate.version + 1,
			last_updated = excluded.last_updated
	`, agg.ItemID, agg.UpCount, agg.DownCount, s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to replace aggregate: %w", err)
	}
	return nil
}

// ItemIDs lists every item with a stored aggregate
func (s *Store) ItemIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT item_id FROM vote_aggregate ORDER BY item_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list aggregates: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PruneFlushes forgets batch ids applied before cutoff and returns how many
// were removed. Retries only ever replay recent batches.
func (s *Store) PruneFlushes(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM aggregate_flush WHERE applied_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune flush log: %w", err)
	}
	return res.RowsAffected()
}

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/factcheck-votes/models"
	"github.com/danielhkuo/factcheck-votes/scoring"
)

var (
	// ErrConflict means a concurrent write for the same (item, voter) won the race
	ErrConflict = errors.New("concurrent vote write")
	// ErrInvalidVote is returned when asked to store anything but up or down
	ErrInvalidVote = errors.New("invalid vote value")
)

// maxAttempts bounds how often a lost race is retried before giving up
const maxAttempts = 5

// Outcome reports what a ledger write did
type Outcome struct {
	Action   models.Action
	Previous models.Vote
	Current  models.Vote
	Delta    models.Delta
}

// Ledger is the durable one-record-per-(item, voter) store
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// SubmitVote applies toggle semantics: first vote creates the record, the same
// value again removes it, a different value switches it.
func (l *Ledger) SubmitVote(ctx context.Context, voterID, itemID string, value models.Vote) (Outcome, error) {
	if value != models.VoteUp && value != models.VoteDown {
		return Outcome{}, ErrInvalidVote
	}
	return l.retry(ctx, voterID, itemID, func(existing models.Vote) models.Vote {
		return scoring.Toggle(existing, value)
	})
}

// DeleteVote removes the voter's record if there is one
func (l *Ledger) DeleteVote(ctx context.Context, voterID, itemID string) (Outcome, error) {
	return l.retry(ctx, voterID, itemID, func(models.Vote) models.Vote {
		return models.VoteNone
	})
}

func (l *Ledger) retry(ctx context.Context, voterID, itemID string, decide func(models.Vote) models.Vote) (Outcome, error) {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var out Outcome
		out, err = l.write(ctx, voterID, itemID, decide)
		if !errors.Is(err, ErrConflict) {
			return out, err
		}
		slog.Debug("vote write lost race, retrying", "item_id", itemID, "attempt", attempt)
	}
	return Outcome{}, err
}

// write runs one read-decide-write cycle in a transaction. Every write is
// conditional on the row still looking the way it was read, so a concurrent
// writer for the same pair shows up as zero affected rows.
func (l *Ledger) write(ctx context.Context, voterID, itemID string, decide func(models.Vote) models.Vote) (Outcome, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var rec models.VoteRecord
	err = tx.QueryRowContext(ctx, `
		SELECT id, value FROM vote_record WHERE item_id = $1 AND voter_id = $2
	`, itemID, voterID).Scan(&rec.ID, &rec.Value)
	if err != nil && err != sql.ErrNoRows {
		return Outcome{}, fmt.Errorf("failed to read vote: %w", err)
	}
	existing := rec.Value

	next := decide(existing)
	out := Outcome{
		Previous: existing,
		Current:  next,
		Delta:    scoring.BucketDelta(itemID, existing, next),
	}
	now := l.now().UTC()

	var res sql.Result
	switch {
	case existing == next:
		// Nothing to write (delete of a missing vote)
		out.Action = models.ActionNone
		return out, nil

	case existing == models.VoteNone:
		out.Action = models.ActionCreated
		res, err = tx.ExecContext(ctx, `
			INSERT INTO vote_record (id, item_id, voter_id, value, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
			ON CONFLICT (item_id, voter_id) DO NOTHING
		`, uuid.NewString(), itemID, voterID, string(next), now)

	case next == models.VoteNone:
		out.Action = models.ActionRemoved
		res, err = tx.ExecContext(ctx, `
			DELETE FROM vote_record WHERE id = $1 AND value = $2
		`, rec.ID, string(existing))

	default:
		out.Action = models.ActionUpdated
		res, err = tx.ExecContext(ctx, `
			UPDATE vote_record SET value = $1, updated_at = $2
			WHERE id = $3 AND value = $4
		`, string(next), now, rec.ID, string(existing))
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to write vote: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return Outcome{}, ErrConflict
	}

	if err := tx.Commit(); err != nil {
		return Outcome{}, fmt.Errorf("failed to commit vote: %w", err)
	}

	return out, nil
}

// GetVote returns the voter's current vote, VoteNone if there is none
func (l *Ledger) GetVote(ctx context.Context, voterID, itemID string) (models.Vote, error) {
	var value models.Vote
	err := l.db.QueryRowContext(ctx, `
		SELECT value FROM vote_record WHERE item_id = $1 AND voter_id = $2
	`, itemID, voterID).Scan(&value)
	if err == sql.ErrNoRows {
		return models.VoteNone, nil
	}
	if err != nil {
		return models.VoteNone, fmt.Errorf("failed to read vote: %w", err)
	}
	return value, nil
}

// ItemIDs lists every item that has at least one vote
func (l *Ledger) ItemIDs(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, l.db, `SELECT DISTINCT item_id FROM vote_record ORDER BY item_id`)
}

// CountItem recomputes an item's counters from the ledger.
// This is a full scan of the item's votes; use it only as a fallback.
func (l *Ledger) CountItem(ctx context.Context, itemID string) (models.Aggregate, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT value, COUNT(*) FROM vote_record WHERE item_id = $1 GROUP BY value
	`, itemID)
	if err != nil {
		return models.Aggregate{}, fmt.Errorf("failed to count votes: %w", err)
	}
	defer rows.Close()

	agg := models.Aggregate{ItemID: itemID, LastUpdated: l.now().UTC()}
	for rows.Next() {
		var value models.Vote
		var count int64
		if err := rows.Scan(&value, &count); err != nil {
			return models.Aggregate{}, fmt.Errorf("failed to scan vote count: %w", err)
		}
		switch value {
		case models.VoteUp:
			agg.UpCount = count
		case models.VoteDown:
			agg.DownCount = count
		}
	}
	if err := rows.Err(); err != nil {
		return models.Aggregate{}, fmt.Errorf("failed to count votes: %w", err)
	}

	return agg, nil
}

func queryStrings(ctx context.Context, db *sql.DB, query string) ([]string, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan item id: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

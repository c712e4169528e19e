// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/danielhkuo/factcheck-votes/models"
	"github.com/danielhkuo/factcheck-votes/testutil"
)

func TestSubmitVoteTransitions(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()

	l := New(conn)
	ctx := context.Background()

	steps := []struct {
		name       string
		value      models.Vote
		wantAction models.Action
		wantVote   models.Vote
		wantDelta  models.Delta
	}{
		{"first up vote creates", models.VoteUp, models.ActionCreated, models.VoteUp, models.Delta{ItemID: "item1", Up: 1}},
		{"same value removes", models.VoteUp, models.ActionRemoved, models.VoteNone, models.Delta{ItemID: "item1", Up: -1}},
		{"down after removal creates", models.VoteDown, models.ActionCreated, models.VoteDown, models.Delta{ItemID: "item1", Down: 1}},
		{"switch updates", models.VoteUp, models.ActionUpdated, models.VoteUp, models.Delta{ItemID: "item1", Up: 1, Down: -1}},
	}

	for _, step := range steps {
		out, err := l.SubmitVote(ctx, "voterA", "item1", step.value)
		if err != nil {
			t.Fatalf("%s: SubmitVote failed: %v", step.name, err)
		}
		if out.Action != step.wantAction {
			t.Errorf("%s: expected action %s, got %s", step.name, step.wantAction, out.Action)
		}
		if out.Current != step.wantVote {
			t.Errorf("%s: expected vote %q, got %q", step.name, step.wantVote, out.Current)
		}
		if out.Delta != step.wantDelta {
			t.Errorf("%s: expected delta %+v, got %+v", step.name, step.wantDelta, out.Delta)
		}

		stored, err := l.GetVote(ctx, "voterA", "item1")
		if err != nil {
			t.Fatalf("%s: GetVote failed: %v", step.name, err)
		}
		if stored != step.wantVote {
			t.Errorf("%s: ledger holds %q, expected %q", step.name, stored, step.wantVote)
		}
		if n := testutil.CountRecords(t, conn, "item1", "voterA"); n > 1 {
			t.Fatalf("%s: found %d records for one voter", step.name, n)
		}
	}
}

func TestSubmitVoteRejectsInvalidValue(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()

	_, err := New(conn).SubmitVote(context.Background(), "voterA", "item1", models.Vote("sideways"))
	if err != ErrInvalidVote {
		t.Errorf("Expected ErrInvalidVote, got %v", err)
	}
}

func TestDeleteVote(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()

	l := New(conn)
	ctx := context.Background()

	// Deleting nothing is a no-op
	out, err := l.DeleteVote(ctx, "voterA", "item1")
	if err != nil {
		t.Fatalf("DeleteVote failed: %v", err)
	}
	if out.Action != models.ActionNone || !out.Delta.IsZero() {
		t.Errorf("Expected no-op, got %+v", out)
	}

	testutil.InsertTestVote(t, conn, "item1", "voterA", "down")

	out, err = l.DeleteVote(ctx, "voterA", "item1")
	if err != nil {
		t.Fatalf("DeleteVote failed: %v", err)
	}
	if out.Action != models.ActionRemoved {
		t.Errorf("Expected removed, got %s", out.Action)
	}
	if out.Delta != (models.Delta{ItemID: "item1", Down: -1}) {
		t.Errorf("Expected down bucket decrement, got %+v", out.Delta)
	}
	if n := testutil.CountRecords(t, conn, "item1", "voterA"); n != 0 {
		t.Errorf("Expected record to be gone, found %d", n)
	}
}

func TestItemIDs(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()

	l := New(conn)
	ctx := context.Background()

	ids, err := l.ItemIDs(ctx)
	if err != nil {
		t.Fatalf("ItemIDs failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("Expected no items, got %v", ids)
	}

	testutil.InsertTestVote(t, conn, "item2", "a", "up")
	testutil.InsertTestVote(t, conn, "item1", "a", "down")
	testutil.InsertTestVote(t, conn, "item1", "b", "up")

	ids, err = l.ItemIDs(ctx)
	if err != nil {
		t.Fatalf("ItemIDs failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "item1" || ids[1] != "item2" {
		t.Errorf("Expected [item1 item2], got %v", ids)
	}
}

func TestCountItem(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()

	testutil.InsertTestVote(t, conn, "item1", "a", "up")
	testutil.InsertTestVote(t, conn, "item1", "b", "up")
	testutil.InsertTestVote(t, conn, "item1", "c", "down")
	testutil.InsertTestVote(t, conn, "item2", "a", "down")

	agg, err := New(conn).CountItem(context.Background(), "item1")
	if err != nil {
		t.Fatalf("CountItem failed: %v", err)
	}
	if agg.UpCount != 2 || agg.DownCount != 1 {
		t.Errorf("Expected 2 up / 1 down, got %d / %d", agg.UpCount, agg.DownCount)
	}
	if agg.Score() != 1 {
		t.Errorf("Expected score 1, got %d", agg.Score())
	}
}

// TestConcurrentSameVoter fires many toggles from one voter at once.
// Whatever interleaving happens, the ledger must never hold two rows for the
// pair, and the emitted deltas must sum to the final state.
func TestConcurrentSameVoter(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()

	l := New(conn)
	ctx := context.Background()

	const attempts = 9
	var wg sync.WaitGroup
	var up, down atomic.Int64
	var failures atomic.Int32

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := l.SubmitVote(ctx, "voterA", "item1", models.VoteUp)
			if err != nil {
				failures.Add(1)
				return
			}
			up.Add(out.Delta.Up)
			down.Add(out.Delta.Down)
		}()
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Fatalf("Expected all submissions to succeed, %d failed", failures.Load())
	}
	if n := testutil.CountRecords(t, conn, "item1", "voterA"); n > 1 {
		t.Fatalf("Found %d records for one voter", n)
	}

	agg, err := l.CountItem(ctx, "item1")
	if err != nil {
		t.Fatalf("CountItem failed: %v", err)
	}
	if agg.UpCount != up.Load() || agg.DownCount != down.Load() {
		t.Errorf("Deltas (%d, %d) disagree with ledger (%d, %d)", up.Load(), down.Load(), agg.UpCount, agg.DownCount)
	}
	// Nine toggles of the same value leave the vote in place
	if agg.UpCount != 1 {
		t.Errorf("Expected one up vote after an odd number of toggles, got %d", agg.UpCount)
	}
}

func TestConcurrentDistinctVoters(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()

	l := New(conn)
	ctx := context.Background()

	const voters = 20
	var wg sync.WaitGroup
	var created atomic.Int32

	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := l.SubmitVote(ctx, fmt.Sprintf("voter-%d", i), "item1", models.VoteUp)
			if err == nil && out.Action == models.ActionCreated {
				created.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if created.Load() != voters {
		t.Errorf("Expected %d created votes, got %d", voters, created.Load())
	}

	agg, err := l.CountItem(ctx, "item1")
	if err != nil {
		t.Fatalf("CountItem failed: %v", err)
	}
	if agg.UpCount != voters {
		t.Errorf("Expected upCount %d, got %d", voters, agg.UpCount)
	}
}

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package scoring

import "github.com/danielhkuo/factcheck-votes/models"

// DeltaFor returns the change in score (up - down) when a voter moves
// from oldVote to newVote.
func DeltaFor(oldVote, newVote models.Vote) int64 {
	return weight(newVote) - weight(oldVote)
}

func weight(v models.Vote) int64 {
	switch v {
	case models.VoteUp:
		return 1
	case models.VoteDown:
		return -1
	}
	return 0
}

// Toggle returns the vote that results from pressing value while holding current.
// Pressing the held value clears it.
func Toggle(current, value models.Vote) models.Vote {
	if current == value {
		return models.VoteNone
	}
	return value
}

// BucketDelta is DeltaFor expressed as per-bucket counter changes
func BucketDelta(itemID string, oldVote, newVote models.Vote) models.Delta {
	d := models.Delta{ItemID: itemID}
	bump(&d, oldVote, -1)
	bump(&d, newVote, +1)
	return d
}

func bump(d *models.Delta, v models.Vote, n int64) {
	switch v {
	case models.VoteUp:
		d.Up += n
	case models.VoteDown:
		d.Down += n
	}
}

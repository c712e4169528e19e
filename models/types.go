// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"errors"
	"time"
)

// Vote is a voter's position on an item. The zero value means no vote.
type Vote string

const (
	VoteNone Vote = ""
	VoteUp   Vote = "up"
	VoteDown Vote = "down"
)

// ErrUnknownVote is returned by ParseVote for anything other than "up" or "down"
var ErrUnknownVote = errors.New("unknown vote value")

// ParseVote converts a wire value into a Vote
func ParseVote(s string) (Vote, error) {
	switch Vote(s) {
	case VoteUp, VoteDown:
		return Vote(s), nil
	}
	return VoteNone, ErrUnknownVote
}

// Action describes what a ledger write did to a voter's record
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionRemoved Action = "removed"
	ActionNone    Action = "none"
)

// Request types

type SubmitVoteRequest struct {
	Value string `json:"value" validate:"required,oneof=up down"`
}

type StatsBatchRequest struct {
	ItemIDs []string `validate:"required,min=1,max=100,dive,required,max=128"`
}

// Response types

type VoteResponse struct {
	Success   bool      `json:"success"`
	Action    Action    `json:"action"`
	Vote      *Vote     `json:"vote"`
	Aggregate VoteStats `json:"aggregate"`
}

type UserVoteResponse struct {
	Value *Vote `json:"value"`
}

type StatsBatchResponse struct {
	Items []VoteStats `json:"items"`
}

// VoteStats is the read model of an Aggregate served to clients.
// Degraded is set when the counts are a fallback rather than stored data.
type VoteStats struct {
	ItemID      string    `json:"item_id"`
	Upvotes     int64     `json:"upvotes"`
	Downvotes   int64     `json:"downvotes"`
	Score       int64     `json:"score"`
	Total       int64     `json:"total"`
	TrustScore  float64   `json:"trust_score"`
	LastUpdated time.Time `json:"last_updated"`
	Degraded    bool      `json:"degraded,omitempty"`
}

// Domain types

// VoteRecord is the single ledger row for an (item, voter) pair
type VoteRecord struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	VoterID   string    `json:"-"` // Never expose in JSON
	Value     Vote      `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Aggregate holds the durable per-item counters
type Aggregate struct {
	ItemID      string
	UpCount     int64
	DownCount   int64
	Version     int64
	LastUpdated time.Time
}

// Score is always derived, never stored
func (a Aggregate) Score() int64 {
	return a.UpCount - a.DownCount
}

func (a Aggregate) Total() int64 {
	return a.UpCount + a.DownCount
}

// Delta is a signed change to an item's up/down buckets
type Delta struct {
	ItemID string
	Up     int64
	Down   int64
}

func (d Delta) IsZero() bool {
	return d.Up == 0 && d.Down == 0
}

// Add merges other into d. Item IDs are assumed to match.
func (d *Delta) Add(other Delta) {
	d.Up += other.Up
	d.Down += other.Down
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

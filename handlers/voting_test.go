package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielhkuo/factcheck-votes/aggregate"
	"github.com/danielhkuo/factcheck-votes/cache"
	"github.com/danielhkuo/factcheck-votes/ledger"
	"github.com/danielhkuo/factcheck-votes/models"
	"github.com/danielhkuo/factcheck-votes/reconciler"
	"github.com/danielhkuo/factcheck-votes/scoring"
	"github.com/danielhkuo/factcheck-votes/testutil"
	"github.com/danielhkuo/factcheck-votes/voting"
)

type testEnv struct {
	handler    *VotingHandler
	reconciler *reconciler.Reconciler
}

func setupHandler(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { db.Close() })

	store := aggregate.NewStore(db)
	c := cache.New(time.Minute)
	r := reconciler.New(store, c)
	svc := voting.NewService(ledger.New(db), store, c, r, scoring.DefaultTrustPolicy())

	return &testEnv{
		handler:    NewVotingHandler(svc, testutil.GetTestConfig()),
		reconciler: r,
	}
}

func (e *testEnv) flush(t *testing.T) {
	t.Helper()
	if err := e.reconciler.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
}

func (e *testEnv) vote(t *testing.T, itemID, voterID, value string) *httptest.ResponseRecorder {
	t.Helper()

	body, _ := json.Marshal(models.SubmitVoteRequest{Value: value})
	req := httptest.NewRequest("POST", "/items/"+itemID+"/votes", bytes.NewReader(body))
	req.SetPathValue("id", itemID)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Voter-Token", testutil.VoterToken(voterID))
	w := httptest.NewRecorder()

	e.handler.SubmitVote(w, req)
	return w
}

func (e *testEnv) stats(t *testing.T, itemID string) models.VoteStats {
	t.Helper()

	req := httptest.NewRequest("GET", "/items/"+itemID+"/stats", nil)
	req.SetPathValue("id", itemID)
	w := httptest.NewRecorder()

	e.handler.GetStats(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var stats models.VoteStats
	testutil.AssertJSON(t, w, &stats)
	return stats
}

func TestSubmitVote(t *testing.T) {
	env := setupHandler(t)

	tests := []struct {
		name           string
		itemID         string
		body           interface{}
		headers        map[string]string
		expectedStatus int
		checkResponse  func(t *testing.T, resp *models.VoteResponse)
	}{
		{
			name:           "valid up vote",
			itemID:         "claim-1",
			body:           models.SubmitVoteRequest{Value: "up"},
			headers:        map[string]string{"X-Voter-Token": testutil.VoterToken("alice")},
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, resp *models.VoteResponse) {
				if !resp.Success {
					t.Error("Expected success")
				}
				if resp.Action != models.ActionCreated {
					t.Errorf("Expected action created, got %s", resp.Action)
				}
				if resp.Vote == nil || *resp.Vote != models.VoteUp {
					t.Errorf("Expected vote up, got %v", resp.Vote)
				}
				if resp.Aggregate.ItemID != "claim-1" {
					t.Errorf("Expected aggregate for claim-1, got %q", resp.Aggregate.ItemID)
				}
			},
		},
		{
			name:           "repeat vote removes",
			itemID:         "claim-1",
			body:           models.SubmitVoteRequest{Value: "up"},
			headers:        map[string]string{"X-Voter-Token": testutil.VoterToken("alice")},
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, resp *models.VoteResponse) {
				if resp.Action != models.ActionRemoved {
					t.Errorf("Expected action removed, got %s", resp.Action)
				}
				if resp.Vote != nil {
					t.Errorf("Expected null vote, got %v", *resp.Vote)
				}
			},
		},
		{
			name:           "bearer token accepted",
			itemID:         "claim-2",
			body:           models.SubmitVoteRequest{Value: "down"},
			headers:        map[string]string{"Authorization": "Bearer " + testutil.VoterToken("bob")},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "unknown value",
			itemID:         "claim-1",
			body:           models.SubmitVoteRequest{Value: "meh"},
			headers:        map[string]string{"X-Voter-Token": testutil.VoterToken("alice")},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing value",
			itemID:         "claim-1",
			body:           map[string]string{},
			headers:        map[string]string{"X-Voter-Token": testutil.VoterToken("alice")},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON",
			itemID:         "claim-1",
			body:           "not json",
			headers:        map[string]string{"X-Voter-Token": testutil.VoterToken("alice")},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing voter token",
			itemID:         "claim-1",
			body:           models.SubmitVoteRequest{Value: "up"},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "forged voter token",
			itemID:         "claim-1",
			body:           models.SubmitVoteRequest{Value: "up"},
			headers:        map[string]string{"X-Voter-Token": "alice.forged"},
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.MakeRequest("POST", "/items/"+tt.itemID+"/votes", tt.body, tt.headers)
			req.SetPathValue("id", tt.itemID)
			w := httptest.NewRecorder()

			env.handler.SubmitVote(w, req)

			testutil.AssertStatus(t, w, tt.expectedStatus)

			if tt.expectedStatus == http.StatusOK && tt.checkResponse != nil {
				var resp models.VoteResponse
				testutil.AssertJSON(t, w, &resp)
				tt.checkResponse(t, &resp)
			}
		})
	}
}

func TestVoteScenarioOverHTTP(t *testing.T) {
	env := setupHandler(t)

	steps := []struct {
		voter    string
		value    string
		up, down int64
		score    int64
	}{
		{"A", "up", 1, 0, 1},
		{"A", "up", 0, 0, 0},
		{"A", "down", 0, 1, -1},
		{"B", "up", 1, 1, 0},
	}

	for i, step := range steps {
		w := env.vote(t, "item1", step.voter, step.value)
		testutil.AssertStatus(t, w, http.StatusOK)
		env.flush(t)

		stats := env.stats(t, "item1")
		if stats.Upvotes != step.up || stats.Downvotes != step.down || stats.Score != step.score {
			t.Errorf("step %d: expected {%d %d %d}, got {%d %d %d}",
				i, step.up, step.down, step.score, stats.Upvotes, stats.Downvotes, stats.Score)
		}
	}
}

func TestDeleteVoteHandler(t *testing.T) {
	env := setupHandler(t)
	env.vote(t, "item1", "alice", "down")

	tests := []struct {
		name           string
		headers        map[string]string
		expectedStatus int
		expectedAction models.Action
	}{
		{"removes existing vote", map[string]string{"X-Voter-Token": testutil.VoterToken("alice")}, http.StatusOK, models.ActionRemoved},
		{"no vote left", map[string]string{"X-Voter-Token": testutil.VoterToken("alice")}, http.StatusOK, models.ActionNone},
		{"missing token", nil, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.MakeRequest("DELETE", "/items/item1/votes", nil, tt.headers)
			req.SetPathValue("id", "item1")
			w := httptest.NewRecorder()

			env.handler.DeleteVote(w, req)
			testutil.AssertStatus(t, w, tt.expectedStatus)

			if tt.expectedStatus == http.StatusOK {
				var resp models.VoteResponse
				testutil.AssertJSON(t, w, &resp)
				if resp.Action != tt.expectedAction {
					t.Errorf("Expected action %s, got %s", tt.expectedAction, resp.Action)
				}
			}
		})
	}

	env.flush(t)
	if stats := env.stats(t, "item1"); stats.Total != 0 {
		t.Errorf("Expected no votes after delete, got %d", stats.Total)
	}
}

func TestGetUserVoteHandler(t *testing.T) {
	env := setupHandler(t)

	get := func(voter string) (int, *models.Vote) {
		req := testutil.MakeRequest("GET", "/items/item1/votes/me", nil,
			map[string]string{"X-Voter-Token": testutil.VoterToken(voter)})
		req.SetPathValue("id", "item1")
		w := httptest.NewRecorder()
		env.handler.GetUserVote(w, req)

		var resp models.UserVoteResponse
		if w.Code == http.StatusOK {
			testutil.AssertJSON(t, w, &resp)
		}
		return w.Code, resp.Value
	}

	code, v := get("alice")
	if code != http.StatusOK || v != nil {
		t.Errorf("Expected 200 with null value, got %d %v", code, v)
	}

	env.vote(t, "item1", "alice", "up")

	code, v = get("alice")
	if code != http.StatusOK || v == nil || *v != models.VoteUp {
		t.Errorf("Expected 200 with up, got %d %v", code, v)
	}

	// Other voters are unaffected
	if _, v := get("bob"); v != nil {
		t.Errorf("Expected bob to have no vote, got %v", *v)
	}
}

func TestGetStatsForUnknownItem(t *testing.T) {
	env := setupHandler(t)

	stats := env.stats(t, "never-voted")
	if stats.Total != 0 || stats.Score != 0 {
		t.Errorf("Expected zero counts, got %+v", stats)
	}
	if stats.TrustScore != 50 {
		t.Errorf("Expected neutral trust score, got %v", stats.TrustScore)
	}
	if stats.Degraded {
		t.Error("A missing item is not a degraded read")
	}
}

func TestGetStatsRejectsLongItemID(t *testing.T) {
	env := setupHandler(t)

	for _, itemID := range []string{strings.Repeat("x", 129), " "} {
		req := httptest.NewRequest("GET", "/items/x/stats", nil)
		req.SetPathValue("id", itemID)
		w := httptest.NewRecorder()

		env.handler.GetStats(w, req)
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	}

	// 128 bytes is still accepted
	stats := env.stats(t, strings.Repeat("x", 128))
	if stats.Total != 0 {
		t.Errorf("Expected zero counts, got %+v", stats)
	}
}

func TestGetStatsBatchHandler(t *testing.T) {
	env := setupHandler(t)
	env.vote(t, "a", "alice", "up")
	env.vote(t, "b", "alice", "down")
	env.flush(t)

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expectedItems  int
	}{
		{"two items", "?ids=a,b", http.StatusOK, 2},
		{"whitespace and empties", "?ids=a,%20,b,", http.StatusOK, 2},
		{"no ids", "", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/stats"+tt.query, nil)
			w := httptest.NewRecorder()
			env.handler.GetStatsBatch(w, req)

			testutil.AssertStatus(t, w, tt.expectedStatus)
			if tt.expectedStatus == http.StatusOK {
				var resp models.StatsBatchResponse
				testutil.AssertJSON(t, w, &resp)
				if len(resp.Items) != tt.expectedItems {
					t.Errorf("Expected %d items, got %d", tt.expectedItems, len(resp.Items))
				}
			}
		})
	}
}

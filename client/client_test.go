// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/factcheck-votes/aggregate"
	"github.com/danielhkuo/factcheck-votes/cache"
	"github.com/danielhkuo/factcheck-votes/ledger"
	"github.com/danielhkuo/factcheck-votes/models"
	"github.com/danielhkuo/factcheck-votes/reconciler"
	"github.com/danielhkuo/factcheck-votes/router"
	"github.com/danielhkuo/factcheck-votes/scoring"
	"github.com/danielhkuo/factcheck-votes/testutil"
	"github.com/danielhkuo/factcheck-votes/voting"
)

// startServer runs the full API against a fresh SQLite database
func startServer(t *testing.T) (*httptest.Server, *reconciler.Reconciler) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { db.Close() })

	store := aggregate.NewStore(db)
	c := cache.New(time.Minute)
	r := reconciler.New(store, c, reconciler.WithInterval(20*time.Millisecond))
	svc := voting.NewService(ledger.New(db), store, c, r, scoring.DefaultTrustPolicy())

	r.Start(context.Background())
	t.Cleanup(func() { r.Stop() })

	srv := httptest.NewServer(router.NewRouter(svc, testutil.GetTestConfig()))
	t.Cleanup(srv.Close)
	return srv, r
}

func TestClient_RoundTrip(t *testing.T) {
	srv, r := startServer(t)
	ctx := context.Background()
	alice := New(srv.URL, testutil.VoterToken("alice"))

	resp, err := alice.SubmitVote(ctx, "claim-1", models.VoteUp)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, models.ActionCreated, resp.Action)
	require.NotNil(t, resp.Vote)
	assert.Equal(t, models.VoteUp, *resp.Vote)

	v, err := alice.GetUserVote(ctx, "claim-1")
	require.NoError(t, err)
	assert.Equal(t, models.VoteUp, v)

	require.NoError(t, r.Flush(ctx))

	stats, err := alice.GetStats(ctx, "claim-1")
	require.NoError(t, err)
	assert.Equal(t, "claim-1", stats.ItemID)
	assert.Equal(t, int64(1), stats.Upvotes)
	assert.Equal(t, int64(1), stats.Score)

	resp, err = alice.DeleteVote(ctx, "claim-1")
	require.NoError(t, err)
	assert.Equal(t, models.ActionRemoved, resp.Action)
	assert.Nil(t, resp.Vote)

	v, err = alice.GetUserVote(ctx, "claim-1")
	require.NoError(t, err)
	assert.Equal(t, models.VoteNone, v)
}

func TestClient_APIError(t *testing.T) {
	srv, _ := startServer(t)

	anon := New(srv.URL, "")
	_, err := anon.SubmitVote(context.Background(), "claim-1", models.VoteUp)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.NotEmpty(t, apiErr.Message)
}

func TestClient_Timeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	c := New(slow.URL, "tok")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.GetStats(ctx, "claim-1")
	assert.True(t, errors.Is(err, ErrNetworkTimeout), "got %v", err)

	// http.Client.Timeout is reported the same way
	c = New(slow.URL, "tok", WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	_, err = c.GetStats(context.Background(), "claim-1")
	assert.True(t, errors.Is(err, ErrNetworkTimeout), "got %v", err)
}

func TestController_AgainstServer(t *testing.T) {
	srv, r := startServer(t)
	ctx := context.Background()

	// Bob already voted down
	_, err := New(srv.URL, testutil.VoterToken("bob")).SubmitVote(ctx, "claim-7", models.VoteDown)
	require.NoError(t, err)
	require.NoError(t, r.Flush(ctx))

	ctl := NewController(New(srv.URL, testutil.VoterToken("alice")), "claim-7",
		WithReconcileDelay(200*time.Millisecond))
	defer ctl.Close()

	require.NoError(t, ctl.Refresh(ctx))
	snap := ctl.Snapshot()
	assert.Equal(t, int64(-1), snap.Score)
	assert.Equal(t, models.VoteNone, snap.MyVote)

	require.NoError(t, ctl.Toggle(models.VoteUp))
	assert.Equal(t, int64(0), ctl.Snapshot().Score, "optimistic update applies immediately")

	// The scheduled read lands after the next flush and clears the provisional flag
	require.Eventually(t, func() bool { return !ctl.Snapshot().Provisional },
		2*time.Second, 10*time.Millisecond)

	snap = ctl.Snapshot()
	assert.Equal(t, models.VoteUp, snap.MyVote)
	assert.Equal(t, int64(1), snap.Upvotes)
	assert.Equal(t, int64(1), snap.Downvotes)
	assert.Equal(t, int64(0), snap.Score)
	assert.Equal(t, 50.0, snap.TrustScore)
}

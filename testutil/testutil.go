// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielhkuo/factcheck-votes/auth"
	"github.com/danielhkuo/factcheck-votes/cliparse"
	"github.com/danielhkuo/factcheck-votes/db"
)

// TestVoterSalt signs voter tokens in tests
const TestVoterSalt = "test-voter-salt"

// SetupTestDB creates a fresh SQLite database with the full schema.
// The file lives in t.TempDir, so every test gets its own database.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open(db.TypeSQLite, "file:"+filepath.Join(t.TempDir(), "votes.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	if err := db.CreateSchema(conn); err != nil {
		conn.Close()
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:           3318,
		DatabaseURL:    "file:test.db",
		DatabaseType:   db.TypeSQLite,
		VoterTokenSalt: TestVoterSalt,
		FlushInterval:  time.Second,
		CacheTTL:       time.Minute,
		BatchSize:      500,
		RateLimit:      1000,
		RateBurst:      1000,
	}
}

// VoterToken returns a signed token for voterID
func VoterToken(voterID string) string {
	return auth.IssueVoterToken(voterID, TestVoterSalt)
}

// InsertTestVote writes a ledger row directly, bypassing toggle logic
func InsertTestVote(t *testing.T, conn *sql.DB, itemID, voterID, value string) {
	t.Helper()

	id, _ := auth.GenerateID(16)
	now := time.Now()
	_, err := conn.Exec(`
		INSERT INTO vote_record (id, item_id, voter_id, value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, id, itemID, voterID, value, now)
	if err != nil {
		t.Fatalf("Failed to create test vote: %v", err)
	}
}

// CountRecords returns the number of ledger rows for an (item, voter) pair
func CountRecords(t *testing.T, conn *sql.DB, itemID, voterID string) int {
	t.Helper()

	var n int
	err := conn.QueryRow(`
		SELECT COUNT(*) FROM vote_record WHERE item_id = $1 AND voter_id = $2
	`, itemID, voterID).Scan(&n)
	if err != nil {
		t.Fatalf("Failed to count vote records: %v", err)
	}
	return n
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}

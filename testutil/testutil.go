// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package testutil provides database and HTTP helpers shared by handler tests.
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

	"github.com/danielhkuo/ranked-pick/auth"
	"github.com/danielhkuo/ranked-pick/cliparse"
	"github.com/danielhkuo/ranked-pick/db"
	"github.com/danielhkuo/ranked-pick/voting"
)

// TestSeed is the tie-break seed given to every fixture poll.
const TestSeed = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// SetupTestDB creates a fresh SQLite database with the full schema in the
// test's temporary directory.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open(db.TypeSQLite, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// One connection serializes writers the way a single SQLite file needs.
	conn.SetMaxOpenConns(1)

	if err := db.CreateSchema(conn); err != nil {
		conn.Close()
		t.Fatalf("Failed to create schema: %v", err)
	}
	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:         3318,
		DatabaseURL:  "test.db",
		DatabaseType: db.TypeSQLite,
		AdminKeySalt: "test-admin-salt",
		PollSlugSalt: "test-slug-salt",
		ShareBaseURL: "https://ranked-pick.com",
	}
}

// PollFixture describes a poll inserted directly into the database.
type PollFixture struct {
	Status          string // "draft", "open", or "closed"
	WinnerCount     int    // defaults to 1
	ClosesAt        *time.Time
	CloseAfterVotes *int
}

// CreateTestPoll creates a single-winner poll and returns its ID, admin key
// and share slug (empty for drafts).
func CreateTestPoll(t *testing.T, conn *sql.DB, cfg cliparse.Config, status string) (pollID, adminKey, shareSlug string) {
	t.Helper()
	return CreateTestPollWith(t, conn, cfg, PollFixture{Status: status})
}

// CreateTestPollWith creates a poll from f.
func CreateTestPollWith(t *testing.T, conn *sql.DB, cfg cliparse.Config, f PollFixture) (pollID, adminKey, shareSlug string) {
	t.Helper()

	id, err := auth.NewID()
	if err != nil {
		t.Fatalf("Failed to generate poll ID: %v", err)
	}
	pollID = id.String()
	adminKey = auth.GenerateAdminKey(pollID, cfg.AdminKeySalt)

	var slug *string
	if f.Status == "open" || f.Status == "closed" {
		s := auth.GenerateShareSlug(pollID, cfg.PollSlugSalt)
		slug = &s
		shareSlug = s
	}

	var closedAt *time.Time
	if f.Status == "closed" {
		now := time.Now().UTC()
		closedAt = &now
	}

	winners := f.WinnerCount
	if winners == 0 {
		winners = 1
	}

	_, err = conn.Exec(`
		INSERT INTO poll (id, title, description, creator_name, method, status, winner_count,
		                  rng_seed, share_slug, closes_at, close_after_votes, closed_at, created_at)
		VALUES ($1, 'Test Poll', 'A test poll', 'TestUser', 'rcv', $2, $3, $4, $5, $6, $7, $8, $9)
	`, pollID, f.Status, winners, TestSeed, slug, f.ClosesAt, f.CloseAfterVotes, closedAt, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test poll: %v", err)
	}

	return pollID, adminKey, shareSlug
}

// AddTestOption appends an option to a poll and returns its id.
func AddTestOption(t *testing.T, conn *sql.DB, pollID, label string) voting.OptionID {
	t.Helper()

	var next int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM option WHERE poll_id = $1`, pollID).Scan(&next); err != nil {
		t.Fatalf("Failed to count options: %v", err)
	}

	_, err := conn.Exec(`
		INSERT INTO option (poll_id, idx, label)
		VALUES ($1, $2, $3)
	`, pollID, next, label)
	if err != nil {
		t.Fatalf("Failed to create test option: %v", err)
	}

	return voting.OptionID(next)
}

// CreateTestVoter claims a username for a poll and returns the voter token
func CreateTestVoter(t *testing.T, conn *sql.DB, pollID, username string) string {
	t.Helper()

	voterToken, err := auth.GenerateVoterToken()
	if err != nil {
		t.Fatalf("Failed to generate voter token: %v", err)
	}
	voterID, err := auth.NewID()
	if err != nil {
		t.Fatalf("Failed to generate voter ID: %v", err)
	}

	_, err = conn.Exec(`
		INSERT INTO username_claim (poll_id, username, voter_token, voter_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, pollID, username, voterToken, voterID.String(), time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test voter: %v", err)
	}

	return voterToken
}

// SubmitTestBallot stores a ballot ranking the given options, most
// preferred first, and returns the ballot ID.
func SubmitTestBallot(t *testing.T, conn *sql.DB, pollID, voterToken string, rankings ...voting.OptionID) string {
	t.Helper()

	id, err := auth.NewID()
	if err != nil {
		t.Fatalf("Failed to generate ballot ID: %v", err)
	}
	ballotID := id.String()

	_, err = conn.Exec(`
		INSERT INTO ballot (id, poll_id, voter_token, submitted_at)
		VALUES ($1, $2, $3, $4)
	`, ballotID, pollID, voterToken, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test ballot: %v", err)
	}

	for rank, option := range rankings {
		_, err := conn.Exec(`
			INSERT INTO preference (ballot_id, rank, option_idx)
			VALUES ($1, $2, $3)
		`, ballotID, rank, int(option))
		if err != nil {
			t.Fatalf("Failed to create test preference: %v", err)
		}
	}

	return ballotID
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body any, headers map[string]string) *http.Request {
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
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/danielhkuo/ranked-pick/models"
	"github.com/danielhkuo/ranked-pick/testutil"
	"github.com/danielhkuo/ranked-pick/voting"
)

func TestHealthEndpoint(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	mux := NewRouter(db, cfg)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	if w.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", w.Body.String())
	}
}

func TestRootEndpoint(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	mux := NewRouter(db, cfg)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	expected := "ranked-pick API v1"
	if w.Body.String() != expected {
		t.Errorf("Expected body '%s', got '%s'", expected, w.Body.String())
	}
}

func TestRouteExistence(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	mux := NewRouter(db, cfg)

	// Test that routes respond (handler is invoked)
	// Note: Some routes return 404 when data doesn't exist, which is valid handler behavior
	testCases := []struct {
		method string
		path   string
	}{
		// Health and root
		{"GET", "/health"},
		{"GET", "/"},

		// Poll management routes (these use {id} param and may return auth errors)
		{"POST", "/polls"},
		{"GET", "/polls/test-id/admin"},
		{"POST", "/polls/test-id/options"},
		{"POST", "/polls/test-id/publish"},
		{"POST", "/polls/test-id/close"},
		{"GET", "/polls/test-id/tally"},

		// Voting routes (these use {slug} param)
		{"POST", "/polls/test-slug/claim-username"},
		{"POST", "/polls/test-slug/ballots"},
		{"GET", "/polls/test-slug/my-ballot"},
		{"DELETE", "/polls/test-slug/my-ballot"},

		// Results routes
		{"GET", "/polls/test-slug"},
		{"GET", "/polls/test-slug/results"},
		{"GET", "/polls/test-slug/ballot-count"},
		{"GET", "/polls/test-slug/preview"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			// Route should be matched (not 405 Method Not Allowed for these specific routes)
			// 400, 401, 404 are all valid responses depending on handler logic
			if w.Code == http.StatusMethodNotAllowed {
				t.Errorf("Route %s %s returned 405, expected route handler to exist", tc.method, tc.path)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	mux := NewRouter(db, cfg)

	// Test that unsupported methods on defined routes return 405
	testCases := []struct {
		method string
		path   string
	}{
		{"POST", "/health"}, // Only GET is defined
		{"DELETE", "/polls/test-id/admin"}, // Only GET is defined
		{"POST", "/polls/test-id/tally"},   // Only GET is defined
		{"PUT", "/polls/test-slug/my-ballot"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("Expected 405 for %s %s, got %d", tc.method, tc.path, w.Code)
			}
		})
	}
}

func TestPathParameterExtraction(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()

	// Create a test poll to verify path parameters work
	pollID, adminKey, _ := testutil.CreateTestPoll(t, db, cfg, "draft")

	mux := NewRouter(db, cfg)

	// Test that {id} parameter extracts correctly
	t.Run("poll ID extraction", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/polls/"+pollID+"/admin", nil)
		req.Header.Set("X-Admin-Key", adminKey)
		w := httptest.NewRecorder()

		mux.ServeHTTP(w, req)

		// Should not be 404 (route matched) and not 400 (ID extracted)
		if w.Code == http.StatusNotFound {
			t.Error("Route should have matched")
		}
		// With valid admin key and poll, should return 200
		if w.Code != http.StatusOK {
			t.Errorf("Expected 200 with valid admin key, got %d. Body: %s", w.Code, w.Body.String())
		}
	})
}

func TestSpecificMethodRouting(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	mux := NewRouter(db, cfg)

	// Test that method-specific routes are enforced
	testCases := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		// POST /health doesn't exist, should return 405
		{"POST to health endpoint", "POST", "/health", http.StatusMethodNotAllowed},
		// PUT /polls/test/options doesn't exist, POST does
		{"PUT to options endpoint", "PUT", "/polls/test-id/options", http.StatusMethodNotAllowed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != tc.expectedStatus {
				t.Errorf("Expected %d for %s %s, got %d", tc.expectedStatus, tc.method, tc.path, w.Code)
			}
		})
	}
}

// TestRankedBallotRoutes drives one poll through every route of the router,
// from creation to sealed results.
func TestRankedBallotRoutes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	mux := NewRouter(db, testutil.GetTestConfig())
	serve := func(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
		t.Helper()
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, testutil.MakeRequest(method, path, body, headers))
		return w
	}

	w := serve("POST", "/polls", models.CreatePollRequest{
		Title:       "Friday lunch",
		CreatorName: "Ana",
		Options:     []string{"Pizza", "Tacos"},
		WinnerCount: 1,
	}, nil)
	testutil.AssertStatus(t, w, http.StatusCreated)
	var created models.CreatePollResponse
	testutil.AssertJSON(t, w, &created)
	admin := map[string]string{"X-Admin-Key": created.AdminKey}
	pollPath := "/polls/" + created.PollID

	w = serve("POST", pollPath+"/options", models.AddOptionRequest{Label: "Sushi"}, admin)
	testutil.AssertStatus(t, w, http.StatusCreated)
	var added models.AddOptionResponse
	testutil.AssertJSON(t, w, &added)
	if added.OptionID != 2 {
		t.Fatalf("Expected option id 2, got %d", added.OptionID)
	}

	// Drafts cannot be tallied.
	testutil.AssertStatus(t, serve("GET", pollPath+"/tally", nil, admin), http.StatusConflict)

	w = serve("POST", pollPath+"/publish", nil, admin)
	testutil.AssertStatus(t, w, http.StatusOK)
	var published models.PublishPollResponse
	testutil.AssertJSON(t, w, &published)
	slugPath := "/polls/" + published.ShareSlug

	const pizza, tacos, sushi = voting.OptionID(0), voting.OptionID(1), voting.OptionID(2)
	ballots := []struct {
		username string
		rankings []voting.OptionID
	}{
		{"ana", []voting.OptionID{tacos, pizza}},
		{"ben", []voting.OptionID{tacos}},
		{"cat", []voting.OptionID{pizza, tacos}},
		{"dev", []voting.OptionID{sushi, pizza}},
	}
	tokens := make(map[string]map[string]string)
	for _, b := range ballots {
		w = serve("POST", slugPath+"/claim-username", models.ClaimUsernameRequest{Username: b.username}, nil)
		testutil.AssertStatus(t, w, http.StatusCreated)
		var claim models.ClaimUsernameResponse
		testutil.AssertJSON(t, w, &claim)
		tokens[b.username] = map[string]string{"X-Voter-Token": claim.VoterToken}

		w = serve("POST", slugPath+"/ballots", models.SubmitBallotRequest{Rankings: b.rankings}, tokens[b.username])
		testutil.AssertStatus(t, w, http.StatusCreated)
	}

	// Ben withdraws, checks, and votes again.
	testutil.AssertStatus(t, serve("DELETE", slugPath+"/my-ballot", nil, tokens["ben"]), http.StatusNoContent)
	testutil.AssertStatus(t, serve("GET", slugPath+"/my-ballot", nil, tokens["ben"]), http.StatusNotFound)
	w = serve("POST", slugPath+"/ballots", models.SubmitBallotRequest{Rankings: []voting.OptionID{tacos}}, tokens["ben"])
	testutil.AssertStatus(t, w, http.StatusCreated)

	w = serve("GET", slugPath+"/my-ballot", nil, tokens["dev"])
	testutil.AssertStatus(t, w, http.StatusOK)
	var mine models.MyBallotResponse
	testutil.AssertJSON(t, w, &mine)
	if !slices.Equal(mine.Rankings, []voting.OptionID{sushi, pizza}) {
		t.Errorf("Expected dev's rankings [2 0], got %v", mine.Rankings)
	}

	testutil.AssertStatus(t, serve("GET", slugPath+"/results", nil, nil), http.StatusForbidden)
	testutil.AssertStatus(t, serve("GET", pollPath+"/tally", nil, nil), http.StatusUnauthorized)

	// Sushi goes first, then Pizza on popularity, and Cat's ballot lifts
	// Tacos to the quota of 3.
	w = serve("GET", pollPath+"/tally", nil, admin)
	testutil.AssertStatus(t, w, http.StatusOK)
	var tally models.TallyResponse
	testutil.AssertJSON(t, w, &tally)
	if !slices.Equal(tally.Result.Winners, []voting.OptionID{tacos}) ||
		!slices.Equal(tally.Result.Eliminated, []voting.OptionID{sushi, pizza}) {
		t.Errorf("Unexpected live tally %+v", tally.Result)
	}

	testutil.AssertStatus(t, serve("POST", pollPath+"/close", nil, admin), http.StatusOK)
	testutil.AssertStatus(t, serve("POST", pollPath+"/close", nil, admin), http.StatusConflict)
	testutil.AssertStatus(t, serve("POST", slugPath+"/ballots",
		models.SubmitBallotRequest{Rankings: []voting.OptionID{pizza}}, tokens["cat"]), http.StatusConflict)
	testutil.AssertStatus(t, serve("DELETE", slugPath+"/my-ballot", nil, tokens["ana"]), http.StatusConflict)

	w = serve("GET", slugPath+"/results", nil, nil)
	testutil.AssertStatus(t, w, http.StatusOK)
	var results models.ResultsResponse
	testutil.AssertJSON(t, w, &results)
	if results.BallotCount != 4 || results.Snapshot.InputsHash != tally.InputsHash {
		t.Errorf("Expected 4 ballots and hash %s, got %d and %s",
			tally.InputsHash, results.BallotCount, results.Snapshot.InputsHash)
	}
	if !slices.Equal(results.Snapshot.Result.Winners, tally.Result.Winners) ||
		results.Snapshot.Result.Outcome != voting.OutcomeConclusive {
		t.Errorf("Stored result %+v differs from live tally", results.Snapshot.Result)
	}
}

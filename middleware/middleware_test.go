// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/danielhkuo/ranked-pick/models"
)

func TestWithLogging(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, nil)))
	defer slog.SetDefault(prev)

	testCases := []struct {
		name       string
		method     string
		path       string
		statusCode int
		body       string
	}{
		{"create poll", "POST", "/polls", http.StatusCreated, `{"poll_id":"p1"}`},
		{"replace ballot", "POST", "/polls/s1/ballots", http.StatusOK, `{"ballot_id":"b1"}`},
		{"withdraw ballot", "DELETE", "/polls/s1/my-ballot", http.StatusNoContent, ""},
		{"sealed results", "GET", "/polls/s1/results", http.StatusForbidden, `{"error":"Forbidden"}`},
		{"close twice", "POST", "/polls/p1/close", http.StatusConflict, `{"error":"Conflict"}`},
		{"implicit ok", "GET", "/polls/s1", 0, "{}"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			logs.Reset()
			handler := WithLogging(func(w http.ResponseWriter, r *http.Request) {
				if tc.statusCode != 0 {
					w.WriteHeader(tc.statusCode)
				}
				w.Write([]byte(tc.body))
			})

			w := httptest.NewRecorder()
			handler(w, httptest.NewRequest(tc.method, tc.path, nil))

			want := tc.statusCode
			if want == 0 {
				want = http.StatusOK
			}
			if w.Code != want || w.Body.String() != tc.body {
				t.Errorf("Expected %d %q, got %d %q", want, tc.body, w.Code, w.Body.String())
			}

			// The second line is the completion record.
			lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
			if len(lines) != 2 {
				t.Fatalf("Expected 2 log lines, got %d: %s", len(lines), logs.String())
			}
			var entry struct {
				Msg       string `json:"msg"`
				RequestID string `json:"request_id"`
				Method    string `json:"method"`
				Path      string `json:"path"`
				Status    int    `json:"status"`
			}
			if err := json.Unmarshal([]byte(lines[1]), &entry); err != nil {
				t.Fatalf("Failed to parse log line: %v", err)
			}
			if entry.Msg != "request completed" || entry.Method != tc.method || entry.Path != tc.path || entry.Status != want {
				t.Errorf("Unexpected completion log %+v", entry)
			}
			if entry.RequestID != w.Header().Get(RequestIDHeader) {
				t.Errorf("Expected logged request id %q, got %q", w.Header().Get(RequestIDHeader), entry.RequestID)
			}
		})
	}
}

func TestWithLogging_RequestID(t *testing.T) {
	handler := WithLogging(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("generated when missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest("GET", "/", nil))

		id := w.Header().Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			t.Errorf("Expected generated UUID request id, got %q", id)
		}
		if w.Code != http.StatusNoContent {
			t.Errorf("Expected status 204, got %d", w.Code)
		}
	})

	t.Run("reused when provided", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		w := httptest.NewRecorder()
		handler(w, req)

		if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
			t.Errorf("Expected request id 'abc-123', got %q", got)
		}
	})
}

func TestStatusRecorder(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	rec.WriteHeader(http.StatusTeapot)
	if rec.status != http.StatusTeapot {
		t.Errorf("Expected recorded status 418, got %d", rec.status)
	}
}

func TestJSONResponse(t *testing.T) {
	testCases := []struct {
		name       string
		statusCode int
		data       interface{}
		expected   string
	}{
		{
			name:       "simple struct",
			statusCode: http.StatusOK,
			data:       map[string]string{"message": "hello"},
			expected:   `{"message":"hello"}`,
		},
		{
			name:       "created response",
			statusCode: http.StatusCreated,
			data:       models.CreatePollResponse{PollID: "abc123", AdminKey: "key456"},
			expected:   `{"poll_id":"abc123","admin_key":"key456"}`,
		},
		{
			name:       "error response",
			statusCode: http.StatusBadRequest,
			data:       models.ErrorResponse{Error: "Bad Request", Message: "missing field"},
			expected:   `{"error":"Bad Request","message":"missing field"}`,
		},
		{
			name:       "array data",
			statusCode: http.StatusOK,
			data:       []string{"a", "b", "c"},
			expected:   `["a","b","c"]`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			JSONResponse(w, tc.statusCode, tc.data)

			// Check status code
			if w.Code != tc.statusCode {
				t.Errorf("Expected status %d, got %d", tc.statusCode, w.Code)
			}

			// Check Content-Type header
			contentType := w.Header().Get("Content-Type")
			if contentType != "application/json" {
				t.Errorf("Expected Content-Type 'application/json', got '%s'", contentType)
			}

			// Check body (trim newline added by Encode)
			body := strings.TrimSpace(w.Body.String())
			if body != tc.expected {
				t.Errorf("Expected body '%s', got '%s'", tc.expected, body)
			}
		})
	}
}

func TestErrorResponse(t *testing.T) {
	testCases := []struct {
		name           string
		statusCode     int
		message        string
		expectedError  string
	}{
		{
			name:          "bad request",
			statusCode:    http.StatusBadRequest,
			message:       "title is required",
			expectedError: "Bad Request",
		},
		{
			name:          "unauthorized",
			statusCode:    http.StatusUnauthorized,
			message:       "invalid admin key",
			expectedError: "Unauthorized",
		},
		{
			name:          "not found",
			statusCode:    http.StatusNotFound,
			message:       "poll not found",
			expectedError: "Not Found",
		},
		{
			name:          "conflict",
			statusCode:    http.StatusConflict,
			message:       "poll already closed",
			expectedError: "Conflict",
		},
		{
			name:          "internal error",
			statusCode:    http.StatusInternalServerError,
			message:       "database error",
			expectedError: "Internal Server Error",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			ErrorResponse(w, tc.statusCode, tc.message)

			// Check status code
			if w.Code != tc.statusCode {
				t.Errorf("Expected status %d, got %d", tc.statusCode, w.Code)
			}

			// Check Content-Type
			if w.Header().Get("Content-Type") != "application/json" {
				t.Error("Expected Content-Type 'application/json'")
			}

			// Decode and verify error response
			var resp models.ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode error response: %v", err)
			}

			if resp.Error != tc.expectedError {
				t.Errorf("Expected error '%s', got '%s'", tc.expectedError, resp.Error)
			}
			if resp.Message != tc.message {
				t.Errorf("Expected message '%s', got '%s'", tc.message, resp.Message)
			}
		})
	}
}

func TestParseJSONBody(t *testing.T) {
	t.Run("valid JSON", func(t *testing.T) {
		body := `{"title":"Lunch","creator_name":"Alice","options":["Pizza","Tacos","Sushi"],"winner_count":2,"close_after_votes":10}`
		req := httptest.NewRequest("POST", "/", strings.NewReader(body))

		var parsed models.CreatePollRequest
		if err := ParseJSONBody(req, &parsed); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if parsed.Title != "Lunch" || parsed.CreatorName != "Alice" {
			t.Errorf("Unexpected poll header %+v", parsed)
		}
		if len(parsed.Options) != 3 || parsed.WinnerCount != 2 {
			t.Errorf("Expected 3 options and 2 seats, got %v and %d", parsed.Options, parsed.WinnerCount)
		}
		if parsed.CloseAfterVotes == nil || *parsed.CloseAfterVotes != 10 {
			t.Errorf("Expected close_after_votes 10, got %v", parsed.CloseAfterVotes)
		}
		if parsed.ClosesAt != nil {
			t.Errorf("Expected no deadline, got %v", parsed.ClosesAt)
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		body := `{invalid json}`
		req := httptest.NewRequest("POST", "/", strings.NewReader(body))

		var parsed models.CreatePollRequest
		err := ParseJSONBody(req, &parsed)

		if err == nil {
			t.Error("Expected error for invalid JSON")
		}
	})

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(""))

		var parsed models.CreatePollRequest
		err := ParseJSONBody(req, &parsed)

		if err == nil {
			t.Error("Expected error for empty body")
		}
	})

	t.Run("null body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader("null"))

		var parsed *models.CreatePollRequest
		err := ParseJSONBody(req, &parsed)

		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if parsed != nil {
			t.Error("Expected nil result for null JSON")
		}
	})

	t.Run("oversized body rejected", func(t *testing.T) {
		body := `{"title":"` + strings.Repeat("x", maxBodyBytes) + `"}`
		req := httptest.NewRequest("POST", "/", strings.NewReader(body))

		var parsed models.CreatePollRequest
		if err := ParseJSONBody(req, &parsed); err == nil {
			t.Error("Expected error for oversized body")
		}
	})

	t.Run("rankings decode as option ids", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"rankings":[2,0,1]}`))

		var parsed models.SubmitBallotRequest
		if err := ParseJSONBody(req, &parsed); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if len(parsed.Rankings) != 3 || parsed.Rankings[0] != 2 {
			t.Errorf("Unexpected rankings %v", parsed.Rankings)
		}
	})

	t.Run("extra fields ignored", func(t *testing.T) {
		body := `{"title":"Test","creator_name":"Bob","unknown_field":"ignored"}`
		req := httptest.NewRequest("POST", "/", strings.NewReader(body))

		var parsed models.CreatePollRequest
		err := ParseJSONBody(req, &parsed)

		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if parsed.Title != "Test" {
			t.Errorf("Expected title 'Test', got '%s'", parsed.Title)
		}
	})

	t.Run("body is closed after parsing", func(t *testing.T) {
		body := `{"title":"Test","creator_name":"Alice"}`
		bodyReader := io.NopCloser(bytes.NewReader([]byte(body)))
		req := httptest.NewRequest("POST", "/", bodyReader)

		var parsed models.CreatePollRequest
		_ = ParseJSONBody(req, &parsed)

		// Try to read from body again - should return empty/error since it's closed
		remaining, err := io.ReadAll(req.Body)
		if err != nil && err != io.EOF {
			// Body closed is expected
		}
		if len(remaining) > 0 {
			t.Error("Expected body to be consumed/closed")
		}
	})
}

func TestCORS(t *testing.T) {
	var reached *http.Request
	corsHandler := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = r
		w.Write([]byte("handled"))
	}))

	// Preflights a browser sends before each credentialed API call.
	preflights := []struct {
		name   string
		path   string
		method string
		header string
	}{
		{"create poll", "/polls", "POST", "Content-Type"},
		{"admin view", "/polls/p1/admin", "GET", "X-Admin-Key"},
		{"close poll", "/polls/p1/close", "POST", "X-Admin-Key"},
		{"live tally", "/polls/p1/tally", "GET", "X-Admin-Key"},
		{"submit rankings", "/polls/s1/ballots", "POST", "X-Voter-Token"},
		{"read own ballot", "/polls/s1/my-ballot", "GET", "X-Voter-Token"},
		{"withdraw ballot", "/polls/s1/my-ballot", "DELETE", "X-Voter-Token"},
		{"traced request", "/polls/s1/results", "GET", RequestIDHeader},
	}

	for _, tt := range preflights {
		t.Run("preflight "+tt.name, func(t *testing.T) {
			reached = nil
			req := httptest.NewRequest("OPTIONS", tt.path, nil)
			req.Header.Set("Origin", "http://localhost:5173")
			req.Header.Set("Access-Control-Request-Method", tt.method)
			req.Header.Set("Access-Control-Request-Headers", strings.ToLower(tt.header))
			w := httptest.NewRecorder()

			corsHandler.ServeHTTP(w, req)

			if w.Code != http.StatusOK || w.Body.Len() != 0 || reached != nil {
				t.Fatalf("Expected bare 200 preflight, got %d %q (next called: %v)", w.Code, w.Body.String(), reached != nil)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
				t.Errorf("Expected origin echoed, got %q", got)
			}
			if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
				t.Errorf("Expected credentials allowed, got %q", got)
			}
			if !listContains(w.Header().Get("Access-Control-Allow-Methods"), tt.method) {
				t.Errorf("Expected %s in allowed methods %q", tt.method, w.Header().Get("Access-Control-Allow-Methods"))
			}
			if !listContains(w.Header().Get("Access-Control-Allow-Headers"), tt.header) {
				t.Errorf("Expected %s in allowed headers %q", tt.header, w.Header().Get("Access-Control-Allow-Headers"))
			}
		})
	}

	t.Run("credentials pass through to handler", func(t *testing.T) {
		reached = nil
		req := httptest.NewRequest("POST", "/polls/s1/ballots", strings.NewReader(`{"rankings":[1,0]}`))
		req.Header.Set("Origin", "https://example.com")
		req.Header.Set("X-Voter-Token", "token")
		w := httptest.NewRecorder()

		corsHandler.ServeHTTP(w, req)

		if reached == nil || w.Body.String() != "handled" {
			t.Fatal("Expected next handler to be called")
		}
		if reached.Header.Get("X-Voter-Token") != "token" {
			t.Error("Expected X-Voter-Token to reach the handler")
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
			t.Errorf("Expected origin echoed, got %q", got)
		}
	})

	t.Run("request without origin defaults to wildcard", func(t *testing.T) {
		w := httptest.NewRecorder()
		corsHandler.ServeHTTP(w, httptest.NewRequest("GET", "/polls/s1", nil))

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("Expected '*', got %q", got)
		}
	})

	t.Run("request id readable by scripts", func(t *testing.T) {
		handler := CORS(WithLogging(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		req := httptest.NewRequest("DELETE", "/polls/s1/my-ballot", nil)
		req.Header.Set("Origin", "https://example.com")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("Expected 204, got %d", w.Code)
		}
		if !listContains(w.Header().Get("Access-Control-Expose-Headers"), RequestIDHeader) {
			t.Errorf("Expected %s exposed, got %q", RequestIDHeader, w.Header().Get("Access-Control-Expose-Headers"))
		}
		if w.Header().Get(RequestIDHeader) == "" {
			t.Error("Expected a request id on the response")
		}
	})
}

// listContains reports whether a comma separated header value names item,
// ignoring case.
func listContains(list, item string) bool {
	for _, v := range strings.Split(list, ",") {
		if strings.EqualFold(strings.TrimSpace(v), item) {
			return true
		}
	}
	return false
}

func TestGetClientIP(t *testing.T) {
	testCases := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expectedIP string
	}{
		{
			name:       "X-Forwarded-For single IP",
			headers:    map[string]string{"X-Forwarded-For": "192.168.1.100"},
			remoteAddr: "10.0.0.1:12345",
			expectedIP: "192.168.1.100",
		},
		{
			name:       "X-Forwarded-For chained IPs (comma separated)",
			headers:    map[string]string{"X-Forwarded-For": "192.168.1.100, 10.0.0.1, 172.16.0.1"},
			remoteAddr: "127.0.0.1:12345",
			expectedIP: "192.168.1.100",
		},
		{
			name:       "X-Forwarded-For chained IPs (space after comma)",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.195, 70.41.3.18, 150.172.238.178"},
			remoteAddr: "127.0.0.1:12345",
			expectedIP: "203.0.113.195",
		},
		{
			name:       "X-Real-IP takes precedence over RemoteAddr",
			headers:    map[string]string{"X-Real-IP": "203.0.113.50"},
			remoteAddr: "10.0.0.1:12345",
			expectedIP: "203.0.113.50",
		},
		{
			name:       "X-Forwarded-For takes precedence over X-Real-IP",
			headers:    map[string]string{"X-Forwarded-For": "192.168.1.100", "X-Real-IP": "203.0.113.50"},
			remoteAddr: "10.0.0.1:12345",
			expectedIP: "192.168.1.100",
		},
		{
			name:       "RemoteAddr with port",
			headers:    map[string]string{},
			remoteAddr: "192.168.1.50:54321",
			expectedIP: "192.168.1.50",
		},
		{
			name:       "RemoteAddr without port",
			headers:    map[string]string{},
			remoteAddr: "192.168.1.50",
			expectedIP: "192.168.1.50",
		},
		{
			name:       "IPv6 RemoteAddr with port",
			headers:    map[string]string{},
			remoteAddr: "[::1]:12345",
			expectedIP: "::1",
		},
		{
			name:       "IPv6 in X-Forwarded-For",
			headers:    map[string]string{"X-Forwarded-For": "2001:db8::1"},
			remoteAddr: "127.0.0.1:12345",
			expectedIP: "2001:db8::1",
		},
		{
			name:       "empty X-Forwarded-For falls through to RemoteAddr",
			headers:    map[string]string{"X-Forwarded-For": ""},
			remoteAddr: "10.0.0.5:8080",
			expectedIP: "10.0.0.5",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tc.remoteAddr

			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}

			result := GetClientIP(req)

			if result != tc.expectedIP {
				t.Errorf("Expected IP '%s', got '%s'", tc.expectedIP, result)
			}
		})
	}
}

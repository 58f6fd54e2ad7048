// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/danielhkuo/ranked-pick/auth"
	"github.com/danielhkuo/ranked-pick/cliparse"
	"github.com/danielhkuo/ranked-pick/db"
	"github.com/danielhkuo/ranked-pick/middleware"
	"github.com/danielhkuo/ranked-pick/models"
	"github.com/danielhkuo/ranked-pick/validate"
	"github.com/danielhkuo/ranked-pick/voting"
)

type VotingHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewVotingHandler(db *sql.DB, cfg cliparse.Config) *VotingHandler {
	return &VotingHandler{db: db, cfg: cfg}
}

// slugPoll loads the poll named by the {slug} path value, closing it first
// if its deadline has passed.
func slugPoll(w http.ResponseWriter, r *http.Request, conn *sql.DB) (pollRecord, bool) {
	shareSlug := r.PathValue("slug")
	if shareSlug == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "slug is required")
		return pollRecord{}, false
	}

	rec, err := loadPollBySlug(conn, shareSlug)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return pollRecord{}, false
	}
	if err == nil {
		rec, err = closeIfExpired(conn, rec, time.Now().UTC())
	}
	if err != nil {
		slog.Error("failed to query poll", "error", err, "slug", shareSlug)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return pollRecord{}, false
	}
	return rec, true
}

// voterToken reads and checks the X-Voter-Token header.
func voterToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := r.Header.Get("X-Voter-Token")
	if token == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "X-Voter-Token header required")
		return "", false
	}
	if err := auth.CheckVoterToken(token); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid voter token for this poll")
		return "", false
	}
	return token, true
}

// ClaimUsername handles POST /polls/:slug/claim-username
func (h *VotingHandler) ClaimUsername(w http.ResponseWriter, r *http.Request) {
	var req models.ClaimUsernameRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "username is required")
		return
	}
	if n := utf8.RuneCountInString(username); n < 2 || n > 50 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "username must be 2-50 characters")
		return
	}

	rec, ok := slugPoll(w, r, h.db)
	if !ok {
		return
	}

	// Can only claim username for open polls
	if rec.Status != models.StatusOpen {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is not open for voting")
		return
	}

	token, err := auth.GenerateVoterToken()
	if err != nil {
		slog.Error("failed to generate voter token", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to claim username")
		return
	}
	voterID, err := auth.NewID()
	if err != nil {
		slog.Error("failed to generate voter ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to claim username")
		return
	}

	// UNIQUE (poll_id, username) rejects duplicates
	_, err = h.db.Exec(`
		INSERT INTO username_claim (poll_id, username, voter_token, voter_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.ID, username, token, voterID.String(), time.Now().UTC())
	if db.IsUniqueViolation(err) {
		middleware.ErrorResponse(w, http.StatusConflict, "Username already taken")
		return
	}
	if err != nil {
		slog.Error("failed to insert username claim", "error", err, "poll_id", rec.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to claim username")
		return
	}

	slog.Info("username claimed", "poll_id", rec.ID, "username", username)

	middleware.JSONResponse(w, http.StatusCreated, models.ClaimUsernameResponse{
		VoterToken: token,
	})
}

// claimed reports whether token was issued for the poll.
func claimed(q dbtx, pollID, token string) (bool, error) {
	var exists bool
	err := q.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM username_claim
			WHERE poll_id = $1 AND voter_token = $2
		)
	`, pollID, token).Scan(&exists)
	return exists, err
}

// SubmitBallot handles POST /polls/:slug/ballots
// Creates the voter's ballot or replaces its rankings. When the ballot
// count reaches close_after_votes the poll is closed in the same
// transaction.
func (h *VotingHandler) SubmitBallot(w http.ResponseWriter, r *http.Request) {
	token, ok := voterToken(w, r)
	if !ok {
		return
	}

	var req models.SubmitBallotRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(req.Rankings) == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "rankings cannot be empty")
		return
	}

	rec, ok := slugPoll(w, r, h.db)
	if !ok {
		return
	}

	// Can only vote on open polls
	if rec.Status != models.StatusOpen {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is not open for voting")
		return
	}

	exists, err := claimed(h.db, rec.ID, token)
	if err != nil {
		slog.Error("failed to verify voter token", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !exists {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid voter token for this poll")
		return
	}

	options, err := loadOptions(h.db, rec.ID)
	if err != nil {
		slog.Error("failed to query options", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if err := validate.Ballot(req.Rankings, len(options)); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ipHash := auth.HashIP(middleware.GetClientIP(r), h.cfg.AdminKeySalt)
	userAgent := r.UserAgent()
	now := time.Now().UTC()

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	// A close that committed after the status check above wins here.
	if err := lockOpenPoll(tx, rec.ID); errors.Is(err, ErrPollNotOpen) {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is not open for voting")
		return
	} else if err != nil {
		slog.Error("failed to lock poll", "error", err, "poll_id", rec.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	var ballotID string
	err = tx.QueryRow(`
		SELECT id FROM ballot WHERE poll_id = $1 AND voter_token = $2
	`, rec.ID, token).Scan(&ballotID)
	isUpdate := err == nil

	switch {
	case isUpdate:
		_, err = tx.Exec(`
			UPDATE ballot
			SET submitted_at = $1, ip_hash = $2, user_agent = $3
			WHERE id = $4
		`, now, ipHash, userAgent, ballotID)
		if err == nil {
			_, err = tx.Exec(`DELETE FROM preference WHERE ballot_id = $1`, ballotID)
		}
		if err != nil {
			slog.Error("failed to update ballot", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update ballot")
			return
		}
	case errors.Is(err, sql.ErrNoRows):
		id, idErr := auth.NewID()
		if idErr != nil {
			slog.Error("failed to generate ballot ID", "error", idErr)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to submit ballot")
			return
		}
		ballotID = id.String()
		_, err = tx.Exec(`
			INSERT INTO ballot (id, poll_id, voter_token, submitted_at, ip_hash, user_agent)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, ballotID, rec.ID, token, now, ipHash, userAgent)
		if err != nil {
			slog.Error("failed to insert ballot", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to submit ballot")
			return
		}
	default:
		slog.Error("failed to query ballot", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	for rank, option := range req.Rankings {
		_, err = tx.Exec(`
			INSERT INTO preference (ballot_id, rank, option_idx)
			VALUES ($1, $2, $3)
		`, ballotID, rank, int(option))
		if err != nil {
			slog.Error("failed to insert preference", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to save rankings")
			return
		}
	}

	pollClosed := false
	if !isUpdate && rec.CloseAfterVotes != nil {
		count, err := countBallots(tx, rec.ID)
		if err != nil {
			slog.Error("failed to count ballots", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if count >= *rec.CloseAfterVotes {
			_, err := finalizePoll(tx, rec, now)
			if errors.Is(err, ErrPollNotOpen) {
				middleware.ErrorResponse(w, http.StatusConflict, "Poll is not open for voting")
				return
			}
			if err != nil {
				slog.Error("failed to close poll at vote limit", "error", err, "poll_id", rec.ID)
				middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to submit ballot")
				return
			}
			pollClosed = true
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to submit ballot")
		return
	}

	message := "Ballot submitted successfully"
	status := http.StatusCreated
	if isUpdate {
		message = "Ballot updated successfully"
		status = http.StatusOK
	}

	slog.Info("ballot submitted",
		"poll_id", rec.ID,
		"ballot_id", ballotID,
		"is_update", isUpdate,
		"ranked", len(req.Rankings),
		"poll_closed", pollClosed,
	)

	middleware.JSONResponse(w, status, models.SubmitBallotResponse{
		BallotID:   ballotID,
		Message:    message,
		PollClosed: pollClosed,
	})
}

// GetMyBallot handles GET /polls/:slug/my-ballot
func (h *VotingHandler) GetMyBallot(w http.ResponseWriter, r *http.Request) {
	token, ok := voterToken(w, r)
	if !ok {
		return
	}

	rec, ok := slugPoll(w, r, h.db)
	if !ok {
		return
	}

	var resp models.MyBallotResponse
	err := h.db.QueryRow(`
		SELECT id, submitted_at FROM ballot WHERE poll_id = $1 AND voter_token = $2
	`, rec.ID, token).Scan(&resp.BallotID, &resp.SubmittedAt)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "No ballot submitted")
		return
	}
	if err != nil {
		slog.Error("failed to query ballot", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	rows, err := h.db.Query(`
		SELECT option_idx FROM preference WHERE ballot_id = $1 ORDER BY rank
	`, resp.BallotID)
	if err != nil {
		slog.Error("failed to query preferences", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	for rows.Next() {
		var option uint32
		if err := rows.Scan(&option); err != nil {
			slog.Error("failed to scan preference", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		resp.Rankings = append(resp.Rankings, voting.OptionID(option))
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to read preferences", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}

// DeleteMyBallot handles DELETE /polls/:slug/my-ballot
// Withdraws the voter's ballot while the poll is open. The username claim
// stays, so the voter may submit again.
func (h *VotingHandler) DeleteMyBallot(w http.ResponseWriter, r *http.Request) {
	token, ok := voterToken(w, r)
	if !ok {
		return
	}

	rec, ok := slugPoll(w, r, h.db)
	if !ok {
		return
	}

	if rec.Status != models.StatusOpen {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is not open for voting")
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	if err := lockOpenPoll(tx, rec.ID); errors.Is(err, ErrPollNotOpen) {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is not open for voting")
		return
	} else if err != nil {
		slog.Error("failed to lock poll", "error", err, "poll_id", rec.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	res, err := tx.Exec(`
		DELETE FROM ballot WHERE poll_id = $1 AND voter_token = $2
	`, rec.ID, token)
	if err != nil {
		slog.Error("failed to delete ballot", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete ballot")
		return
	}
	n, err := res.RowsAffected()
	if err != nil {
		slog.Error("failed to delete ballot", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete ballot")
		return
	}
	if n == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "No ballot submitted")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete ballot")
		return
	}

	slog.Info("ballot deleted", "poll_id", rec.ID)

	w.WriteHeader(http.StatusNoContent)
}

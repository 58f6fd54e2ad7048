// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/ranked-pick/cliparse"
	"github.com/danielhkuo/ranked-pick/middleware"
	"github.com/danielhkuo/ranked-pick/models"
)

type ResultsHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewResultsHandler(db *sql.DB, cfg cliparse.Config) *ResultsHandler {
	return &ResultsHandler{db: db, cfg: cfg}
}

// GetPoll handles GET /polls/:slug
// Returns poll details and options, but NOT results (results are sealed until closed)
func (h *ResultsHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	rec, ok := slugPoll(w, r, h.db)
	if !ok {
		return
	}

	options, err := loadOptions(h.db, rec.ID)
	if err != nil {
		slog.Error("failed to query options", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.PollWithOptions{
		Poll:    rec.Poll,
		Options: options,
	})
}

// GetResults handles GET /polls/:slug/results
// Returns 403 while the poll is open and the final snapshot once closed.
func (h *ResultsHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	rec, ok := slugPoll(w, r, h.db)
	if !ok {
		return
	}

	// Results are sealed while poll is open
	if rec.Status != models.StatusClosed {
		middleware.ErrorResponse(w, http.StatusForbidden, "Results are hidden until poll is closed")
		return
	}

	if rec.FinalSnapshotID == nil {
		slog.Error("closed poll has no snapshot", "poll_id", rec.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Results not available")
		return
	}

	snap, err := loadSnapshot(h.db, *rec.FinalSnapshotID)
	if err != nil {
		slog.Error("failed to load snapshot", "error", err, "snapshot_id", *rec.FinalSnapshotID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to parse results")
		return
	}

	options, err := loadOptions(h.db, rec.ID)
	if err != nil {
		slog.Error("failed to query options", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ResultsResponse{
		Poll:        rec.Poll,
		Options:     options,
		Snapshot:    snap,
		BallotCount: snap.BallotCount,
	})
}

// GetBallotCount handles GET /polls/:slug/ballot-count
// Returns the number of ballots submitted (visible even while open)
func (h *ResultsHandler) GetBallotCount(w http.ResponseWriter, r *http.Request) {
	rec, ok := slugPoll(w, r, h.db)
	if !ok {
		return
	}

	count, err := countBallots(h.db, rec.ID)
	if err != nil {
		slog.Error("failed to count ballots", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.BallotCountResponse{
		BallotCount: count,
	})
}

// GetPreview handles GET /polls/:slug/preview
// Returns compact poll data for link previews.
func (h *ResultsHandler) GetPreview(w http.ResponseWriter, r *http.Request) {
	rec, ok := slugPoll(w, r, h.db)
	if !ok {
		return
	}

	var optionCount int
	err := h.db.QueryRow(`
		SELECT COUNT(*) FROM option WHERE poll_id = $1
	`, rec.ID).Scan(&optionCount)
	if err != nil {
		slog.Error("failed to count options", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	ballotCount, err := countBallots(h.db, rec.ID)
	if err != nil {
		slog.Error("failed to count ballots", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.PollPreviewResponse{
		Title:       rec.Title,
		Status:      rec.Status,
		WinnerCount: rec.WinnerCount,
		OptionCount: optionCount,
		BallotCount: ballotCount,
	})
}

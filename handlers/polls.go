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

	"github.com/danielhkuo/ranked-pick/auth"
	"github.com/danielhkuo/ranked-pick/cliparse"
	"github.com/danielhkuo/ranked-pick/db"
	"github.com/danielhkuo/ranked-pick/middleware"
	"github.com/danielhkuo/ranked-pick/models"
	"github.com/danielhkuo/ranked-pick/validate"
	"github.com/danielhkuo/ranked-pick/voting"
)

type PollHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewPollHandler(db *sql.DB, cfg cliparse.Config) *PollHandler {
	return &PollHandler{db: db, cfg: cfg}
}

// adminPoll checks the X-Admin-Key header against the {id} path value and
// loads the poll. It writes the error response itself when ok is false.
func (h *PollHandler) adminPoll(w http.ResponseWriter, r *http.Request) (rec pollRecord, ok bool) {
	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll_id is required")
		return pollRecord{}, false
	}

	adminKey := r.Header.Get("X-Admin-Key")
	if err := auth.ValidateAdminKey(pollID, adminKey, h.cfg.AdminKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid admin key")
		return pollRecord{}, false
	}

	rec, err := loadPollByID(h.db, pollID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return pollRecord{}, false
	}
	if err != nil {
		slog.Error("failed to query poll", "error", err, "poll_id", pollID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return pollRecord{}, false
	}
	return rec, true
}

// CreatePoll handles POST /polls
func (h *PollHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePollRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.WinnerCount == 0 {
		req.WinnerCount = 1
	}

	now := time.Now().UTC()
	err := validate.Poll(validate.PollSettings{
		Title:           req.Title,
		Description:     req.Description,
		CreatorName:     req.CreatorName,
		Options:         req.Options,
		WinnerCount:     req.WinnerCount,
		ClosesAt:        req.ClosesAt,
		CloseAfterVotes: req.CloseAfterVotes,
	}, now)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := auth.NewID()
	if err != nil {
		slog.Error("failed to generate poll ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
		return
	}
	pollID := id.String()

	// The tie-break seed is fixed for the poll's lifetime.
	seed, err := voting.NewSeed()
	if err != nil {
		slog.Error("failed to generate poll seed", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
		return
	}

	adminKey := auth.GenerateAdminKey(pollID, h.cfg.AdminKeySalt)

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	var closesAt *time.Time
	if req.ClosesAt != nil {
		t := req.ClosesAt.UTC()
		closesAt = &t
	}

	_, err = tx.Exec(`
		INSERT INTO poll (id, title, description, creator_name, method, status, winner_count,
		                  rng_seed, closes_at, close_after_votes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, pollID, strings.TrimSpace(req.Title), req.Description, req.CreatorName, models.MethodRCV,
		models.StatusDraft, req.WinnerCount, seed.String(), closesAt, req.CloseAfterVotes, now)
	if err != nil {
		slog.Error("failed to insert poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
		return
	}

	for idx, label := range req.Options {
		_, err = tx.Exec(`
			INSERT INTO option (poll_id, idx, label)
			VALUES ($1, $2, $3)
		`, pollID, idx, strings.TrimSpace(label))
		if err != nil {
			slog.Error("failed to insert option", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
		return
	}

	slog.Info("poll created",
		"poll_id", pollID,
		"creator", req.CreatorName,
		"options", len(req.Options),
		"winner_count", req.WinnerCount,
	)

	middleware.JSONResponse(w, http.StatusCreated, models.CreatePollResponse{
		PollID:   pollID,
		AdminKey: adminKey,
	})
}

// AddOption handles POST /polls/:id/options
func (h *PollHandler) AddOption(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.adminPoll(w, r)
	if !ok {
		return
	}

	var req models.AddOptionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := validate.Label(req.Label); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	label := strings.TrimSpace(req.Label)

	if rec.Status != models.StatusDraft {
		middleware.ErrorResponse(w, http.StatusConflict, "Cannot add options to non-draft poll")
		return
	}

	options, err := loadOptions(h.db, rec.ID)
	if err != nil {
		slog.Error("failed to query options", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if len(options) >= validate.MaxOptions {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Poll already has the maximum number of options")
		return
	}
	for _, opt := range options {
		if strings.EqualFold(opt.Label, label) {
			middleware.ErrorResponse(w, http.StatusConflict, "Option with this label already exists")
			return
		}
	}

	// Ids are dense, so the next one is the current count.
	optionID := voting.OptionID(len(options))
	_, err = h.db.Exec(`
		INSERT INTO option (poll_id, idx, label)
		VALUES ($1, $2, $3)
	`, rec.ID, int(optionID), label)
	if db.IsUniqueViolation(err) {
		middleware.ErrorResponse(w, http.StatusConflict, "Options changed concurrently, retry")
		return
	}
	if err != nil {
		slog.Error("failed to insert option", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create option")
		return
	}

	slog.Info("option added", "poll_id", rec.ID, "option_id", optionID)

	middleware.JSONResponse(w, http.StatusCreated, models.AddOptionResponse{
		OptionID: optionID,
	})
}

// PublishPoll handles POST /polls/:id/publish
func (h *PollHandler) PublishPoll(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.adminPoll(w, r)
	if !ok {
		return
	}

	if rec.Status != models.StatusDraft {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is not in draft status")
		return
	}

	options, err := loadOptions(h.db, rec.ID)
	if err != nil {
		slog.Error("failed to query options", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	labels := make([]string, len(options))
	for i, opt := range options {
		labels[i] = opt.Label
	}
	if err := validate.Options(labels); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.WinnerCount(rec.WinnerCount, len(options)); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	shareSlug := auth.GenerateShareSlug(rec.ID, h.cfg.PollSlugSalt)

	res, err := h.db.Exec(`
		UPDATE poll
		SET status = $1, share_slug = $2
		WHERE id = $3 AND status = $4
	`, models.StatusOpen, shareSlug, rec.ID, models.StatusDraft)
	if err != nil {
		slog.Error("failed to publish poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to publish poll")
		return
	}
	n, err := res.RowsAffected()
	if err != nil {
		slog.Error("failed to publish poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to publish poll")
		return
	}
	if n != 1 {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is not in draft status")
		return
	}

	slog.Info("poll published", "poll_id", rec.ID, "share_slug", shareSlug)

	middleware.JSONResponse(w, http.StatusOK, models.PublishPollResponse{
		ShareSlug: shareSlug,
		ShareURL:  strings.TrimRight(h.cfg.ShareBaseURL, "/") + "/polls/" + shareSlug,
	})
}

// GetPollAdmin handles GET /polls/:id/admin
// Returns poll details for admin access using poll ID and admin key
func (h *PollHandler) GetPollAdmin(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.adminPoll(w, r)
	if !ok {
		return
	}

	rec, err := closeIfExpired(h.db, rec, time.Now().UTC())
	if err != nil {
		slog.Error("failed to close expired poll", "error", err, "poll_id", rec.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
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

// ClosePoll handles POST /polls/:id/close
// Tabulates the ballots and stores the result snapshot atomically.
func (h *PollHandler) ClosePoll(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.adminPoll(w, r)
	if !ok {
		return
	}

	if rec.Status != models.StatusOpen {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is not open")
		return
	}

	closedAt := time.Now().UTC()
	snap, err := closePoll(h.db, rec, closedAt)
	if errors.Is(err, ErrPollNotOpen) {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is not open")
		return
	}
	if err != nil {
		slog.Error("failed to close poll", "error", err, "poll_id", rec.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to close poll")
		return
	}

	slog.Info("poll closed", "poll_id", rec.ID, "snapshot_id", snap.ID)

	middleware.JSONResponse(w, http.StatusOK, models.ClosePollResponse{
		ClosedAt: closedAt,
		Snapshot: snap,
	})
}

// GetTally handles GET /polls/:id/tally
// Evaluates the current ballots without storing anything. Admin only, so
// results stay sealed for voters until the poll closes.
func (h *PollHandler) GetTally(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.adminPoll(w, r)
	if !ok {
		return
	}

	if rec.Status == models.StatusDraft {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll has not been published")
		return
	}

	payload, err := evaluatePoll(h.db, rec, time.Now().UTC())
	if err != nil {
		slog.Error("failed to evaluate poll", "error", err, "poll_id", rec.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to compute tally")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.TallyResponse{
		Result:      payload.Result,
		InputsHash:  payload.InputsHash,
		BallotCount: payload.BallotCount,
	})
}

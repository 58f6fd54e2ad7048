// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/ranked-pick/auth"
	"github.com/danielhkuo/ranked-pick/models"
	"github.com/danielhkuo/ranked-pick/snapshot"
	"github.com/danielhkuo/ranked-pick/voting"
)

// ErrPollNotOpen is returned when a poll changed state under a close.
var ErrPollNotOpen = errors.New("poll is not open")

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// pollRecord is a poll row including the fields never sent to clients.
type pollRecord struct {
	models.Poll
	Seed voting.Seed
}

const pollColumns = `id, title, description, creator_name, method, status, winner_count,
	rng_seed, share_slug, closes_at, close_after_votes, closed_at, final_snapshot_id, created_at`

func loadPollByID(q dbtx, pollID string) (pollRecord, error) {
	return scanPoll(q.QueryRow(`SELECT `+pollColumns+` FROM poll WHERE id = $1`, pollID))
}

func loadPollBySlug(q dbtx, slug string) (pollRecord, error) {
	return scanPoll(q.QueryRow(`SELECT `+pollColumns+` FROM poll WHERE share_slug = $1`, slug))
}

func scanPoll(row *sql.Row) (pollRecord, error) {
	var rec pollRecord
	var description sql.NullString
	var seed string
	err := row.Scan(
		&rec.ID, &rec.Title, &description, &rec.CreatorName, &rec.Method,
		&rec.Status, &rec.WinnerCount, &seed, &rec.ShareSlug, &rec.ClosesAt,
		&rec.CloseAfterVotes, &rec.ClosedAt, &rec.FinalSnapshotID, &rec.CreatedAt,
	)
	if err != nil {
		return pollRecord{}, err
	}
	rec.Description = description.String
	if rec.Seed, err = voting.ParseSeed(seed); err != nil {
		return pollRecord{}, fmt.Errorf("poll %s: %w", rec.ID, err)
	}
	return rec, nil
}

// loadOptions returns a poll's options ordered by id.
func loadOptions(q dbtx, pollID string) ([]models.Option, error) {
	rows, err := q.Query(`
		SELECT idx, label
		FROM option
		WHERE poll_id = $1
		ORDER BY idx
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("query options: %w", err)
	}
	defer rows.Close()

	options := []models.Option{}
	for rows.Next() {
		opt := models.Option{PollID: pollID}
		if err := rows.Scan(&opt.ID, &opt.Label); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		options = append(options, opt)
	}
	return options, rows.Err()
}

func countBallots(q dbtx, pollID string) (int, error) {
	var n int
	err := q.QueryRow(`SELECT COUNT(*) FROM ballot WHERE poll_id = $1`, pollID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count ballots: %w", err)
	}
	return n, nil
}

// loadBallots reads every ballot of a poll with its preferences in rank order.
func loadBallots(q dbtx, pollID uuid.UUID) ([]voting.Ballot, error) {
	rows, err := q.Query(`
		SELECT b.id, c.voter_id, b.submitted_at, p.option_idx
		FROM ballot b
		JOIN preference p ON p.ballot_id = b.id
		LEFT JOIN username_claim c ON c.poll_id = b.poll_id AND c.voter_token = b.voter_token
		WHERE b.poll_id = $1
		ORDER BY b.id, p.rank
	`, pollID.String())
	if err != nil {
		return nil, fmt.Errorf("query ballots: %w", err)
	}
	defer rows.Close()

	ballots := []voting.Ballot{}
	var current string
	for rows.Next() {
		var ballotID string
		var voterID sql.NullString
		var submittedAt time.Time
		var option voting.OptionID
		if err := rows.Scan(&ballotID, &voterID, &submittedAt, &option); err != nil {
			return nil, fmt.Errorf("scan ballot: %w", err)
		}

		if ballotID != current || len(ballots) == 0 {
			current = ballotID
			voter, _ := uuid.Parse(voterID.String) // uuid.Nil for unclaimed tokens
			ballots = append(ballots, voting.Ballot{
				PollID:      pollID,
				VoterID:     voter,
				SubmittedAt: submittedAt,
			})
		}
		last := &ballots[len(ballots)-1]
		last.Preferences = append(last.Preferences, option)
	}
	return ballots, rows.Err()
}

// evaluatePoll tabulates the poll's current ballots.
func evaluatePoll(q dbtx, rec pollRecord, now time.Time) (snapshot.Payload, error) {
	pollID, err := uuid.Parse(rec.ID)
	if err != nil {
		return snapshot.Payload{}, fmt.Errorf("poll id %q: %w", rec.ID, err)
	}

	options, err := loadOptions(q, rec.ID)
	if err != nil {
		return snapshot.Payload{}, err
	}
	ballots, err := loadBallots(q, pollID)
	if err != nil {
		return snapshot.Payload{}, err
	}

	poll := voting.NewPoll(pollID, len(options), rec.WinnerCount, rec.Seed)
	result := voting.Evaluate(poll, ballots, voting.ExhaustiveMaxRounds(poll),
		voting.WithClock(func() time.Time { return now }),
		voting.WithLogger(slog.Default().With("poll_id", rec.ID)),
	)

	hash, err := snapshot.InputsHash(poll, ballots)
	if err != nil {
		return snapshot.Payload{}, err
	}

	return snapshot.Payload{
		Result:      result,
		InputsHash:  hash,
		BallotCount: len(ballots),
	}, nil
}

// lockOpenPoll write-locks the poll row inside q. It returns ErrPollNotOpen
// unless the poll is open.
func lockOpenPoll(q dbtx, pollID string) error {
	res, err := q.Exec(`
		UPDATE poll SET status = status
		WHERE id = $1 AND status = $2
	`, pollID, models.StatusOpen)
	if err != nil {
		return fmt.Errorf("lock poll: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("lock poll: %w", err)
	}
	if n != 1 {
		return ErrPollNotOpen
	}
	return nil
}

// finalizePoll marks an open poll closed, evaluates it and stores the
// snapshot. q should be a transaction so both writes land together. The
// status update runs first so the ballots are read under the row lock.
func finalizePoll(q dbtx, rec pollRecord, now time.Time) (models.ResultSnapshot, error) {
	id, err := auth.NewID()
	if err != nil {
		return models.ResultSnapshot{}, err
	}
	snapshotID := id.String()

	res, err := q.Exec(`
		UPDATE poll
		SET status = $1, closed_at = $2, final_snapshot_id = $3
		WHERE id = $4 AND status = $5
	`, models.StatusClosed, now, snapshotID, rec.ID, models.StatusOpen)
	if err != nil {
		return models.ResultSnapshot{}, fmt.Errorf("close poll: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return models.ResultSnapshot{}, fmt.Errorf("close poll: %w", err)
	} else if n != 1 {
		return models.ResultSnapshot{}, ErrPollNotOpen
	}

	payload, err := evaluatePoll(q, rec, now)
	if err != nil {
		return models.ResultSnapshot{}, err
	}
	encoded, err := snapshot.EncodePayload(payload)
	if err != nil {
		return models.ResultSnapshot{}, err
	}

	_, err = q.Exec(`
		INSERT INTO result_snapshot (id, poll_id, method, computed_at, inputs_hash, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, snapshotID, rec.ID, models.MethodRCV, now, payload.InputsHash, encoded)
	if err != nil {
		return models.ResultSnapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}

	slog.Info("poll finalized",
		"poll_id", rec.ID,
		"snapshot_id", snapshotID,
		"outcome", payload.Result.Outcome,
		"winners", len(payload.Result.Winners),
		"ballots", payload.BallotCount,
	)

	return models.ResultSnapshot{
		ID:          snapshotID,
		PollID:      rec.ID,
		Method:      models.MethodRCV,
		ComputedAt:  now,
		Result:      payload.Result,
		InputsHash:  payload.InputsHash,
		BallotCount: payload.BallotCount,
	}, nil
}

// closePoll finalizes rec in its own transaction.
func closePoll(db *sql.DB, rec pollRecord, now time.Time) (models.ResultSnapshot, error) {
	tx, err := db.Begin()
	if err != nil {
		return models.ResultSnapshot{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	snap, err := finalizePoll(tx, rec, now)
	if err != nil {
		return models.ResultSnapshot{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.ResultSnapshot{}, fmt.Errorf("commit: %w", err)
	}
	return snap, nil
}

// deadlinePassed reports whether an open poll's closes_at is in the past.
func deadlinePassed(rec pollRecord, now time.Time) bool {
	return rec.Status == models.StatusOpen && rec.ClosesAt != nil && !now.Before(*rec.ClosesAt)
}

// closeIfExpired closes an open poll whose deadline has passed and returns
// the poll as it now stands.
func closeIfExpired(db *sql.DB, rec pollRecord, now time.Time) (pollRecord, error) {
	if !deadlinePassed(rec, now) {
		return rec, nil
	}

	_, err := closePoll(db, rec, now)
	if err != nil && !errors.Is(err, ErrPollNotOpen) {
		return rec, err
	}
	if err == nil {
		slog.Info("poll closed at deadline", "poll_id", rec.ID, "closes_at", rec.ClosesAt)
	}
	return loadPollByID(db, rec.ID)
}

// loadSnapshot reads a stored result snapshot.
func loadSnapshot(q dbtx, snapshotID string) (models.ResultSnapshot, error) {
	var snap models.ResultSnapshot
	var payloadJSON string
	err := q.QueryRow(`
		SELECT id, poll_id, method, computed_at, payload
		FROM result_snapshot
		WHERE id = $1
	`, snapshotID).Scan(&snap.ID, &snap.PollID, &snap.Method, &snap.ComputedAt, &payloadJSON)
	if err != nil {
		return models.ResultSnapshot{}, fmt.Errorf("query snapshot: %w", err)
	}

	payload, err := snapshot.DecodePayload([]byte(payloadJSON))
	if err != nil {
		return models.ResultSnapshot{}, err
	}
	snap.Result = payload.Result
	snap.InputsHash = payload.InputsHash
	snap.BallotCount = payload.BallotCount
	return snap, nil
}

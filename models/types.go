// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"time"

	"github.com/danielhkuo/ranked-pick/voting"
)

// Poll status constants
const (
	StatusDraft  = "draft"
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Voting method constants
const (
	MethodRCV = "rcv"
)

// Request types

type CreatePollRequest struct {
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	CreatorName     string     `json:"creator_name"`
	Options         []string   `json:"options,omitempty"`
	WinnerCount     int        `json:"winner_count,omitempty"` // defaults to 1
	ClosesAt        *time.Time `json:"closes_at,omitempty"`
	CloseAfterVotes *int       `json:"close_after_votes,omitempty"`
}

type AddOptionRequest struct {
	Label string `json:"label"`
}

type ClaimUsernameRequest struct {
	Username string `json:"username"`
}

// Rankings lists option ids, most preferred first.
type SubmitBallotRequest struct {
	Rankings []voting.OptionID `json:"rankings"`
}

// Response types

type CreatePollResponse struct {
	PollID   string `json:"poll_id"`
	AdminKey string `json:"admin_key"`
}

type AddOptionResponse struct {
	OptionID voting.OptionID `json:"option_id"`
}

type PublishPollResponse struct {
	ShareSlug string `json:"share_slug"`
	ShareURL  string `json:"share_url"`
}

type ClaimUsernameResponse struct {
	VoterToken string `json:"voter_token"`
}

type SubmitBallotResponse struct {
	BallotID   string `json:"ballot_id"`
	Message    string `json:"message"`
	PollClosed bool   `json:"poll_closed,omitempty"`
}

type MyBallotResponse struct {
	BallotID    string            `json:"ballot_id"`
	Rankings    []voting.OptionID `json:"rankings"`
	SubmittedAt time.Time         `json:"submitted_at"`
}

type ClosePollResponse struct {
	ClosedAt time.Time      `json:"closed_at"`
	Snapshot ResultSnapshot `json:"snapshot"`
}

// TallyResponse is an unsaved evaluation of an open poll.
type TallyResponse struct {
	Result      voting.Result `json:"result"`
	InputsHash  string        `json:"inputs_hash"`
	BallotCount int           `json:"ballot_count"`
}

type ResultsResponse struct {
	Poll        Poll           `json:"poll"`
	Options     []Option       `json:"options"`
	Snapshot    ResultSnapshot `json:"snapshot"`
	BallotCount int            `json:"ballot_count"`
}

type BallotCountResponse struct {
	BallotCount int `json:"ballot_count"`
}

type PollPreviewResponse struct {
	Title       string `json:"title"`
	Status      string `json:"status"`
	WinnerCount int    `json:"winner_count"`
	OptionCount int    `json:"option_count"`
	BallotCount int    `json:"ballot_count"`
}

// Domain types

type Poll struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	CreatorName     string     `json:"creator_name"`
	Method          string     `json:"method"`
	Status          string     `json:"status"`
	WinnerCount     int        `json:"winner_count"`
	ShareSlug       *string    `json:"share_slug,omitempty"`
	ClosesAt        *time.Time `json:"closes_at,omitempty"`
	CloseAfterVotes *int       `json:"close_after_votes,omitempty"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
	FinalSnapshotID *string    `json:"final_snapshot_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type Option struct {
	ID     voting.OptionID `json:"id"`
	PollID string          `json:"poll_id"`
	Label  string          `json:"label"`
}

type PollWithOptions struct {
	Poll    Poll     `json:"poll"`
	Options []Option `json:"options"`
}

type Ballot struct {
	ID          string    `json:"id"`
	PollID      string    `json:"poll_id"`
	VoterToken  string    `json:"-"` // Never expose in JSON
	SubmittedAt time.Time `json:"submitted_at"`
	IPHash      *string   `json:"-"` // Never expose in JSON
	UserAgent   *string   `json:"-"` // Never expose in JSON
}

type ResultSnapshot struct {
	ID          string        `json:"id"`
	PollID      string        `json:"poll_id"`
	Method      string        `json:"method"`
	ComputedAt  time.Time     `json:"computed_at"`
	Result      voting.Result `json:"result"`
	InputsHash  string        `json:"inputs_hash"` // blake3 of seed and rankings
	BallotCount int           `json:"ballot_count"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

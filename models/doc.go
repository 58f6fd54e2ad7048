// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - CreatePollRequest: title, description, creator_name, options,
    winner_count, closes_at, close_after_votes
  - AddOptionRequest: label
  - ClaimUsernameRequest: username
  - SubmitBallotRequest: rankings (option ids, most preferred first)

# Response Types

Types for JSON responses:

  - CreatePollResponse: poll_id, admin_key
  - AddOptionResponse: option_id
  - PublishPollResponse: share_slug, share_url
  - ClaimUsernameResponse: voter_token
  - SubmitBallotResponse: ballot_id, message, poll_closed
  - MyBallotResponse: ballot_id, rankings, submitted_at
  - ClosePollResponse: closed_at, snapshot
  - TallyResponse: unsaved result of an open poll
  - ResultsResponse: poll, options, snapshot, ballot_count
  - ErrorResponse: error, message

# Domain Types

  - Poll: poll metadata, seats and lifecycle state
  - Option: option with its dense id and label
  - Ballot: voter submission metadata
  - ResultSnapshot: immutable result record wrapping a voting.Result

Status values:

	StatusDraft  = "draft"
	StatusOpen   = "open"
	StatusClosed = "closed"

Voting method:

	MethodRCV = "rcv"
*/
package models

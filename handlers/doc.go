// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the ranked-pick API.

# Handler Types

Each handler is a struct with database and config dependencies:

  - PollHandler: Poll lifecycle (create, publish, close, tally)
  - VotingHandler: Username claims and ranked ballots
  - ResultsHandler: Poll info and results retrieval

Handlers are created via constructor functions that accept *sql.DB and Config:

	pollHandler := handlers.NewPollHandler(db, cfg)

# Poll Lifecycle

Polls progress through three states: draft → open → closed

	POST /polls              → CreatePoll (returns admin_key, draws the seed)
	POST /polls/{id}/options → AddOption (draft only, next dense id)
	POST /polls/{id}/publish → PublishPoll (generates share_slug)
	POST /polls/{id}/close   → ClosePoll (evaluates and stores a snapshot)
	GET  /polls/{id}/tally   → GetTally (evaluates without storing)

Admin operations require the X-Admin-Key header.

An open poll also closes by itself when its ballot count reaches
close_after_votes (in the transaction that stores the last ballot) or on the
first request after closes_at.

# Voting Flow

Voters interact via the share slug:

	POST   /polls/{slug}/claim-username → ClaimUsername (returns voter_token)
	POST   /polls/{slug}/ballots        → SubmitBallot (create or replace)
	GET    /polls/{slug}/my-ballot      → GetMyBallot
	DELETE /polls/{slug}/my-ballot      → DeleteMyBallot

Voter operations require the X-Voter-Token header. A ballot is a list of
option ids, most preferred first:

	{"rankings": [2, 0, 1]}

# Tabulation

tally.go loads a poll's options and ballots and runs voting.Evaluate with
the poll's stored seed. Closing a poll writes the voting.Result, the inputs
hash and the ballot count as one result_snapshot row.
*/
package handlers

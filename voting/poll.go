// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"time"

	"github.com/google/uuid"
)

// Poll is the part of a poll that tabulation reads.
type Poll struct {
	ID          uuid.UUID
	OptionIDs   []OptionID
	WinnerCount int
	Seed        Seed
}

// NewPoll returns a poll with optionCount dense option ids.
func NewPoll(id uuid.UUID, optionCount, winnerCount int, seed Seed) Poll {
	ids := make([]OptionID, optionCount)
	for i := range ids {
		ids[i] = OptionID(i)
	}
	return Poll{
		ID:          id,
		OptionIDs:   ids,
		WinnerCount: winnerCount,
		Seed:        seed,
	}
}

// DefaultMaxRounds is the conventional budget of options minus seats.
// A poll that needs every possible elimination stops one count short of
// its last transfer and comes out inconclusive.
func DefaultMaxRounds(p Poll) int {
	rounds := len(p.OptionIDs) - p.WinnerCount
	if rounds < 1 {
		return 1
	}
	return rounds
}

// ExhaustiveMaxRounds allows every possible elimination plus the count that
// follows the last one, so the result is only inconclusive when ballots run
// out.
func ExhaustiveMaxRounds(p Poll) int {
	return max(len(p.OptionIDs)-p.WinnerCount+1, 1)
}

// Ballot is one voter's ranking, most preferred option first.
type Ballot struct {
	PollID      uuid.UUID
	VoterID     uuid.UUID
	Preferences []OptionID
	SubmittedAt time.Time
}

// NewBallot returns a ballot for the given poll and voter.
func NewBallot(pollID, voterID uuid.UUID, preferences []OptionID) Ballot {
	return Ballot{
		PollID:      pollID,
		VoterID:     voterID,
		Preferences: preferences,
		SubmittedAt: time.Now(),
	}
}

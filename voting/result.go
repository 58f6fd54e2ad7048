// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Outcome describes how an evaluation ended.
type Outcome string

const (
	OutcomeConclusive        Outcome = "conclusive"
	OutcomeInconclusive      Outcome = "inconclusive"
	OutcomeInsufficientVotes Outcome = "insufficient_votes"
)

// TallyEntry is the final pile size of one option.
type TallyEntry struct {
	OptionID OptionID `json:"option_id"`
	Votes    int      `json:"votes"`
}

// Result is the output of one evaluation. It holds no references to the
// ballots it was computed from.
type Result struct {
	PollID      uuid.UUID    `json:"poll_id"`
	EvaluatedAt time.Time    `json:"evaluated_at"`
	Threshold   int          `json:"threshold"`
	Tally       []TallyEntry `json:"tally"`
	Winners     []OptionID   `json:"winners"`    // in the order they reached the threshold
	Eliminated  []OptionID   `json:"eliminated"` // earliest first
	Rounds      int          `json:"rounds"`
	Outcome     Outcome      `json:"outcome"`
}

// Votes returns the final vote count of id, or 0 if id is not in the tally.
func (r Result) Votes(id OptionID) int {
	for _, entry := range r.Tally {
		if entry.OptionID == id {
			return entry.Votes
		}
	}
	return 0
}

// assembleTally reports one entry per option, ordered by votes descending
// then option id ascending. Options without a pile count as zero.
func assembleTally(optionIDs []OptionID, piles map[OptionID][]int) []TallyEntry {
	tally := make([]TallyEntry, 0, len(optionIDs))
	for _, id := range optionIDs {
		tally = append(tally, TallyEntry{OptionID: id, Votes: len(piles[id])})
	}

	slices.SortFunc(tally, func(a, b TallyEntry) int {
		if c := cmp.Compare(b.Votes, a.Votes); c != 0 {
			return c
		}
		return cmp.Compare(a.OptionID, b.OptionID)
	})
	return tally
}

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"
)

// EvalOption configures a single evaluation.
type EvalOption func(*evalConfig)

type evalConfig struct {
	now    func() time.Time
	logger *slog.Logger
}

// WithClock sets the clock used for Result.EvaluatedAt.
func WithClock(now func() time.Time) EvalOption {
	return func(c *evalConfig) { c.now = now }
}

// WithLogger enables debug logging of every round.
func WithLogger(logger *slog.Logger) EvalOption {
	return func(c *evalConfig) { c.logger = logger }
}

// Evaluate tabulates ballots for poll over at most maxRounds rounds.
//
// Neither poll nor ballots are modified. Ballot order does not matter: the
// ballots are put in a canonical order and then shuffled with a generator
// seeded from poll.Seed.
func Evaluate(poll Poll, ballots []Ballot, maxRounds int, opts ...EvalOption) Result {
	cfg := evalConfig{
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	result := Result{
		PollID:      poll.ID,
		EvaluatedAt: cfg.now().UTC(),
		Threshold:   Quota(len(ballots), poll.WinnerCount),
		Tally:       []TallyEntry{},
		Winners:     []OptionID{},
		Eliminated:  []OptionID{},
	}
	if result.Threshold > len(ballots) {
		result.Outcome = OutcomeInsufficientVotes
		return result
	}

	ordered := canonicalOrder(ballots)
	pool := make([]int, len(ordered))
	for i := range pool {
		pool[i] = i
	}
	rng := rand.New(rand.NewChaCha8(poll.Seed))
	rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	t := newTabulation(poll, ordered, result.Threshold, cfg.logger)
	result.Outcome, result.Rounds = t.run(pool, maxRounds)
	result.Winners = append(result.Winners, t.winners...)
	result.Eliminated = append(result.Eliminated, t.eliminated...)
	result.Tally = assembleTally(poll.OptionIDs, t.piles)
	return result
}

// canonicalOrder returns a copy of ballots sorted by preference sequence so
// that the shuffle depends only on the ballot multiset.
func canonicalOrder(ballots []Ballot) []Ballot {
	ordered := slices.Clone(ballots)
	slices.SortStableFunc(ordered, func(a, b Ballot) int {
		return slices.Compare(a.Preferences, b.Preferences)
	})
	return ordered
}

type optionState uint8

const (
	continuing optionState = iota
	won
	eliminated
)

// tabulation is the working state of one evaluation. Piles hold indices into
// ballots.
type tabulation struct {
	ballots    []Ballot
	optionIDs  []OptionID
	quota      int
	seats      int
	popularity map[OptionID]float64
	state      map[OptionID]optionState
	piles      map[OptionID][]int
	winners    []OptionID
	eliminated []OptionID
	logger     *slog.Logger
}

func newTabulation(poll Poll, ballots []Ballot, quota int, logger *slog.Logger) *tabulation {
	t := &tabulation{
		ballots:    ballots,
		optionIDs:  poll.OptionIDs,
		quota:      quota,
		seats:      poll.WinnerCount,
		popularity: Popularity(ballots),
		state:      make(map[OptionID]optionState, len(poll.OptionIDs)),
		piles:      make(map[OptionID][]int, len(poll.OptionIDs)),
		logger:     logger,
	}
	for _, id := range poll.OptionIDs {
		t.state[id] = continuing
		t.piles[id] = nil
	}
	return t
}

func (t *tabulation) run(pool []int, maxRounds int) (Outcome, int) {
	rounds := 0
	for round := 1; round <= maxRounds; round++ {
		rounds = round
		elected := t.count(pool)
		if t.settled(elected) {
			if len(t.winners) == t.seats {
				t.logger.Debug("all seats filled", "round", round, "winners", t.winners)
				return OutcomeConclusive, rounds
			}
			t.logger.Debug("ballots exhausted", "round", round, "winners", t.winners)
			return OutcomeInconclusive, rounds
		}

		loser, ok := t.weakest()
		if !ok {
			return OutcomeInconclusive, rounds
		}
		pool = t.piles[loser]
		t.piles[loser] = nil
		t.state[loser] = eliminated
		t.eliminated = append(t.eliminated, loser)
		t.logger.Debug("option eliminated", "round", round, "option", loser, "transferred", len(pool))
	}
	return OutcomeInconclusive, rounds
}

// count assigns each pooled ballot to its highest continuing preference and
// returns how many options reached the quota.
func (t *tabulation) count(pool []int) int {
	elected := 0
	for _, idx := range pool {
		id, ok := t.nextPreference(t.ballots[idx])
		if !ok {
			t.logger.Debug("ballot exhausted", "voter", t.ballots[idx].VoterID)
			continue
		}

		t.piles[id] = append(t.piles[id], idx)
		if len(t.piles[id]) == t.quota {
			t.state[id] = won
			t.winners = append(t.winners, id)
			elected++
		}
	}
	return elected
}

func (t *tabulation) nextPreference(b Ballot) (OptionID, bool) {
	for _, id := range b.Preferences {
		if state, ok := t.state[id]; ok && state == continuing {
			return id, true
		}
	}
	return 0, false
}

// settled reports whether counting is over after a round. It panics when more
// winners than seats were recorded, which no input can cause.
func (t *tabulation) settled(elected int) bool {
	if len(t.winners) > t.seats {
		panic(fmt.Sprintf("voting: %d winners recorded for %d seats", len(t.winners), t.seats))
	}
	if len(t.winners) == t.seats {
		return true
	}
	return elected == 0 && !t.holdsVotes()
}

// holdsVotes reports whether any option, winners included, has a non-empty
// pile. Eliminated piles are always empty.
func (t *tabulation) holdsVotes() bool {
	for _, pile := range t.piles {
		if len(pile) > 0 {
			return true
		}
	}
	return false
}

// weakest picks the continuing option with the smallest pile, then the lowest
// popularity, then the lowest id.
func (t *tabulation) weakest() (OptionID, bool) {
	var loser OptionID
	found := false
	tied := false
	for _, id := range t.optionIDs {
		if t.state[id] != continuing {
			continue
		}
		if !found {
			loser, found = id, true
			continue
		}
		switch c := t.compare(id, loser); {
		case c < 0:
			loser, tied = id, false
		case c == 0:
			tied = true
			if id < loser {
				loser = id
			}
		}
	}
	if tied {
		t.logger.Debug("elimination tie resolved by option id", "option", loser)
	}
	return loser, found
}

func (t *tabulation) compare(a, b OptionID) int {
	if pa, pb := len(t.piles[a]), len(t.piles[b]); pa != pb {
		if pa < pb {
			return -1
		}
		return 1
	}
	wa, wb := t.popularity[a], t.popularity[b]
	switch {
	case wa < wb:
		return -1
	case wa > wb:
		return 1
	}
	return 0
}

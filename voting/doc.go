// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package voting implements ranked-choice tabulation for multi-seat polls.

# Evaluation

A poll is evaluated from an immutable snapshot of its options and ballots:

	result := voting.Evaluate(poll, ballots, voting.DefaultMaxRounds(poll))

Evaluation is deterministic. The ballot processing order is a permutation
derived from the poll's 32-byte seed, so the same poll, the same multiset
of ballots and the same seed always produce the same winners, eliminations
and tally.

# Rounds

Each round assigns every pooled ballot to its highest-ranked option that
is still standing. An option whose pile reaches the Droop quota wins
immediately, mid-round. Ballots arriving at a pile after it has reached the
quota stay there; there is no surplus transfer.

When a round ends without filling every seat, the standing option with the
smallest pile is eliminated and its ballots form the pool for the next
round. Pile-size ties are broken by popularity weight (see Popularity),
then by the lowest option id.

# Outcomes

	OutcomeConclusive         every seat filled
	OutcomeInconclusive       ballots or rounds ran out first
	OutcomeInsufficientVotes  quota larger than the ballot count

Recording more winners than seats is a defect in the engine and panics.
*/
package voting

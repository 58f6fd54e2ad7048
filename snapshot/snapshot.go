// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package snapshot fingerprints evaluation inputs and encodes stored results.
package snapshot

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/danielhkuo/ranked-pick/voting"
)

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2) so equal inputs
// always hash to equal digests.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("snapshot: CBOR encoder initialization failed: " + err.Error())
	}
}

type hashInput struct {
	Seed        []byte              `cbor:"1,keyasint"`
	WinnerCount int                 `cbor:"2,keyasint"`
	Options     int                 `cbor:"3,keyasint"`
	Ballots     [][]voting.OptionID `cbor:"4,keyasint"`
}

// InputsHash returns a hex blake3 digest of everything that determines an
// evaluation of poll: the seed, the seats, the options and the multiset of
// rankings. Voter identity and ballot order do not contribute.
func InputsHash(poll voting.Poll, ballots []voting.Ballot) (string, error) {
	rankings := make([][]voting.OptionID, len(ballots))
	for i, b := range ballots {
		rankings[i] = b.Preferences
	}
	slices.SortFunc(rankings, func(a, b []voting.OptionID) int {
		return slices.Compare(a, b)
	})

	data, err := encMode.Marshal(hashInput{
		Seed:        poll.Seed[:],
		WinnerCount: poll.WinnerCount,
		Options:     len(poll.OptionIDs),
		Ballots:     rankings,
	})
	if err != nil {
		return "", fmt.Errorf("encode inputs: %w", err)
	}

	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Payload is the stored form of a closed poll's result.
type Payload struct {
	Result      voting.Result `json:"result"`
	InputsHash  string        `json:"inputs_hash"`
	BallotCount int           `json:"ballot_count"`
}

// EncodePayload renders p for the result_snapshot table.
func EncodePayload(p Payload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode snapshot payload: %w", err)
	}
	return string(data), nil
}

// DecodePayload parses a stored payload.
func DecodePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("decode snapshot payload: %w", err)
	}
	return p, nil
}

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
)

// OptionID identifies an option within a single poll. Ids are dense,
// starting at 0 in creation order, and only meaningful together with a poll id.
type OptionID uint32

func (id OptionID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// SeedSize is the length of a poll's random seed in bytes.
const SeedSize = 32

// Seed drives the ballot shuffle for every evaluation of one poll.
// It is fixed when the poll is created.
type Seed [SeedSize]byte

// NewSeed generates a seed using crypto/rand.
func NewSeed() (Seed, error) {
	var s Seed
	if _, err := rand.Read(s[:]); err != nil {
		return Seed{}, fmt.Errorf("read random seed: %w", err)
	}
	return s, nil
}

// ParseSeed decodes a hex encoded seed.
func ParseSeed(text string) (Seed, error) {
	var s Seed
	if err := s.UnmarshalText([]byte(text)); err != nil {
		return Seed{}, err
	}
	return s, nil
}

func (s Seed) String() string {
	return hex.EncodeToString(s[:])
}

func (s Seed) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Seed) UnmarshalText(text []byte) error {
	if hex.DecodedLen(len(text)) != SeedSize {
		return fmt.Errorf("seed must be %d hex characters, got %d", SeedSize*2, len(text))
	}
	if _, err := hex.Decode(s[:], text); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}
	return nil
}

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package fixture reads poll descriptions from YAML so that results can be
// recomputed offline.
//
//	title: Team lunch
//	options: [Pizza, Tacos, Sushi]
//	winners: 1
//	seed: 000102030405060708090a0b0c0d0e0f000102030405060708090a0b0c0d0e0f
//	ballots:
//	  - ranking: [Pizza, Tacos]
//	    count: 3
//	  - ranking: [Sushi]
package fixture

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/danielhkuo/ranked-pick/validate"
	"github.com/danielhkuo/ranked-pick/voting"
)

// File is the YAML layout of a poll fixture.
type File struct {
	ID        string        `yaml:"id"`
	Title     string        `yaml:"title"`
	Options   []string      `yaml:"options"`
	Winners   int           `yaml:"winners"`
	Seed      string        `yaml:"seed"`
	MaxRounds int           `yaml:"max_rounds"`
	Ballots   []BallotGroup `yaml:"ballots"`
}

// BallotGroup is Count identical ballots.
type BallotGroup struct {
	Ranking []string `yaml:"ranking"`
	Count   int      `yaml:"count"`
}

// Election is a fixture resolved into tabulation input.
type Election struct {
	Title     string
	Labels    []string
	Poll      voting.Poll
	Ballots   []voting.Ballot
	MaxRounds int
}

// Label returns the option label for id.
func (e Election) Label(id voting.OptionID) string {
	if int(id) < len(e.Labels) {
		return e.Labels[id]
	}
	return id.String()
}

// Load decodes and resolves a fixture.
func Load(r io.Reader) (Election, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return Election{}, errors.New("fixture is empty")
		}
		return Election{}, fmt.Errorf("decode fixture: %w", err)
	}
	return f.Resolve()
}

// Resolve validates f and maps option labels to ids.
func (f File) Resolve() (Election, error) {
	if f.Winners == 0 {
		f.Winners = 1
	}
	if err := validate.Options(f.Options); err != nil {
		return Election{}, err
	}
	if err := validate.WinnerCount(f.Winners, len(f.Options)); err != nil {
		return Election{}, err
	}

	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("ranked-pick:"+f.Title))
	if f.ID != "" {
		parsed, err := uuid.Parse(f.ID)
		if err != nil {
			return Election{}, fmt.Errorf("parse id: %w", err)
		}
		id = parsed
	}

	var seed voting.Seed
	if f.Seed != "" {
		parsed, err := voting.ParseSeed(f.Seed)
		if err != nil {
			return Election{}, err
		}
		seed = parsed
	}

	poll := voting.NewPoll(id, len(f.Options), f.Winners, seed)
	index := make(map[string]voting.OptionID, len(f.Options))
	for i, label := range f.Options {
		index[normalize(label)] = voting.OptionID(i)
	}

	var ballots []voting.Ballot
	for g, group := range f.Ballots {
		prefs := make([]voting.OptionID, 0, len(group.Ranking))
		for _, label := range group.Ranking {
			opt, ok := index[normalize(label)]
			if !ok {
				return Election{}, fmt.Errorf("ballot group %d: unknown option %q", g, label)
			}
			prefs = append(prefs, opt)
		}
		if err := validate.Ballot(prefs, len(f.Options)); err != nil {
			return Election{}, fmt.Errorf("ballot group %d: %w", g, err)
		}

		count := group.Count
		if count == 0 {
			count = 1
		}
		if count < 0 {
			return Election{}, fmt.Errorf("ballot group %d: count must be positive, got %d", g, count)
		}
		for i := 0; i < count; i++ {
			voter := uuid.NewSHA1(id, []byte(fmt.Sprintf("%d/%d", g, i)))
			ballots = append(ballots, voting.Ballot{
				PollID:      id,
				VoterID:     voter,
				Preferences: prefs,
			})
		}
	}

	maxRounds := f.MaxRounds
	if maxRounds <= 0 {
		maxRounds = voting.ExhaustiveMaxRounds(poll)
	}

	return Election{
		Title:     f.Title,
		Labels:    f.Options,
		Poll:      poll,
		Ballots:   ballots,
		MaxRounds: maxRounds,
	}, nil
}

func normalize(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

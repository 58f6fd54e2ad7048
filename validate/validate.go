// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package validate checks polls and ballots before they reach storage or
// tabulation. The voting package trusts its input; everything it assumes is
// enforced here.
package validate

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/danielhkuo/ranked-pick/voting"
)

// Limits on poll settings.
const (
	MinTitleLen       = 1
	MaxTitleLen       = 300
	MaxDescriptionLen = 2000
	MinOptions        = 2
	MaxOptions        = 64
	MaxLabelLen       = 300
	MinCloseDelay     = 5 * time.Minute
	MinCloseVotes     = 2
	MaxCloseVotes     = 100000
)

// Error is a validation failure that can be shown to the caller.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Field + ": " + e.Message
}

func fail(field, format string, args ...any) *Error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

// PollSettings is everything a creator chooses about a poll.
type PollSettings struct {
	Title           string
	Description     string
	CreatorName     string
	Options         []string
	WinnerCount     int
	ClosesAt        *time.Time
	CloseAfterVotes *int
}

// Poll validates settings for a new poll at time now. Options may be left
// empty and added while the poll is a draft.
func Poll(s PollSettings, now time.Time) error {
	if n := utf8.RuneCountInString(strings.TrimSpace(s.Title)); n < MinTitleLen || n > MaxTitleLen {
		return fail("title", "must be between %d and %d characters, got %d", MinTitleLen, MaxTitleLen, n)
	}
	if n := utf8.RuneCountInString(s.Description); n > MaxDescriptionLen {
		return fail("description", "must be at most %d characters, got %d", MaxDescriptionLen, n)
	}
	if strings.TrimSpace(s.CreatorName) == "" {
		return fail("creator_name", "is required")
	}
	if s.WinnerCount < 1 {
		return fail("winner_count", "must be at least 1, got %d", s.WinnerCount)
	}

	if len(s.Options) > 0 {
		if err := Options(s.Options); err != nil {
			return err
		}
		if err := WinnerCount(s.WinnerCount, len(s.Options)); err != nil {
			return err
		}
	}

	if s.ClosesAt != nil && s.ClosesAt.Before(now.Add(MinCloseDelay)) {
		return fail("closes_at", "cannot be less than %d minutes from now, got %s",
			int(MinCloseDelay.Minutes()), s.ClosesAt.Format(time.RFC3339))
	}
	if s.CloseAfterVotes != nil && (*s.CloseAfterVotes < MinCloseVotes || *s.CloseAfterVotes > MaxCloseVotes) {
		return fail("close_after_votes", "must be between %d and %d, got %d",
			MinCloseVotes, MaxCloseVotes, *s.CloseAfterVotes)
	}
	return nil
}

// Options validates a complete option list.
func Options(labels []string) error {
	if len(labels) < MinOptions || len(labels) > MaxOptions {
		return fail("options", "must have between %d and %d options, got %d", MinOptions, MaxOptions, len(labels))
	}
	seen := make(map[string]int, len(labels))
	for i, label := range labels {
		if err := Label(label); err != nil {
			err.Field = fmt.Sprintf("options[%d]", i)
			return err
		}
		key := strings.ToLower(strings.TrimSpace(label))
		if j, dup := seen[key]; dup {
			return fail("options", "labels at %d and %d are the same", j, i)
		}
		seen[key] = i
	}
	return nil
}

// Label validates a single option label.
func Label(label string) *Error {
	if n := utf8.RuneCountInString(strings.TrimSpace(label)); n < 1 || n > MaxLabelLen {
		return fail("label", "must be between 1 and %d characters, got %d", MaxLabelLen, n)
	}
	return nil
}

// WinnerCount checks that at least one option will lose.
func WinnerCount(winners, options int) error {
	if winners < 1 || winners >= options {
		return fail("winner_count", "must be between 1 and %d for %d options, got %d", max(options-1, 1), options, winners)
	}
	return nil
}

// Ballot checks that preferences rank distinct options of a poll with
// optionCount options.
func Ballot(preferences []voting.OptionID, optionCount int) error {
	if len(preferences) == 0 {
		return fail("rankings", "ballot is empty")
	}
	seen := make(map[voting.OptionID]int, len(preferences))
	for i, id := range preferences {
		if int(id) >= optionCount {
			return fail("rankings", "preference %d is for invalid option %d", i, id)
		}
		if j, dup := seen[id]; dup {
			return fail("rankings", "option %d is ranked at both %d and %d", id, j, i)
		}
		seen[id] = i
	}
	return nil
}

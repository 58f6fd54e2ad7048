// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Command rcv-tally recomputes a ranked-choice result from a YAML poll
// fixture and prints the tally with the inputs hash.
//
//	rcv-tally -f lunch.yaml
//	rcv-tally --json < lunch.yaml
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/pflag"

	"github.com/danielhkuo/ranked-pick/fixture"
	"github.com/danielhkuo/ranked-pick/snapshot"
	"github.com/danielhkuo/ranked-pick/voting"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "rcv-tally:", err)
		os.Exit(1)
	}
}

type options struct {
	file      string
	json      bool
	maxRounds int
	verbose   bool
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var opts options
	flags := pflag.NewFlagSet("rcv-tally", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVarP(&opts.file, "file", "f", "-", "Fixture file (- for stdin)")
	flags.BoolVar(&opts.json, "json", false, "Print the result as JSON")
	flags.IntVar(&opts.maxRounds, "max-rounds", 0, "Round budget (default from the fixture, else options - winners + 1 as the server uses)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log every round to stderr")
	if err := flags.Parse(args); err != nil {
		return err
	}

	in := stdin
	if opts.file != "-" {
		f, err := os.Open(opts.file)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	election, err := fixture.Load(in)
	if err != nil {
		return err
	}
	if opts.maxRounds > 0 {
		election.MaxRounds = opts.maxRounds
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	result := voting.Evaluate(election.Poll, election.Ballots, election.MaxRounds, voting.WithLogger(logger))
	hash, err := snapshot.InputsHash(election.Poll, election.Ballots)
	if err != nil {
		return err
	}

	if opts.json {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot.Payload{
			Result:      result,
			InputsHash:  hash,
			BallotCount: len(election.Ballots),
		})
	}
	_, err = io.WriteString(stdout, render(election, result, hash))
	return err
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	winnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	outStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

// render lays out the result as a titled table followed by a summary.
func render(e fixture.Election, r voting.Result, hash string) string {
	rows := make([][]string, 0, len(r.Tally))
	for _, entry := range r.Tally {
		rows = append(rows, []string{
			e.Label(entry.OptionID),
			strconv.Itoa(entry.Votes),
			status(r, entry.OptionID),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("OPTION", "VOTES", "STATUS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return cellStyle.Bold(true)
			}
			switch rows[row][2] {
			case "winner":
				return cellStyle.Inherit(winnerStyle)
			case "eliminated":
				return cellStyle.Inherit(outStyle)
			}
			return cellStyle
		})

	title := e.Title
	if title == "" {
		title = r.PollID.String()
	}

	var winners []string
	for _, id := range r.Winners {
		winners = append(winners, e.Label(id))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(title),
		t.Render(),
		fmt.Sprintf("Seats %d  Quota %d  Ballots %d  Rounds %d  Outcome %s",
			e.Poll.WinnerCount, r.Threshold, len(e.Ballots), r.Rounds, r.Outcome),
		fmt.Sprintf("Winners: %v", winners),
		dimStyle.Render("inputs "+hash),
	) + "\n"
}

func status(r voting.Result, id voting.OptionID) string {
	switch {
	case slices.Contains(r.Winners, id):
		return "winner"
	case slices.Contains(r.Eliminated, id):
		return "eliminated"
	}
	return ""
}

package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dredger/internal/cube"
)

// Scenario defines a replay scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Now is the clock reading in Unix milliseconds.
	Now int64 `yaml:"now"`

	// Verify enables the forward consistency check.
	Verify bool `yaml:"verify,omitempty"`

	// Materialize writes the snapshots to a scratch git repository.
	Materialize bool `yaml:"materialize,omitempty"`

	Migrations map[string]IdentitySpec `yaml:"migrations,omitempty"`

	// Main and Maybe are the current boards.
	Main  []CardSpec `yaml:"main"`
	Maybe []CardSpec `yaml:"maybe"`

	// Events is the changelog, newest first.
	Events []EventSpec `yaml:"events"`

	Assertions []Assertion `yaml:"assertions"`
}

// IdentitySpec is a migration target.
type IdentitySpec struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// CardSpec is a card in scenario YAML. Name defaults to the id.
type CardSpec struct {
	ID     string   `yaml:"id"`
	Name   string   `yaml:"name,omitempty"`
	Status string   `yaml:"status,omitempty"`
	Tags   []string `yaml:"tags,omitempty"`
}

// EventSpec is one changelog entry.
type EventSpec struct {
	// At is the event time in Unix milliseconds; nil for a dateless event.
	At    *int64   `yaml:"at,omitempty"`
	Main  *OpsSpec `yaml:"main,omitempty"`
	Maybe *OpsSpec `yaml:"maybe,omitempty"`
}

// OpsSpec holds one board's operations within an event.
type OpsSpec struct {
	Adds    []CardSpec   `yaml:"adds,omitempty"`
	Removes []RemoveSpec `yaml:"removes,omitempty"`
	Edits   []ChangeSpec `yaml:"edits,omitempty"`
	Swaps   []ChangeSpec `yaml:"swaps,omitempty"`
}

// RemoveSpec is a removed card and the index it held.
type RemoveSpec struct {
	Index *int     `yaml:"index,omitempty"`
	Card  CardSpec `yaml:"card"`
}

// ChangeSpec is an edit or swap.
type ChangeSpec struct {
	Index *int     `yaml:"index,omitempty"`
	Old   CardSpec `yaml:"old"`
	New   CardSpec `yaml:"new"`
}

// Assertion validates the produced snapshots.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Snapshot indexes the snapshot under test; negative counts from the end.
	Snapshot int `yaml:"snapshot,omitempty"`

	// Board is "main" or "maybe".
	Board string `yaml:"board,omitempty"`

	IDs   []string `yaml:"ids,omitempty"`
	Names []string `yaml:"names,omitempty"`

	// At is the expected timestamp in Unix milliseconds (timestamp).
	At *int64 `yaml:"at,omitempty"`

	// Count is the expected number (snapshot_count, commit_count).
	Count *int `yaml:"count,omitempty"`

	// Code is the expected replay error code (replay_error).
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertSnapshotCount = "snapshot_count"
	AssertBoardIDs      = "board_ids"
	AssertBoardNames    = "board_names"
	AssertBoardAbsent   = "board_absent"
	AssertTimestamp     = "timestamp"
	AssertReplayError   = "replay_error"
	AssertCommitCount   = "commit_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Now <= 0 {
		return fmt.Errorf("now must be a positive Unix millisecond timestamp")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, c := range s.Main {
		if c.ID == "" {
			return fmt.Errorf("main[%d]: id is required", i)
		}
	}
	for i, c := range s.Maybe {
		if c.ID == "" {
			return fmt.Errorf("maybe[%d]: id is required", i)
		}
	}

	for id, ident := range s.Migrations {
		if ident.ID == "" {
			return fmt.Errorf("migrations[%s]: id is required", id)
		}
	}

	for i, ev := range s.Events {
		if ev.Main == nil && ev.Maybe == nil {
			return fmt.Errorf("events[%d]: at least one of main or maybe is required", i)
		}
		if ev.At != nil && *ev.At > s.Now {
			return fmt.Errorf("events[%d]: at is after now", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertSnapshotCount, AssertCommitCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for %s", index, a.Type)
		}
	case AssertBoardIDs, AssertBoardNames, AssertBoardAbsent:
		if _, err := boardKind(a.Board); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertTimestamp:
		if a.At == nil {
			return fmt.Errorf("assertions[%d]: at is required for timestamp", index)
		}
	case AssertReplayError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for replay_error", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

func boardKind(name string) (cube.BoardKind, error) {
	switch name {
	case "main":
		return cube.Mainboard, nil
	case "maybe":
		return cube.Maybeboard, nil
	default:
		return "", fmt.Errorf("board must be main or maybe, got %q", name)
	}
}

// Build converts the scenario into sequencer inputs.
func (s *Scenario) Build() (mainboard, maybeboard cube.Board, events []cube.ChangeEvent, migrations cube.MigrationMap) {
	mainboard = toBoard(s.Main)
	maybeboard = toBoard(s.Maybe)

	events = make([]cube.ChangeEvent, len(s.Events))
	for i, ev := range s.Events {
		if ev.At != nil {
			ts := time.UnixMilli(*ev.At).UTC()
			events[i].Timestamp = &ts
		}
		events[i].Main = ev.Main.toOps()
		events[i].Maybe = ev.Maybe.toOps()
	}

	if len(s.Migrations) > 0 {
		migrations = make(cube.MigrationMap, len(s.Migrations))
		for id, ident := range s.Migrations {
			migrations[id] = cube.Identity{ID: ident.ID, Name: ident.Name}
		}
	}
	return mainboard, maybeboard, events, migrations
}

func (c CardSpec) toCard() cube.Card {
	card := cube.Card{ID: c.ID, Name: c.Name}
	if card.Name == "" {
		card.Name = c.ID
	}
	if c.Status != "" {
		card.Status = cube.Ptr(c.Status)
	}
	if len(c.Tags) > 0 {
		card.Tags = append([]string{}, c.Tags...)
	}
	return card
}

func toBoard(specs []CardSpec) cube.Board {
	board := make(cube.Board, len(specs))
	for i, c := range specs {
		board[i] = c.toCard()
	}
	board.Reindex()
	return board
}

func (o *OpsSpec) toOps() *cube.OperationSet {
	if o == nil {
		return nil
	}
	ops := &cube.OperationSet{}
	for _, a := range o.Adds {
		ops.Adds = append(ops.Adds, cube.Add{Card: a.toCard()})
	}
	for _, r := range o.Removes {
		ops.Removes = append(ops.Removes, cube.Remove{Index: r.Index, OldCard: r.Card.toCard()})
	}
	for _, e := range o.Edits {
		ops.Edits = append(ops.Edits, cube.Edit{Index: e.Index, OldCard: e.Old.toCard(), NewCard: e.New.toCard()})
	}
	for _, sw := range o.Swaps {
		ops.Swaps = append(ops.Swaps, cube.Swap{Index: sw.Index, OldCard: sw.Old.toCard(), NewCard: sw.New.toCard()})
	}
	return ops
}

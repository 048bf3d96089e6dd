package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/dredger/internal/cube"
)

// SyntheticStep is how far before the previously emitted snapshot an event
// without a timestamp is placed.
const SyntheticStep = time.Millisecond

// Sequencer drives the Reverter across a newest-first changelog and produces
// an oldest-first sequence of snapshots.
//
// Thread-safety: a Sequencer holds no per-run state and may be reused, but a
// single Sequence call is strictly sequential: every event depends on the
// exact post-state of the one before it.
type Sequencer struct {
	resolver *cube.Resolver
	reverter *Reverter
	clock    Clock
	verify   bool
	logger   *slog.Logger
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithClock sets the clock used to stamp the "now" snapshot.
// Default: SystemClock.
func WithClock(c Clock) Option {
	return func(s *Sequencer) {
		s.clock = c
	}
}

// WithVerify enables the forward consistency check: after reverting each
// event, the event is re-applied to a copy of the reverted board and the
// result must match the board before the revert.
func WithVerify(verify bool) Option {
	return func(s *Sequencer) {
		s.verify = verify
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Sequencer) {
		s.logger = l
	}
}

// New creates a Sequencer resolving card identities through migrations.
func New(migrations cube.MigrationMap, opts ...Option) *Sequencer {
	resolver := cube.NewResolver(migrations)
	s := &Sequencer{
		resolver: resolver,
		reverter: NewReverter(resolver),
		clock:    SystemClock{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolver returns the identity resolver the sequencer matches cards with.
func (s *Sequencer) Resolver() *cube.Resolver {
	return s.resolver
}

// Sequence reconstructs every prior state of the two boards.
//
// events must be newest-first. The returned snapshots are oldest-first:
//   - the first snapshot carries full copies of both boards (it seeds the
//     root commit)
//   - every later snapshot carries only the boards its event touched
//   - the last snapshot is the current state, stamped with the clock
//
// For k events with a non-empty operation set the result has k+1 snapshots.
// main and maybe are not modified.
func (s *Sequencer) Sequence(main, maybe cube.Board, events []cube.ChangeEvent) ([]cube.Snapshot, error) {
	mainWork := main.Clone()
	mainWork.Reindex()
	maybeWork := maybe.Clone()
	maybeWork.Reindex()

	now := s.clock.Now()
	snapshots := []cube.Snapshot{{
		Timestamp: now,
		Main:      mainWork.Clone(),
		Maybe:     maybeWork.Clone(),
	}}
	last := now

	for i, ev := range events {
		ts := last.Add(-SyntheticStep)
		if ev.Timestamp != nil {
			ts = *ev.Timestamp
		}

		snap := cube.Snapshot{Timestamp: ts}
		if !ev.Main.Empty() {
			if err := s.revert(cube.Mainboard, &mainWork, ev.Main, ts); err != nil {
				return nil, fmt.Errorf("event %d: %w", i, err)
			}
			snap.Main = mainWork.Clone()
		}
		if !ev.Maybe.Empty() {
			if err := s.revert(cube.Maybeboard, &maybeWork, ev.Maybe, ts); err != nil {
				return nil, fmt.Errorf("event %d: %w", i, err)
			}
			snap.Maybe = maybeWork.Clone()
		}

		if !snap.HasChanges() {
			s.logger.Debug("skipping empty change event", "event", i)
			continue
		}

		s.logger.Debug("reverted change event",
			"event", i,
			"timestamp", ts,
			"main_ops", ev.Main.Len(),
			"maybe_ops", ev.Maybe.Len(),
		)
		snapshots = append(snapshots, snap)
		last = ts
	}

	// The oldest state seeds the root commit, so it needs both boards even
	// when its event touched only one.
	oldest := len(snapshots) - 1
	snapshots[oldest] = cube.Snapshot{
		Timestamp: snapshots[oldest].Timestamp,
		Main:      mainWork.Clone(),
		Maybe:     maybeWork.Clone(),
	}

	slices.Reverse(snapshots)

	s.logger.Info("sequenced snapshots",
		"events", len(events),
		"snapshots", len(snapshots),
		"oldest", snapshots[0].Timestamp,
	)
	return snapshots, nil
}

// revert undoes ops on board, annotating replay errors with the board and
// event time and, when enabled, checking forward consistency.
func (s *Sequencer) revert(kind cube.BoardKind, board *cube.Board, ops *cube.OperationSet, ts time.Time) error {
	var before cube.Board
	if s.verify {
		before = board.Clone()
	}

	if err := s.reverter.Revert(board, ops); err != nil {
		return annotate(err, kind, ts)
	}

	if !s.verify {
		return nil
	}

	replayed := board.Clone()
	if err := s.reverter.Apply(&replayed, ops); err != nil {
		return annotate(&ReplayError{
			Code:    ErrCodeInconsistentHistory,
			Message: fmt.Sprintf("re-applying reverted event failed: %v", err),
			Index:   -1,
		}, kind, ts)
	}
	want := s.reverter.canonicalIDs(before)
	got := s.reverter.canonicalIDs(replayed)
	if !slices.Equal(want, got) {
		return annotate(&ReplayError{
			Code:    ErrCodeInconsistentHistory,
			Message: fmt.Sprintf("re-applying reverted event does not reproduce the newer board (%d cards, want %d)", len(got), len(want)),
			Index:   firstDifference(want, got),
		}, kind, ts)
	}
	return nil
}

// annotate fills board and event time on replay errors.
func annotate(err error, kind cube.BoardKind, ts time.Time) error {
	var re *ReplayError
	if errors.As(err, &re) {
		re.Board = kind
		re.EventTime = ts
	}
	return err
}

func firstDifference(a, b []string) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

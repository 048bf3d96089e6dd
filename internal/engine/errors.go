package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/dredger/internal/cube"
)

// ReplayError represents a fatal inconsistency detected while replaying a
// changelog backward.
//
// Replay errors include:
//   - Card not found: an add, edit or swap names a card the board doesn't hold
//   - Index out of range: a recorded index doesn't fit the reconstructed board
//   - Inconsistent history: re-applying an event doesn't reproduce the board
//
// A ReplayError means the upstream history disagrees with the replay state.
// It is never retried; the run must abort with no output.
type ReplayError struct {
	// Code identifies the error category.
	Code ReplayErrorCode

	// Message is a human-readable description.
	Message string

	// Board identifies the board being reverted.
	Board cube.BoardKind

	// Op names the operation being undone ("add", "remove", "edit", "swap").
	Op string

	// CardID and CardName identify the card involved, as recorded upstream.
	CardID   string
	CardName string

	// Index is the recorded index, or -1 when the operation carried none.
	Index int

	// EventTime is the timestamp of the change event being reverted.
	EventTime time.Time
}

// ReplayErrorCode categorizes replay errors.
type ReplayErrorCode string

const (
	// ErrCodeCardNotFound indicates an identity lookup found no matching card.
	ErrCodeCardNotFound ReplayErrorCode = "CARD_NOT_FOUND"

	// ErrCodeIndexOutOfRange indicates a recorded index outside the board.
	ErrCodeIndexOutOfRange ReplayErrorCode = "INDEX_OUT_OF_RANGE"

	// ErrCodeInconsistentHistory indicates forward re-application diverged.
	ErrCodeInconsistentHistory ReplayErrorCode = "INCONSISTENT_HISTORY"
)

// Error implements the error interface.
func (e *ReplayError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Board != "" {
		msg += fmt.Sprintf(" (board=%s", e.Board)
		if e.Op != "" {
			msg += ", op=" + e.Op
		}
		if e.CardID != "" || e.CardName != "" {
			msg += fmt.Sprintf(", card=%q id=%s", e.CardName, e.CardID)
		}
		if e.Index >= 0 {
			msg += fmt.Sprintf(", index=%d", e.Index)
		}
		if !e.EventTime.IsZero() {
			msg += ", event=" + e.EventTime.UTC().Format(time.RFC3339)
		}
		msg += ")"
	}
	return msg
}

// IsFatal returns true if the error is a replay error.
// Uses errors.As to handle wrapped errors.
func IsFatal(err error) bool {
	var re *ReplayError
	return errors.As(err, &re)
}

// IsCardNotFound returns true if the error is a card lookup miss.
func IsCardNotFound(err error) bool {
	var re *ReplayError
	if errors.As(err, &re) {
		return re.Code == ErrCodeCardNotFound
	}
	return false
}

// IsInconsistentHistory returns true if the error came from the forward
// consistency check.
func IsInconsistentHistory(err error) bool {
	var re *ReplayError
	if errors.As(err, &re) {
		return re.Code == ErrCodeInconsistentHistory
	}
	return false
}

// NewCardNotFoundError creates a ReplayError for a failed identity lookup.
func NewCardNotFoundError(op string, card cube.Card) *ReplayError {
	return &ReplayError{
		Code:     ErrCodeCardNotFound,
		Message:  fmt.Sprintf("failed to revert %s: couldn't find card %s with ID %s", op, card.Name, card.ID),
		Op:       op,
		CardID:   card.ID,
		CardName: card.Name,
		Index:    -1,
	}
}

// NewIndexError creates a ReplayError for an out-of-range recorded index.
func NewIndexError(op string, card cube.Card, index, boardLen int) *ReplayError {
	return &ReplayError{
		Code:     ErrCodeIndexOutOfRange,
		Message:  fmt.Sprintf("failed to revert %s: index %d outside board of %d cards", op, index, boardLen),
		Op:       op,
		CardID:   card.ID,
		CardName: card.Name,
		Index:    index,
	}
}

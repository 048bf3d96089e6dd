package engine

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/dredger/internal/cube"
)

func TestReplayError_Format(t *testing.T) {
	err := NewCardNotFoundError("add", cube.Card{ID: "abc", Name: "Opt"})
	assert.Equal(t, "CARD_NOT_FOUND: failed to revert add: couldn't find card Opt with ID abc", err.Error())

	err.Board = cube.Mainboard
	err.EventTime = time.Unix(0, 0)
	assert.Equal(t,
		`CARD_NOT_FOUND: failed to revert add: couldn't find card Opt with ID abc (board=mainboard, op=add, card="Opt" id=abc, event=1970-01-01T00:00:00Z)`,
		err.Error())
}

func TestReplayError_Helpers(t *testing.T) {
	notFound := fmt.Errorf("event 3: %w", NewCardNotFoundError("swap", cube.Card{ID: "x"}))
	index := NewIndexError("remove", cube.Card{ID: "y"}, 9, 2)

	assert.True(t, IsFatal(notFound))
	assert.True(t, IsCardNotFound(notFound))
	assert.False(t, IsInconsistentHistory(notFound))

	assert.True(t, IsFatal(index))
	assert.False(t, IsCardNotFound(index))

	assert.False(t, IsFatal(errors.New("disk full")))
	assert.False(t, IsCardNotFound(nil))
}

package engine

import (
	"sort"

	"github.com/roach88/dredger/internal/cube"
)

// Reverter undoes one change event against one board.
//
// Operations are undone in the fixed order adds → removes → edits → swaps,
// the exact reverse of the forward order upstream applies them in
// (swaps → edits → removes → adds). Positions only stay consistent if both
// directions honor this pairing.
type Reverter struct {
	resolver *cube.Resolver
}

// NewReverter creates a Reverter that matches cards through resolver.
func NewReverter(resolver *cube.Resolver) *Reverter {
	return &Reverter{resolver: resolver}
}

// Revert mutates board in place to the state immediately before ops were
// applied. The board is reindexed before returning.
//
// Any lookup miss or out-of-range index returns a *ReplayError. The board is
// left partially reverted in that case; callers must abort the run.
func (r *Reverter) Revert(board *cube.Board, ops *cube.OperationSet) error {
	if ops.Empty() {
		return nil
	}

	for _, add := range ops.Adds {
		idx := r.findLast(*board, add.Card)
		if idx < 0 {
			return NewCardNotFoundError("add", add.Card)
		}
		if _, err := board.RemoveAt(idx); err != nil {
			return NewIndexError("add", add.Card, idx, len(*board))
		}
	}

	// Recorded indices refer to the fully reconstructed board, so inserting
	// in ascending order never shifts a position a later insert targets.
	for _, rm := range sortedRemoves(ops.Removes) {
		card := rm.OldCard.Clone()
		if rm.Index == nil {
			*board = append(*board, card)
			continue
		}
		if err := board.Insert(*rm.Index, card); err != nil {
			return NewIndexError("remove", rm.OldCard, *rm.Index, len(*board))
		}
	}

	for _, edit := range ops.Edits {
		if err := r.replace(board, "edit", edit.Index, edit.NewCard, edit.OldCard); err != nil {
			return err
		}
	}

	for _, swap := range ops.Swaps {
		if err := r.replace(board, "swap", swap.Index, swap.NewCard, swap.OldCard); err != nil {
			return err
		}
	}

	board.Reindex()
	return nil
}

// replace puts restore where current sits, locating current by index when
// one was recorded and by identity otherwise.
func (r *Reverter) replace(board *cube.Board, op string, index *int, current, restore cube.Card) error {
	idx := -1
	if index != nil {
		idx = *index
		if idx < 0 || idx >= len(*board) {
			return NewIndexError(op, current, idx, len(*board))
		}
	} else {
		idx = r.findLast(*board, current)
		if idx < 0 {
			return NewCardNotFoundError(op, current)
		}
	}
	(*board)[idx] = restore.Clone()
	return nil
}

// findLast returns the highest index holding target, or -1.
//
// Canonical id matches take precedence over name matches: two printings can
// share a display name, and only the id tells them apart.
func (r *Reverter) findLast(board cube.Board, target cube.Card) int {
	want := r.resolver.ResolveCard(target)

	for i := len(board) - 1; i >= 0; i-- {
		c := board[i]
		if c.ID == want.ID || r.resolver.ResolveCard(c).ID == want.ID {
			return i
		}
	}

	for i := len(board) - 1; i >= 0; i-- {
		c := board[i]
		if cube.SameName(c.Name, want.Name) || cube.SameName(r.resolver.DisplayName(c), want.Name) {
			return i
		}
	}

	return -1
}

// sortedRemoves returns a copy of removes in ascending index order, stable
// for equal indices. A remove without an index sorts as index 0.
func sortedRemoves(removes []cube.Remove) []cube.Remove {
	out := make([]cube.Remove, len(removes))
	copy(out, removes)
	sort.SliceStable(out, func(i, j int) bool {
		return removeKey(out[i]) < removeKey(out[j])
	})
	return out
}

// removeKey is the sort position of a remove: its index, or 0 when absent.
func removeKey(rm cube.Remove) int {
	if rm.Index == nil {
		return 0
	}
	return *rm.Index
}

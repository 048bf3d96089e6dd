package engine

import (
	"sort"

	"github.com/roach88/dredger/internal/cube"
)

// Apply mutates board forward by ops, in upstream order:
// swaps → edits → removes (descending index) → adds (appended).
//
// Apply is the inverse of Reverter.Revert. The sequencer uses it to check
// that each reverted state actually reproduces the newer state when replayed
// forward; upstream never states its application order, so this is the only
// place a violation becomes visible.
func (r *Reverter) Apply(board *cube.Board, ops *cube.OperationSet) error {
	if ops.Empty() {
		return nil
	}

	for _, swap := range ops.Swaps {
		if err := r.replace(board, "swap", swap.Index, swap.OldCard, swap.NewCard); err != nil {
			return err
		}
	}

	for _, edit := range ops.Edits {
		if err := r.replace(board, "edit", edit.Index, edit.OldCard, edit.NewCard); err != nil {
			return err
		}
	}

	removes := make([]cube.Remove, len(ops.Removes))
	copy(removes, ops.Removes)
	sort.SliceStable(removes, func(i, j int) bool {
		return removeKey(removes[i]) > removeKey(removes[j])
	})
	for _, rm := range removes {
		idx := -1
		if rm.Index != nil {
			idx = *rm.Index
		} else {
			idx = r.findLast(*board, rm.OldCard)
			if idx < 0 {
				return NewCardNotFoundError("remove", rm.OldCard)
			}
		}
		if _, err := board.RemoveAt(idx); err != nil {
			return NewIndexError("remove", rm.OldCard, idx, len(*board))
		}
	}

	for _, add := range ops.Adds {
		*board = append(*board, add.Card.Clone())
	}

	board.Reindex()
	return nil
}

// canonicalIDs returns the board's canonical card ids in order.
func (r *Reverter) canonicalIDs(board cube.Board) []string {
	ids := make([]string, len(board))
	for i, c := range board {
		ids[i] = r.resolver.ResolveCard(c).ID
	}
	return ids
}

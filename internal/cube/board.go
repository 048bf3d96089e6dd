package cube

import (
	"fmt"
	"sort"
)

// Board is an ordered sequence of cards.
//
// Order is semantically meaningful: it is serialized verbatim and it is the
// coordinate space for index-addressed operations.
type Board []Card

// Clone returns a deep copy of the board. A nil board clones to an empty,
// non-nil board so the copy always reads as "present".
func (b Board) Clone() Board {
	out := make(Board, len(b))
	for i, c := range b {
		out[i] = c.Clone()
	}
	return out
}

// Reindex sets each card's Position to its slice index.
func (b Board) Reindex() {
	for i := range b {
		pos := i
		b[i].Position = &pos
	}
}

// IDs returns the card ids in board order.
func (b Board) IDs() []string {
	ids := make([]string, len(b))
	for i, c := range b {
		ids[i] = c.ID
	}
	return ids
}

// Insert places card at index, shifting later cards right.
// index == len(b) appends.
func (b *Board) Insert(index int, card Card) error {
	if index < 0 || index > len(*b) {
		return fmt.Errorf("insert index %d out of range [0,%d]", index, len(*b))
	}
	*b = append(*b, Card{})
	copy((*b)[index+1:], (*b)[index:])
	(*b)[index] = card
	return nil
}

// RemoveAt deletes the card at index.
func (b *Board) RemoveAt(index int) (Card, error) {
	if index < 0 || index >= len(*b) {
		return Card{}, fmt.Errorf("remove index %d out of range [0,%d)", index, len(*b))
	}
	removed := (*b)[index]
	*b = append((*b)[:index], (*b)[index+1:]...)
	return removed, nil
}

// SortByPosition stably orders the board by Position; cards without a
// position sort as if at position 0.
func (b Board) SortByPosition() {
	sort.SliceStable(b, func(i, j int) bool {
		return positionOf(b[i]) < positionOf(b[j])
	})
}

func positionOf(c Card) int {
	if c.Position == nil {
		return 0
	}
	return *c.Position
}

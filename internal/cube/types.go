package cube

import "time"

// BoardKind names one of the two boards a cube carries.
type BoardKind string

const (
	// Mainboard is the primary list of cards in the cube.
	Mainboard BoardKind = "mainboard"

	// Maybeboard is the alternate list of candidate cards.
	Maybeboard BoardKind = "maybeboard"
)

// Card is a single entry in a board.
//
// Cards are mutable while part of a working board and treated as immutable
// once captured into a Snapshot (Board.Clone deep-copies them).
type Card struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Set             *string  `json:"set,omitempty"`
	CollectorNumber *string  `json:"collector_number,omitempty"`
	Status          *string  `json:"status,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Finish          *string  `json:"finish,omitempty"`
	CMC             *float64 `json:"cmc,omitempty"`
	Colors          []string `json:"colors,omitempty"`
	ColorCategory   *string  `json:"color_category,omitempty"`
	Rarity          *string  `json:"rarity,omitempty"`
	TypeLine        *string  `json:"type_line,omitempty"`

	// Position is the card's rank within its board. Absent until the board
	// has been reindexed.
	Position *int `json:"position,omitempty"`
}

// Clone returns a deep copy of the card.
func (c Card) Clone() Card {
	out := c
	out.Set = cloneString(c.Set)
	out.CollectorNumber = cloneString(c.CollectorNumber)
	out.Status = cloneString(c.Status)
	out.Finish = cloneString(c.Finish)
	out.ColorCategory = cloneString(c.ColorCategory)
	out.Rarity = cloneString(c.Rarity)
	out.TypeLine = cloneString(c.TypeLine)
	if c.Tags != nil {
		out.Tags = append([]string{}, c.Tags...)
	}
	if c.Colors != nil {
		out.Colors = append([]string{}, c.Colors...)
	}
	if c.CMC != nil {
		v := *c.CMC
		out.CMC = &v
	}
	if c.Position != nil {
		v := *c.Position
		out.Position = &v
	}
	return out
}

// Add records a card that was added to a board.
type Add struct {
	Card Card `json:"card"`
}

// Remove records a card removed from a board, with the index it held and its
// full data at the time of removal.
type Remove struct {
	Index   *int `json:"index,omitempty"`
	OldCard Card `json:"old_card"`
}

// Edit records an in-place change to a card.
type Edit struct {
	Index   *int `json:"index,omitempty"`
	OldCard Card `json:"old_card"`
	NewCard Card `json:"new_card"`
}

// Swap records a card replaced by a different printing or card.
type Swap struct {
	Index   *int `json:"index,omitempty"`
	OldCard Card `json:"old_card"`
	NewCard Card `json:"new_card"`
}

// OperationSet holds the operations one change event recorded against one
// board. The four lists are independent.
type OperationSet struct {
	Adds    []Add    `json:"adds,omitempty"`
	Removes []Remove `json:"removes,omitempty"`
	Edits   []Edit   `json:"edits,omitempty"`
	Swaps   []Swap   `json:"swaps,omitempty"`
}

// Empty reports whether the set is nil or carries no operations.
func (o *OperationSet) Empty() bool {
	if o == nil {
		return true
	}
	return len(o.Adds) == 0 && len(o.Removes) == 0 && len(o.Edits) == 0 && len(o.Swaps) == 0
}

// Len returns the total number of operations in the set.
func (o *OperationSet) Len() int {
	if o == nil {
		return 0
	}
	return len(o.Adds) + len(o.Removes) + len(o.Edits) + len(o.Swaps)
}

// ChangeEvent is one entry of a cube's changelog.
// Events are delivered newest-first.
type ChangeEvent struct {
	// Timestamp is when the change happened. Nil when upstream omitted it.
	Timestamp *time.Time `json:"timestamp,omitempty"`

	Main  *OperationSet `json:"main,omitempty"`
	Maybe *OperationSet `json:"maybe,omitempty"`
}

// Ops returns the operation set recorded against the given board.
func (e ChangeEvent) Ops(kind BoardKind) *OperationSet {
	if kind == Maybeboard {
		return e.Maybe
	}
	return e.Main
}

// Snapshot is a point-in-time copy of the boards.
// A nil board means that board did not change at this instant.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Main      Board     `json:"main,omitempty"`
	Maybe     Board     `json:"maybe,omitempty"`
}

// HasChanges reports whether at least one board is present.
func (s Snapshot) HasChanges() bool {
	return s.Main != nil || s.Maybe != nil
}

// Board returns the snapshot's copy of the given board, or nil.
func (s Snapshot) Board(kind BoardKind) Board {
	if kind == Maybeboard {
		return s.Maybe
	}
	return s.Main
}

// Collection is the current state of a cube plus its display metadata.
type Collection struct {
	ID          string
	Name        string
	Owner       string
	Description string
	ImageURI    string
	ImageName   string
	Mainboard   Board
	Maybeboard  Board
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Ptr returns a pointer to v. Convenient for optional card fields.
func Ptr[T any](v T) *T {
	return &v
}

package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/roach88/dredger/internal/cube"
)

// Sentinel stands in for any absent optional field.
const Sentinel = "~~"

// Header is the fixed column header of a board file.
var Header = []string{
	"Name",
	"Set",
	"CollectorNumber",
	"Status",
	"Tags",
	"Finish",
	"Cmc",
	"Colors",
	"ColorCategory",
	"Rarity",
	"TypeLine",
}

// FileName returns the repository-relative path of a board's file.
func FileName(kind cube.BoardKind) string {
	return string(kind) + ".tsv"
}

// WriteBoard writes board as tab-separated values with a header row.
// Names are rendered through resolver so migrated cards show their current
// canonical name.
func WriteBoard(w io.Writer, board cube.Board, resolver *cube.Resolver) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, card := range board {
		if err := cw.Write(Row(card, resolver)); err != nil {
			return fmt.Errorf("write card %d (%s): %w", i, card.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Row renders one card in Header column order.
func Row(card cube.Card, resolver *cube.Resolver) []string {
	return []string{
		resolver.DisplayName(card),
		optional(card.Set),
		optional(card.CollectorNumber),
		optional(card.Status),
		joined(card.Tags),
		optional(card.Finish),
		formatCMC(card.CMC),
		joined(card.Colors),
		optional(card.ColorCategory),
		optional(card.Rarity),
		optional(card.TypeLine),
	}
}

func optional(s *string) string {
	if s == nil {
		return Sentinel
	}
	return *s
}

func joined(values []string) string {
	if len(values) == 0 {
		return Sentinel
	}
	return strings.Join(values, ",")
}

func formatCMC(cmc *float64) string {
	if cmc == nil {
		return Sentinel
	}
	return strconv.FormatFloat(*cmc, 'f', -1, 64)
}

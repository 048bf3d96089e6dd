package testutil

import (
	"time"

	"github.com/roach88/dredger/internal/cube"
)

// Card builds a card whose name equals its id.
func Card(id string) cube.Card {
	return cube.Card{ID: id, Name: id}
}

// NamedCard builds a card with distinct id and name.
func NamedCard(id, name string) cube.Card {
	return cube.Card{ID: id, Name: name}
}

// Board builds a reindexed board of Card(id) entries.
func Board(ids ...string) cube.Board {
	b := make(cube.Board, len(ids))
	for i, id := range ids {
		b[i] = Card(id)
	}
	b.Reindex()
	return b
}

// At returns the UTC instant ms milliseconds after the Unix epoch.
func At(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// AtPtr is At returned by pointer, for ChangeEvent timestamps.
func AtPtr(ms int64) *time.Time {
	t := At(ms)
	return &t
}

// Index returns a pointer to i, for recorded operation indices.
func Index(i int) *int {
	return &i
}

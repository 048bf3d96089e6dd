package cube

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func board(ids ...string) Board {
	b := make(Board, len(ids))
	for i, id := range ids {
		b[i] = Card{ID: id, Name: id}
	}
	b.Reindex()
	return b
}

func TestBoardInsert(t *testing.T) {
	b := board("a", "c")

	require.NoError(t, b.Insert(1, Card{ID: "b"}))
	require.NoError(t, b.Insert(3, Card{ID: "d"}))
	require.NoError(t, b.Insert(0, Card{ID: "_"}))

	assert.Equal(t, []string{"_", "a", "b", "c", "d"}, b.IDs())
}

func TestBoardInsert_OutOfRange(t *testing.T) {
	b := board("a")

	assert.Error(t, b.Insert(2, Card{ID: "x"}))
	assert.Error(t, b.Insert(-1, Card{ID: "x"}))
	assert.Equal(t, []string{"a"}, b.IDs())
}

func TestBoardRemoveAt(t *testing.T) {
	b := board("a", "b", "c")

	removed, err := b.RemoveAt(1)
	require.NoError(t, err)
	assert.Equal(t, "b", removed.ID)
	assert.Equal(t, []string{"a", "c"}, b.IDs())

	_, err = b.RemoveAt(2)
	assert.Error(t, err)
}

func TestBoardReindex(t *testing.T) {
	b := Board{{ID: "a"}, {ID: "b", Position: Ptr(7)}}
	b.Reindex()

	for i, c := range b {
		require.NotNil(t, c.Position)
		assert.Equal(t, i, *c.Position)
	}
}

func TestBoardClone_IsDeep(t *testing.T) {
	b := Board{{ID: "a", Set: Ptr("lea"), Tags: []string{"burn"}, CMC: Ptr(1.0)}}
	c := b.Clone()

	*c[0].Set = "leb"
	c[0].Tags[0] = "control"
	*c[0].CMC = 2

	assert.Equal(t, "lea", *b[0].Set)
	assert.Equal(t, "burn", b[0].Tags[0])
	assert.Equal(t, 1.0, *b[0].CMC)
}

func TestBoardClone_NilIsPresent(t *testing.T) {
	var b Board
	c := b.Clone()
	assert.NotNil(t, c)
	assert.Len(t, c, 0)
}

func TestSortByPosition_Stable(t *testing.T) {
	b := Board{
		{ID: "c", Position: Ptr(2)},
		{ID: "x"},
		{ID: "a", Position: Ptr(0)},
		{ID: "b", Position: Ptr(1)},
	}
	b.SortByPosition()

	assert.Equal(t, []string{"x", "a", "b", "c"}, b.IDs())
}

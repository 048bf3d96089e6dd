package cubecobra

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dredger/internal/engine"
	tu "github.com/roach88/dredger/internal/testutil"
)

func TestLocalClient_Cube(t *testing.T) {
	c := NewLocalClient("testdata/export")

	col, err := c.Cube(context.Background(), "ignored")
	require.NoError(t, err)

	assert.Equal(t, "5f2b1c0e9a", col.ID)
	assert.Equal(t, "Vintage Cube", col.Name)
	assert.Equal(t, "dredger-owner", col.Owner)
	assert.Equal(t, "https://img.example/art.jpg", col.ImageURI)
	assert.Equal(t, "Ancestral Recall", col.ImageName)

	// Ordered by recorded index, then reindexed.
	require.Equal(t, []string{"bolt", "ring", "counter"}, col.Mainboard.IDs())
	for i, card := range col.Mainboard {
		require.NotNil(t, card.Position)
		assert.Equal(t, i, *card.Position)
	}

	bolt := col.Mainboard[0]
	assert.Equal(t, "Lightning Bolt", bolt.Name)
	assert.Equal(t, 1.0, *bolt.CMC)
	assert.Equal(t, "161", *bolt.CollectorNumber)
	assert.Equal(t, "common", *bolt.Rarity)
	assert.Equal(t, "Instant", *bolt.TypeLine)
	assert.Equal(t, []string{"burn"}, bolt.Tags)

	assert.Nil(t, col.Mainboard[1].CMC)
	counter := col.Mainboard[2]
	assert.Equal(t, 2.0, *counter.CMC)
	assert.Equal(t, "Instant", *counter.TypeLine, "falls back to catalog type")

	require.Len(t, col.Maybeboard, 1)
	assert.Equal(t, "Lim-Dûl's Vault", col.Maybeboard[0].Name)
}

func TestLocalClient_History(t *testing.T) {
	c := NewLocalClient("testdata/export")

	events, err := c.History(context.Background(), "ignored")
	require.NoError(t, err)
	require.Len(t, events, 3)

	first := events[0]
	require.NotNil(t, first.Timestamp)
	assert.Equal(t, tu.At(1_700_000_120_000), *first.Timestamp)
	require.NotNil(t, first.Main)
	assert.Nil(t, first.Maybe)
	require.Len(t, first.Main.Adds, 1)
	assert.Equal(t, "counter", first.Main.Adds[0].Card.ID)
	require.Len(t, first.Main.Swaps, 1)
	assert.Equal(t, "ring-old", first.Main.Swaps[0].OldCard.ID)
	assert.Equal(t, "ring", first.Main.Swaps[0].NewCard.ID)
	assert.Equal(t, 1, *first.Main.Swaps[0].Index)

	assert.Nil(t, events[1].Timestamp)
	require.NotNil(t, events[1].Maybe)
	assert.Equal(t, "tutor", events[1].Maybe.Removes[0].OldCard.ID)

	edit := events[2].Main.Edits[0]
	assert.Equal(t, "Proxied", *edit.OldCard.Status)
	assert.Equal(t, "Owned", *edit.NewCard.Status)
}

func TestLocalClient_MissingFile(t *testing.T) {
	c := NewLocalClient(t.TempDir())

	_, err := c.Cube(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), LocalCubeFile)
}

func TestLocalClient_SequencesEndToEnd(t *testing.T) {
	c := NewLocalClient("testdata/export")
	ctx := context.Background()

	col, err := c.Cube(ctx, "")
	require.NoError(t, err)
	events, err := c.History(ctx, "")
	require.NoError(t, err)

	seq := engine.New(nil, engine.WithClock(engine.FixedClock{At: tu.At(1_700_000_200_000)}), engine.WithVerify(true))
	snaps, err := seq.Sequence(col.Mainboard, col.Maybeboard, events)
	require.NoError(t, err)
	require.Len(t, snaps, 4)

	root := snaps[0]
	assert.Equal(t, tu.At(1_700_000_000_000), root.Timestamp)
	assert.Equal(t, []string{"bolt", "ring-old"}, root.Main.IDs())
	assert.Equal(t, []string{"tutor", "vault"}, root.Maybe.IDs())
	assert.Equal(t, "Proxied", *root.Main[0].Status)

	// The dateless maybeboard event sits one millisecond before its newer
	// neighbour.
	assert.Equal(t, tu.At(1_700_000_119_999), snaps[1].Timestamp)
	assert.Nil(t, snaps[1].Main)

	assert.Equal(t, []string{"bolt", "ring", "counter"}, snaps[3].Main.IDs())
}

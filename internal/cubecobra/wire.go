package cubecobra

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/dredger/internal/cube"
)

// cubeDoc is the cube document served by /cube/api/cubeJSON/{id}.
type cubeDoc struct {
	ID          string    `json:"id"`
	ShortID     string    `json:"shortId"`
	Name        string    `json:"name"`
	Owner       ownerRef  `json:"owner"`
	Description string    `json:"description"`
	Image       imageRef  `json:"image"`
	ImageName   string    `json:"imageName"`
	Cards       boardsDoc `json:"cards"`
}

type imageRef struct {
	URI    string `json:"uri"`
	Artist string `json:"artist,omitempty"`
}

type boardsDoc struct {
	Mainboard  []cardDoc `json:"mainboard"`
	Maybeboard []cardDoc `json:"maybeboard"`
}

// ownerRef accepts both an embedded user object and a bare user id string.
type ownerRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (o *ownerRef) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		o.ID = s
		o.Username = s
		return nil
	}
	type plain ownerRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode owner: %w", err)
	}
	*o = ownerRef(p)
	return nil
}

// name is the display name used as commit author.
func (o ownerRef) name() string {
	if o.Username != "" {
		return o.Username
	}
	return o.ID
}

type cardDoc struct {
	CardID        string      `json:"cardID"`
	Index         *int        `json:"index"`
	Status        *string     `json:"status"`
	Finish        *string     `json:"finish"`
	Tags          []string    `json:"tags"`
	Colors        []string    `json:"colors"`
	CMC           flexNumber  `json:"cmc"`
	ColorCategory *string     `json:"colorCategory"`
	Rarity        *string     `json:"rarity"`
	TypeLine      *string     `json:"type_line"`
	Details       *detailsDoc `json:"details"`
}

type detailsDoc struct {
	Name            string  `json:"name"`
	Set             *string `json:"set"`
	CollectorNumber *string `json:"collector_number"`
	Type            *string `json:"type"`
	Rarity          *string `json:"rarity"`
}

// flexNumber decodes a JSON number, a numeric string or null.
// Empty and non-numeric strings decode as absent.
type flexNumber struct {
	Value *float64
}

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		n.Value = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			n.Value = nil
			return nil
		}
		n.Value = &f
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decode cmc: %w", err)
	}
	n.Value = &f
	return nil
}

// historyPage is one page of /cube/api/history/{id}.
type historyPage struct {
	Posts   []postDoc       `json:"posts"`
	LastKey json.RawMessage `json:"lastKey"`
}

// more reports whether another page follows.
func (p historyPage) more() bool {
	k := bytes.TrimSpace(p.LastKey)
	return len(k) > 0 && !bytes.Equal(k, []byte("null"))
}

// historyRequest is the paging body of a history POST.
type historyRequest struct {
	LastKey json.RawMessage `json:"lastKey,omitempty"`
}

type postDoc struct {
	Date      *int64        `json:"date"`
	Changelog *changelogDoc `json:"changelog"`
}

type changelogDoc struct {
	Mainboard  *changesDoc `json:"mainboard"`
	Maybeboard *changesDoc `json:"maybeboard"`
}

type changesDoc struct {
	Adds    []cardDoc   `json:"adds"`
	Removes []removeDoc `json:"removes"`
	Edits   []editDoc   `json:"edits"`
	Swaps   []swapDoc   `json:"swaps"`
}

type removeDoc struct {
	Index   *int    `json:"index"`
	OldCard cardDoc `json:"oldCard"`
}

type editDoc struct {
	Index   *int    `json:"index"`
	OldCard cardDoc `json:"oldCard"`
	NewCard cardDoc `json:"newCard"`
}

type swapDoc struct {
	Index   *int    `json:"index"`
	OldCard cardDoc `json:"oldCard"`
	Card    cardDoc `json:"card"`
}

// toCard converts a wire card. The card-level type line and rarity win over
// the catalog details.
func (c cardDoc) toCard() cube.Card {
	card := cube.Card{
		ID:            c.CardID,
		Status:        c.Status,
		Finish:        c.Finish,
		Tags:          c.Tags,
		Colors:        c.Colors,
		CMC:           c.CMC.Value,
		ColorCategory: c.ColorCategory,
		Rarity:        c.Rarity,
		TypeLine:      c.TypeLine,
		Position:      c.Index,
	}
	if d := c.Details; d != nil {
		card.Name = d.Name
		card.Set = d.Set
		card.CollectorNumber = d.CollectorNumber
		if card.TypeLine == nil {
			card.TypeLine = d.Type
		}
		if card.Rarity == nil {
			card.Rarity = d.Rarity
		}
	}
	return card
}

// toBoard converts a wire board, stably ordered by recorded index and then
// reindexed.
func toBoard(cards []cardDoc) cube.Board {
	board := make(cube.Board, len(cards))
	for i, c := range cards {
		board[i] = c.toCard()
	}
	board.SortByPosition()
	board.Reindex()
	return board
}

func (d cubeDoc) toCollection() *cube.Collection {
	id := d.ID
	if id == "" {
		id = d.ShortID
	}
	return &cube.Collection{
		ID:          id,
		Name:        d.Name,
		Owner:       d.Owner.name(),
		Description: d.Description,
		ImageURI:    d.Image.URI,
		ImageName:   d.ImageName,
		Mainboard:   toBoard(d.Cards.Mainboard),
		Maybeboard:  toBoard(d.Cards.Maybeboard),
	}
}

func (c *changesDoc) toOperationSet() *cube.OperationSet {
	if c == nil {
		return nil
	}
	ops := &cube.OperationSet{}
	for _, a := range c.Adds {
		ops.Adds = append(ops.Adds, cube.Add{Card: a.toCard()})
	}
	for _, r := range c.Removes {
		ops.Removes = append(ops.Removes, cube.Remove{Index: r.Index, OldCard: r.OldCard.toCard()})
	}
	for _, e := range c.Edits {
		ops.Edits = append(ops.Edits, cube.Edit{Index: e.Index, OldCard: e.OldCard.toCard(), NewCard: e.NewCard.toCard()})
	}
	for _, s := range c.Swaps {
		ops.Swaps = append(ops.Swaps, cube.Swap{Index: s.Index, OldCard: s.OldCard.toCard(), NewCard: s.Card.toCard()})
	}
	return ops
}

func (p postDoc) toEvent() cube.ChangeEvent {
	var ev cube.ChangeEvent
	if p.Date != nil {
		t := time.UnixMilli(*p.Date).UTC()
		ev.Timestamp = &t
	}
	if p.Changelog != nil {
		ev.Main = p.Changelog.Mainboard.toOperationSet()
		ev.Maybe = p.Changelog.Maybeboard.toOperationSet()
	}
	return ev
}

func toEvents(posts []postDoc) []cube.ChangeEvent {
	events := make([]cube.ChangeEvent, len(posts))
	for i, p := range posts {
		events[i] = p.toEvent()
	}
	return events
}

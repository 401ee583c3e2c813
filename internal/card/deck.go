package card

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

// DeckSize is the fixed number of cards in a constructed deck.
const DeckSize = 30

var (
	// ErrInvalidDeckSize indicates a deck was built from a list that is not
	// exactly DeckSize entries long.
	ErrInvalidDeckSize = errors.New("invalid deck size")

	// ErrEmptyDrawPile indicates a draw was requested for more cards than
	// remain in the pile. The room treats this as a loss condition.
	ErrEmptyDrawPile = errors.New("empty draw pile")
)

// Deck holds the 30 card instances of one participant for the lifetime of
// a match. Every instance belongs to exactly one zone at a time; the union
// of the zones is always the original 30. The deck itself tracks the draw
// pile and graveyard, the owning participant tracks hand and board.
type Deck struct {
	instances []*Instance // all 30, creation order
	draw      []*Instance // top of pile at index 0
	graveyard []*Instance
}

// BuildDeck instantiates a deck from an ordered list of catalog entries.
// Fails with ErrInvalidDeckSize unless exactly DeckSize entries are given.
func BuildDeck(entries []Definition) (*Deck, error) {
	if len(entries) != DeckSize {
		return nil, fmt.Errorf("%w: got %d entries, want %d", ErrInvalidDeckSize, len(entries), DeckSize)
	}

	d := &Deck{
		instances: make([]*Instance, 0, DeckSize),
		draw:      make([]*Instance, 0, DeckSize),
		graveyard: make([]*Instance, 0),
	}
	for i, def := range entries {
		inst := newInstance(uuid.New().String(), def, i)
		d.instances = append(d.instances, inst)
		d.draw = append(d.draw, inst)
	}
	return d, nil
}

// Draw moves the top n cards from the draw pile to the hand zone,
// preserving order. Fails with ErrEmptyDrawPile if fewer than n remain;
// the pile is left untouched in that case.
func (d *Deck) Draw(n int) ([]*Instance, error) {
	if n < 0 {
		return nil, fmt.Errorf("cannot draw %d cards", n)
	}
	if len(d.draw) < n {
		return nil, fmt.Errorf("%w: %d requested, %d remaining", ErrEmptyDrawPile, n, len(d.draw))
	}

	drawn := d.draw[:n]
	d.draw = d.draw[n:]
	for _, inst := range drawn {
		inst.Zone = ZoneHand
	}
	return drawn, nil
}

// Shuffle permutes the draw pile in place with a Fisher-Yates pass driven
// by the given source. Cards in other zones are untouched. The source is
// injected so shuffles are reproducible under a fixed seed.
func (d *Deck) Shuffle(rng *rand.Rand) {
	for i := len(d.draw) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		d.draw[i], d.draw[j] = d.draw[j], d.draw[i]
	}
}

// Bury moves an instance into the graveyard zone.
func (d *Deck) Bury(inst *Instance) {
	inst.Zone = ZoneGraveyard
	d.graveyard = append(d.graveyard, inst)
}

// DrawPileSize returns the number of cards remaining in the draw pile.
func (d *Deck) DrawPileSize() int {
	return len(d.draw)
}

// GraveyardSize returns the number of cards in the graveyard.
func (d *Deck) GraveyardSize() int {
	return len(d.graveyard)
}

// Instances returns all 30 instances in creation order, regardless of zone.
func (d *Deck) Instances() []*Instance {
	return d.instances
}

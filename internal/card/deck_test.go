package card

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
)

func testDefinitions(n int) []Definition {
	defs := make([]Definition, 0, n)
	for i := 0; i < n; i++ {
		defs = append(defs, Definition{
			ID:     fmt.Sprintf("catalog-%d", i),
			Name:   fmt.Sprintf("Card %d", i),
			Attack: 2,
			HP:     2,
			Cost:   1,
			Type:   TypeGuard,
		})
	}
	return defs
}

func TestBuildDeck_Size(t *testing.T) {
	deck, err := BuildDeck(testDefinitions(DeckSize))
	if err != nil {
		t.Fatalf("failed to build deck: %v", err)
	}
	if deck.DrawPileSize() != DeckSize {
		t.Errorf("expected %d cards in draw pile, got %d", DeckSize, deck.DrawPileSize())
	}

	if _, err := BuildDeck(testDefinitions(29)); !errors.Is(err, ErrInvalidDeckSize) {
		t.Errorf("expected ErrInvalidDeckSize for 29 entries, got %v", err)
	}
	if _, err := BuildDeck(testDefinitions(31)); !errors.Is(err, ErrInvalidDeckSize) {
		t.Errorf("expected ErrInvalidDeckSize for 31 entries, got %v", err)
	}
}

func TestDeck_DrawUntilEmpty(t *testing.T) {
	deck, err := BuildDeck(testDefinitions(DeckSize))
	if err != nil {
		t.Fatalf("failed to build deck: %v", err)
	}

	for i := 0; i < DeckSize; i++ {
		drawn, err := deck.Draw(1)
		if err != nil {
			t.Fatalf("draw %d failed: %v", i+1, err)
		}
		if len(drawn) != 1 {
			t.Fatalf("draw %d returned %d cards", i+1, len(drawn))
		}
		if drawn[0].Zone != ZoneHand {
			t.Errorf("drawn card in zone %s, want %s", drawn[0].Zone, ZoneHand)
		}
	}

	if deck.DrawPileSize() != 0 {
		t.Errorf("expected empty draw pile, got %d", deck.DrawPileSize())
	}

	// The 31st draw must fail with ErrEmptyDrawPile.
	if _, err := deck.Draw(1); !errors.Is(err, ErrEmptyDrawPile) {
		t.Errorf("expected ErrEmptyDrawPile on 31st draw, got %v", err)
	}
}

func TestDeck_DrawPreservesOrder(t *testing.T) {
	deck, err := BuildDeck(testDefinitions(DeckSize))
	if err != nil {
		t.Fatalf("failed to build deck: %v", err)
	}

	drawn, err := deck.Draw(5)
	if err != nil {
		t.Fatalf("failed to draw opening hand: %v", err)
	}
	for i, inst := range drawn {
		if inst.Position != i {
			t.Errorf("drawn[%d] has position %d, want %d", i, inst.Position, i)
		}
	}
}

func TestDeck_ShuffleIsPermutation(t *testing.T) {
	deck, err := BuildDeck(testDefinitions(DeckSize))
	if err != nil {
		t.Fatalf("failed to build deck: %v", err)
	}

	before := make(map[string]bool, DeckSize)
	for _, inst := range deck.Instances() {
		before[inst.ID] = true
	}

	deck.Shuffle(rand.New(rand.NewSource(42)))

	if deck.DrawPileSize() != DeckSize {
		t.Fatalf("shuffle changed pile size to %d", deck.DrawPileSize())
	}
	for _, inst := range deck.Instances() {
		if !before[inst.ID] {
			t.Errorf("shuffle introduced unknown instance %s", inst.ID)
		}
	}
}

func TestDeck_ShuffleReproducible(t *testing.T) {
	defs := testDefinitions(DeckSize)

	order := func(seed int64) []string {
		deck, err := BuildDeck(defs)
		if err != nil {
			t.Fatalf("failed to build deck: %v", err)
		}
		deck.Shuffle(rand.New(rand.NewSource(seed)))
		drawn, err := deck.Draw(DeckSize)
		if err != nil {
			t.Fatalf("failed to draw full pile: %v", err)
		}
		ids := make([]string, 0, DeckSize)
		for _, inst := range drawn {
			ids = append(ids, inst.DefinitionID)
		}
		return ids
	}

	first := order(7)
	second := order(7)
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("same seed produced different orders at index %d: %s vs %s", i, first[i], second[i])
		}
	}
}

func TestDeck_ShuffleLeavesOtherZonesUntouched(t *testing.T) {
	deck, err := BuildDeck(testDefinitions(DeckSize))
	if err != nil {
		t.Fatalf("failed to build deck: %v", err)
	}

	drawn, err := deck.Draw(5)
	if err != nil {
		t.Fatalf("failed to draw: %v", err)
	}
	deck.Bury(drawn[0])

	deck.Shuffle(rand.New(rand.NewSource(1)))

	if drawn[0].Zone != ZoneGraveyard {
		t.Errorf("buried card moved to zone %s", drawn[0].Zone)
	}
	for _, inst := range drawn[1:] {
		if inst.Zone != ZoneHand {
			t.Errorf("hand card moved to zone %s", inst.Zone)
		}
	}
	if deck.DrawPileSize() != DeckSize-5 {
		t.Errorf("draw pile size changed to %d", deck.DrawPileSize())
	}
}

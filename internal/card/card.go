package card

import "fmt"

// Type enumerates the catalog card variants.
type Type int

const (
	TypeGuard Type = iota
	TypeFaction
	TypeChampion
)

var typeNames = map[Type]string{
	TypeGuard:    "GUARD",
	TypeFaction:  "FACTION",
	TypeChampion: "CHAMPION",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TYPE_%d", int(t))
}

// Zone identifies where a card instance currently lives within its match.
type Zone int

const (
	ZoneDrawPile Zone = iota
	ZoneHand
	ZoneBoard
	ZoneGraveyard
)

var zoneNames = map[Zone]string{
	ZoneDrawPile:  "DRAW_PILE",
	ZoneHand:      "HAND",
	ZoneBoard:     "BOARD",
	ZoneGraveyard: "GRAVEYARD",
}

func (z Zone) String() string {
	if name, ok := zoneNames[z]; ok {
		return name
	}
	return fmt.Sprintf("ZONE_%d", int(z))
}

// Definition is a catalog-level card. The engine never mutates it; the
// catalog service owns the records and hands them over at match start.
type Definition struct {
	ID          string
	Name        string
	Description string
	Attack      int
	HP          int
	Cost        int
	Type        Type
	ClassTags   []string
	Factions    []string
}

// Instance is a per-match mutable copy of a Definition, bound to one deck
// position. Only the owning room mutates it.
type Instance struct {
	ID           string
	DefinitionID string
	Name         string
	Attack       int
	Defense      int
	Cost         int
	Effects      []string
	Position     int
	Zone         Zone
}

// newInstance binds a catalog definition into a deck position.
func newInstance(id string, def Definition, position int) *Instance {
	return &Instance{
		ID:           id,
		DefinitionID: def.ID,
		Name:         def.Name,
		Attack:       def.Attack,
		Defense:      def.HP,
		Cost:         def.Cost,
		Effects:      make([]string, 0),
		Position:     position,
		Zone:         ZoneDrawPile,
	}
}

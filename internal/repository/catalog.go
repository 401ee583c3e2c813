package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/duelforge/arena-server-go/internal/card"
)

// CatalogRepository reads card definitions and deck lists from the
// catalog owned by the collection service. The engine only reads here.
type CatalogRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewCatalogRepository creates a catalog repository.
func NewCatalogRepository(db *DB, logger *zap.Logger) *CatalogRepository {
	return &CatalogRepository{db: db, logger: logger}
}

// LoadDeck returns the ordered card definitions of a player's deck. The
// result feeds card.BuildDeck, which enforces the 30-card invariant.
func (r *CatalogRepository) LoadDeck(ctx context.Context, playerID, deckID string) ([]card.Definition, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT c.id, c.name, c.description, c.attack, c.hp, c.cost, c.card_type,
		       COALESCE(c.class_tags, '{}'), COALESCE(c.factions, '{}')
		FROM deck_cards dc
		JOIN cards c ON c.id = dc.card_id
		JOIN decks d ON d.id = dc.deck_id
		WHERE dc.deck_id = $1 AND d.owner_id = $2
		ORDER BY dc.position`,
		deckID, playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying deck %s for %s: %w", deckID, playerID, err)
	}
	defer rows.Close()

	defs := make([]card.Definition, 0, card.DeckSize)
	for rows.Next() {
		var (
			def      card.Definition
			cardType string
		)
		err := rows.Scan(&def.ID, &def.Name, &def.Description, &def.Attack, &def.HP,
			&def.Cost, &cardType, &def.ClassTags, &def.Factions)
		if err != nil {
			return nil, fmt.Errorf("scanning deck row: %w", err)
		}
		def.Type = parseCardType(cardType)
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading deck %s: %w", deckID, err)
	}

	r.logger.Debug("deck loaded",
		zap.String("player_id", playerID),
		zap.String("deck_id", deckID),
		zap.Int("cards", len(defs)),
	)
	return defs, nil
}

func parseCardType(s string) card.Type {
	switch s {
	case "GUARD":
		return card.TypeGuard
	case "FACTION":
		return card.TypeFaction
	default:
		return card.TypeChampion
	}
}

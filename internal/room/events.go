package room

import (
	"fmt"

	"github.com/duelforge/arena-server-go/internal/battle"
)

// EventListener is the engine's only outbound notification channel. Each
// participant registers one; whatever transport represents the player
// (websocket session, test harness) implements it. The engine stays free
// of transport types.
type EventListener interface {
	// DrawResult delivers a draw outcome. The drawing player receives full
	// card detail; the opponent receives only the public count.
	DrawResult(ev DrawResult)

	// BattleResult delivers one resolved attacker/defender pairing.
	BattleResult(ev BattleResult)
}

// CardDetail is the owner-visible view of a drawn card.
type CardDetail struct {
	InstanceID   string `json:"instance_id"`
	DefinitionID string `json:"definition_id"`
	Name         string `json:"name"`
	Attack       int    `json:"attack"`
	Defense      int    `json:"defense"`
	Cost         int    `json:"cost"`
}

// DrawResult reports cards leaving a draw pile. Cards is nil on the
// opponent's copy of the event; Count is always set.
type DrawResult struct {
	RoomID       string       `json:"room_id"`
	Turn         int          `json:"turn"`
	PlayerID     string       `json:"player_id"`
	Count        int          `json:"count"`
	Cards        []CardDetail `json:"cards,omitempty"`
	DrawPileSize int          `json:"draw_pile_size"`
}

// BattleResult reports one resolved pairing with explicit attacker and
// defender identifiers. For a direct attack on a player, the outcome's
// DefenderID is empty and LifeDamage carries the amount dealt.
type BattleResult struct {
	RoomID           string         `json:"room_id"`
	Turn             int            `json:"turn"`
	AttackerPlayerID string         `json:"attacker_player_id"`
	DefenderPlayerID string         `json:"defender_player_id"`
	Outcome          battle.Outcome `json:"outcome"`
	LifeDamage       int            `json:"life_damage,omitempty"`
	DefenderLife     int            `json:"defender_life"`
}

// FinishReason enumerates why a match reached the Finished state.
type FinishReason int

const (
	ReasonLifeDepleted FinishReason = iota
	ReasonDeckExhausted
	ReasonForfeit
)

var finishReasonNames = map[FinishReason]string{
	ReasonLifeDepleted:  "LIFE_DEPLETED",
	ReasonDeckExhausted: "DECK_EXHAUSTED",
	ReasonForfeit:       "FORFEIT",
}

func (r FinishReason) String() string {
	if name, ok := finishReasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("REASON_%d", int(r))
}

// MatchResult is produced exactly once, on the Finished transition, and
// handed to the room's finish callback for persistence and delivery.
type MatchResult struct {
	RoomID   string       `json:"room_id"`
	WinnerID string       `json:"winner_id"`
	LoserID  string       `json:"loser_id"`
	Reason   FinishReason `json:"reason"`
	Turns    int          `json:"turns"`
}

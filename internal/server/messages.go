package server

import (
	"encoding/json"

	"github.com/duelforge/arena-server-go/internal/room"
)

// Inbound message types.
const (
	msgQueue         = "queue"
	msgCancelQueue   = "cancel_queue"
	msgDraw          = "draw"
	msgPlayCard      = "play_card"
	msgDeclareBattle = "declare_battle"
	msgForfeit       = "forfeit"
	msgState         = "state"
)

// Outbound message types.
const (
	msgQueued         = "queued"
	msgQueueCancelled = "queue_cancelled"
	msgMatchFound     = "match_found"
	msgDrawResult     = "draw_result"
	msgBattleResult   = "battle_result"
	msgMatchFinished  = "match_finished"
	msgSnapshot       = "snapshot"
	msgError          = "error"
)

// clientMessage is one inbound frame from a player session.
type clientMessage struct {
	Type     string         `json:"type"`
	DeckID   string         `json:"deck_id,omitempty"`
	CardID   string         `json:"card_id,omitempty"`
	Pairings []room.Pairing `json:"pairings,omitempty"`
}

// serverMessage is one outbound frame to a player session.
type serverMessage struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

func encodeMessage(msgType string, data interface{}) ([]byte, error) {
	return json.Marshal(serverMessage{Type: msgType, Data: data})
}

func encodeError(err error) ([]byte, error) {
	return json.Marshal(serverMessage{Type: msgError, Error: err.Error()})
}

package room

import "github.com/duelforge/arena-server-go/internal/card"

// CardView is the board/hand representation in a snapshot.
type CardView struct {
	InstanceID   string `json:"instance_id"`
	DefinitionID string `json:"definition_id"`
	Name         string `json:"name"`
	Attack       int    `json:"attack"`
	Defense      int    `json:"defense"`
	Cost         int    `json:"cost"`
}

// ParticipantView is one seat as seen in a snapshot. Hand is populated
// only on the requesting player's own view; the opponent sees HandCount.
type ParticipantView struct {
	PlayerID      string     `json:"player_id"`
	Life          int        `json:"life"`
	HandCount     int        `json:"hand_count"`
	Hand          []CardView `json:"hand,omitempty"`
	Board         []CardView `json:"board"`
	DrawPileSize  int        `json:"draw_pile_size"`
	GraveyardSize int        `json:"graveyard_size"`
}

// Snapshot is a consistent copy-on-read view of a room for one player.
type Snapshot struct {
	RoomID         string          `json:"room_id"`
	State          string          `json:"state"`
	Phase          string          `json:"phase"`
	Turn           int             `json:"turn"`
	ActivePlayerID string          `json:"active_player_id"`
	You            ParticipantView `json:"you"`
	Opponent       ParticipantView `json:"opponent"`
}

// View returns a consistent snapshot of the room as seen by the given
// player. It takes the room lock briefly and copies everything out, so
// readers never observe a half-applied mutation.
func (r *Room) View(playerID string) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateWaitingForPlayers {
		return Snapshot{}, ErrMatchNotStarted
	}

	you, err := r.participantLocked(playerID)
	if err != nil {
		return Snapshot{}, err
	}
	opponent := r.opponentOf(you)

	return Snapshot{
		RoomID:         r.id,
		State:          r.state.String(),
		Phase:          r.phase.String(),
		Turn:           r.turn,
		ActivePlayerID: r.active().PlayerID,
		You:            participantView(you, true),
		Opponent:       participantView(opponent, false),
	}, nil
}

func participantView(p *Participant, includeHand bool) ParticipantView {
	view := ParticipantView{
		PlayerID:      p.PlayerID,
		Life:          p.Life,
		HandCount:     len(p.Hand),
		Board:         cardViews(p.Board),
		DrawPileSize:  p.Deck.DrawPileSize(),
		GraveyardSize: p.Deck.GraveyardSize(),
	}
	if includeHand {
		view.Hand = cardViews(p.Hand)
	}
	return view
}

func cardViews(instances []*card.Instance) []CardView {
	views := make([]CardView, 0, len(instances))
	for _, inst := range instances {
		views = append(views, CardView{
			InstanceID:   inst.ID,
			DefinitionID: inst.DefinitionID,
			Name:         inst.Name,
			Attack:       inst.Attack,
			Defense:      inst.Defense,
			Cost:         inst.Cost,
		})
	}
	return views
}

// Package battle computes combat outcomes between two card instances.
// Resolution is a pure function: the room applies the outcome to deck and
// participant state.
package battle

import "github.com/duelforge/arena-server-go/internal/card"

// Outcome reports the post-combat state of an attacker/defender pairing.
// It is deterministic given its inputs; there is no hidden randomness.
type Outcome struct {
	AttackerID        string `json:"attacker_id"`
	DefenderID        string `json:"defender_id,omitempty"`
	AttackerDefense   int    `json:"attacker_defense"`
	DefenderDefense   int    `json:"defender_defense"`
	AttackerDestroyed bool   `json:"attacker_destroyed"`
	DefenderDestroyed bool   `json:"defender_destroyed"`
}

// Resolve computes the result of one pairing. Combat is symmetric: both
// instances deal their attack to the other's defense at the same time,
// with no first-strike ordering. An instance whose defense reaches zero
// or below is destroyed; reported defense is clamped at zero.
func Resolve(attacker, defender *card.Instance) Outcome {
	attackerDefense := attacker.Defense - defender.Attack
	defenderDefense := defender.Defense - attacker.Attack

	return Outcome{
		AttackerID:        attacker.ID,
		DefenderID:        defender.ID,
		AttackerDefense:   clamp(attackerDefense),
		DefenderDefense:   clamp(defenderDefense),
		AttackerDestroyed: attackerDefense <= 0,
		DefenderDestroyed: defenderDefense <= 0,
	}
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

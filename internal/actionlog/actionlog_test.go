package actionlog

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendRoot(t *testing.T) {
	log := New("match-1", "Test Match")

	first := log.AppendRoot("turn 1 begins")
	second := log.AppendRoot("turn 2 begins")

	roots := log.Roots()
	require.Len(t, roots, 2)
	assert.Equal(t, first.ID, roots[0].ID)
	assert.Equal(t, second.ID, roots[1].ID)
	assert.Empty(t, first.ParentID)
}

func TestAppendChild_UnknownParent(t *testing.T) {
	log := New("match-1", "Test Match")

	_, err := log.AppendChild("no-such-node", "orphan")
	assert.True(t, errors.Is(err, ErrUnknownParent))
}

func TestChildren_CreationOrder(t *testing.T) {
	log := New("match-1", "Test Match")
	root := log.AppendRoot("battle phase")

	var want []string
	for i := 0; i < 4; i++ {
		child, err := log.AppendChild(root.ID, fmt.Sprintf("pairing %d", i))
		require.NoError(t, err)
		want = append(want, child.ID)
	}

	var got []string
	for child := range log.Children(root) {
		got = append(got, child.ID)
	}
	assert.Equal(t, want, got)

	// The sequence is restartable.
	var again []string
	for child := range log.Children(root) {
		again = append(again, child.ID)
	}
	assert.Equal(t, want, again)
}

func TestAncestors(t *testing.T) {
	log := New("match-1", "Test Match")
	root := log.AppendRoot("root")
	x, err := log.AppendChild(root.ID, "x")
	require.NoError(t, err)
	y, err := log.AppendChild(x.ID, "y")
	require.NoError(t, err)

	var chain []string
	for node := range log.Ancestors(y) {
		chain = append(chain, node.ID)
	}
	// Exactly y's parent, then the root, in that order.
	assert.Equal(t, []string{x.ID, root.ID}, chain)
}

func TestAcyclic(t *testing.T) {
	log := New("match-1", "Test Match")
	root := log.AppendRoot("root")
	current := root
	for i := 0; i < 50; i++ {
		child, err := log.AppendChild(current.ID, fmt.Sprintf("node %d", i))
		require.NoError(t, err)
		current = child
	}

	// Walking ancestors from the deepest node must terminate at the root
	// without revisiting any node.
	seen := map[string]bool{current.ID: true}
	steps := 0
	for node := range log.Ancestors(current) {
		require.False(t, seen[node.ID], "cycle detected at %s", node.ID)
		seen[node.ID] = true
		steps++
	}
	assert.Equal(t, 50, steps)
}

func TestWalk_ReplayOrder(t *testing.T) {
	log := New("match-1", "Test Match")

	turn1 := log.AppendRoot("turn 1")
	draw, err := log.AppendChild(turn1.ID, "draw")
	require.NoError(t, err)
	battle, err := log.AppendChild(turn1.ID, "battle")
	require.NoError(t, err)
	pairing, err := log.AppendChild(battle.ID, "pairing")
	require.NoError(t, err)
	turn2 := log.AppendRoot("turn 2")

	var order []string
	for node := range log.Walk() {
		order = append(order, node.ID)
	}
	assert.Equal(t, []string{turn1.ID, draw.ID, battle.ID, pairing.ID, turn2.ID}, order)
}

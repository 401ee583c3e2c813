package matchmaker

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/duelforge/arena-server-go/internal/card"
	"github.com/duelforge/arena-server-go/internal/room"
)

type nopListener struct{}

func (nopListener) DrawResult(room.DrawResult)     {}
func (nopListener) BattleResult(room.BattleResult) {}

func testDeck(t *testing.T, prefix string) *card.Deck {
	t.Helper()
	defs := make([]card.Definition, 0, card.DeckSize)
	for i := 0; i < card.DeckSize; i++ {
		defs = append(defs, card.Definition{
			ID:     fmt.Sprintf("%s-%d", prefix, i),
			Name:   fmt.Sprintf("%s %d", prefix, i),
			Attack: 2,
			HP:     2,
			Cost:   1,
		})
	}
	deck, err := card.BuildDeck(defs)
	require.NoError(t, err)
	return deck
}

func testMatchmaker(t *testing.T) (*Matchmaker, *room.Manager) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	rooms := room.NewManager(nil, logger)
	cfg := room.Config{OpeningHandSize: 5, StartingLife: 20, PhaseTimeout: 0}
	m := New(rooms, cfg, logger)
	m.SetSeedFunc(func() int64 { return 1 })
	return m, rooms
}

func TestTryPairNext_NeedsTwoTickets(t *testing.T) {
	m, _ := testMatchmaker(t)

	r, err := m.TryPairNext()
	require.NoError(t, err)
	assert.Nil(t, r, "pairing with empty queue")

	_, err = m.Enqueue("alice", testDeck(t, "a"), nopListener{})
	require.NoError(t, err)

	r, err = m.TryPairNext()
	require.NoError(t, err)
	assert.Nil(t, r, "pairing with a single ticket")
	assert.Equal(t, 1, m.QueueDepth())
}

func TestTryPairNext_PairsFIFOIntoRunningRoom(t *testing.T) {
	m, rooms := testMatchmaker(t)

	_, err := m.Enqueue("alice", testDeck(t, "a"), nopListener{})
	require.NoError(t, err)
	_, err = m.Enqueue("bob", testDeck(t, "b"), nopListener{})
	require.NoError(t, err)
	_, err = m.Enqueue("carol", testDeck(t, "c"), nopListener{})
	require.NoError(t, err)

	r, err := m.TryPairNext()
	require.NoError(t, err)
	require.NotNil(t, r)

	// The two longest-waiting players were paired; carol still waits.
	assert.True(t, r.HasPlayer("alice"))
	assert.True(t, r.HasPlayer("bob"))
	assert.False(t, r.HasPlayer("carol"))
	assert.Equal(t, 1, m.QueueDepth())

	// The room is already live in its first Draw phase with opening
	// hands dealt.
	assert.Equal(t, room.StateInProgress, r.State())
	assert.Equal(t, room.PhaseDraw, r.CurrentPhase())
	assert.Equal(t, 1, r.Turn())

	snap, err := r.View("alice")
	require.NoError(t, err)
	assert.Len(t, snap.You.Hand, 5)
	assert.Equal(t, 5, snap.Opponent.HandCount)

	// And registered with the manager.
	_, ok := rooms.Get(r.ID())
	assert.True(t, ok)
	assert.Equal(t, 1, rooms.ActiveCount())
}

func TestEnqueue_DuplicateRejected(t *testing.T) {
	m, _ := testMatchmaker(t)

	_, err := m.Enqueue("alice", testDeck(t, "a"), nopListener{})
	require.NoError(t, err)

	_, err = m.Enqueue("alice", testDeck(t, "a2"), nopListener{})
	assert.True(t, errors.Is(err, ErrAlreadyQueued))
}

func TestCancel(t *testing.T) {
	m, _ := testMatchmaker(t)

	assert.False(t, m.Cancel("alice"), "cancel before enqueue")

	_, err := m.Enqueue("alice", testDeck(t, "a"), nopListener{})
	require.NoError(t, err)

	assert.True(t, m.Cancel("alice"))
	assert.Equal(t, 0, m.QueueDepth())
	assert.False(t, m.Cancel("alice"), "cancel twice")
}

func TestTryPairNext_StartFailureUnregistersRoom(t *testing.T) {
	logger := zaptest.NewLogger(t)
	rooms := room.NewManager(nil, logger)
	// An opening hand larger than the deck makes the room's start fail.
	cfg := room.Config{OpeningHandSize: card.DeckSize + 1, StartingLife: 20, PhaseTimeout: 0}
	m := New(rooms, cfg, logger)
	m.SetSeedFunc(func() int64 { return 1 })

	_, err := m.Enqueue("alice", testDeck(t, "a"), nopListener{})
	require.NoError(t, err)
	_, err = m.Enqueue("bob", testDeck(t, "b"), nopListener{})
	require.NoError(t, err)

	r, err := m.TryPairNext()
	require.Error(t, err)
	assert.Nil(t, r)

	// No dead room lingers in the registry.
	assert.Equal(t, 0, rooms.ActiveCount())
	if _, ok := rooms.FindByPlayer("alice"); ok {
		t.Error("failed room still findable by player")
	}
}

func TestTryPairNext_ConcurrentPairingClaimsDistinctTickets(t *testing.T) {
	m, _ := testMatchmaker(t)

	const players = 20
	for i := 0; i < players; i++ {
		_, err := m.Enqueue(fmt.Sprintf("player-%d", i), testDeck(t, fmt.Sprintf("d%d", i)), nopListener{})
		require.NoError(t, err)
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		seen  = make(map[string]int)
		total int
	)
	for i := 0; i < players/2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := m.TryPairNext()
			if err != nil || r == nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			total++
			for p := 0; p < players; p++ {
				id := fmt.Sprintf("player-%d", p)
				if r.HasPlayer(id) {
					seen[id]++
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, players/2, total)
	assert.Equal(t, 0, m.QueueDepth())
	for id, count := range seen {
		assert.Equal(t, 1, count, "player %s claimed by %d rooms", id, count)
	}
	assert.Len(t, seen, players)
}

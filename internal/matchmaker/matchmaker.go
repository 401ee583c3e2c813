// Package matchmaker queues waiting players and pairs them into rooms.
// Pairing is first-in-first-out: the two longest-waiting tickets are
// matched as soon as two are queued.
package matchmaker

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/duelforge/arena-server-go/internal/card"
	"github.com/duelforge/arena-server-go/internal/room"
)

// ErrAlreadyQueued indicates a player enqueued a second ticket while one
// is still waiting.
var ErrAlreadyQueued = errors.New("player already queued")

// Ticket is one player's request to be matched, carrying their resolved
// deck. Created on enqueue, destroyed on pairing or cancellation.
type Ticket struct {
	ID         string
	PlayerID   string
	Deck       *card.Deck
	Listener   room.EventListener
	EnqueuedAt time.Time
}

// Matchmaker holds the shared ticket queue. Enqueue and Cancel may be
// called concurrently from many sessions; TryPairNext dequeues atomically
// so two concurrent pairing attempts can never claim the same ticket.
type Matchmaker struct {
	mu      sync.Mutex
	queue   []*Ticket
	queued  map[string]*Ticket // playerID -> ticket
	rooms   *room.Manager
	roomCfg room.Config
	seed    func() int64
	logger  *zap.Logger
}

// New creates a matchmaker that registers paired rooms with the given
// manager.
func New(rooms *room.Manager, roomCfg room.Config, logger *zap.Logger) *Matchmaker {
	return &Matchmaker{
		queue:   make([]*Ticket, 0),
		queued:  make(map[string]*Ticket),
		rooms:   rooms,
		roomCfg: roomCfg,
		seed:    func() int64 { return time.Now().UnixNano() },
		logger:  logger,
	}
}

// SetSeedFunc overrides the per-room shuffle seed source, used by tests
// for reproducible matches.
func (m *Matchmaker) SetSeedFunc(fn func() int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seed = fn
}

// Enqueue adds a player's ticket to the back of the queue.
func (m *Matchmaker) Enqueue(playerID string, deck *card.Deck, listener room.EventListener) (*Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.queued[playerID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyQueued, playerID)
	}

	ticket := &Ticket{
		ID:         uuid.New().String(),
		PlayerID:   playerID,
		Deck:       deck,
		Listener:   listener,
		EnqueuedAt: time.Now(),
	}
	m.queue = append(m.queue, ticket)
	m.queued[playerID] = ticket

	m.logger.Info("player queued",
		zap.String("player_id", playerID),
		zap.Int("queue_depth", len(m.queue)),
	)
	return ticket, nil
}

// Cancel removes a player's waiting ticket. Returns false if the player
// is not queued (already paired or never enqueued).
func (m *Matchmaker) Cancel(playerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	ticket, exists := m.queued[playerID]
	if !exists {
		return false
	}

	delete(m.queued, playerID)
	for i, queued := range m.queue {
		if queued.ID == ticket.ID {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			break
		}
	}

	m.logger.Info("ticket cancelled",
		zap.String("player_id", playerID),
		zap.Int("queue_depth", len(m.queue)),
	)
	return true
}

// QueueDepth returns the number of waiting tickets.
func (m *Matchmaker) QueueDepth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// TryPairNext pairs the two longest-waiting tickets into a new room,
// already registered and advanced into its first Draw phase. Returns nil
// when fewer than two tickets are queued.
func (m *Matchmaker) TryPairNext() (*room.Room, error) {
	m.mu.Lock()
	if len(m.queue) < 2 {
		m.mu.Unlock()
		return nil, nil
	}

	first, second := m.queue[0], m.queue[1]
	m.queue = m.queue[2:]
	delete(m.queued, first.PlayerID)
	delete(m.queued, second.PlayerID)

	rng := rand.New(rand.NewSource(m.seed()))
	logger := m.logger
	rooms := m.rooms
	cfg := m.roomCfg
	m.mu.Unlock()

	r := room.New(uuid.New().String(), cfg, rng, logger)
	rooms.Register(r)

	err := r.Start(
		room.Seat{PlayerID: first.PlayerID, Deck: first.Deck, Listener: first.Listener},
		room.Seat{PlayerID: second.PlayerID, Deck: second.Deck, Listener: second.Listener},
	)
	if err != nil {
		// A room that never started must not linger in the registry.
		r.Close()
		rooms.Remove(r.ID())
		return nil, fmt.Errorf("starting room for %s vs %s: %w", first.PlayerID, second.PlayerID, err)
	}

	logger.Info("players paired",
		zap.String("room_id", r.ID()),
		zap.String("home", first.PlayerID),
		zap.String("away", second.PlayerID),
		zap.Duration("waited", time.Since(first.EnqueuedAt)),
	)
	return r, nil
}

package room

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/duelforge/arena-server-go/internal/actionlog"
)

// LogStore persists a finished match's log. Finalizing the same match
// twice must be a no-op on the store side, keyed by match id, so the
// persistence step may be retried by its caller.
type LogStore interface {
	SaveGameLog(ctx context.Context, log *actionlog.Log, result MatchResult) error
}

// Manager tracks live rooms and finalizes them when they finish: the log
// is handed to the store and the room is dropped from the registry.
type Manager struct {
	mu     sync.RWMutex
	rooms  map[string]*Room
	store  LogStore
	logger *zap.Logger

	persistTimeout time.Duration

	hookMu       sync.RWMutex
	finishedHook func(result MatchResult)
}

// NewManager creates a room manager. store may be nil, in which case
// finished logs are discarded after the match.
func NewManager(store LogStore, logger *zap.Logger) *Manager {
	return &Manager{
		rooms:          make(map[string]*Room),
		store:          store,
		logger:         logger,
		persistTimeout: 10 * time.Second,
	}
}

// SetFinishedHook registers a callback invoked after a room has been
// finalized, used by transports to deliver the result to connected
// players.
func (m *Manager) SetFinishedHook(fn func(result MatchResult)) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	m.finishedHook = fn
}

// Register adds a room to the registry and installs the finalization
// callback. Must be called before the room starts.
func (m *Manager) Register(r *Room) {
	r.SetFinishFunc(m.finalize)

	m.mu.Lock()
	m.rooms[r.ID()] = r
	m.mu.Unlock()

	m.logger.Info("room registered", zap.String("room_id", r.ID()))
}

// Get retrieves a live room by id.
func (m *Manager) Get(roomID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[roomID]
	return r, ok
}

// FindByPlayer returns the live room a player is seated in, if any.
func (m *Manager) FindByPlayer(playerID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rooms {
		if r.HasPlayer(playerID) {
			return r, true
		}
	}
	return nil, false
}

// Remove drops a room that never produced a result, such as one whose
// start failed.
func (m *Manager) Remove(roomID string) {
	m.mu.Lock()
	delete(m.rooms, roomID)
	m.mu.Unlock()
}

// CloseAll stops the phase clock of every live room and returns how many
// were closed. Used on server shutdown so no timer goroutine outlives
// the process teardown.
func (m *Manager) CloseAll() int {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.Unlock()

	for _, r := range rooms {
		r.Close()
	}
	return len(rooms)
}

// ActiveCount returns the number of live rooms.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// finalize persists the finished match's log and drops the room. A
// persistence failure is logged and left to the store's caller to retry;
// the save is idempotent by match id so a retry cannot double-record.
func (m *Manager) finalize(result MatchResult, log *actionlog.Log) {
	if m.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), m.persistTimeout)
		defer cancel()

		if err := m.store.SaveGameLog(ctx, log, result); err != nil {
			m.logger.Error("failed to persist game log",
				zap.String("room_id", result.RoomID),
				zap.Error(err),
			)
		}
	}

	m.mu.Lock()
	delete(m.rooms, result.RoomID)
	m.mu.Unlock()

	m.logger.Info("room finalized",
		zap.String("room_id", result.RoomID),
		zap.String("winner", result.WinnerID),
		zap.Int("log_nodes", log.Len()),
	)

	m.hookMu.RLock()
	hook := m.finishedHook
	m.hookMu.RUnlock()
	if hook != nil {
		hook(result)
	}
}

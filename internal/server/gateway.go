// Package server exposes the engine over a websocket gateway: one
// connection per player session, JSON frames in both directions.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/duelforge/arena-server-go/internal/card"
	"github.com/duelforge/arena-server-go/internal/config"
	"github.com/duelforge/arena-server-go/internal/matchmaker"
	"github.com/duelforge/arena-server-go/internal/room"
)

// DeckSource loads a player's deck list from the external catalog.
type DeckSource interface {
	LoadDeck(ctx context.Context, playerID, deckID string) ([]card.Definition, error)
}

// Gateway accepts player connections and routes their commands to the
// matchmaker and their rooms.
type Gateway struct {
	cfg      *config.Config
	upgrader websocket.Upgrader
	matches  *matchmaker.Matchmaker
	rooms    *room.Manager
	decks    DeckSource
	logger   *zap.Logger

	mu      sync.RWMutex
	clients map[string]*client // playerID -> session
}

// NewGateway creates the websocket gateway and installs the finished
// match hook on the room manager.
func NewGateway(cfg *config.Config, matches *matchmaker.Matchmaker, rooms *room.Manager, decks DeckSource, logger *zap.Logger) *Gateway {
	g := &Gateway{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		matches: matches,
		rooms:   rooms,
		decks:   decks,
		logger:  logger,
		clients: make(map[string]*client),
	}
	rooms.SetFinishedHook(g.broadcastFinished)
	return g
}

// Serve runs the HTTP listener until the context is cancelled, then
// shuts down gracefully.
func (g *Gateway) Serve(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(g.cfg.Server.WebSocket.Path, g.handleWS)

	srv := &http.Server{
		Addr:    g.cfg.Server.WebSocket.Address,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("websocket gateway listening",
			zap.String("address", srv.Addr),
			zap.String("path", g.cfg.Server.WebSocket.Path),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), g.cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// handleWS upgrades one player connection. The session is identified by
// the player query parameter; authentication is the perimeter's concern,
// not the engine's.
func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("player")
	if playerID == "" {
		http.Error(w, "missing player parameter", http.StatusBadRequest)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		gateway:  g,
		conn:     conn,
		send:     make(chan []byte, 64),
		playerID: playerID,
		logger:   g.logger,
	}

	g.mu.Lock()
	if prev, exists := g.clients[playerID]; exists {
		// Rooms may still hold the old session as their listener, so its
		// send channel stays open; the session is retired and its pumps
		// are kicked loose by closing the connection.
		prev.markSuperseded()
		prev.conn.Close()
	}
	g.clients[playerID] = c
	g.mu.Unlock()

	// A reconnecting player picks their match back up on the new session.
	if r, ok := g.rooms.FindByPlayer(playerID); ok {
		if err := r.ReplaceListener(playerID, c); err == nil {
			g.logger.Info("session reattached to match",
				zap.String("player_id", playerID),
				zap.String("room_id", r.ID()),
			)
		}
	}

	g.logger.Info("player connected", zap.String("player_id", playerID))

	go c.writePump()
	go c.readPump()
}

// disconnect removes a dropped session. A queued ticket is cancelled; a
// seated player stays in their match and times out phase by phase until
// reconnect or defeat.
func (g *Gateway) disconnect(c *client) {
	g.mu.Lock()
	current := g.clients[c.playerID] == c
	if current {
		delete(g.clients, c.playerID)
	}
	g.mu.Unlock()

	// A superseded session's dying pumps must not touch the ticket the
	// player's new session may hold.
	if !current {
		return
	}

	if g.matches.Cancel(c.playerID) {
		g.logger.Info("ticket cancelled on disconnect", zap.String("player_id", c.playerID))
	}
	g.logger.Info("player disconnected", zap.String("player_id", c.playerID))
}

// handleMessage dispatches one inbound frame.
func (g *Gateway) handleMessage(c *client, payload []byte) {
	var msg clientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.pushError(fmt.Errorf("malformed message: %w", err))
		return
	}

	var err error
	switch msg.Type {
	case msgQueue:
		err = g.handleQueue(c, msg.DeckID)
	case msgCancelQueue:
		if g.matches.Cancel(c.playerID) {
			c.push(msgQueueCancelled, nil)
		} else {
			err = fmt.Errorf("player %s is not queued", c.playerID)
		}
	case msgDraw:
		err = g.withRoom(c, func(r *room.Room) error {
			return r.Draw(c.playerID)
		})
	case msgPlayCard:
		err = g.withRoom(c, func(r *room.Room) error {
			return r.PlayCard(c.playerID, msg.CardID)
		})
	case msgDeclareBattle:
		err = g.withRoom(c, func(r *room.Room) error {
			return r.DeclareBattle(c.playerID, msg.Pairings)
		})
	case msgForfeit:
		err = g.withRoom(c, func(r *room.Room) error {
			return r.Forfeit(c.playerID)
		})
	case msgState:
		err = g.withRoom(c, func(r *room.Room) error {
			snap, viewErr := r.View(c.playerID)
			if viewErr != nil {
				return viewErr
			}
			c.push(msgSnapshot, snap)
			return nil
		})
	default:
		err = fmt.Errorf("unknown message type %q", msg.Type)
	}

	if err != nil {
		c.pushError(err)
	}
}

// handleQueue loads the player's deck, enqueues a ticket and attempts a
// pairing immediately.
func (g *Gateway) handleQueue(c *client, deckID string) error {
	ctx := context.Background()
	defs, err := g.decks.LoadDeck(ctx, c.playerID, deckID)
	if err != nil {
		return fmt.Errorf("loading deck %s: %w", deckID, err)
	}
	deck, err := card.BuildDeck(defs)
	if err != nil {
		return err
	}

	if _, err := g.matches.Enqueue(c.playerID, deck, c); err != nil {
		return err
	}
	c.push(msgQueued, map[string]int{"queue_depth": g.matches.QueueDepth()})

	r, err := g.matches.TryPairNext()
	if err != nil {
		g.logger.Error("pairing failed", zap.Error(err))
		return nil
	}
	if r == nil {
		return nil
	}

	// Tell both participants where they ended up.
	g.mu.RLock()
	defer g.mu.RUnlock()
	for playerID, session := range g.clients {
		if !r.HasPlayer(playerID) {
			continue
		}
		snap, viewErr := r.View(playerID)
		if viewErr != nil {
			continue
		}
		session.push(msgMatchFound, snap)
	}
	return nil
}

// broadcastFinished delivers a finalized match result to both players.
func (g *Gateway) broadcastFinished(result room.MatchResult) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, playerID := range []string{result.WinnerID, result.LoserID} {
		if session, exists := g.clients[playerID]; exists {
			session.push(msgMatchFinished, result)
		}
	}
}

// withRoom runs fn against the room the player is seated in.
func (g *Gateway) withRoom(c *client, fn func(*room.Room) error) error {
	r, ok := g.rooms.FindByPlayer(c.playerID)
	if !ok {
		return fmt.Errorf("player %s is not in a match", c.playerID)
	}
	return fn(r)
}

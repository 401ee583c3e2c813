package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/duelforge/arena-server-go/internal/room"
)

// client is one connected player session. It implements
// room.EventListener so the engine can push draw and battle results to
// the player without knowing about the transport.
type client struct {
	gateway  *Gateway
	conn     *websocket.Conn
	send     chan []byte
	playerID string
	logger   *zap.Logger

	mu         sync.Mutex
	superseded bool
}

// markSuperseded retires the session after a reconnect. The send channel
// is never closed: engine goroutines (room commands, the phase timer)
// may still hold this client as a listener, so push must stay safe to
// call at any point and simply drop frames once the session is retired.
func (c *client) markSuperseded() {
	c.mu.Lock()
	c.superseded = true
	c.mu.Unlock()
}

func (c *client) isSuperseded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.superseded
}

// DrawResult implements room.EventListener.
func (c *client) DrawResult(ev room.DrawResult) {
	c.push(msgDrawResult, ev)
}

// BattleResult implements room.EventListener.
func (c *client) BattleResult(ev room.BattleResult) {
	c.push(msgBattleResult, ev)
}

// push marshals an outbound frame onto the send queue. A full queue
// drops the frame rather than blocking the engine.
func (c *client) push(msgType string, data interface{}) {
	payload, err := encodeMessage(msgType, data)
	if err != nil {
		c.logger.Error("failed to encode message",
			zap.String("player_id", c.playerID),
			zap.String("type", msgType),
			zap.Error(err),
		)
		return
	}

	if c.isSuperseded() {
		return
	}
	select {
	case c.send <- payload:
	default:
		c.logger.Warn("send queue full, dropping frame",
			zap.String("player_id", c.playerID),
			zap.String("type", msgType),
		)
	}
}

func (c *client) pushError(err error) {
	payload, encErr := encodeError(err)
	if encErr != nil {
		return
	}
	if c.isSuperseded() {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// readPump reads inbound frames until the connection drops, dispatching
// each to the gateway.
func (c *client) readPump() {
	defer func() {
		c.gateway.disconnect(c)
		c.conn.Close()
	}()

	wsCfg := c.gateway.cfg.Server.WebSocket
	c.conn.SetReadLimit(wsCfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(wsCfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsCfg.PongTimeout))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("unexpected close",
					zap.String("player_id", c.playerID),
					zap.Error(err),
				)
			}
			return
		}
		c.gateway.handleMessage(c, payload)
	}
}

// writePump drains the send queue onto the wire and keeps the connection
// alive with pings.
func (c *client) writePump() {
	wsCfg := c.gateway.cfg.Server.WebSocket
	ticker := time.NewTicker(wsCfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsCfg.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsCfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

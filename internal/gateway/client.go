package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is one websocket connection. A client acts for at most one
// player in one game at a time.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// sendMu orders enqueue against closeSend; a broadcast may race
	// the hub tearing the client down.
	sendMu sync.Mutex
	send   chan []byte
	closed bool

	playerID string
	gameID   string
}

// closeSend shuts the outbound queue exactly once.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.sendError("MALFORMED", "cannot parse command")
			continue
		}
		c.hub.handleCommand(c, cmd)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue drops the message when the client is gone or its buffer is
// full; the client recovers with a resync.
func (c *Client) enqueue(raw []byte) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- raw:
	default:
		c.hub.logger.Warn("client send buffer full, dropping message",
			zap.String("player_id", c.playerID),
			zap.String("game_id", c.gameID),
		)
	}
}

func (c *Client) sendMessage(msg ServerMessage) {
	raw, err := json.Marshal(msg)
	if err != nil {
		c.hub.logger.Error("marshal server message", zap.Error(err))
		return
	}
	c.enqueue(raw)
}

func (c *Client) sendError(code, message string) {
	c.sendMessage(ServerMessage{
		Type:   MsgError,
		GameID: c.gameID,
		Error:  &ErrorInfo{Code: code, Message: message},
	})
}

package server

import (
	"encoding/json"
	"time"

	"tradeflow/internal/engine"
	"tradeflow/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Command is a message sent by a websocket client.
//
//	{"command": "search", "query": "tech"}
//	{"command": "read", "id": "..."}   (empty id marks everything read)
type Command struct {
	Command string `json:"command"`
	Query   string `json:"query,omitempty"`
	ID      string `json:"id,omitempty"`
}

type Client struct {
	hub    *Hub
	engine *engine.Engine
	conn   *websocket.Conn
	addr   string
	send   chan *Message
	log    *logger.Logger

	// query is owned by the hub goroutine.
	query string
}

// readPump handles client commands and notices disconnects.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
		c.log.Info("Websocket client %s disconnected", c.addr)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warning("Websocket error from %s: %v", c.addr, err)
			}
			return
		}
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		c.log.Warning("Ignoring malformed command from %s: %v", c.addr, err)
		return
	}

	switch cmd.Command {
	case "search":
		c.hub.search(c, cmd.Query)
	case "read":
		if cmd.ID == "" {
			c.engine.MarkAllRead()
		} else if err := c.engine.MarkRead(cmd.ID); err != nil {
			c.log.Debug("Mark read from %s: %v", c.addr, err)
		}
		c.hub.refresh(c)
	default:
		c.log.Debug("Unknown command %q from %s", cmd.Command, c.addr)
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
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.Warning("Write to %s failed: %v", c.addr, err)
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

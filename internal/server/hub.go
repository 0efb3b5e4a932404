package server

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"tradeflow/internal/engine"
	"tradeflow/internal/logger"
	"tradeflow/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	MessageSnapshot = "snapshot"
	MessageUpdate   = "update"

	broadcastQueueSize = 256
	clientQueueSize    = 64
)

// Message is what websocket clients receive. Snapshots answer a connect or a
// search; updates follow every tick and mutation.
type Message struct {
	Type      string           `json:"type"`
	Dashboard models.Dashboard `json:"dashboard"`
}

// search re-renders one client's dashboard. With keep set the client's
// current query is reused.
type search struct {
	client *Client
	query  string
	keep   bool
}

// -----------------------------------------------------------------------------
// Hub
// -----------------------------------------------------------------------------

// Hub owns the set of websocket clients. Only the Run goroutine touches the
// client map and client queries.
type Hub struct {
	engine *engine.Engine
	log    *logger.Logger

	clients    map[*Client]struct{}
	broadcast  chan models.Dashboard
	register   chan *Client
	unregister chan *Client
	searches   chan search
	count      atomic.Int64

	stopChan chan struct{}
	stopOnce sync.Once
}

func NewHub(e *engine.Engine, log *logger.Logger) *Hub {
	return &Hub{
		engine:     e,
		log:        log,
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan models.Dashboard, broadcastQueueSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		searches:   make(chan search),
		stopChan:   make(chan struct{}),
	}
}

// Run is the hub loop. It returns when ctx is done or Stop is called, closing
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer h.Stop()
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopChan:
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.count.Store(int64(len(h.clients)))
			h.deliver(client, &Message{Type: MessageSnapshot, Dashboard: h.engine.Dashboard("")})

		case client := <-h.unregister:
			h.remove(client)

		case req := <-h.searches:
			if _, ok := h.clients[req.client]; !ok {
				continue
			}
			if !req.keep {
				req.client.query = req.query
			}
			h.deliver(req.client, &Message{Type: MessageSnapshot, Dashboard: h.engine.Dashboard(req.client.query)})

		case view := <-h.broadcast:
			for client := range h.clients {
				msg := &Message{Type: MessageUpdate, Dashboard: view}
				if client.query != "" {
					msg.Dashboard = h.engine.Dashboard(client.query)
				}
				h.deliver(client, msg)
			}
		}
	}
}

// Broadcast queues an unfiltered dashboard for every client. It never blocks;
// when the queue is full the update is dropped and the next one supersedes it.
func (h *Hub) Broadcast(view models.Dashboard) {
	select {
	case h.broadcast <- view:
	default:
		h.log.Debug("Broadcast queue full, dropping update")
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
	})
}

func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// deliver drops a client whose queue is full so one slow consumer cannot
// stall the hub.
func (h *Hub) deliver(client *Client, msg *Message) {
	select {
	case client.send <- msg:
	default:
		h.log.Warning("Client %s too slow, disconnecting", client.addr)
		h.remove(client)
	}
}

func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.count.Store(int64(len(h.clients)))
}

func (h *Hub) closeAll() {
	for client := range h.clients {
		h.remove(client)
	}
}

func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.stopChan:
		return false
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopChan:
	}
}

func (h *Hub) search(client *Client, query string) {
	h.request(search{client: client, query: query})
}

func (h *Hub) refresh(client *Client) {
	h.request(search{client: client, keep: true})
}

func (h *Hub) request(req search) {
	select {
	case h.searches <- req:
	case <-h.stopChan:
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handler
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *HTTPServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warning("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:    s.hub,
		engine: s.engine,
		conn:   conn,
		addr:   c.ClientIP(),
		send:   make(chan *Message, clientQueueSize),
		log:    s.log,
	}

	if !s.hub.join(client) {
		conn.Close()
		return
	}
	s.log.Info("Websocket client connected from %s", client.addr)

	go client.writePump()
	go client.readPump()
}

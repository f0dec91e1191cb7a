package relay

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxClientFrame = 4096

	clientBuffer    = 256
	broadcastBuffer = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Browser visualizers are served from anywhere
		return true
	},
}

// client is one downstream subscriber
type client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
	id   string
}

// Hub fans every broadcast message out to all subscribers unchanged.
// Subscribers that cannot keep up are disconnected.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}

	clientCount atomic.Int64
	relayed     atomic.Uint64
	dropped     atomic.Uint64
	evicted     atomic.Uint64
}

// NewHub creates a hub; Run must be started before clients connect
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, broadcastBuffer),
		done:       make(chan struct{}),
	}
}

// Run handles registration and fan-out until ctx is cancelled, then
// disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for c := range h.clients {
			h.remove(c)
		}
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.clients[c] = true
			h.clientCount.Store(int64(len(h.clients)))
			log.Printf("[RELAY] client %s connected (%d total)", c.id, len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.remove(c)
				log.Printf("[RELAY] client %s disconnected (%d total)", c.id, len(h.clients))
			}

		case msg := <-h.broadcast:
			h.relayed.Add(1)
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.evicted.Add(1)
					log.Printf("[RELAY] client %s too slow, disconnecting", c.id)
					h.remove(c)
				}
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	delete(h.clients, c)
	h.clientCount.Store(int64(len(h.clients)))
	close(c.send)
}

// Broadcast queues msg for every subscriber. The slice must not be modified
// afterwards. It reports false when the hub is backed up and msg was dropped.
func (h *Hub) Broadcast(msg []byte) bool {
	select {
	case h.broadcast <- msg:
		return true
	default:
		h.dropped.Add(1)
		return false
	}
}

// Clients returns the number of connected subscribers
func (h *Hub) Clients() int {
	return int(h.clientCount.Load())
}

// ServeWS upgrades the request and subscribes the connection
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[RELAY] websocket upgrade failed: %v", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, clientBuffer),
		hub:  h,
		id:   fmt.Sprintf("%s#%d", r.RemoteAddr, time.Now().UnixNano()),
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// writePump pumps messages from the hub to the websocket connection
func (c *client) writePump() {
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
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("[RELAY] error writing to client %s: %v", c.id, err)
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

// readPump drains the connection so control frames are processed and a closed
// peer is noticed. Subscribers have nothing to say to the relay.
func (c *client) readPump() {
	defer func() {
		c.hub.unregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxClientFrame)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[RELAY] client %s read error: %v", c.id, err)
			}
			return
		}
	}
}

// unregisterClient is safe to call after the hub stopped
func (h *Hub) unregisterClient(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

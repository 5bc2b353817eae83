// Package ws streams monitoring events to browser clients over WebSocket.
package ws

import (
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/stamon-dev/stamon/internal/bus"
	"github.com/stamon-dev/stamon/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// Clients only ever send control frames and the occasional text we
	// discard; anything bigger is a protocol violation.
	maxMessageSize = 512
)

// helloPayload is the ping sent immediately after the upgrade, before any
// events. Clients use it to confirm the stream is live.
var helloPayload = []byte{1, 2, 3}

// Hub upgrades HTTP connections and fans bus events out to each of them.
type Hub struct {
	bus      *bus.Bus
	upgrader websocket.Upgrader

	conns  *xsync.Map[uint64, *client]
	nextID atomic.Uint64
}

type client struct {
	conn *websocket.Conn
	sub  *bus.Subscription

	done      chan struct{}
	closeOnce sync.Once
}

// NewHub creates a Hub fed by b.
func NewHub(b *bus.Bus) *Hub {
	return &Hub{
		bus: b,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The browser UI is served from the same origin; tokens gate
			// the upgrade itself.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: xsync.NewMap[uint64, *client](),
	}
}

// ServeHTTP upgrades the request and streams events until either side ends.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade: %v", err)
		return
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.PingMessage, helloPayload); err != nil {
		log.Printf("[ws] hello ping: %v", err)
		conn.Close()
		return
	}

	c := &client{
		conn: conn,
		sub:  h.bus.Subscribe(),
		done: make(chan struct{}),
	}
	id := h.nextID.Add(1)
	h.conns.Store(id, c)
	metrics.AddWSClients(1)

	go h.writeLoop(c)
	h.readLoop(c)

	h.drop(id, c)
}

func (h *Hub) drop(id uint64, c *client) {
	c.closeOnce.Do(func() {
		close(c.done)
		metrics.IncEventsDropped(c.sub.Dropped())
		c.sub.Close()
		c.conn.Close()
		h.conns.Delete(id)
		metrics.AddWSClients(-1)
	})
}

// writeLoop serializes bus events to text frames and keeps the heartbeat
// going. Any write error ends the connection, which also stops readLoop.
func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-c.sub.Events():
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.conn.Close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}

// readLoop discards inbound frames and returns when the peer goes away.
func (h *Hub) readLoop(c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		msgType, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType == websocket.TextMessage {
			log.Printf("[ws] client message: %s", msg)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return h.conns.Size()
}

// CloseAll disconnects every client. Used during shutdown.
func (h *Hub) CloseAll() {
	h.conns.Range(func(id uint64, c *client) bool {
		h.drop(id, c)
		return true
	})
}

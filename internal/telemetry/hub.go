// Package telemetry exposes the running race to the outside world: a
// WebSocket hub streaming world snapshots to spectators and an HTTP API for
// health checks and race control.
package telemetry

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"apexgp/sim/internal/logging"
)

const (
	// clientSendBuffer is how many frames a slow client may fall behind
	// before the hub drops the connection.
	clientSendBuffer = 64
	pingInterval     = 30 * time.Second
)

type spectator struct {
	conn *websocket.Conn
	send chan []byte
	id   string
}

// Hub fans telemetry frames out to connected WebSocket spectators.
type Hub struct {
	log      *logging.Logger
	upgrader websocket.Upgrader

	mu         sync.Mutex
	clients    map[*spectator]bool
	broadcasts uint64
	closed     bool
}

// NewHub constructs an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.L()
	}
	return &Hub{
		log: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*spectator]bool),
	}
}

// Broadcast queues a frame on every connected spectator. Clients whose send
// buffer is full are disconnected rather than allowed to stall the hub.
func (h *Hub) Broadcast(msg []byte) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.broadcasts++
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			close(c.send)
			delete(h.clients, c)
			h.log.Warn("spectator dropped: send buffer full", logging.String("client", c.id))
		}
	}
}

// ClientCount reports the number of connected spectators.
func (h *Hub) ClientCount() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcasts reports the cumulative number of frames fanned out.
func (h *Hub) Broadcasts() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.broadcasts
}

// ServeHTTP upgrades the request and registers the spectator.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", logging.Error(err))
		return
	}
	client := &spectator{conn: conn, send: make(chan []byte, clientSendBuffer), id: r.RemoteAddr}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[client] = true
	h.mu.Unlock()
	h.log.Debug("spectator connected", logging.String("client", client.id))

	//1.- The reader only watches for the peer going away; the feed is one-way.
	go func() {
		defer func() {
			h.drop(client)
			_ = client.conn.Close()
		}()
		for {
			if _, _, err := client.conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	//2.- The writer drains the send buffer and keeps the connection alive.
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer func() {
			ticker.Stop()
			_ = client.conn.Close()
		}()
		for {
			select {
			case msg, ok := <-client.send:
				if !ok {
					_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			case <-ticker.C:
				if err := client.conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
					return
				}
			}
		}
	}()
}

func (h *Hub) drop(client *spectator) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// Close disconnects every spectator and refuses further broadcasts.
func (h *Hub) Close() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

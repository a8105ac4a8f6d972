// Package websocket provides the admin live-feed WebSocket transport: a
// broadcast Hub that forwards bus events to connected admin UI clients
// and relays inbound screen-switch commands back onto the bus.
//
// Architecture:
//   - Hub: manages all WebSocket connections and broadcasts
//   - Client: represents one individual WebSocket connection
//
// Message flow:
//  1. Admin UI establishes a WebSocket connection
//  2. Client registers with the Hub
//  3. The adminserver feeds bus events into Hub.Broadcast
//  4. Hub fans broadcasts out to every connected client
//  5. Client writePump sends messages to the browser
//  6. Client readPump relays inbound frames to a CommandHandler
//
// Concurrency:
//   - Hub.Run() runs in its own goroutine and owns all connection state
//   - Each Client has its own readPump and writePump goroutine
//   - Thread-safe via sync.RWMutex over the client set
package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/vesselframe/vesselframe/internal/logger"
)

// CommandHandler is invoked with the raw bytes of every inbound client
// frame, letting the caller relay it onto the bus as a screen command.
type CommandHandler func(clientID string, message []byte)

// Hub maintains active WebSocket connections and implements message
// broadcasting to all of them.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	onCommand CommandHandler

	mu  sync.RWMutex
	log zerolog.Logger
}

// Client represents one individual WebSocket connection to the admin
// live-feed.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string
}

// NewHub creates a new WebSocket hub. onCommand, if non-nil, is called
// with every inbound client frame.
func NewHub(onCommand CommandHandler) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		onCommand:  onCommand,
		log:        logger.Component("websocket"),
	}
}

// Run starts the hub's main loop. Run never returns; callers run it in
// its own goroutine for the lifetime of the process.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Info().Str("client", client.id).Int("clients", count).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Info().Str("client", client.id).Int("clients", count).Msg("client unregistered")

		case message := <-h.broadcast:
			h.mu.RLock()
			stale := make([]*Client, 0)
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					stale = append(stale, client)
				}
			}
			h.mu.RUnlock()

			if len(stale) > 0 {
				h.mu.Lock()
				for _, client := range stale {
					if _, ok := h.clients[client]; ok {
						close(client.send)
						delete(h.clients, client)
					}
				}
				h.mu.Unlock()
			}
		}
	}
}

// Broadcast sends message to every connected client. Slow clients whose
// send buffer is full are dropped rather than allowed to block the hub.
func (h *Hub) Broadcast(message []byte) {
	h.broadcast <- message
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn().Str("client", c.id).Err(err).Msg("websocket read error")
			}
			break
		}

		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		if c.hub.onCommand != nil {
			c.hub.onCommand(c.id, message)
		}
	}
}

// ServeClient registers a new WebSocket connection with the hub and
// starts its read/write pumps.
func (h *Hub) ServeClient(conn *websocket.Conn, clientID string) {
	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
		id:   clientID,
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

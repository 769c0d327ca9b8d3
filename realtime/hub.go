package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hanyong5/kiview/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Kiosk displays connect from a different origin than the API.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans order change events out to websocket clients and to in-process
// subscribers (the queue tracker). Call Run in its own goroutine at startup.
type Hub struct {
	clients     map[*client]bool
	broadcast   chan ChangeEvent
	register    chan *client
	unregister  chan *client
	subscribers []chan ChangeEvent
	mu          sync.Mutex
	seq         atomic.Uint64
}

// client is a single connected websocket display.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

var hubInstance *Hub

// InitHub creates the hub and starts its event loop
func InitHub() *Hub {
	hubInstance = NewHub()
	go hubInstance.Run()
	return hubInstance
}

// GetHub returns the initialized hub instance
func GetHub() *Hub {
	return hubInstance
}

// SetHub sets the hub instance (primarily for testing)
func SetHub(h *Hub) {
	hubInstance = h
}

// NewHub creates a Hub. Call Run in a goroutine before publishing.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan ChangeEvent, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// Run starts the hub event loop. Must be run in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			log.Printf("realtime: client connected (total %d)", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				log.Printf("realtime: client disconnected (total %d)", len(h.clients))
			}

		case ev := <-h.broadcast:
			payload, err := json.Marshal(ev)
			if err != nil {
				log.Printf("realtime: marshal event: %v", err)
				continue
			}
			for c := range h.clients {
				select {
				case c.send <- payload:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Lock()
			for _, sub := range h.subscribers {
				select {
				case sub <- ev:
				default:
					// Subscriber is behind; it will catch up on its next poll.
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish stamps the event with the next sequence number and queues it for
// delivery to every websocket client and subscriber.
func (h *Hub) Publish(eventType string, order models.Order) {
	if h == nil {
		return
	}
	ev := ChangeEvent{
		Seq:   h.seq.Add(1),
		Table: "orders",
		Type:  eventType,
		Order: order,
	}
	select {
	case h.broadcast <- ev:
	default:
		log.Printf("realtime: broadcast buffer full, dropping event seq=%d", ev.Seq)
	}
}

// Subscribe returns a channel that receives every published event. Intended
// for in-process consumers; the channel is never closed.
func (h *Hub) Subscribe() <-chan ChangeEvent {
	ch := make(chan ChangeEvent, 256)
	h.mu.Lock()
	h.subscribers = append(h.subscribers, ch)
	h.mu.Unlock()
	return ch
}

// ServeWS upgrades an HTTP request to a websocket and registers the client
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("realtime: upgrade failed: %v", err)
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, 256)}
	h.register <- c
	go c.writePump()
	go c.readPump()
}

// readPump drains the connection so ping/pong handling works, and
// unregisters the client when it goes away.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("realtime: unexpected close: %v", err)
			}
			break
		}
	}
}

// writePump pumps events from the hub to the websocket connection.
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

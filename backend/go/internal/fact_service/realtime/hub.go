// Package realtime pushes fact notifications to WebSocket clients.
package realtime

import (
	"FactVerse/backend/go/internal/models"
	"FactVerse/backend/go/pkg/logger"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Event names exchanged with clients.
const (
	EventNewFact       = "new-fact-available"
	EventFactGenerated = "fact-generated"
	EventJoinRoom      = "join-room"
	EventJoinedRoom    = "joined-room"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 16
)

// Message is the JSON envelope of every frame.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type client struct {
	id    string
	conn  *websocket.Conn
	send  chan []byte
	rooms map[string]struct{}
}

// Hub tracks connected clients and fans out messages to them.
type Hub struct {
	upgrader websocket.Upgrader
	clients  map[string]*client
	mu       sync.RWMutex
	log      *logger.Logger
}

// NewHub creates a Hub. allowedOrigin restricts browser upgrades; an empty value accepts any origin.
func NewHub(allowedOrigin string, log *logger.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || origin == "" || origin == allowedOrigin
			},
		},
		clients: make(map[string]*client),
		log:     log.WithComponent("realtime"),
	}
}

// ServeWS upgrades the request and serves the connection until it closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(models.ErrorInfoFrom(err, "websocket_error")).Warn("WebSocket upgrade failed")
		return
	}
	c := &client{
		id:    uuid.NewString(),
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		rooms: make(map[string]struct{}),
	}
	h.add(c)
	h.log.WithPayload(map[string]interface{}{"client_id": c.id}).Info("User connected")

	go h.writePump(c)
	h.readPump(c)
}

// Broadcast sends an event to every connected client.
func (h *Hub) Broadcast(event string, data interface{}) {
	h.broadcast(event, data, "")
}

// BroadcastNewFact announces a freshly generated fact.
func (h *Hub) BroadcastNewFact(fact models.Fact) {
	h.Broadcast(EventNewFact, fact)
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
}

func (h *Hub) broadcast(event string, data interface{}, except string) {
	frame, err := encode(event, data)
	if err != nil {
		h.log.WithError(models.ErrorInfoFrom(err, "encode_error")).Error("Failed to encode broadcast")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		if id == except {
			continue
		}
		select {
		case c.send <- frame:
		default:
			// 发送缓冲区已满，丢弃这条消息。
			h.log.WithPayload(map[string]interface{}{"client_id": id, "event": event}).Warn("Client too slow, message dropped")
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; ok {
		close(c.send)
		delete(h.clients, c.id)
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
		h.log.WithPayload(map[string]interface{}{"client_id": c.id}).Info("User disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithError(models.ErrorInfoFrom(err, "websocket_error")).Warn("WebSocket read failed")
			}
			return
		}
		h.handle(c, msg)
	}
}

func (h *Hub) handle(c *client, msg Message) {
	switch msg.Event {
	case EventFactGenerated:
		h.broadcast(EventNewFact, msg.Data, c.id)
	case EventJoinRoom:
		var room string
		if err := json.Unmarshal(msg.Data, &room); err != nil || room == "" {
			return
		}
		h.mu.Lock()
		c.rooms[room] = struct{}{}
		h.mu.Unlock()
		h.log.WithPayload(map[string]interface{}{"client_id": c.id, "room": room}).Info("User joined room")
		if frame, err := encode(EventJoinedRoom, room); err == nil {
			h.sendTo(c, frame)
		}
	default:
		h.log.WithPayload(map[string]interface{}{"client_id": c.id, "event": msg.Event}).Debug("Ignoring unknown event")
	}
}

func (h *Hub) sendTo(c *client, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func encode(event string, data interface{}) ([]byte, error) {
	var raw json.RawMessage
	switch v := data.(type) {
	case json.RawMessage:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Message{Event: event, Data: raw})
}

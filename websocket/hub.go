package websocket

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/anjiri1684/private_messages/models"
	"github.com/anjiri1684/private_messages/services"
	"github.com/google/uuid"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

type Client struct {
	UserID uuid.UUID
	Conn   Conn
}

type Event struct {
	Type    string         `json:"type"`
	UserID  uuid.UUID      `json:"-"`
	Message models.Message `json:"message"`
}

const (
	EventMessageReceived = "message_received"
	EventReplyReceived   = "reply_received"
)

var ErrHubBusy = errors.New("websocket hub is busy")

// Hub keeps one live connection per user and pushes new message events to
// recipients that are online.
type Hub struct {
	clientsMu sync.RWMutex
	clients   map[uuid.UUID]Conn
	broadcast chan Event
}

var _ services.Notifier = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[uuid.UUID]Conn),
		broadcast: make(chan Event, 64),
	}
}

// Register makes c the live connection of its user, closing any older one.
func (h *Hub) Register(c *Client) {
	log.Printf("Client registered: %s", c.UserID)
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	if old, ok := h.clients[c.UserID]; ok && old != c.Conn {
		old.Close()
	}
	h.clients[c.UserID] = c.Conn
}

func (h *Hub) Unregister(c *Client) {
	log.Printf("Client unregistered: %s", c.UserID)
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	if conn, ok := h.clients[c.UserID]; ok && conn == c.Conn {
		delete(h.clients, c.UserID)
	}
}

func (h *Hub) Online(userID uuid.UUID) bool {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// Notify queues an event for the recipient. It never blocks the caller.
func (h *Hub) Notify(_ context.Context, n services.Notification) error {
	ev := Event{Type: EventMessageReceived, UserID: n.Recipient.ID, Message: n.Message}
	if n.IsReply {
		ev.Type = EventReplyReceived
	}
	select {
	case h.broadcast <- ev:
		return nil
	default:
		return ErrHubBusy
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case ev := <-h.broadcast:
			h.deliver(ev)
		}
	}
}

func (h *Hub) deliver(ev Event) {
	h.clientsMu.RLock()
	conn, ok := h.clients[ev.UserID]
	h.clientsMu.RUnlock()
	if !ok {
		return
	}
	if err := conn.WriteJSON(ev); err != nil {
		log.Printf("Error sending message to client %s: %v", ev.UserID, err)
		conn.Close()
		h.clientsMu.Lock()
		if h.clients[ev.UserID] == conn {
			delete(h.clients, ev.UserID)
		}
		h.clientsMu.Unlock()
	}
}

func (h *Hub) closeAll() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for id, conn := range h.clients {
		conn.Close()
		delete(h.clients, id)
	}
}

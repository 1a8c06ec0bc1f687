// Package gallery pushes newly issued receipts to connected browsers over WebSocket.
package gallery

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/photo-receipts/internal/entity"
)

// Message types
const (
	MsgReceiptCreated = "receipt.created"
	MsgHello          = "gallery.hello"
)

// Message is what connected clients receive.
type Message struct {
	Type      string         `json:"type"`
	GroupID   string         `json:"groupId,omitempty"`
	ViewURL   string         `json:"viewUrl,omitempty"`
	Photos    []entity.Photo `json:"photos,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Hub maintains active clients and broadcasts messages to all of them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	logger     *slog.Logger
}

// NewHub creates a hub. Call Run to start delivering messages.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run processes registrations and broadcasts until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("gallery.client.joined", "clients", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("gallery.client.left", "clients", n)

		case msg := <-h.broadcast:
			payload, err := json.Marshal(msg)
			if err != nil {
				h.logger.Error("gallery.marshal_error", "type", msg.Type, "error", err)
				continue
			}
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- payload:
				default:
					// slow consumer
					close(c.send)
					delete(h.clients, c)
					h.logger.Warn("gallery.client.dropped", "reason", "send buffer full")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues msg for every connected client. It never blocks; a full backlog drops msg with a warning.
func (h *Hub) Publish(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("gallery.publish.dropped", "type", msg.Type, "group_id", msg.GroupID)
	}
}

// ReceiptCreated publishes a receipt.created event for group.
func (h *Hub) ReceiptCreated(g entity.Group, viewURL string, at time.Time) {
	h.Publish(Message{
		Type:      MsgReceiptCreated,
		GroupID:   g.ID,
		ViewURL:   viewURL,
		Photos:    g.Photos,
		Timestamp: at.UTC(),
	})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

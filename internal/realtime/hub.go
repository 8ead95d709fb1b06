package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/thishamdi/digital-store-api/internal/logger"
)

// Client is one connected admin dashboard.
type Client struct {
	ID     string
	UserID string
	Conn   *WebSocketConn
	Send   chan []byte
}

// Event is the frame pushed to every client.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub fans order events out to the connected admin clients. The client map
// is written only by Run.
type Hub struct {
	clients    map[string]*Client
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// RegisterClient and UnregisterClient return immediately once Run has
// stopped.
func (h *Hub) RegisterClient(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues an event for broadcast. It never blocks the caller: when
// the queue is full the event is dropped and logged.
func (h *Hub) Publish(ctx context.Context, routingKey string, data any) error {
	b, err := json.Marshal(Event{Type: routingKey, Data: data})
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- b:
	default:
		logger.WithCtx(ctx).Warn("realtime: broadcast queue full, event dropped", "type", routingKey)
	}
	return nil
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.Send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			logger.L.Debug("realtime: client registered", "client_id", client.ID, "user_id", client.UserID)

		case client := <-h.unregister:
			h.mu.Lock()
			if old, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(old.Send)
				logger.L.Debug("realtime: client unregistered", "client_id", client.ID)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for id, client := range h.clients {
				select {
				case client.Send <- message:
				default:
					// slow reader, drop it
					close(client.Send)
					delete(h.clients, id)
				}
			}
			h.mu.Unlock()
		}
	}
}

package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"hidden_mines/internal/domain"
	"hidden_mines/internal/logger"
)

// Hub fans protocol events out to connected clients. It is a
// service.Publisher.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	log     *slog.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		log:     logger.With("component", "ws_hub"),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("client registered", "actor", c.Actor.Hex(), "clients", n)
}

// Unregister removes c and closes its send queue. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.Send)
	}
	h.mu.Unlock()
}

// Publish never blocks: a client whose queue is full is disconnected.
func (h *Hub) Publish(ctx context.Context, ev domain.Event) {
	msg, err := json.Marshal(Envelope{Type: MsgEvent, Data: ev})
	if err != nil {
		logger.WithContext(ctx).Error("marshal event", "error", err, "event_id", ev.ID)
		return
	}

	var slow []*Client
	h.mu.RLock()
	for c := range h.clients {
		if !c.follows(ev) {
			continue
		}
		select {
		case c.Send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("dropping slow client", "actor", c.Actor.Hex())
		h.Unregister(c)
	}
}

// send queues msg for one registered client.
func (h *Hub) send(c *Client, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.Send <- msg:
	default:
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

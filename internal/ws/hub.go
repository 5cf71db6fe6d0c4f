// Package ws broadcasts change notifications and fired alerts to connected
// dashboard clients. The hub is registered as an ordinary observer on each
// source adapter; a slow client is dropped, never allowed to stall fan-out.
package ws

import (
	"context"
	"encoding/json"
	"sync"

	"vigil/internal/logger"
	"vigil/internal/metrics"
)

// Hub maintains the set of active clients and broadcasts messages.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	// done is closed when Run returns; pending unregisters select against it
	// so client goroutines never block on a stopped hub.
	done chan struct{}
	mu   sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run owns the client set until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	log := logger.WithComponent("ws_hub")

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			metrics.WebsocketClients.Set(0)
			close(h.done)
			log.Info().Msg("hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WebsocketClients.Set(float64(n))
			log.Info().Str("client_id", client.id).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WebsocketClients.Set(float64(n))
			log.Info().Str("client_id", client.id).Msg("client unregistered")

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client send buffer full; drop the client rather than block.
					close(client.send)
					delete(h.clients, client)
					log.Warn().Str("client_id", client.id).Msg("client send buffer full, dropped")
				}
			}
			metrics.WebsocketClients.Set(float64(len(h.clients)))
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a typed payload to all connected clients.
func (h *Hub) Broadcast(msgType string, payload any) {
	message, err := json.Marshal(map[string]any{"type": msgType, "payload": payload})
	if err != nil {
		log := logger.WithComponent("ws_hub")
		log.Error().Err(err).Str("type", msgType).Msg("broadcast marshal failed")
		return
	}
	select {
	case h.broadcast <- message:
	default:
		// Broadcast queue full; the next notification supersedes this one anyway.
	}
}

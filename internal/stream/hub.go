// Package stream pushes the alert log to UI clients over websockets.
package stream

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"flocktwin/internal/alerts"
	"flocktwin/internal/logger"
	"flocktwin/internal/metrics"
	"flocktwin/internal/models"
)

// Message is the frame sent to clients
type Message struct {
	Type     string         `json:"type"`
	Revision uint64         `json:"revision"`
	Payload  []models.Alert `json:"payload"`
	Unread   int            `json:"unread"`
}

// Source is the part of the alert engine the hub follows
type Source interface {
	Subscribe(h alerts.Handler) *alerts.Subscription
	Snapshot() alerts.Snapshot
}

// Hub maintains the set of active clients and broadcasts the alert log.
//
// Snapshots are coalesced: only the newest revision is kept, so a slow
// broadcast never blocks the engine and stale snapshots are never sent.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	log        zerolog.Logger

	mu       sync.Mutex
	latest   []byte
	revision uint64
	hasData  bool
	pending  chan struct{}

	sub *alerts.Subscription
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		pending:    make(chan struct{}, 1),
		log:        logger.WithComponent("stream_hub"),
	}
}

// Attach subscribes the hub to src and seeds it with the current snapshot
func (h *Hub) Attach(src Source) {
	h.Publish(src.Snapshot())
	h.sub = src.Subscribe(h.Publish)
}

// Publish records snap as the latest state if it is newer than what the hub has.
// It never blocks.
func (h *Hub) Publish(snap alerts.Snapshot) {
	data, err := json.Marshal(Message{
		Type:     "alerts",
		Revision: snap.Revision,
		Payload:  snap.Alerts,
		Unread:   snap.Unread,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("failed to marshal alert snapshot")
		return
	}

	h.mu.Lock()
	if h.hasData && snap.Revision <= h.revision {
		h.mu.Unlock()
		return
	}
	h.latest = data
	h.revision = snap.Revision
	h.hasData = true
	h.mu.Unlock()

	select {
	case h.pending <- struct{}{}:
	default:
	}
}

func (h *Hub) current() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest
}

// Run serves registrations and broadcasts until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		if h.sub != nil {
			h.sub.Unsubscribe()
		}
		close(h.done)
		for client := range h.clients {
			h.remove(client)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client] = true
			metrics.StreamClients.Set(float64(len(h.clients)))
			h.log.Debug().Str("remote_addr", client.remoteAddr()).Msg("websocket client registered")
			if data := h.current(); data != nil {
				h.send(client, data)
			}

		case client := <-h.unregister:
			if h.clients[client] {
				h.remove(client)
				h.log.Debug().Str("remote_addr", client.remoteAddr()).Msg("websocket client unregistered")
			}

		case <-h.pending:
			data := h.current()
			for client := range h.clients {
				h.send(client, data)
			}
		}
	}
}

// send queues data for client, dropping the client if its buffer is full
func (h *Hub) send(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		h.log.Warn().Str("remote_addr", client.remoteAddr()).Msg("websocket client send buffer full, removing")
		metrics.StreamDroppedTotal.Inc()
		h.remove(client)
	}
}

func (h *Hub) remove(client *Client) {
	delete(h.clients, client)
	close(client.Send)
	metrics.StreamClients.Set(float64(len(h.clients)))
}

// Register adds a client. It reports false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client; safe to call after the hub has stopped
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

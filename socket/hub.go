package socket

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	"rebase/internal/metrics"
	"rebase/pkg/logger"
)

// ErrHubClosed is returned by Send once Run has returned.
var ErrHubClosed = errors.New("websocket hub is closed")

// WSMessage is the frame pushed to every subscriber.
type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Hub keeps the set of connected clients and fans messages out to all of them.
// The client set is only touched from Run.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	clients   map[*Client]bool
	broadcast chan []byte
	done      chan struct{}
	count     atomic.Int64
}

func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte),
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop. It returns when ctx is cancelled, closing every
// client's send channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			// Closing each Send channel makes its writePump send a close frame and exit.
			for client := range h.clients {
				h.remove(client)
			}
			logger.Sugar.Info("Websocket hub stopped")
			return

		case client := <-h.Register:
			// A new connection from ServeWs joins the broadcast set.
			h.clients[client] = true
			h.setCount()
			logger.Sugar.Infof("Websocket client %s connected (%d total)", client.ID, len(h.clients))

		case client := <-h.Unregister:
			// readPump reports a disconnect. Clients already dropped for lagging are ignored.
			if h.clients[client] {
				h.remove(client)
				logger.Sugar.Infof("Websocket client %s disconnected (%d total)", client.ID, len(h.clients))
			}

		case payload := <-h.broadcast:
			// Fan the frame out without blocking on any single client.
			for client := range h.clients {
				select {
				case client.Send <- payload:
				default:
					// A full buffer means the client is lagging; drop it rather than block the hub.
					logger.Sugar.Warnf("Client %s's send buffer is full. Unregistering.", client.ID)
					metrics.WebsocketDropped.Inc()
					h.remove(client)
				}
			}
		}
	}
}

// Send queues {type: event, data: data} for every connected client. It
// returns once the hub has accepted the message, not when clients received it.
func (h *Hub) Send(ctx context.Context, event string, data json.RawMessage) error {
	payload, err := json.Marshal(WSMessage{Type: event, Data: data})
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- payload:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

func (h *Hub) register(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) remove(client *Client) {
	delete(h.clients, client)
	close(client.Send)
	h.setCount()
}

func (h *Hub) setCount() {
	h.count.Store(int64(len(h.clients)))
	metrics.WebsocketClients.Set(float64(len(h.clients)))
}

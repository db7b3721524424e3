package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

// AllSales is the room of clients that follow every order.
const AllSales int64 = 0

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// saleEvent routes an event to the room of one sale
type saleEvent struct {
	SaleID int64
	Event  Event
}

// Hub maintains the set of active clients and broadcasts messages to them.
// A single goroutine delivers every event, so events for one sale reach a
// client in the order they were broadcast.
type Hub struct {
	// Registered clients by sale ID (AllSales for the floor-wide feed)
	rooms map[int64]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	broadcast chan *saleEvent

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *saleEvent, 256),
	}
}

// Run starts the hub's main loop and returns when ctx is done, closing
// every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
				delete(h.rooms, id)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.saleID] == nil {
				h.rooms[client.saleID] = make(map[*Client]bool)
			}
			h.rooms[client.saleID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			message, err := json.Marshal(event.Event)
			if err != nil {
				log.Error().Err(err).Int64("sale_id", event.SaleID).Msg("ws: marshal event")
				continue
			}
			h.mu.Lock()
			h.deliver(event.SaleID, message)
			if event.SaleID != AllSales {
				h.deliver(AllSales, message)
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) deliver(room int64, message []byte) {
	for client := range h.rooms[room] {
		select {
		case client.send <- message:
		default:
			// Client's send buffer is full, close and unregister
			h.remove(client)
		}
	}
}

// remove must be called with mu held.
func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.saleID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.saleID)
	}
}

// BroadcastSale queues an event for the sale's room and the floor-wide
// room. It never blocks; when the queue is full the event is dropped
// and pollers still see it through the change feed.
func (h *Hub) BroadcastSale(saleID int64, event Event) bool {
	select {
	case h.broadcast <- &saleEvent{SaleID: saleID, Event: event}:
		return true
	default:
		log.Warn().Int64("sale_id", saleID).Str("type", event.Type).Msg("ws: broadcast queue full, event dropped")
		return false
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.rooms {
		n += len(clients)
	}
	return n
}

package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-backend/internal/logger"
)

// Hub fans realtime messages out to connected clients. A client always
// belongs to one user; it may additionally join auction rooms to follow
// live bidding.
type Hub struct {
	mu         sync.RWMutex
	users      map[uuid.UUID]map[*Client]struct{}
	rooms      map[uuid.UUID]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
}

type message struct {
	userID  uuid.UUID
	roomID  *uuid.UUID
	payload []byte
}

func NewHub() *Hub {
	return &Hub{
		users:      make(map[uuid.UUID]map[*Client]struct{}),
		rooms:      make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 64),
	}
}

// Run is the hub's main loop; it exits when the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			if msg.roomID != nil {
				h.sendToRoom(*msg.roomID, msg.payload)
			} else {
				h.sendToUser(msg.userID, msg.payload)
			}
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// SubscribeAuction puts the client into an auction's room.
func (h *Hub) SubscribeAuction(client *Client, auctionID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[auctionID]; !ok {
		h.rooms[auctionID] = make(map[*Client]struct{})
	}
	h.rooms[auctionID][client] = struct{}{}
	client.rooms[auctionID] = struct{}{}
}

// UnsubscribeAuction removes the client from an auction's room.
func (h *Hub) UnsubscribeAuction(client *Client, auctionID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropFromRoom(client, auctionID)
}

// SendToUser delivers an event to every connection of one user. Nothing
// happens when the user is offline; persistence is the notification
// service's job.
func (h *Hub) SendToUser(userID uuid.UUID, event string, data interface{}) {
	raw, ok := h.encode(event, data)
	if !ok {
		return
	}
	h.broadcast <- message{userID: userID, payload: raw}
}

// BroadcastToAuction delivers an event to everyone watching an auction.
func (h *Hub) BroadcastToAuction(auctionID uuid.UUID, event string, data interface{}) {
	raw, ok := h.encode(event, data)
	if !ok {
		return
	}
	id := auctionID
	h.broadcast <- message{roomID: &id, payload: raw}
}

// encode wraps the payload in the wire envelope: "type" names the event,
// "data" carries the body.
func (h *Hub) encode(event string, data interface{}) ([]byte, bool) {
	raw, err := json.Marshal(map[string]interface{}{
		"type": event,
		"data": data,
	})
	if err != nil {
		logger.Log.WithField("event", event).Errorf("ws: marshal failed: %v", err)
		return nil, false
	}
	return raw, true
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.users[client.userID]; !ok {
		h.users[client.userID] = make(map[*Client]struct{})
	}
	h.users[client.userID][client] = struct{}{}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.users[client.userID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.users, client.userID)
		}
	}
	for roomID := range client.rooms {
		h.dropFromRoom(client, roomID)
	}
}

func (h *Hub) dropFromRoom(client *Client, roomID uuid.UUID) {
	if room, ok := h.rooms[roomID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, roomID)
		}
	}
	delete(client.rooms, roomID)
}

func (h *Hub) sendToUser(userID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.users[userID] {
		client.enqueue(payload)
	}
}

func (h *Hub) sendToRoom(roomID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[roomID] {
		client.enqueue(payload)
	}
}

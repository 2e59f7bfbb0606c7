package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ignatzorin/marketplace-backend/internal/goroutine"
	"github.com/ignatzorin/marketplace-backend/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one websocket connection. The only inbound messages it accepts
// are auction room subscription commands; everything else flows server to
// client.
type Client struct {
	conn   *websocket.Conn
	hub    *Hub
	userID uuid.UUID
	send   chan []byte
	rooms  map[uuid.UUID]struct{}
}

// clientCommand is the inbound message shape.
type clientCommand struct {
	Action    string    `json:"action"`
	AuctionID uuid.UUID `json:"auction_id"`
}

func NewClient(conn *websocket.Conn, hub *Hub, userID uuid.UUID) *Client {
	return &Client{
		conn:   conn,
		hub:    hub,
		userID: userID,
		send:   make(chan []byte, 16),
		rooms:  make(map[uuid.UUID]struct{}),
	}
}

// Run pumps messages until the connection drops or the context ends.
func (c *Client) Run(ctx context.Context) {
	goroutine.SafeGo(func() {
		c.writePump()
	})
	c.readPump(ctx)
}

// Close unregisters the client and drops the connection.
func (c *Client) Close() {
	c.hub.Unregister(c)
	c.conn.Close()
}

// enqueue hands a payload to the write pump; a client that cannot keep up
// is disconnected rather than allowed to block the hub.
func (c *Client) enqueue(payload []byte) {
	select {
	case c.send <- payload:
	default:
		goroutine.SafeGo(func() {
			c.Close()
		})
	}
}

func (c *Client) readPump(ctx context.Context) {
	defer c.Close()

	c.conn.SetReadLimit(4 * 1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, raw, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logger.Log.WithField("user_id", c.userID).Debugf("ws: read failed: %v", err)
				}
				return
			}
			c.handleCommand(raw)
		}
	}
}

func (c *Client) handleCommand(raw []byte) {
	var cmd clientCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return
	}
	switch cmd.Action {
	case "subscribe":
		if cmd.AuctionID != uuid.Nil {
			c.hub.SubscribeAuction(c, cmd.AuctionID)
		}
	case "unsubscribe":
		if cmd.AuctionID != uuid.Nil {
			c.hub.UnsubscribeAuction(c, cmd.AuctionID)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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

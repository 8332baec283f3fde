package hub

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	sendBuffer = 256
)

// Backend handles frames the client sends upstream.  The chat service
// implements it; the indirection keeps hub free of storage imports.
type Backend interface {
	Send(ctx context.Context, roomID, senderID uint64, body string) error
	MarkRead(ctx context.Context, roomID, userID uint64) error
}

// inboundFrame is what clients may send over the socket.
type inboundFrame struct {
	Type string `json:"type"` // "chat" or "read"
	Body string `json:"body,omitempty"`
}

// Client is the middleman between one WebSocket connection and the hub.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	backend Backend
	roomID  uint64
	userID  uint64
	send    chan []byte
}

// Serve registers the connection and starts its pumps.  It returns
// immediately; the pumps own the connection's lifetime.
func Serve(h *Hub, conn *websocket.Conn, backend Backend, roomID, userID uint64) {
	c := &Client{
		hub:     h,
		conn:    conn,
		backend: backend,
		roomID:  roomID,
		userID:  userID,
		send:    make(chan []byte, sendBuffer),
	}
	h.register(c)
	go c.writePump()
	go c.readPump()
}

// readPump pumps inbound frames from the connection to the backend.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("hub: read user %d room %d: %v", c.userID, c.roomID, err)
			}
			return
		}
		c.handleFrame(raw)
	}
}

func (c *Client) handleFrame(raw []byte) {
	var f inboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		log.Printf("hub: bad frame from user %d: %v", c.userID, err)
		return
	}
	ctx := context.Background()
	switch f.Type {
	case "chat":
		if err := c.backend.Send(ctx, c.roomID, c.userID, f.Body); err != nil {
			c.sendError(err)
		}
	case "read":
		if err := c.backend.MarkRead(ctx, c.roomID, c.userID); err != nil {
			c.sendError(err)
		}
	default:
		log.Printf("hub: unknown frame type %q from user %d", f.Type, c.userID)
	}
}

// sendError reports a rejected frame back to its sender only.
func (c *Client) sendError(err error) {
	data, merr := json.Marshal(envelope{Event: "error", Data: err.Error()})
	if merr != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// writePump pumps queued events to the connection and keeps it alive
// with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

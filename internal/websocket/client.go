package websocket

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"onbrand-chat-be/internal/chat"
	"onbrand-chat-be/internal/dto"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Large enough for a send frame carrying inline attachment previews.
	maxMessageSize = 4 << 20
)

// Client is a middleman between the websocket connection and the chat
// session that owns the conversation state for this connection.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	// UserID associated with this connection
	UserID uuid.UUID

	// Buffered channel of outbound messages.
	Send chan []byte

	session       *chat.Session
	cancelSession context.CancelFunc
}

// Push implements chat.Sink. Frames the session emits are serialized here
// and queued for the write pump; a client that cannot keep up is dropped
// rather than allowed to stall the session loop.
func (c *Client) Push(frame dto.ServerFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("frame marshal error for user %s: %v", c.UserID, err)
		return
	}
	select {
	case c.Send <- data:
	default:
		log.Printf("send buffer full for user %s, closing connection", c.UserID)
		c.Conn.Close()
	}
}

// readPump parses inbound frames and forwards them to the session loop.
func (c *Client) readPump() {
	defer func() {
		c.cancelSession()
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("readPump error for user %s: %v", c.UserID, err)
			}
			break
		}

		var frame dto.ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.Push(dto.ServerFrame{Type: "error", Error: &dto.ErrorPayload{
				Code:    "bad_frame",
				Message: "malformed frame",
			}})
			continue
		}
		c.session.Inbox() <- frame
	}
}

// writePump pumps serialized frames to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package websocket

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs handles one websocket chat connection. It builds the session for
// this user, wires the connection up as the session's sink, and blocks until
// the peer disconnects.
func ServeWs(hub *Hub, c *websocket.Conn, userID uuid.UUID, userName, userEmail string) {
	client := &Client{Hub: hub, Conn: c, UserID: userID, Send: make(chan []byte, 256)}
	client.session = hub.factory(userID, userName, userEmail, client)

	ctx, cancel := context.WithCancel(context.Background())
	client.cancelSession = cancel

	client.Hub.register <- client

	go client.session.Run(ctx)
	go client.writePump()
	client.readPump() // Run readPump in current goroutine (handler)
}

package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs registers the connection and blocks until it closes.
func ServeWs(hub *Hub, conn *websocket.Conn, owner string, onFrame FrameHandler) {
	client := &Client{
		Hub:     hub,
		Conn:    conn,
		Owner:   owner,
		Send:    make(chan []byte, 64),
		onFrame: onFrame,
	}
	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	client.readPump()
}

package web

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/thelolagemann/gbcore/pkg/emulator"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512
)

// Client is one connected browser.
type Client struct {
	hub  *Server
	conn *websocket.Conn
	Send chan []byte

	ID         uint8
	RemoteAddr string
}

// ReadPump forwards input and commands from the client until the
// connection closes.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return // connection closed
		}

		switch {
		case len(message) == 1:
			c.hub.ctrl.SetInput(message[0])
		case len(message) >= 2 && message[0] == CommandPrefix:
			p := emulator.CommandPacket{Command: emulator.Command(message[1]), Data: message[2:]}
			r := c.hub.ctrl.Execute(ctx, p)
			c.queue(encodeResponse(r))
			if r.Error == nil && (p.Command == emulator.CommandPause || p.Command == emulator.CommandResume) {
				c.hub.broadcastStatus()
			}
		default:
			c.hub.log.Debugf("web: client %d sent a malformed message of %d bytes", c.ID, len(message))
		}
	}
}

// WritePump sends queued messages and keeps the connection alive.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			// the hub closed the channel
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
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

// queue hands a message to the write pump through the hub, which owns
// the Send channel.
func (c *Client) queue(message []byte) {
	select {
	case c.hub.direct <- directMessage{c: c, data: message}:
	case <-c.hub.done:
	}
}

func encodeResponse(r emulator.ResponsePacket) []byte {
	msg := []byte{CommandResponse, uint8(r.Command), 1}
	if r.Error != nil {
		msg[2] = 0
		return append(msg, r.Error.Error()...)
	}
	return append(msg, r.Data...)
}

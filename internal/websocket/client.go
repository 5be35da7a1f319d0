package websocket

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"banter/internal/config"
)

// Client is one live socket. Writes go through a buffered channel consumed by
// WritePump so broadcast paths never block on a slow peer.
type Client struct {
	ID   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	cfg  config.WebSocketConfig

	done chan struct{}
}

// NewClient registers a socket with the hub and returns it. Callers must run
// ReadPump and WritePump on their own goroutines.
func NewClient(id string, hub *Hub, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	client := &Client{
		ID:   id,
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
		cfg:  cfg,
		done: make(chan struct{}),
	}
	hub.register(client)
	return client
}

func (c *Client) writeWait() time.Duration {
	return time.Duration(c.cfg.WriteWaitSeconds) * time.Second
}

func (c *Client) pongWait() time.Duration {
	return time.Duration(c.cfg.PongWaitSeconds) * time.Second
}

func (c *Client) pingPeriod() time.Duration {
	return time.Duration(c.cfg.PingPeriodSeconds) * time.Second
}

// enqueue queues an outbound payload. A full buffer means the peer stopped
// draining; the payload is dropped and reported.
func (c *Client) enqueue(payload []byte) error {
	select {
	case c.send <- payload:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

// ReadPump reads inbound frames until the socket dies, passing each payload
// to handle. onClose runs exactly once when the pump exits.
func (c *Client) ReadPump(handle func(payload []byte), onClose func()) {
	defer func() {
		c.hub.unregister(c.ID)
		close(c.done)
		c.conn.Close()
		onClose()
	}()

	c.conn.SetReadLimit(int64(c.cfg.MaxMessageSizeBytes))
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Printf("read %s: %v", c.ID, err)
			}
			return
		}
		handle(payload)
	}
}

// WritePump drains the send channel onto the socket and keeps the connection
// alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.pingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait()))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait()))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

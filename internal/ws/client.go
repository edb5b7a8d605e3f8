package ws

import (
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// Client adapts one websocket viewer connection to the Subscriber interface.
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{conn: conn, logger: logger}
}

// Send pushes one live payload. A slow or gone viewer fails the deadline
// and is dropped by the hub rather than backing up the broadcast loop.
func (c *Client) Send(payload []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		if c.logger != nil {
			c.logger.Warn("live feed write failed", "error", err)
		}
		_ = c.conn.Close()
		return err
	}
	return nil
}

// Close terminates the connection.
func (c *Client) Close() {
	_ = c.conn.Close()
}

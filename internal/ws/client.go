package ws

import (
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
)

// writeWait bounds how long one console payload may take to reach a viewer.
const writeWait = 10 * time.Second

// Client adapts a dashboard websocket connection to the Subscriber interface.
type Client struct {
	conn *websocket.Conn
	log  *slog.Logger
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{conn: conn, log: logger}
}

// Send writes one console log payload as a text frame. On failure the
// connection is closed so the hub drops this viewer.
func (c *Client) Send(payload []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.log.Warn("console stream write failed", "error", err)
		_ = c.conn.Close()
		return err
	}
	return nil
}

// Close terminates the underlying connection.
func (c *Client) Close() {
	_ = c.conn.Close()
}

package ws

import (
	"fmt"
	"io"
	"net/http"
	"sync"

	"log/slog"
)

// SSEClient streams live payloads as Server-Sent Events for viewers that
// cannot hold a websocket open. It satisfies the same Subscriber interface
// as the websocket client, so the hub treats both alike.
type SSEClient struct {
	mu      sync.Mutex
	writer  io.Writer
	flusher http.Flusher
	logger  *slog.Logger
	closed  bool
}

// NewSSEClient wraps a streaming HTTP response.
func NewSSEClient(writer io.Writer, flusher http.Flusher, logger *slog.Logger) *SSEClient {
	return &SSEClient{writer: writer, flusher: flusher, logger: logger}
}

// Send emits one data frame.
func (c *SSEClient) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return io.EOF
	}
	if _, err := fmt.Fprintf(c.writer, "data: %s\n\n", payload); err != nil {
		c.closed = true
		if c.logger != nil {
			c.logger.Warn("sse write failed", "error", err)
		}
		return err
	}
	c.flusher.Flush()
	return nil
}

// Heartbeat emits a comment frame so proxies keep the idle stream open.
func (c *SSEClient) Heartbeat() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return io.EOF
	}
	if _, err := fmt.Fprint(c.writer, ": ping\n\n"); err != nil {
		c.closed = true
		return err
	}
	c.flusher.Flush()
	return nil
}

// Close marks the stream as closed; subsequent sends fail fast.
func (c *SSEClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

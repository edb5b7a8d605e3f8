// Package feed merges the historical range fetch with the live broadcast
// stream into a single chart-ready series for dashboard clients.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/craftdeck/api/pkg/chart"
)

const maxErrorBodySize = 4096

// Client provides typed access to the dashboard API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// NewClient constructs a Client pointing at the provided API base URL.
func NewClient(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:4000"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		dialer:     websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

// wireSample mirrors the read API's sample JSON. 64-bit counters arrive as
// decimal strings.
type wireSample struct {
	ServerName    string    `json:"server_name"`
	RecordedAt    time.Time `json:"recorded_at"`
	Status        string    `json:"status"`
	TPS           float64   `json:"tps"`
	TickMillis    float64   `json:"tick_millis"`
	PlayersOnline int       `json:"players_online"`
	MemoryFree    uint64    `json:"memory_free,string"`
	MemoryTotal   uint64    `json:"memory_total,string"`
	CPUPercent    float64   `json:"cpu_percent"`
	BytesSent     uint64    `json:"bytes_sent,string"`
	BytesReceived uint64    `json:"bytes_received,string"`
	StartedAtMS   int64     `json:"started_at_ms"`
}

func (w wireSample) toChart() chart.Sample {
	var used uint64
	if w.MemoryTotal > w.MemoryFree {
		used = w.MemoryTotal - w.MemoryFree
	}
	return chart.Sample{
		Timestamp:     w.RecordedAt,
		Status:        w.Status,
		TPS:           w.TPS,
		TickMillis:    w.TickMillis,
		CPUPercent:    w.CPUPercent,
		PlayersOnline: w.PlayersOnline,
		MemoryUsed:    used,
		BytesSent:     w.BytesSent,
		BytesReceived: w.BytesReceived,
		StartedAtMS:   w.StartedAtMS,
	}
}

// wireLive mirrors the live feed payload; timestamps are epoch millis.
type wireLive struct {
	ServerName    string  `json:"server_name"`
	Timestamp     int64   `json:"timestamp"`
	Status        string  `json:"status"`
	TPS           float64 `json:"tps"`
	TickMillis    float64 `json:"tick_millis"`
	PlayersOnline int     `json:"players_online"`
	MemoryFree    uint64  `json:"memory_free,string"`
	MemoryTotal   uint64  `json:"memory_total,string"`
	CPUPercent    float64 `json:"cpu_percent"`
	BytesSent     uint64  `json:"bytes_sent,string"`
	BytesReceived uint64  `json:"bytes_received,string"`
	StartedAtMS   int64   `json:"started_at_ms"`
}

func (w wireLive) toChart() chart.Sample {
	var used uint64
	if w.MemoryTotal > w.MemoryFree {
		used = w.MemoryTotal - w.MemoryFree
	}
	return chart.Sample{
		Timestamp:     time.UnixMilli(w.Timestamp).UTC(),
		Status:        w.Status,
		TPS:           w.TPS,
		TickMillis:    w.TickMillis,
		CPUPercent:    w.CPUPercent,
		PlayersOnline: w.PlayersOnline,
		MemoryUsed:    used,
		BytesSent:     w.BytesSent,
		BytesReceived: w.BytesReceived,
		StartedAtMS:   w.StartedAtMS,
	}
}

// Samples fetches the historical window for a resolution.
func (c *Client) Samples(ctx context.Context, res chart.Resolution) ([]chart.Sample, error) {
	endpoint := fmt.Sprintf("%s/samples?window=%s", c.baseURL, url.QueryEscape(string(res)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build samples request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch samples: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, errorForResponse(resp)
	}
	var payload struct {
		Window  string       `json:"window"`
		Samples []wireSample `json:"samples"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode samples: %w", err)
	}
	samples := make([]chart.Sample, len(payload.Samples))
	for i, w := range payload.Samples {
		samples[i] = w.toChart()
	}
	return samples, nil
}

// Subscription is a scoped handle on the live stream: acquired once per
// viewing session and released on Close or context cancellation, independent
// of which resolution is displayed.
type Subscription struct {
	conn *websocket.Conn
	done chan struct{}
	once sync.Once
}

// Subscribe dials the live websocket for a server and delivers each decoded
// sample to apply until the context ends or the connection drops.
func (c *Client) Subscribe(ctx context.Context, server string, apply func(chart.Sample)) (*Subscription, error) {
	wsBase := "ws" + strings.TrimPrefix(c.baseURL, "http")
	endpoint := fmt.Sprintf("%s/ws/live?server=%s", wsBase, url.QueryEscape(server))
	conn, resp, err := c.dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial live feed: %w", err)
	}
	sub := &Subscription{conn: conn, done: make(chan struct{})}

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()
	go func() {
		defer sub.Close()
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg wireLive
			if err := json.Unmarshal(payload, &msg); err != nil {
				continue
			}
			apply(msg.toChart())
		}
	}()
	return sub, nil
}

// Close tears the subscription down. Safe to call multiple times.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// Done is closed once the subscription has ended.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func errorForResponse(resp *http.Response) error {
	limited := io.LimitReader(resp.Body, maxErrorBodySize)
	buf, _ := io.ReadAll(limited)
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(buf, &payload)
	return APIError{Status: resp.StatusCode, Message: strings.TrimSpace(payload.Error)}
}

package live

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/craftdeck/api/internal/domain"
	"github.com/craftdeck/api/internal/ws"
)

type chanSubscriber struct {
	payloads chan []byte
}

func (c *chanSubscriber) Send(payload []byte) error {
	c.payloads <- payload
	return nil
}

func (c *chanSubscriber) Close() {}

func receive(t *testing.T, sub *chanSubscriber) []byte {
	t.Helper()
	select {
	case payload := <-sub.payloads:
		return payload
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for broadcast")
		return nil
	}
}

func TestPublishReachesHubSubscribers(t *testing.T) {
	hub := ws.NewHub()
	b := New(hub, nil, "craftdeck:live:", nil)
	sub := &chanSubscriber{payloads: make(chan []byte, 1)}
	hub.Register("survival", sub)

	b.Publish(domain.LiveSample{
		ServerName:    "survival",
		Timestamp:     1_700_000_000_000,
		Status:        domain.StatusOnline,
		TPS:           19.9,
		BytesSent:     18_446_744_073_709_551_000,
		BytesReceived: 42,
	})

	payload := receive(t, sub)
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	// 64-bit counters travel as decimal strings so browsers keep precision.
	if got, ok := decoded["bytes_sent"].(string); !ok || got != "18446744073709551000" {
		t.Fatalf("expected string counter, got %T %v", decoded["bytes_sent"], decoded["bytes_sent"])
	}
	if got, ok := decoded["tps"].(float64); !ok || got != 19.9 {
		t.Fatalf("expected numeric tps, got %T %v", decoded["tps"], decoded["tps"])
	}
	if got := decoded["origin"]; got != b.Origin() {
		t.Fatalf("expected payload stamped with instance origin, got %v", got)
	}
}

func TestPublishTargetsOneServerFeed(t *testing.T) {
	hub := ws.NewHub()
	b := New(hub, nil, "craftdeck:live:", nil)
	survival := &chanSubscriber{payloads: make(chan []byte, 1)}
	creative := &chanSubscriber{payloads: make(chan []byte, 1)}
	hub.Register("survival", survival)
	hub.Register("creative", creative)

	b.Publish(domain.LiveSample{ServerName: "survival", Status: domain.StatusOnline})
	receive(t, survival)

	select {
	case <-creative.payloads:
		t.Fatalf("broadcast leaked to another server's feed")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBridgeIsOptional(t *testing.T) {
	if NewBridge(ws.NewHub(), nil, "craftdeck:live:", "origin", nil) != nil {
		t.Fatalf("bridge without redis must be nil")
	}
}

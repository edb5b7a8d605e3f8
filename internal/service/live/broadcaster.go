package live

import (
	"context"
	"encoding/json"
	"time"

	"log/slog"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/craftdeck/api/internal/domain"
	"github.com/craftdeck/api/internal/ws"
)

const publishTimeout = 250 * time.Millisecond

// Broadcaster publishes every accepted metrics payload, unthrottled, to the
// local websocket/SSE hub and, when Redis is configured, to a named channel
// so other replicas can relay it. Delivery is at-most-once, best-effort: a
// publish failure is logged and never surfaced to ingestion.
type Broadcaster struct {
	hub           *ws.Hub
	redis         *redis.Client
	channelPrefix string
	origin        string
	logger        *slog.Logger
}

// New constructs a Broadcaster. The Redis client may be nil for single
// instance deployments.
func New(hub *ws.Hub, rdb *redis.Client, channelPrefix string, logger *slog.Logger) *Broadcaster {
	if hub == nil {
		hub = ws.NewHub()
	}
	if logger != nil {
		logger = logger.With("component", "live_broadcaster")
	}
	return &Broadcaster{
		hub:           hub,
		redis:         rdb,
		channelPrefix: channelPrefix,
		origin:        uuid.NewString(),
		logger:        logger,
	}
}

// Publish fans a live sample out to subscribers. Fire-and-forget.
func (b *Broadcaster) Publish(sample domain.LiveSample) {
	sample.Origin = b.origin
	payload, err := json.Marshal(sample)
	if err != nil {
		if b.logger != nil {
			b.logger.Warn("failed to marshal live sample", "error", err)
		}
		return
	}
	b.hub.Broadcast(sample.ServerName, payload)

	if b.redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := b.redis.Publish(ctx, b.channelPrefix+sample.ServerName, payload).Err(); err != nil {
		if b.logger != nil {
			b.logger.Warn("live channel publish failed", "server", sample.ServerName, "error", err)
		}
	}
}

// Hub exposes the hub for HTTP handlers to register viewers on.
func (b *Broadcaster) Hub() *ws.Hub {
	return b.hub
}

// Origin identifies this instance's published messages so the bridge can
// skip them.
func (b *Broadcaster) Origin() string {
	return b.origin
}

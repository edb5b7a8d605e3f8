package live

import (
	"context"
	"encoding/json"

	"log/slog"

	redis "github.com/redis/go-redis/v9"

	"github.com/craftdeck/api/internal/ws"
)

// Bridge relays live samples published by other API replicas into the local
// hub, so viewers connected anywhere see the same feed.
type Bridge struct {
	hub           *ws.Hub
	redis         *redis.Client
	channelPrefix string
	origin        string
	logger        *slog.Logger
}

// NewBridge constructs a Bridge. Returns nil when Redis is not configured.
func NewBridge(hub *ws.Hub, rdb *redis.Client, channelPrefix, origin string, logger *slog.Logger) *Bridge {
	if rdb == nil {
		return nil
	}
	if logger != nil {
		logger = logger.With("component", "live_bridge")
	}
	return &Bridge{
		hub:           hub,
		redis:         rdb,
		channelPrefix: channelPrefix,
		origin:        origin,
		logger:        logger,
	}
}

// Run subscribes to the live channels and blocks until the context is
// cancelled. Malformed messages are dropped with a warning.
func (b *Bridge) Run(ctx context.Context) {
	if b == nil {
		return
	}
	sub := b.redis.PSubscribe(ctx, b.channelPrefix+"*")
	defer sub.Close()
	if b.logger != nil {
		b.logger.Info("live bridge started", "pattern", b.channelPrefix+"*")
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			if b.logger != nil {
				b.logger.Info("live bridge stopped")
			}
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var envelope struct {
				ServerName string `json:"server_name"`
				Origin     string `json:"origin"`
			}
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				if b.logger != nil {
					b.logger.Warn("dropping malformed live message", "channel", msg.Channel, "error", err)
				}
				continue
			}
			if envelope.Origin == b.origin || envelope.ServerName == "" {
				continue
			}
			b.hub.Broadcast(envelope.ServerName, []byte(msg.Payload))
		}
	}
}

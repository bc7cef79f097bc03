package event

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis pub/sub channel carrying config events.
const DefaultChannel = "accelerator:config-events"

// RedisBridge publishes events to a Redis channel and relays events received
// on that channel into a local Hub. Every process running a bridge sees
// activations made by any other process.
type RedisBridge struct {
	client  *redis.Client
	channel string
	local   Publisher
	logger  *slog.Logger
}

// NewRedisBridge creates a bridge. An empty channel selects DefaultChannel.
func NewRedisBridge(client *redis.Client, channel string, local Publisher, log *slog.Logger) *RedisBridge {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisBridge{
		client:  client,
		channel: channel,
		local:   local,
		logger:  log.With(slog.String("component", "event_bridge")),
	}
}

// Publish sends the event to Redis. The local hub receives it through Run,
// like every other process.
func (b *RedisBridge) Publish(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("encode event failed", slog.Any("error", err))
		return
	}
	if err := b.client.Publish(context.Background(), b.channel, payload).Err(); err != nil {
		b.logger.Warn("publish event failed",
			slog.String("config_type", event.ConfigType),
			slog.Any("error", err))
	}
}

// Run relays Redis messages into the local hub until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer func() { _ = sub.Close() }()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn("drop malformed event", slog.Any("error", err))
				continue
			}
			b.local.Publish(event)
		}
	}
}

package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/safewatch/internal/domain"
)

// DefaultChannel is the pub/sub channel events travel on.
const DefaultChannel = "safewatch:notifications"

// EventRelay carries notification events between processes over Redis
// pub/sub. The analyzer publishes; the server subscribes and hands each
// event to its local broker. Delivery is best effort, like the broker.
type EventRelay struct {
	client      redis.UniversalClient
	channel     string
	logger      *slog.Logger
	isAvailable atomic.Bool
}

// NewEventRelay creates a new EventRelay on channel.
func NewEventRelay(client redis.UniversalClient, channel string, logger *slog.Logger) *EventRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	r := &EventRelay{
		client:  client,
		channel: channel,
		logger:  logger.With("component", "event_relay", "channel", channel),
	}
	r.isAvailable.Store(true) // Assume available initially
	return r
}

// Publish sends the event to every subscribed process. Failures are logged
// and swallowed.
func (r *EventRelay) Publish(ctx context.Context, event domain.NotificationEvent) {
	if !r.isAvailable.Load() {
		r.logger.Debug("redis unavailable, dropping event", "type", event.Type)
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("failed to marshal event", "type", event.Type, "error", err)
		return
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		r.logger.Warn("failed to publish event", "type", event.Type, "error", err)
	}
}

// Run subscribes to the channel and forwards each decoded event to sink
// until ctx ends.
func (r *EventRelay) Run(ctx context.Context, sink domain.EventPublisher) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed.
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	r.logger.Info("relaying events from redis")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event domain.NotificationEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.logger.Warn("failed to decode relayed event, skipping", "error", err)
				continue
			}
			if event.Type == "" {
				r.logger.Warn("relayed event has no type, skipping")
				continue
			}
			sink.Publish(ctx, event)
		}
	}
}

// StartHealthCheck pings Redis every interval and pauses publishing while it
// is unreachable.
func (r *EventRelay) StartHealthCheck(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.client.Ping(ctx).Err(); err != nil {
				if r.isAvailable.CompareAndSwap(true, false) {
					r.logger.Error("redis connection lost", "error", err)
				}
			} else if r.isAvailable.CompareAndSwap(false, true) {
				r.logger.Info("redis connection recovered")
			}
		}
	}
}

// Available reports whether the last health check reached Redis.
func (r *EventRelay) Available() bool {
	return r.isAvailable.Load()
}

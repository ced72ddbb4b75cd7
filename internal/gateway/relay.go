package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

const relayChannel = "party:room-events"

type relayedEvent struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"room_id"`
	Payload json.RawMessage `json:"payload"`
}

// RedisRelay fans events out through Redis Pub/Sub so that subscribers
// connected to other instances receive them too. Events reach the local hub
// through the Redis subscription, or directly when Redis rejects the publish.
type RedisRelay struct {
	rc      *redis.Client
	hub     *Hub
	queue   chan Event
	dropped atomic.Int64
	logger  *slog.Logger
}

func NewRedisRelay(rc *redis.Client, hub *Hub, queueSize int, logger *slog.Logger) *RedisRelay {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	return &RedisRelay{
		rc:     rc,
		hub:    hub,
		queue:  make(chan Event, queueSize),
		logger: logger,
	}
}

// Publish queues ev for delivery without waiting for Redis. When the queue is
// full the oldest queued event is discarded to make room.
func (r *RedisRelay) Publish(ctx context.Context, ev Event) {
	for {
		select {
		case r.queue <- ev:
			return
		default:
		}

		select {
		case old := <-r.queue:
			r.dropped.Add(1)
			r.logger.WarnContext(ctx, "relay queue is full, oldest event dropped", "type", old.Type, "room_id", old.RoomID)
		default:
		}
	}
}

// Dropped reports how many queued events were discarded.
func (r *RedisRelay) Dropped() int64 {
	return r.dropped.Load()
}

// Start subscribes to the relay channel and returns once the subscription is
// confirmed. Queued events are forwarded and received ones delivered to the
// hub until ctx is done.
func (r *RedisRelay) Start(ctx context.Context) error {
	pubsub := r.rc.Subscribe(ctx, relayChannel)

	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", relayChannel, err)
	}

	go r.forward(ctx)
	go r.receive(ctx, pubsub)

	return nil
}

func (r *RedisRelay) receive(ctx context.Context, pubsub *redis.PubSub) {
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var ev relayedEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.logger.WarnContext(ctx, "failed to decode relayed event", "error", err)
				continue
			}

			r.hub.Publish(ctx, Event{
				Type:    ev.Type,
				RoomID:  ev.RoomID,
				Payload: ev.Payload,
			})
		}
	}
}

func (r *RedisRelay) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.queue:
			raw, err := json.Marshal(ev)
			if err != nil {
				r.logger.ErrorContext(ctx, "failed to encode event", "error", err, "type", ev.Type)
				continue
			}

			if err := r.rc.Publish(ctx, relayChannel, raw).Err(); err != nil {
				if ctx.Err() != nil {
					return
				}

				r.logger.ErrorContext(ctx, "failed to relay event, delivering locally", "error", err, "type", ev.Type)
				r.hub.Publish(ctx, ev)
			}
		}
	}
}

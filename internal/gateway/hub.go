package gateway

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

const DefaultQueueSize = 64

type Hub struct {
	mu        sync.RWMutex
	topics    map[string]map[*Subscription]struct{}
	queueSize int
	logger    *slog.Logger
}

func NewHub(queueSize int, logger *slog.Logger) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	return &Hub{
		topics:    make(map[string]map[*Subscription]struct{}),
		queueSize: queueSize,
		logger:    logger,
	}
}

type Subscription struct {
	roomID  string
	hub     *Hub
	events  chan Event
	dropped atomic.Int64
	once    sync.Once
}

// Events returns the subscription queue. It is closed by Close.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Dropped reports how many events were discarded because the subscriber fell
// behind.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s)
	})
}

// offer enqueues ev without blocking. When the queue is full the oldest event
// is discarded to make room.
func (s *Subscription) offer(ev Event) {
	for {
		select {
		case s.events <- ev:
			return
		default:
		}

		select {
		case <-s.events:
			s.dropped.Add(1)
		default:
		}
	}
}

func (h *Hub) Subscribe(roomID string) *Subscription {
	sub := &Subscription{
		roomID: roomID,
		hub:    h,
		events: make(chan Event, h.queueSize),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[roomID]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.topics[roomID] = subs
	}
	subs[sub] = struct{}{}

	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.topics[sub.roomID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.topics, sub.roomID)
		}
	}

	close(sub.events)
}

// Publish delivers ev to every local subscriber of ev.RoomID. It never blocks
// on slow subscribers.
func (h *Hub) Publish(ctx context.Context, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := h.topics[ev.RoomID]
	for sub := range subs {
		sub.offer(ev)
	}

	h.logger.DebugContext(ctx, "event published", "type", ev.Type, "room_id", ev.RoomID, "subscribers", len(subs))
}

// Subscribers returns the number of local subscribers of a room.
func (h *Hub) Subscribers(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.topics[roomID])
}

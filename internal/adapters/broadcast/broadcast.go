// Package broadcast fans out flow transitions and score events to the
// observers of one competition event.
//
// Delivery is at-most-once and best-effort: a subscriber that cannot
// keep up has notices dropped rather than blocking the publisher, and
// reconnecting observers are expected to resynchronize through the
// pull-based event summary instead of replaying the stream.
package broadcast

import (
	"context"
	"sync"

	"github.com/craneyu/YILan-JJGAME/pkg/logger"
	"github.com/craneyu/YILan-JJGAME/pkg/metrics"
)

// Notice is one published notification. Name is the semantic event
// name (for example "action:opened"); the names themselves are owned by
// the flow layer.
type Notice struct {
	EventID string `json:"event_id"`
	Name    string `json:"name"`
	Payload any    `json:"payload"`
}

// Broadcaster publishes notices to per-event subscriber channels.
type Broadcaster interface {
	// Publish delivers a notice to every subscriber of the event.
	Publish(ctx context.Context, eventID, name string, payload any)

	// Subscribe registers an observer for one event. The returned
	// channel is closed and the subscription removed when ctx ends.
	Subscribe(ctx context.Context, eventID string) <-chan Notice

	// Subscribers reports how many observers an event currently has.
	Subscribers(eventID string) int
}

// Hub implements Broadcaster with buffered channels per subscriber,
// scoped by event id. Join and leave follow the subscriber's context
// lifetime; there is no ambient global registry.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string][]chan Notice
	buffer int
	closed bool
	logger logger.Logger
}

// NewHub creates a broadcast hub with configuration options.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		rooms:  make(map[string][]chan Notice),
		buffer: defaultBuffer,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Get().Named("broadcast")
	}
	return h
}

// Publish delivers a notice to every subscriber of the event. Sends
// never block: a full subscriber buffer drops the notice for that
// subscriber.
func (h *Hub) Publish(ctx context.Context, eventID, name string, payload any) {
	n := Notice{EventID: eventID, Name: name, Payload: payload}

	// The read lock is held across the sends so a concurrent leave or
	// Close cannot close a channel mid-publish.
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.rooms[n.EventID] {
		select {
		case ch <- n:
			metrics.RecordBroadcastSent(n.Name)
		default:
			metrics.RecordBroadcastDropped(n.Name)
			h.logger.Warn(ctx, "dropping notice for slow subscriber",
				logger.String("event_id", n.EventID),
				logger.String("name", n.Name),
			)
		}
	}
}

// Subscribe joins the event's room until ctx is done.
func (h *Hub) Subscribe(ctx context.Context, eventID string) <-chan Notice {
	ch := make(chan Notice, h.buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch
	}
	h.rooms[eventID] = append(h.rooms[eventID], ch)
	metrics.UpdateSubscribers(eventID, len(h.rooms[eventID]))
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.leave(eventID, ch)
	}()

	return ch
}

// Subscribers reports the current room size for an event.
func (h *Hub) Subscribers(eventID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[eventID])
}

// Close tears down every room. Subscriber channels are closed so
// streaming handlers unwind.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	for eventID, subs := range h.rooms {
		for _, ch := range subs {
			close(ch)
		}
		delete(h.rooms, eventID)
		metrics.UpdateSubscribers(eventID, 0)
	}
	return nil
}

// leave removes one subscriber channel from a room and closes it.
func (h *Hub) leave(eventID string, ch chan Notice) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	subs := h.rooms[eventID]
	for i, c := range subs {
		if c == ch {
			h.rooms[eventID] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}
	if len(h.rooms[eventID]) == 0 {
		delete(h.rooms, eventID)
	}
	metrics.UpdateSubscribers(eventID, len(h.rooms[eventID]))
}

// Package bus implements the in-process broadcast channel for operator-visible
// events. Publish never blocks: each subscriber owns a bounded buffer and a
// subscriber that lags behind loses its oldest undelivered events.
package bus

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/stamon-dev/stamon/internal/model"
)

// DefaultBuffer is the per-subscriber event buffer size.
const DefaultBuffer = 100

// Event is the tagged union carried on the bus: exactly one of Log or
// Notification is set.
type Event struct {
	Log          *model.LogEntry
	Notification *model.Notification
}

// LogEvent wraps a log entry as an event.
func LogEvent(entry model.LogEntry) Event {
	return Event{Log: &entry}
}

// NotificationEvent wraps a notification as an event.
func NotificationEvent(n model.Notification) Event {
	return Event{Notification: &n}
}

type taggedEvent struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// MarshalJSON encodes the event as {"type":"log"|"notification","value":...}.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Log != nil {
		return json.Marshal(taggedEvent{Type: "log", Value: e.Log})
	}
	return json.Marshal(taggedEvent{Type: "notification", Value: e.Notification})
}

// Bus is a multi-producer multi-subscriber broadcast channel.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	buffer int
}

// New creates a Bus with the given per-subscriber buffer size.
func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
	}
}

// Publish delivers e to every current subscriber. Publishing with no
// subscribers is a no-op. A full subscriber drops its oldest undelivered
// event to make room; producers are never blocked.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		sub.push(e)
	}
}

// Subscribe registers a new subscriber. It observes only events published
// after this call. The caller must Close the subscription when done.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &Subscription{
		id:  b.nextID,
		bus: b,
		ch:  make(chan Event, b.buffer),
	}
	b.subs[sub.id] = sub
	return sub
}

// SubscriberCount returns the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Subscription is one subscriber's cursor on the bus.
type Subscription struct {
	id      uint64
	bus     *Bus
	ch      chan Event
	dropped atomic.Int64

	closeOnce sync.Once
}

// Events returns the receive channel. It is never closed while the
// subscription is registered; callers should select against their own
// shutdown signal.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Dropped reports how many events were discarded because this subscriber
// lagged behind.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Close removes the subscription from the bus.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.bus.unsubscribe(s.id)
	})
}

// push enqueues e, evicting the oldest buffered event when full.
func (s *Subscription) push(e Event) {
	for {
		select {
		case s.ch <- e:
			return
		default:
		}
		// Buffer full: evict the oldest and retry. The receiver may race
		// us and free a slot first; the retry loop handles both cases.
		select {
		case <-s.ch:
			s.dropped.Add(1)
		default:
		}
	}
}

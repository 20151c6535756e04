// Package relay streams bus events to external observers.
package relay

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dgnsrekt/tabshell/internal/bus"
)

const subscriberBufSize = 256

// Event is one bus event encoded for the wire.
type Event struct {
	Name    string
	Payload string
}

// Broker fans out events to stream subscribers.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Event
	nextID      atomic.Int64
	dropped     atomic.Int64
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[int64]chan Event),
	}
}

// Subscribe registers a client. The channel is buffered; slow consumers
// have events dropped.
func (b *Broker) Subscribe() (int64, <-chan Event) {
	id := b.nextID.Add(1)
	ch := make(chan Event, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish never blocks the emitter.
func (b *Broker) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

// HandleBusEvent is a bus.Handler publishing evt to every subscriber.
func (b *Broker) HandleBusEvent(evt bus.Event) {
	if evt.Data == nil {
		evt.Data = map[string]any{}
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		slog.Warn("relay encode failed", "event", evt.EventName, "error", err)
		return
	}
	b.Publish(Event{Name: evt.EventName, Payload: string(payload)})
}

func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped counts events discarded because a subscriber was full.
func (b *Broker) Dropped() int64 { return b.dropped.Load() }

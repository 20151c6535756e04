// Package bus is the process-local publish/subscribe hub that carries tab
// lifecycle notifications from the orchestrator to every listener.
package bus

import (
	"sync"
	"sync/atomic"
)

// Event names delivered to the UI process.
const (
	EventCreateTab = "desktop.onCreateTab"
	EventSwitchTab = "desktop.onSwitchTab"
	EventCloseTab  = "desktop.onCloseTab"
	EventTabTitle  = "desktop.onTabTitle"
)

// ContainerIDsKey is the reserved data field that restricts delivery of an
// event to the listed container ids.
const ContainerIDsKey = "kDesktopContainerIdsKey"

// Event is a single emission on the bus.
type Event struct {
	EventName string         `json:"eventName"`
	Data      map[string]any `json:"data"`
}

// TargetIDs returns the container ids the event is scoped to and whether a
// scope is present at all. A value that is not a list of numbers is treated
// as no scope.
func (e Event) TargetIDs() ([]int, bool) {
	raw, ok := e.Data[ContainerIDsKey]
	if !ok || raw == nil {
		return nil, false
	}
	switch v := raw.(type) {
	case []int:
		return v, true
	case []int64:
		return convertIDs(v), true
	case []int32:
		return convertIDs(v), true
	case []float64:
		return convertIDs(v), true
	case []any:
		ids := make([]int, 0, len(v))
		for _, item := range v {
			if id, ok := toID(item); ok {
				ids = append(ids, id)
			}
		}
		return ids, true
	}
	return nil, false
}

func convertIDs[T int64 | int32 | float64](v []T) []int {
	ids := make([]int, len(v))
	for i, n := range v {
		ids[i] = int(n)
	}
	return ids
}

func toID(item any) (int, bool) {
	switch n := item.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// Handler receives every emitted event.
type Handler func(Event)

// Subscription identifies a registered handler.
type Subscription int64

type entry struct {
	id Subscription
	fn Handler
}

// Bus delivers events synchronously to subscribers in subscription order.
// There is no queueing: a slow subscriber blocks the emitter.
type Bus struct {
	mu       sync.RWMutex
	handlers []entry
	nextID   atomic.Int64
}

func New() *Bus {
	return &Bus{}
}

// Subscribe registers fn and returns a handle for Unsubscribe.
func (b *Bus) Subscribe(fn Handler) Subscription {
	id := Subscription(b.nextID.Add(1))
	b.mu.Lock()
	b.handlers = append(b.handlers, entry{id: id, fn: fn})
	b.mu.Unlock()
	return id
}

// Unsubscribe removes a handler. Unknown handles are ignored.
func (b *Bus) Unsubscribe(id Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, h := range b.handlers {
		if h.id == id {
			b.handlers = append(b.handlers[:i:i], b.handlers[i+1:]...)
			return
		}
	}
}

// Emit invokes all current subscribers with evt. Handlers run outside the bus
// lock so they may subscribe or unsubscribe.
func (b *Bus) Emit(evt Event) {
	b.mu.RLock()
	handlers := make([]entry, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()
	for _, h := range handlers {
		h.fn(evt)
	}
}

// EmitNamed is shorthand for Emit(Event{EventName: name, Data: data}).
func (b *Bus) EmitNamed(name string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	b.Emit(Event{EventName: name, Data: data})
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

package registry

import (
	"log/slog"
	"sync"
	"time"
)

// EventKind is the closed set of registry event names. The string values are
// a stable contract with external listeners.
type EventKind string

const (
	EventProviderRegistered   EventKind = "provider-registered"
	EventProviderUnregistered EventKind = "provider-unregistered"
	EventPermissionGranted    EventKind = "permission-granted"
	EventPermissionDenied     EventKind = "permission-denied"
	EventPermissionRevoked    EventKind = "permission-revoked"
	EventContextProvided      EventKind = "context-provided"
)

// Event is the payload delivered to listeners and re-published to the host
// notifier.
type Event struct {
	Kind       EventKind      `json:"kind"`
	ProviderID string         `json:"provider_id,omitempty"`
	Domain     string         `json:"domain,omitempty"`
	ContextID  string         `json:"context_id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Detail     map[string]any `json:"detail,omitempty"`
}

// Listener receives dispatched events. Listeners run synchronously on the
// dispatching goroutine; a panicking listener is isolated and logged.
type Listener func(Event)

// Subscription identifies a registered listener for removal.
type Subscription struct {
	kind EventKind
	id   int
}

// Bus is the registry's in-process publish/subscribe primitive, keyed by
// event kind.
type Bus struct {
	mu        sync.RWMutex
	listeners map[EventKind]map[int]Listener
	nextID    int
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{listeners: make(map[EventKind]map[int]Listener)}
}

// Subscribe registers a listener for the given kind.
func (b *Bus) Subscribe(kind EventKind, fn Listener) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listeners[kind] == nil {
		b.listeners[kind] = make(map[int]Listener)
	}
	b.nextID++
	b.listeners[kind][b.nextID] = fn
	return Subscription{kind: kind, id: b.nextID}
}

// Unsubscribe removes a previously registered listener. Unknown
// subscriptions are ignored.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners[sub.kind], sub.id)
}

// Dispatch delivers the event to every listener of its kind. One failing
// listener never prevents the others from running.
func (b *Bus) Dispatch(event Event) {
	b.mu.RLock()
	snapshot := make([]Listener, 0, len(b.listeners[event.Kind]))
	for _, fn := range b.listeners[event.Kind] {
		snapshot = append(snapshot, fn)
	}
	b.mu.RUnlock()

	for _, fn := range snapshot {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("event listener panicked", "kind", event.Kind, "panic", r)
				}
			}()
			fn(event)
		}()
	}
}

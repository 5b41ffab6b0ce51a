package eventbus

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Event types published inside dockd.
const (
	AppletRegistered     = "applet.registered"
	ResolverResolved     = "resolver.resolved"
	ResolverFailed       = "resolver.failed"
	DockPositionChanged  = "dock.position_changed"
	DockHideModeChanged  = "dock.hide_mode_changed"
	DockHideStateChanged = "dock.hide_state_changed"
	DockGeometryChanged  = "dock.geometry_changed"
	NotificationAdded    = "notification.added"
	NotificationClosed   = "notification.closed"
	NotificationUpdated  = "notification.updated"
	NotificationAction   = "notification.action_invoked"
	NotificationFailed   = "notification.persist_failed"
	ConfigReloaded       = "config.reloaded"
)

// Event is a small in-memory signal used to decouple components.
//
// Contract:
//   - Publish never blocks.
//   - Subscribers get buffered channels; a slow subscriber drops events.
type Event struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns an in-memory fanout bus. It owns no goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			// Publish holds the read lock while sending, so closing under the
			// write lock can never race a send.
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
	return ch, unsub
}

// HasPrefix reports whether the event type belongs to the dotted namespace
// prefix ("dock" matches "dock.position_changed").
func (e Event) HasPrefix(prefix string) bool {
	return e.Type == prefix || strings.HasPrefix(e.Type, prefix+".")
}

// Publish is a nil-safe helper for optional buses.
func Publish(b Bus, typ string, data any) {
	if b == nil {
		return
	}
	b.Publish(Event{Type: typ, Data: data})
}

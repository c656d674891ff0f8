// Package events is the in-process publish/subscribe registry that carries
// hot-plug, equipment-status and control-server events between components.
//
// Every Subscribe returns an unsubscribe func. Close detaches all
// subscribers, after which Publish is a no-op, so no handler runs after
// its owner has been torn down.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"
)

// Type names an event kind.
type Type string

const (
	DeviceAdded            Type = "deviceAdded"
	DeviceRemoved          Type = "deviceRemoved"
	EquipmentStatusChanged Type = "equipmentStatusChanged"
	AutoSetupCompleted     Type = "autoSetupCompleted"
	RestartRequested       Type = "restartRequested"
	ServerStarted          Type = "serverStarted"
	ServerStopped          Type = "serverStopped"
	ServerRestarted        Type = "serverRestarted"
	ServerError            Type = "serverError"
	ServerExit             Type = "serverExit"
	ServerLog              Type = "serverLog"
)

// Event is one published occurrence.
type Event struct {
	ID     string    `json:"id"`
	Type   Type      `json:"type"`
	Source string    `json:"source"`
	Time   time.Time `json:"time"`
	Data   any       `json:"data,omitempty"`
}

// Handler receives events synchronously on the publisher's goroutine and
// must not block.
type Handler func(Event)

type subscription struct {
	handler Handler
	types   map[Type]struct{}
}

func (s subscription) wants(t Type) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// Bus fans events out to subscribers.
type Bus struct {
	source string
	clock  clock.PassiveClock

	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]subscription
	order  []uint64
	closed bool

	closers []func()
}

// NewBus creates a bus that stamps events with source.
func NewBus(source string) *Bus {
	return NewBusWithClock(source, clock.RealClock{})
}

func NewBusWithClock(source string, clk clock.PassiveClock) *Bus {
	return &Bus{
		source: source,
		clock:  clk,
		subs:   make(map[uint64]subscription),
	}
}

// Subscribe registers h for the given types (all types when none given).
func (b *Bus) Subscribe(h Handler, types ...Type) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	sub := subscription{handler: h}
	if len(types) > 0 {
		sub.types = make(map[Type]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	b.nextID++
	id := b.nextID
	b.subs[id] = sub
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

// SubscribeChan delivers matching events on a buffered channel. Events are
// dropped when the consumer falls behind. The channel is closed on
// unsubscribe or Close.
func (b *Bus) SubscribeChan(buffer int, types ...Type) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	var mu sync.Mutex
	done := false

	unsub := b.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		if done {
			return
		}
		select {
		case ch <- e:
		default:
		}
	}, types...)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			unsub()
			mu.Lock()
			done = true
			close(ch)
			mu.Unlock()
		})
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		cancel()
		return ch, cancel
	}
	b.closers = append(b.closers, cancel)
	b.mu.Unlock()

	return ch, cancel
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[id]; !ok {
		return
	}
	delete(b.subs, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Publish stamps and delivers an event in subscription order.
func (b *Bus) Publish(t Type, data any) {
	b.Forward(Event{
		ID:     uuid.NewString(),
		Type:   t,
		Source: b.source,
		Time:   b.clock.Now(),
		Data:   data,
	})
}

// Forward delivers an already-stamped event, keeping its origin.
func (b *Bus) Forward(e Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	handlers := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		if sub := b.subs[id]; sub.wants(e.Type) {
			handlers = append(handlers, sub.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close detaches every subscriber. Further publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.subs = make(map[uint64]subscription)
	b.order = nil
	closers := b.closers
	b.closers = nil
	b.mu.Unlock()

	for _, c := range closers {
		c()
	}
}

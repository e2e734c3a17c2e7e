// Package notify delivers parameter change events from a context to its
// observers: renderers, remote previews, exporters.
//
// Publishing never blocks the writer. Function subscribers run synchronously
// in registration order; channel subscribers receive events through a bounded
// buffer and lose events when the buffer is full. Losses are counted.
package notify

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/paramgrid/internal/store"
	"github.com/zclconf/go-cty/cty"
)

// Type identifies what changed.
type Type int

const (
	ValueChanged Type = iota
	AutoChanged
	ActiveChanged
	StaleChanged
	OutOfBoundsChanged
	ComputeFailed
	OrderChanged
	CountChanged
	ParameterAdded
	ParameterRemoved
)

var typeNames = map[Type]string{
	ValueChanged:       "value_changed",
	AutoChanged:        "auto_changed",
	ActiveChanged:      "active_changed",
	StaleChanged:       "stale_changed",
	OutOfBoundsChanged: "out_of_bounds_changed",
	ComputeFailed:      "compute_failed",
	OrderChanged:       "order_changed",
	CountChanged:       "count_changed",
	ParameterAdded:     "parameter_added",
	ParameterRemoved:   "parameter_removed",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Event describes one change in a context.
type Event struct {
	Type Type
	Tab  string
	// Key is the parameter key, or the multi attribute for CountChanged. It
	// is empty for OrderChanged.
	Key    string
	Old    cty.Value
	New    cty.Value
	Origin store.Source
	// Flag holds the new state for flag events (auto, active, stale, out of bounds).
	Flag bool
	// Order is the new active order for OrderChanged.
	Order []string
	Err   error
}

// Handler receives events synchronously.
type Handler func(Event)

// DropCounter is told about every event a full channel could not take.
type DropCounter interface {
	EventDropped(tab string)
}

// Bus fans events out to subscribers. It is safe for concurrent use.
type Bus struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]Handler
	chans    map[int]chan Event
	dropped  atomic.Uint64
	counter  DropCounter
}

// NewBus creates a bus. counter may be nil.
func NewBus(counter DropCounter) *Bus {
	return &Bus{
		handlers: make(map[int]Handler),
		chans:    make(map[int]chan Event),
		counter:  counter,
	}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.handlers[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}
}

// Channel registers a bounded channel subscriber. The returned cancel
// function unregisters it and closes the channel.
func (b *Bus) Channel(size int) (<-chan Event, func()) {
	if size < 1 {
		size = 1
	}
	ch := make(chan Event, size)
	b.mu.Lock()
	id := b.next
	b.next++
	b.chans[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.chans, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers events in order to every subscriber.
func (b *Bus) Publish(events ...Event) {
	if len(events) == 0 {
		return
	}
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for id := 0; id < b.next; id++ {
		if h, ok := b.handlers[id]; ok {
			handlers = append(handlers, h)
		}
	}
	b.mu.RUnlock()

	// Handlers run without the lock so they may subscribe or unsubscribe.
	for _, ev := range events {
		for _, h := range handlers {
			h(ev)
		}
	}

	// Channel sends hold the read lock so cancel cannot close a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ev := range events {
		for _, ch := range b.chans {
			select {
			case ch <- ev:
			default:
				b.dropped.Add(1)
				if b.counter != nil {
					b.counter.EventDropped(ev.Tab)
				}
			}
		}
	}
}

// Dropped returns the number of events lost by channel subscribers.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

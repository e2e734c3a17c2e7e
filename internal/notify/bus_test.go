package notify

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDrops struct {
	mu   sync.Mutex
	tabs []string
}

func (c *countingDrops) EventDropped(tab string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tabs = append(c.tabs, tab)
}

func TestSubscribe(t *testing.T) {
	bus := NewBus(nil)
	var got []string
	unsubscribe := bus.Subscribe(func(ev Event) { got = append(got, ev.Key) })

	bus.Publish(Event{Type: ValueChanged, Key: "a"}, Event{Type: ValueChanged, Key: "b"})
	assert.Equal(t, []string{"a", "b"}, got)

	unsubscribe()
	bus.Publish(Event{Key: "c"})
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestSubscribe_RegistrationOrder(t *testing.T) {
	bus := NewBus(nil)
	var got []int
	for i := 0; i < 3; i++ {
		bus.Subscribe(func(Event) { got = append(got, i) })
	}
	bus.Publish(Event{})
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestChannel_DropsWhenFull(t *testing.T) {
	drops := &countingDrops{}
	bus := NewBus(drops)
	ch, cancel := bus.Channel(2)

	bus.Publish(
		Event{Tab: "door", Key: "a"},
		Event{Tab: "door", Key: "b"},
		Event{Tab: "door", Key: "c"},
	)

	require.Len(t, ch, 2)
	assert.Equal(t, "a", (<-ch).Key)
	assert.Equal(t, "b", (<-ch).Key)
	assert.Equal(t, uint64(1), bus.Dropped())
	assert.Equal(t, []string{"door"}, drops.tabs)

	cancel()
	cancel() // idempotent
	_, open := <-ch
	assert.False(t, open)

	assert.NotPanics(t, func() { bus.Publish(Event{Key: "d"}) })
}

func TestHandlerMayUnsubscribeDuringPublish(t *testing.T) {
	bus := NewBus(nil)
	calls := 0
	var unsubscribe func()
	unsubscribe = bus.Subscribe(func(Event) {
		calls++
		unsubscribe()
	})
	bus.Publish(Event{})
	bus.Publish(Event{})
	assert.Equal(t, 1, calls)
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "value_changed", ValueChanged.String())
	assert.Equal(t, "order_changed", OrderChanged.String())
	assert.Equal(t, "Type(99)", Type(99).String())
}

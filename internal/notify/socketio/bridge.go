package socketio

import (
	"context"
	"math/big"

	"github.com/specialistvlad/paramgrid/internal/ctxlog"
	"github.com/specialistvlad/paramgrid/internal/notify"
	"github.com/zclconf/go-cty/cty"
)

// Emitter is the part of a socket.io client the bridge needs.
type Emitter interface {
	Emit(event string, args ...any) error
}

// Payload is the JSON body sent with every forwarded event.
type Payload struct {
	Tab    string   `json:"tab"`
	Key    string   `json:"key,omitempty"`
	Old    any      `json:"old,omitempty"`
	New    any      `json:"new,omitempty"`
	Origin string   `json:"origin,omitempty"`
	Flag   bool     `json:"flag"`
	Order  []string `json:"order,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// Bridge subscribes to a bus through a bounded channel and emits every
// event it receives. Events the channel cannot hold are dropped by the bus.
type Bridge struct {
	bus    *notify.Bus
	em     Emitter
	buffer int
}

// NewBridge creates a bridge. buffer is the channel capacity.
func NewBridge(bus *notify.Bus, em Emitter, buffer int) *Bridge {
	if buffer < 1 {
		buffer = 256
	}
	return &Bridge{bus: bus, em: em, buffer: buffer}
}

// Run forwards events until ctx is done. The channel subscription is made
// before ready is closed, so callers may publish as soon as it is.
func (b *Bridge) Run(ctx context.Context, ready chan<- struct{}) {
	logger := ctxlog.FromContext(ctx).With("component", "socketio_bridge")
	events, cancel := b.bus.Channel(b.buffer)
	defer cancel()
	if ready != nil {
		close(ready)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := b.em.Emit(ev.Type.String(), Encode(ev)); err != nil {
				logger.Warn("Failed to forward event", "event", ev.Type.String(), "key", ev.Key, "error", err)
			}
		}
	}
}

// Encode converts an event to its wire payload.
func Encode(ev notify.Event) Payload {
	p := Payload{
		Tab:   ev.Tab,
		Key:   ev.Key,
		Old:   plain(ev.Old),
		New:   plain(ev.New),
		Flag:  ev.Flag,
		Order: ev.Order,
	}
	if ev.Type == notify.ValueChanged {
		p.Origin = ev.Origin.String()
	}
	if ev.Err != nil {
		p.Error = ev.Err.Error()
	}
	return p
}

// plain turns a known primitive value into its Go equivalent.
func plain(v cty.Value) any {
	if v.IsNull() || !v.IsKnown() {
		return nil
	}
	switch v.Type() {
	case cty.Number:
		f, _ := v.AsBigFloat().Float64()
		if v.AsBigFloat().IsInt() {
			if i, acc := v.AsBigFloat().Int64(); acc == big.Exact {
				return i
			}
		}
		return f
	case cty.String:
		return v.AsString()
	case cty.Bool:
		return v.True()
	}
	return nil
}

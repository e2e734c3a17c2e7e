package session

import (
	"github.com/specialistvlad/paramgrid/internal/notify"
	"github.com/specialistvlad/paramgrid/internal/store"
	"github.com/zclconf/go-cty/cty"
)

// observe turns store changes into pending events. Events are published by
// flush once the operation that caused them, cascade included, has finished.
func (s *Session) observe(key string, old, new store.State) {
	tab := s.schema.Tab
	switch {
	case old.Value.IsNull() && !new.Value.IsNull():
		s.pending = append(s.pending, notify.Event{Type: notify.ParameterAdded, Tab: tab, Key: key, New: new.Value, Origin: new.Source})
		return
	case new.Value.IsNull():
		s.pending = append(s.pending, notify.Event{Type: notify.ParameterRemoved, Tab: tab, Key: key, Old: old.Value})
		return
	}

	if !store.Equal(old.Value, new.Value) {
		s.pending = append(s.pending, notify.Event{Type: notify.ValueChanged, Tab: tab, Key: key, Old: old.Value, New: new.Value, Origin: new.Source})
	}
	flag := func(t notify.Type, before, after bool) {
		if before != after {
			s.pending = append(s.pending, notify.Event{Type: t, Tab: tab, Key: key, Flag: after, Origin: new.Source})
		}
	}
	flag(notify.AutoChanged, old.Auto, new.Auto)
	flag(notify.ActiveChanged, old.Active, new.Active)
	flag(notify.StaleChanged, old.Stale, new.Stale)
	flag(notify.OutOfBoundsChanged, old.OutOfBounds, new.OutOfBounds)
	if new.ComputeErr != nil && new.ComputeErr != old.ComputeErr {
		s.pending = append(s.pending, notify.Event{Type: notify.ComputeFailed, Tab: tab, Key: key, Old: new.Value, New: new.Value, Err: new.ComputeErr})
	}
}

func (s *Session) orderChanged() {
	s.pending = append(s.pending, notify.Event{Type: notify.OrderChanged, Tab: s.schema.Tab, Order: s.order.Order()})
}

func (s *Session) countChanged(template string, old, new int) {
	s.pending = append(s.pending, notify.Event{
		Type: notify.CountChanged,
		Tab:  s.schema.Tab,
		Key:  template,
		Old:  cty.NumberIntVal(int64(old)),
		New:  cty.NumberIntVal(int64(new)),
	})
}

// flush publishes the pending events.
func (s *Session) flush() {
	if len(s.pending) == 0 {
		return
	}
	events := s.pending
	s.pending = nil
	s.bus.Publish(events...)
}

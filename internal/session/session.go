// Package session is the entry point for editing one configuration context.
//
// A Session owns the parameter store, dependency graph, recalculation engine
// and active order of one tab and enforces the editing rules on top of them:
// auto-locked parameters reject external writes, capabilities are checked
// before flags change, and every accepted change runs its cascade to
// completion before observers hear about it.
//
// A Session is not safe for concurrent use. Manager serialises access when
// sessions are shared.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/specialistvlad/paramgrid/internal/ctxlog"
	"github.com/specialistvlad/paramgrid/internal/dag"
	"github.com/specialistvlad/paramgrid/internal/engineerr"
	"github.com/specialistvlad/paramgrid/internal/notify"
	"github.com/specialistvlad/paramgrid/internal/order"
	"github.com/specialistvlad/paramgrid/internal/recalc"
	"github.com/specialistvlad/paramgrid/internal/schema"
	"github.com/specialistvlad/paramgrid/internal/store"
	"github.com/zclconf/go-cty/cty"
)

// Session is one live configuration context.
type Session struct {
	id     uuid.UUID
	schema *schema.Schema
	logger *slog.Logger

	resolved []*schema.Descriptor
	byKey    map[string]*schema.Descriptor
	graph    *dag.Graph
	store    *store.Store
	engine   *recalc.Engine
	order    *order.Resolver
	bus      *notify.Bus

	// groupAuto holds the current state of every grouped auto toggle, by the
	// raw key it controls. New instances start with that state.
	groupAuto map[string]bool
	pending   []notify.Event
}

type options struct {
	bus     *notify.Bus
	metrics recalc.Metrics
	counts  map[string]int
}

// Option configures a Session.
type Option func(*options)

// WithBus publishes the session's events on bus.
func WithBus(bus *notify.Bus) Option {
	return func(o *options) { o.bus = bus }
}

// WithMetrics records cascades in m.
func WithMetrics(m recalc.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithCounts overrides the default instance counts of multi attributes.
func WithCounts(counts map[string]int) Option {
	return func(o *options) { o.counts = counts }
}

// New activates a context for s: templates are expanded, every parameter is
// initialised from its defaults and every auto parameter is computed once.
func New(ctx context.Context, s *schema.Schema, opts ...Option) (*Session, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.bus == nil {
		o.bus = notify.NewBus(nil)
	}

	counts := s.DefaultCounts()
	for name, n := range o.counts {
		counts[name] = n
	}
	resolved, err := s.ResolveTemplates(counts)
	if err != nil {
		return nil, err
	}
	g, err := schema.BuildGraph(resolved)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		id:        uuid.New(),
		schema:    s,
		graph:     g,
		store:     store.New(),
		order:     order.New(),
		bus:       o.bus,
		groupAuto: make(map[string]bool),
	}
	sess.logger = ctxlog.FromContext(ctx).With("tab", s.Tab, "session_id", sess.id.String())
	sess.setResolved(resolved)

	for _, sec := range s.Sections() {
		if sec.GroupedAuto != nil && sec.GroupedAuto.DefaultActive {
			for _, key := range sec.GroupedAuto.Controlled {
				sess.groupAuto[key] = true
			}
		}
	}
	for name, n := range counts {
		sess.store.SetCount(name, n)
	}
	for _, d := range resolved {
		st := sess.initialState(d)
		sess.store.Put(d.Key, st)
		if st.Active {
			sess.order.Activate(d.Key)
		}
	}

	engineOpts := []recalc.Option{recalc.WithTab(s.Tab)}
	if o.metrics != nil {
		engineOpts = append(engineOpts, recalc.WithMetrics(o.metrics))
	}
	sess.engine = recalc.New(g, resolved, sess.store, engineOpts...)
	sess.engine.RecomputeAll(ctx)

	// Activation is not a change; observers start from the activated state.
	sess.store.Observe(sess.observe)

	sess.logger.Debug("Session activated.", "parameters", len(resolved), "active", sess.order.Len())
	return sess, nil
}

// ID returns the unique id of the session.
func (s *Session) ID() uuid.UUID { return s.id }

// Tab returns the id of the tab the session was built from.
func (s *Session) Tab() string { return s.schema.Tab }

// Schema returns the schema of the session.
func (s *Session) Schema() *schema.Schema { return s.schema }

// Bus returns the bus the session publishes on.
func (s *Session) Bus() *notify.Bus { return s.bus }

// Keys returns the resolved keys in declaration order.
func (s *Session) Keys() []string {
	keys := make([]string, len(s.resolved))
	for i, d := range s.resolved {
		keys[i] = d.Key
	}
	return keys
}

// Descriptor returns the resolved descriptor of key.
func (s *Session) Descriptor(key string) (*schema.Descriptor, error) {
	d, ok := s.byKey[key]
	if !ok {
		return nil, &engineerr.UnknownKeyError{Key: key}
	}
	return d, nil
}

// Get returns the current value of key.
func (s *Session) Get(key string) (cty.Value, error) { return s.store.Get(key) }

// State returns the current state of key.
func (s *Session) State(key string) (store.State, error) { return s.store.State(key) }

// Count returns the current instance count of the multi attribute template.
func (s *Session) Count(template string) (int, error) {
	n, ok := s.store.Count(template)
	if !ok {
		return 0, &engineerr.UnknownKeyError{Key: template}
	}
	return n, nil
}

// Set writes an external value to key and propagates it. Only the manual and
// default origins are accepted; computed values are written by the engine.
func (s *Session) Set(ctx context.Context, key string, v cty.Value, origin store.Source) (*recalc.Result, error) {
	defer s.flush()
	ctx = s.withLogger(ctx)

	d, ok := s.byKey[key]
	if !ok {
		return nil, &engineerr.UnknownKeyError{Key: key}
	}
	if origin == store.SourceComputed {
		return nil, &engineerr.ValueError{Key: key, Reason: "the computed origin is reserved for calculation rules"}
	}
	st, err := s.store.State(key)
	if err != nil {
		return nil, err
	}
	if st.Auto {
		return nil, &engineerr.AutoLockedError{Key: key}
	}
	coerced, err := d.Coerce(v)
	if err != nil {
		return nil, &engineerr.ValueError{Key: key, Reason: err.Error()}
	}
	if !d.InBounds(coerced) {
		return nil, &engineerr.ValueError{Key: key, Reason: boundsReason(d)}
	}

	changed := !store.Equal(st.Value, coerced)
	if err := s.store.Update(key, func(st *store.State) {
		st.Value = coerced
		st.Source = origin
		st.Stale = false
		st.OutOfBounds = false
	}); err != nil {
		return nil, err
	}
	if !changed {
		return &recalc.Result{Trigger: key}, nil
	}
	s.logger.Debug("Parameter set.", "key", key, "origin", origin)
	return s.engine.Recalc(ctx, key)
}

// Reset restores the declared default of key.
func (s *Session) Reset(ctx context.Context, key string) (*recalc.Result, error) {
	d, ok := s.byKey[key]
	if !ok {
		return nil, &engineerr.UnknownKeyError{Key: key}
	}
	return s.Set(ctx, key, d.Default, store.SourceDefault)
}

// SetAuto toggles the auto flag of key. Enabling it recomputes the parameter
// and propagates the result; disabling it keeps the current value as a manual
// value.
func (s *Session) SetAuto(ctx context.Context, key string, enabled bool) (*recalc.Result, error) {
	defer s.flush()
	return s.setAuto(s.withLogger(ctx), key, enabled)
}

func (s *Session) setAuto(ctx context.Context, key string, enabled bool) (*recalc.Result, error) {
	d, ok := s.byKey[key]
	if !ok {
		return nil, &engineerr.UnknownKeyError{Key: key}
	}
	if !d.AutoCapable {
		return nil, &engineerr.CapabilityError{Key: key, Flag: "auto"}
	}
	st, err := s.store.State(key)
	if err != nil {
		return nil, err
	}
	if st.Auto == enabled {
		return &recalc.Result{Trigger: key}, nil
	}

	if !enabled {
		err := s.store.Update(key, func(st *store.State) {
			st.Auto = false
			st.Source = store.SourceManual
		})
		return &recalc.Result{Trigger: key}, err
	}
	if err := s.store.Update(key, func(st *store.State) { st.Auto = true }); err != nil {
		return nil, err
	}
	res, err := s.engine.Recompute(ctx, key)
	if err != nil {
		return nil, err
	}
	if slices.Contains(res.Failed, key) {
		// The rule cannot produce a value: the parameter stays manual.
		failed, _ := s.store.State(key)
		if err := s.store.Update(key, func(cur *store.State) {
			cur.Auto = false
			cur.Source = st.Source
		}); err != nil {
			return nil, err
		}
		s.logger.Debug("Auto switch rejected; the rule failed.", "key", key)
		return res, failed.ComputeErr
	}
	return res, nil
}

// SetActive toggles the active flag of key and updates the active order.
func (s *Session) SetActive(key string, enabled bool) error {
	defer s.flush()

	d, ok := s.byKey[key]
	if !ok {
		return &engineerr.UnknownKeyError{Key: key}
	}
	if !d.ActiveCapable {
		return &engineerr.CapabilityError{Key: key, Flag: "active"}
	}
	if err := s.store.Update(key, func(st *store.State) { st.Active = enabled }); err != nil {
		return err
	}
	var moved bool
	if enabled {
		moved = s.order.Activate(key)
	} else {
		moved = s.order.Deactivate(key)
	}
	if moved {
		s.orderChanged()
	}
	return nil
}

// SetGroupAuto applies SetAuto to every parameter controlled by the grouped
// auto toggle of section. Template keys control every instance.
func (s *Session) SetGroupAuto(ctx context.Context, section string, enabled bool) (*recalc.Result, error) {
	defer s.flush()
	ctx = s.withLogger(ctx)

	sec, ok := s.schema.Section(section)
	if !ok || sec.GroupedAuto == nil {
		return nil, &engineerr.UnknownKeyError{Key: section}
	}
	controlled := make(map[string]bool)
	for _, raw := range sec.GroupedAuto.Controlled {
		controlled[raw] = true
	}

	// Instances created later by SetCount follow the toggle.
	for raw := range controlled {
		s.groupAuto[raw] = enabled
	}

	total := &recalc.Result{}
	var failed []error
	for _, d := range s.resolved {
		if !controlled[s.rawKey(d)] {
			continue
		}
		res, err := s.setAuto(ctx, d.Key, enabled)
		if res != nil {
			merge(total, res)
		}
		if err != nil {
			if !errors.Is(err, engineerr.ErrCompute) {
				return total, err
			}
			failed = append(failed, err)
		}
	}
	return total, errors.Join(failed...)
}

// ActiveOrder returns the active keys in user-committed order.
func (s *Session) ActiveOrder() []string { return s.order.Order() }

// Reorder commits a new order of the active set.
func (s *Session) Reorder(seq []string) error {
	defer s.flush()
	if err := s.order.Reorder(seq); err != nil {
		return err
	}
	s.orderChanged()
	return nil
}

// Export is the ordered view handed to downstream consumers.
type Export struct {
	Tab    string
	Order  []string
	Values map[string]cty.Value
}

// Export returns the active order and the values of all active parameters.
func (s *Session) Export() Export {
	out := Export{
		Tab:    s.schema.Tab,
		Order:  s.order.Order(),
		Values: make(map[string]cty.Value),
	}
	for _, key := range out.Order {
		if v, err := s.store.Get(key); err == nil {
			out.Values[key] = v
		}
	}
	return out
}

func (s *Session) setResolved(resolved []*schema.Descriptor) {
	s.resolved = resolved
	s.byKey = make(map[string]*schema.Descriptor, len(resolved))
	for _, d := range resolved {
		s.byKey[d.Key] = d
	}
}

func (s *Session) initialState(d *schema.Descriptor) store.State {
	return store.State{
		Value:  d.Default,
		Auto:   d.AutoCapable && s.defaultAuto(d),
		Active: d.ActiveCapable && d.DefaultActive,
		Source: store.SourceDefault,
	}
}

// defaultAuto is the auto flag a new parameter starts with. A grouped auto
// toggle overrides the declared default once it is on or has been set.
func (s *Session) defaultAuto(d *schema.Descriptor) bool {
	if enabled, ok := s.groupAuto[s.rawKey(d)]; ok {
		return enabled
	}
	return d.DefaultAuto
}

// rawKey returns the declared key of d: the template key for instances.
func (s *Session) rawKey(d *schema.Descriptor) string {
	if d.Template == "" {
		return d.Key
	}
	if multi, ok := s.schema.Attribute(d.Template); ok {
		if m, ok := multi.Multi(); ok {
			return m.Template.Key
		}
	}
	return d.Key
}

func (s *Session) withLogger(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, s.logger)
}

func boundsReason(d *schema.Descriptor) string {
	lo, hi := d.Bounds()
	switch {
	case lo != nil && hi != nil:
		return fmt.Sprintf("value is outside [%g, %g]", *lo, *hi)
	case lo != nil:
		return fmt.Sprintf("value is below the minimum %g", *lo)
	default:
		return fmt.Sprintf("value is above the maximum %g", *hi)
	}
}

func merge(total, res *recalc.Result) {
	if res == nil {
		return
	}
	total.Recomputed = append(total.Recomputed, res.Recomputed...)
	total.Changed = append(total.Changed, res.Changed...)
	total.Failed = append(total.Failed, res.Failed...)
	total.Stale = append(total.Stale, res.Stale...)
	total.OutOfBounds = append(total.OutOfBounds, res.OutOfBounds...)
}

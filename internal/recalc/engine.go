// Package recalc propagates value changes through the dependency graph of a
// context.
//
// A cascade starts from one changed key. The engine walks the dependents of
// the key forward, stopping at parameters whose auto flag is off (they are
// flagged stale instead), and evaluates the reached auto parameters in
// topological order. A parameter is evaluated only when one of its inputs
// actually changed, so a rule that yields its previous value ends the cascade
// on that branch.
package recalc

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/specialistvlad/paramgrid/internal/calc"
	"github.com/specialistvlad/paramgrid/internal/ctxlog"
	"github.com/specialistvlad/paramgrid/internal/dag"
	"github.com/specialistvlad/paramgrid/internal/engineerr"
	"github.com/specialistvlad/paramgrid/internal/schema"
	"github.com/specialistvlad/paramgrid/internal/store"
	"github.com/zclconf/go-cty/cty"
)

// Metrics receives one observation per cascade.
type Metrics interface {
	ObserveCascade(tab string, res *Result, elapsed time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) ObserveCascade(string, *Result, time.Duration) {}

// Result summarises one cascade. All key lists are in topological order.
type Result struct {
	// Trigger is the key the cascade started from, empty for RecomputeAll.
	Trigger string
	// Recomputed lists the keys whose rule was evaluated.
	Recomputed []string
	// Changed lists the keys whose value changed, the trigger included.
	Changed []string
	// Failed lists the keys whose rule returned an error.
	Failed []string
	// Stale lists the manual keys flagged stale.
	Stale []string
	// OutOfBounds lists the recomputed keys whose value violates their bounds.
	OutOfBounds []string
}

// Engine runs cascades over one context.
type Engine struct {
	tab     string
	graph   *dag.Graph
	descs   map[string]*schema.Descriptor
	store   *store.Store
	metrics Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithTab names the context in metrics and logs.
func WithTab(tab string) Option {
	return func(e *Engine) { e.tab = tab }
}

// New creates an engine over a sealed graph, the resolved descriptors the
// graph was built from and the store holding their states.
func New(g *dag.Graph, resolved []*schema.Descriptor, st *store.Store, opts ...Option) *Engine {
	e := &Engine{
		graph:   g,
		descs:   make(map[string]*schema.Descriptor, len(resolved)),
		store:   st,
		metrics: nopMetrics{},
	}
	for _, d := range resolved {
		e.descs[d.Key] = d
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rebind swaps the graph and descriptors after the key set changed.
func (e *Engine) Rebind(g *dag.Graph, resolved []*schema.Descriptor) {
	e.graph = g
	e.descs = make(map[string]*schema.Descriptor, len(resolved))
	for _, d := range resolved {
		e.descs[d.Key] = d
	}
}

// Recalc propagates a change of key to its dependents. The value of key
// itself must already be stored.
func (e *Engine) Recalc(ctx context.Context, key string) (*Result, error) {
	if _, ok := e.descs[key]; !ok {
		return nil, &engineerr.UnknownKeyError{Key: key}
	}
	start := time.Now()
	res := &Result{Trigger: key, Changed: []string{key}}
	e.cascade(ctx, map[string]bool{key: true}, res)
	e.finish(ctx, res, start)
	return res, nil
}

// Recompute evaluates the rule of the auto parameter key and, when its value
// changed, propagates the change.
func (e *Engine) Recompute(ctx context.Context, key string) (*Result, error) {
	if _, ok := e.descs[key]; !ok {
		return nil, &engineerr.UnknownKeyError{Key: key}
	}
	start := time.Now()
	res := &Result{Trigger: key}
	if e.evaluate(ctx, key, res) {
		res.Changed = append(res.Changed, key)
		e.cascade(ctx, map[string]bool{key: true}, res)
	}
	e.finish(ctx, res, start)
	return res, nil
}

// RecomputeAll evaluates every auto parameter in topological order. It is
// used when a context is activated, restored or re-expanded.
func (e *Engine) RecomputeAll(ctx context.Context) *Result {
	start := time.Now()
	res := &Result{}
	for _, key := range e.graph.Order() {
		st, err := e.store.State(key)
		if err != nil || !st.Auto {
			continue
		}
		if e.evaluate(ctx, key, res) {
			res.Changed = append(res.Changed, key)
		}
	}
	e.finish(ctx, res, start)
	return res
}

// cascade walks forward from the dirty keys and evaluates the reached auto
// parameters in topological order.
func (e *Engine) cascade(ctx context.Context, dirty map[string]bool, res *Result) {
	logger := ctxlog.FromContext(ctx)

	reached := e.reach(dirty)
	for _, key := range reached {
		if !e.inputsDirty(key, dirty) {
			continue
		}
		st, err := e.store.State(key)
		if err != nil {
			continue
		}
		if !st.Auto {
			if !st.Stale {
				_ = e.store.Update(key, func(s *store.State) { s.Stale = true })
			}
			res.Stale = append(res.Stale, key)
			logger.Debug("Input changed under a manual parameter.", "key", key)
			continue
		}
		if e.evaluate(ctx, key, res) {
			dirty[key] = true
			res.Changed = append(res.Changed, key)
		}
	}
}

// reach collects the dependents reachable from the roots, passing only
// through auto parameters, sorted topologically.
func (e *Engine) reach(roots map[string]bool) []string {
	seen := make(map[string]bool)
	var queue []string
	for key := range roots {
		queue = append(queue, key)
		seen[key] = true
	}
	var reached []string
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		deps, err := e.graph.Dependents(key)
		if err != nil {
			continue
		}
		for _, dep := range deps {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			reached = append(reached, dep)
			if st, err := e.store.State(dep); err == nil && st.Auto {
				queue = append(queue, dep)
			}
		}
	}
	slices.SortFunc(reached, func(a, b string) int {
		ia, _ := e.graph.TopoIndex(a)
		ib, _ := e.graph.TopoIndex(b)
		return ia - ib
	})
	return reached
}

func (e *Engine) inputsDirty(key string, dirty map[string]bool) bool {
	deps, err := e.graph.Dependencies(key)
	if err != nil {
		return false
	}
	for _, dep := range deps {
		if dirty[dep] {
			return true
		}
	}
	return false
}

// evaluate runs the rule of key and stores the outcome. It reports whether
// the stored value changed. A failing rule keeps the previous value; an auto
// parameter is still marked as computed, so its source never reads manual or
// default while the auto flag is on.
func (e *Engine) evaluate(ctx context.Context, key string, res *Result) bool {
	logger := ctxlog.FromContext(ctx)
	d := e.descs[key]
	if d == nil || d.Rule == nil {
		return false
	}
	res.Recomputed = append(res.Recomputed, key)

	v, err := compute(d, e.store.Snapshot())
	if err != nil {
		cerr := &engineerr.ComputeError{Key: key, Rule: d.RuleID(), Err: err}
		_ = e.store.Update(key, func(s *store.State) {
			s.ComputeErr = cerr
			if s.Auto {
				s.Source = store.SourceComputed
			}
		})
		res.Failed = append(res.Failed, key)
		logger.Warn("Calculation rule failed; keeping previous value.", "key", key, "rule", d.RuleID(), "error", err)
		return false
	}

	var changed bool
	outOfBounds := !d.InBounds(v)
	_ = e.store.Update(key, func(s *store.State) {
		changed = !store.Equal(s.Value, v)
		if changed {
			s.Value = v
		}
		s.Source = store.SourceComputed
		s.ComputeErr = nil
		s.Stale = false
		s.OutOfBounds = outOfBounds
	})
	if outOfBounds {
		res.OutOfBounds = append(res.OutOfBounds, key)
		logger.Debug("Computed value is out of bounds.", "key", key)
	}
	return changed
}

func (e *Engine) finish(ctx context.Context, res *Result, start time.Time) {
	elapsed := time.Since(start)
	e.metrics.ObserveCascade(e.tab, res, elapsed)
	ctxlog.FromContext(ctx).Debug("Cascade finished.",
		"tab", e.tab,
		"trigger", res.Trigger,
		"recomputed", len(res.Recomputed),
		"changed", len(res.Changed),
		"failed", len(res.Failed),
		"stale", len(res.Stale),
		"elapsed", elapsed,
	)
}

// compute evaluates the rule of d and turns a panic into an error.
func compute(d *schema.Descriptor, snap calc.Snapshot) (v cty.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = cty.NilVal, fmt.Errorf("rule panicked: %v", r)
		}
	}()
	return d.Compute(snap)
}

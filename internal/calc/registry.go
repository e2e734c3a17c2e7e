package calc

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// Func is the signature of every calculation rule.
type Func func(snap Snapshot, index int) (cty.Value, error)

// Rule is a calculation rule bound to an id.
type Rule struct {
	ID string
	// Reads lists the keys the rule reads. Keys may carry the template
	// placeholder, which is substituted with the instance index.
	Reads []string
	Fn    Func
}

// Module is the interface that rule packs implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry maps rule ids to compiled Go rules for a single application instance.
type Registry struct {
	rules map[string]*Rule
}

// NewRegistry creates an empty registry, optionally populated by modules.
func NewRegistry(modules ...Module) *Registry {
	r := &Registry{rules: make(map[string]*Rule)}
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

// Register adds a rule. Registering the same id twice is a programming error.
func (r *Registry) Register(id string, reads []string, fn Func) {
	if _, exists := r.rules[id]; exists {
		panic(fmt.Sprintf("calculation rule with id '%s' already registered", id))
	}
	if fn == nil {
		panic(fmt.Sprintf("calculation rule '%s' has a nil function", id))
	}
	slog.Debug("Registering calculation rule.", "id", id, "reads", reads)
	r.rules[id] = &Rule{ID: id, Reads: append([]string(nil), reads...), Fn: fn}
}

// Lookup returns the rule registered under id.
func (r *Registry) Lookup(id string) (*Rule, bool) {
	rule, ok := r.rules[id]
	return rule, ok
}

// IDs returns the registered rule ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.rules))
	for id := range r.rules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

package testutil

import (
	"sync/atomic"

	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/paramgrid/internal/calc"
)

// SimpleModule is a reusable calc.Module that registers a single rule.
// Calls counts every evaluation of the rule.
type SimpleModule struct {
	RuleID string
	Reads  []string
	Fn     calc.Func

	Calls atomic.Int64
}

// Register registers the rule with the registry.
func (m *SimpleModule) Register(r *calc.Registry) {
	r.Register(m.RuleID, m.Reads, func(snap calc.Snapshot, index int) (cty.Value, error) {
		m.Calls.Add(1)
		return m.Fn(snap, index)
	})
}

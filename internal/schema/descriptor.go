// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the Descriptor, the immutable description of a single
// parameter, and the helpers that bind its calculation rule.
package schema

import (
	"maps"
	"slices"

	"github.com/specialistvlad/paramgrid/internal/calc"
	"github.com/zclconf/go-cty/cty"
)

// Descriptor is the immutable, schema-owned description of one parameter.
// Resolved descriptors (the output of template expansion) never have a
// placeholder in their key.
type Descriptor struct {
	Key         string
	DisplayName map[string]string
	Type        Type
	Default     cty.Value

	Section   string
	Category  string
	ImagePath string

	AutoCapable   bool
	DefaultAuto   bool
	ActiveCapable bool
	DefaultActive bool

	// Rule is nil for parameters without a calculation rule.
	Rule *calc.Rule
	// Formula holds the formula source when Rule was compiled from one.
	Formula string
	// DependsOn lists the keys the rule reads, explicit or extracted.
	DependsOn []string
	// CountReads lists the templates whose count the rule reads.
	CountReads []string

	// Index is the template instance index, calc.NoIndex otherwise.
	Index int
	// Template is the key of the multi attribute an instance was expanded from.
	Template string

	// explicitDeps is set when depends_on was declared rather than extracted.
	explicitDeps bool
}

// Kind is a shorthand for d.Type.Kind().
func (d *Descriptor) Kind() Kind { return d.Type.Kind() }

// Multi returns the multi-attribute specification of d, if any.
func (d *Descriptor) Multi() (*MultiType, bool) {
	m, ok := d.Type.(*MultiType)
	return m, ok
}

// Options returns the allowed values of an enum descriptor.
func (d *Descriptor) Options() []string {
	if e, ok := d.Type.(*EnumType); ok {
		return slices.Clone(e.Options)
	}
	return nil
}

// Bounds returns the numeric bounds of d. Both are nil for non-numeric kinds.
func (d *Descriptor) Bounds() (min, max *float64) {
	if n, ok := d.Type.(*NumberType); ok {
		return n.Min, n.Max
	}
	return nil, nil
}

// InBounds reports whether v respects the numeric bounds of d. Values of
// non-numeric kinds are always in bounds.
func (d *Descriptor) InBounds(v cty.Value) bool {
	if n, ok := d.Type.(*NumberType); ok {
		return n.InBounds(v)
	}
	return true
}

// Coerce converts v to the representation of d's kind.
func (d *Descriptor) Coerce(v cty.Value) (cty.Value, error) {
	return d.Type.Coerce(v)
}

// Compute evaluates the rule of d against snap and coerces the result.
func (d *Descriptor) Compute(snap calc.Snapshot) (cty.Value, error) {
	v, err := d.Rule.Fn(snap, d.Index)
	if err != nil {
		return cty.NilVal, err
	}
	if err := calc.CheckFinite(v); err != nil {
		return cty.NilVal, err
	}
	return d.Coerce(v)
}

// RuleID returns the id of the rule bound to d, or "" if there is none.
func (d *Descriptor) RuleID() string {
	if d.Rule == nil {
		return ""
	}
	return d.Rule.ID
}

// clone returns a shallow copy of d with its slices and maps duplicated.
func (d *Descriptor) clone() *Descriptor {
	c := *d
	c.DisplayName = maps.Clone(d.DisplayName)
	c.DependsOn = slices.Clone(d.DependsOn)
	c.CountReads = slices.Clone(d.CountReads)
	return &c
}

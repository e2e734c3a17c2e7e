// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the Schema, the loaded and validated description of one
// tab, together with its sections and preview shapes.
package schema

import (
	"slices"

	"github.com/specialistvlad/paramgrid/internal/calc"
)

// Schema is the immutable result of loading one tab. It holds the declared
// (unresolved) attributes; multi attributes are expanded per context with
// ResolveTemplates.
type Schema struct {
	Tab  string
	Name map[string]string

	attrs    []*Descriptor
	byKey    map[string]*Descriptor
	sections []*Section
	shapes   []*Shape
}

// Section groups parameter keys for display.
type Section struct {
	ID       string
	Title    map[string]string
	Position string
	// Keys lists the declared keys of the section in declaration order.
	// Multi attributes appear under their template name.
	Keys        []string
	GroupedAuto *GroupedAuto
}

// GroupedAuto drives the auto flag of several parameters of a section at once.
type GroupedAuto struct {
	Label         map[string]string
	Controlled    []string
	DefaultActive bool
}

// Shape is a preview primitive with its geometry compiled to formulas.
type Shape struct {
	ID          string
	Type        string
	Color       string
	BorderColor string
	BorderWidth int
	// Geometry maps "x", "y", "width" and "height" to their formula. Fields
	// left empty in the definition are absent.
	Geometry map[string]*calc.Formula
}

// Attributes returns the declared attributes in declaration order.
func (s *Schema) Attributes() []*Descriptor { return slices.Clone(s.attrs) }

// Attribute returns the declared attribute with the given raw key.
func (s *Schema) Attribute(key string) (*Descriptor, bool) {
	d, ok := s.byKey[key]
	return d, ok
}

// Sections returns the sections in declaration order.
func (s *Schema) Sections() []*Section { return slices.Clone(s.sections) }

// Section returns the section with the given id.
func (s *Schema) Section(id string) (*Section, bool) {
	for _, sec := range s.sections {
		if sec.ID == id {
			return sec, true
		}
	}
	return nil, false
}

// Shapes returns the preview shapes in declaration order.
func (s *Schema) Shapes() []*Shape { return slices.Clone(s.shapes) }

// Multis returns the multi attributes in declaration order.
func (s *Schema) Multis() []*Descriptor {
	var out []*Descriptor
	for _, d := range s.attrs {
		if _, ok := d.Multi(); ok {
			out = append(out, d)
		}
	}
	return out
}

// DefaultCounts returns the default instance count of every multi attribute.
func (s *Schema) DefaultCounts() map[string]int {
	counts := make(map[string]int)
	for _, d := range s.Multis() {
		m, _ := d.Multi()
		counts[d.Key] = m.CountDefault
	}
	return counts
}

// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file converts a config.Tab into a validated Schema.
package schema

import (
	"context"
	"math/big"
	"slices"

	"github.com/specialistvlad/paramgrid/internal/calc"
	"github.com/specialistvlad/paramgrid/internal/config"
	"github.com/specialistvlad/paramgrid/internal/ctxlog"
	"github.com/specialistvlad/paramgrid/internal/engineerr"
	"github.com/specialistvlad/paramgrid/internal/paramid"
	"github.com/zclconf/go-cty/cty"
)

// defaultCountMax applies to multi attributes declared without count bounds.
const defaultCountMax = 10

// Load validates one tab of the configuration and builds its Schema. Any
// contradiction in the declarations yields a SchemaError; a dependency cycle
// at the default template counts yields a CyclicDependencyError.
func Load(ctx context.Context, tab *config.Tab, reg *calc.Registry) (*Schema, error) {
	if tab == nil {
		return nil, engineerr.Schemaf("", "tab is nil")
	}
	if reg == nil {
		reg = calc.NewRegistry()
	}
	logger := ctxlog.FromContext(ctx).With("tab", tab.ID)
	logger.Debug("Loading tab schema.", "sections", len(tab.Sections))

	s := &Schema{
		Tab:   tab.ID,
		Name:  tab.Name,
		byKey: make(map[string]*Descriptor),
	}

	// rawKeys holds every declared key, template keys included, compared
	// literally.
	rawKeys := make(map[string]string)
	claim := func(key, owner string) error {
		if prev, dup := rawKeys[key]; dup {
			return engineerr.Schemaf(key, "key is declared twice (by %s and %s)", prev, owner)
		}
		rawKeys[key] = owner
		return nil
	}

	sectionIDs := make(map[string]bool)
	for _, sec := range tab.Sections {
		if sec == nil {
			continue
		}
		if sectionIDs[sec.ID] {
			return nil, engineerr.Schemaf("", "section %q is declared twice", sec.ID)
		}
		sectionIDs[sec.ID] = true

		section := &Section{
			ID:       sec.ID,
			Title:    sec.Title,
			Position: sec.Position,
		}
		for _, p := range sec.Parameters {
			if p == nil {
				continue
			}
			d, err := buildDescriptor(p, sec.ID, reg, false)
			if err != nil {
				return nil, err
			}
			if err := claim(d.Key, "section "+sec.ID); err != nil {
				return nil, err
			}
			if m, ok := d.Multi(); ok {
				if err := claim(m.Template.Key, "multi "+d.Key); err != nil {
					return nil, err
				}
			}
			s.attrs = append(s.attrs, d)
			s.byKey[d.Key] = d
			section.Keys = append(section.Keys, d.Key)
			logger.Debug("Loaded parameter.", "key", d.Key, "kind", d.Kind(), "rule", d.RuleID())
		}
		if sec.GroupedAuto != nil {
			section.GroupedAuto = &GroupedAuto{
				Label:         sec.GroupedAuto.Label,
				Controlled:    slices.Clone(sec.GroupedAuto.Controlled),
				DefaultActive: sec.GroupedAuto.DefaultActive,
			}
		}
		s.sections = append(s.sections, section)
	}

	if err := s.checkGroupedAuto(); err != nil {
		return nil, err
	}
	if err := s.checkCountReads(); err != nil {
		return nil, err
	}

	resolved, err := s.ResolveTemplates(s.DefaultCounts())
	if err != nil {
		return nil, err
	}
	if _, err := BuildGraph(resolved); err != nil {
		return nil, err
	}

	shapes, err := compileShapes(tab.Preview)
	if err != nil {
		return nil, err
	}
	s.shapes = shapes

	logger.Debug("Tab schema loaded.", "attributes", len(s.attrs), "resolved", len(resolved), "shapes", len(s.shapes))
	return s, nil
}

// buildDescriptor converts one declared parameter. inTemplate is set for the
// template of a multi attribute, whose key carries the placeholder.
func buildDescriptor(p *config.Parameter, section string, reg *calc.Registry, inTemplate bool) (*Descriptor, error) {
	key := p.Key
	if err := paramid.Validate(key, inTemplate); err != nil {
		return nil, engineerr.Schemaf(key, "%v", err)
	}
	kind, err := ParseKind(p.Kind)
	if err != nil {
		return nil, engineerr.Schemaf(key, "%v", err)
	}

	d := &Descriptor{
		Key:           key,
		DisplayName:   p.DisplayName,
		Section:       section,
		Category:      p.Category,
		ImagePath:     p.ImagePath,
		AutoCapable:   p.Auto,
		DefaultAuto:   p.DefaultAuto,
		ActiveCapable: p.Active,
		DefaultActive: p.DefaultActive,
		Index:         calc.NoIndex,
	}

	if kind != KindFloat && kind != KindInt && (p.Min != nil || p.Max != nil) {
		return nil, engineerr.Schemaf(key, "bounds are only valid for numeric kinds, not %s", kind)
	}
	if kind != KindEnum && len(p.Options) > 0 {
		return nil, engineerr.Schemaf(key, "options are only valid for the enum kind, not %s", kind)
	}

	switch kind {
	case KindFloat, KindInt:
		if p.Min != nil && p.Max != nil && *p.Min > *p.Max {
			return nil, engineerr.Schemaf(key, "bounds are inverted (min %g > max %g)", *p.Min, *p.Max)
		}
		d.Type = &NumberType{Integer: kind == KindInt, Min: p.Min, Max: p.Max}
	case KindString:
		d.Type = &StringType{}
	case KindBoolean:
		d.Type = &BoolType{}
	case KindEnum:
		if len(p.Options) == 0 {
			return nil, engineerr.Schemaf(key, "enum parameter has no options")
		}
		for i, opt := range p.Options {
			if slices.Contains(p.Options[:i], opt) {
				return nil, engineerr.Schemaf(key, "enum option %q is listed twice", opt)
			}
		}
		d.Type = &EnumType{Options: slices.Clone(p.Options)}
	case KindMulti:
		return buildMulti(d, p, section, reg, inTemplate)
	}

	if err := bindDefault(d, p); err != nil {
		return nil, err
	}
	if err := bindRule(d, p, reg, inTemplate); err != nil {
		return nil, err
	}
	if p.DefaultAuto && !p.Auto {
		return nil, engineerr.Schemaf(key, "default_auto is set but the parameter is not auto-capable")
	}
	if p.DefaultActive && !p.Active {
		return nil, engineerr.Schemaf(key, "default_active is set but the parameter is not active-capable")
	}
	return d, nil
}

func buildMulti(d *Descriptor, p *config.Parameter, section string, reg *calc.Registry, inTemplate bool) (*Descriptor, error) {
	key := d.Key
	if inTemplate {
		return nil, engineerr.Schemaf(key, "multi attributes cannot be nested")
	}
	if p.Template == nil {
		return nil, engineerr.Schemaf(key, "multi attribute has no template")
	}
	if p.Auto || p.Active || p.Calc != "" || p.Formula != "" || p.Default != nil {
		return nil, engineerr.Schemaf(key, "multi attributes carry no value, flags or rule of their own")
	}

	countMax := p.CountMax
	if p.CountMin == 0 && countMax == 0 {
		countMax = defaultCountMax
	}
	if p.CountMin < 0 || p.CountMin > countMax {
		return nil, engineerr.Schemaf(key, "count bounds are invalid (min %d, max %d)", p.CountMin, countMax)
	}
	if p.CountDefault < p.CountMin || p.CountDefault > countMax {
		return nil, engineerr.Schemaf(key, "default count %d is outside [%d, %d]", p.CountDefault, p.CountMin, countMax)
	}

	tmpl, err := buildDescriptor(p.Template, section, reg, true)
	if err != nil {
		return nil, err
	}
	d.Type = &MultiType{
		Template:     tmpl,
		CountMin:     p.CountMin,
		CountMax:     countMax,
		CountDefault: p.CountDefault,
	}
	d.Default = cty.NumberIntVal(int64(p.CountDefault))
	return d, nil
}

// bindDefault coerces the declared default, or picks the zero value of the
// kind. An implicit numeric default is moved inside the bounds.
func bindDefault(d *Descriptor, p *config.Parameter) error {
	if p.Default != nil {
		v, err := d.Coerce(*p.Default)
		if err != nil {
			return engineerr.Schemaf(d.Key, "default: %v", err)
		}
		if !d.InBounds(v) {
			return engineerr.Schemaf(d.Key, "default %s is outside the bounds", v.AsBigFloat().Text('g', -1))
		}
		d.Default = v
		return nil
	}

	switch t := d.Type.(type) {
	case *NumberType:
		zero := big.NewFloat(0)
		switch {
		case t.Min != nil && zero.Cmp(big.NewFloat(*t.Min)) < 0:
			d.Default = cty.NumberFloatVal(*t.Min)
		case t.Max != nil && zero.Cmp(big.NewFloat(*t.Max)) > 0:
			d.Default = cty.NumberFloatVal(*t.Max)
		default:
			d.Default = cty.Zero
		}
	case *StringType:
		d.Default = cty.StringVal("")
	case *BoolType:
		d.Default = cty.False
	case *EnumType:
		d.Default = cty.StringVal(t.Options[0])
	}
	return nil
}

// bindRule resolves the calculation rule and the dependency list.
func bindRule(d *Descriptor, p *config.Parameter, reg *calc.Registry, inTemplate bool) error {
	key := d.Key
	if p.Calc != "" && p.Formula != "" {
		return engineerr.Schemaf(key, "calc and formula are mutually exclusive")
	}
	hasRule := p.Calc != "" || p.Formula != ""
	if p.Auto && !hasRule {
		return engineerr.Schemaf(key, "auto-capable parameter has no calculation rule")
	}
	if hasRule && !p.Auto {
		return engineerr.Schemaf(key, "calculation rule declared on a parameter that is not auto-capable")
	}
	if !hasRule {
		if p.DependsOn != nil {
			return engineerr.Schemaf(key, "depends_on is declared without a calculation rule")
		}
		return nil
	}

	for _, dep := range p.DependsOn {
		if err := paramid.Validate(dep, paramid.HasPlaceholder(dep)); err != nil {
			return engineerr.Schemaf(key, "depends_on: %v", err)
		}
		if !inTemplate && paramid.HasPlaceholder(dep) {
			return engineerr.Schemaf(key, "depends_on %q uses the placeholder outside a template", dep)
		}
	}
	d.explicitDeps = p.DependsOn != nil
	d.DependsOn = slices.Clone(p.DependsOn)

	if p.Calc != "" {
		rule, ok := reg.Lookup(p.Calc)
		if !ok {
			return engineerr.Schemaf(key, "calculation rule %q is not registered", p.Calc)
		}
		d.Rule = rule
		if !d.explicitDeps && !inTemplate {
			d.DependsOn = slices.Clone(rule.Reads)
		}
		return nil
	}

	index := calc.NoIndex
	if inTemplate {
		// Templates are compiled per instance; index 0 validates the source.
		index = 0
	}
	f, err := calc.ParseFormula(p.Formula, index)
	if err != nil {
		return engineerr.Schemaf(key, "%v", err)
	}
	d.Formula = p.Formula
	if inTemplate {
		return nil
	}
	d.Rule = f.Rule()
	d.CountReads = f.Counts()
	if !d.explicitDeps {
		d.DependsOn = f.Reads()
	}
	return nil
}

// checkGroupedAuto verifies that every grouped auto toggle controls known,
// auto-capable attributes. Template keys are accepted and control every
// instance.
func (s *Schema) checkGroupedAuto() error {
	for _, sec := range s.sections {
		if sec.GroupedAuto == nil {
			continue
		}
		for _, key := range sec.GroupedAuto.Controlled {
			d, ok := s.lookupRaw(key)
			if !ok {
				return engineerr.Schemaf(key, "grouped auto of section %q controls an unknown parameter", sec.ID)
			}
			if !d.AutoCapable {
				return engineerr.Schemaf(key, "grouped auto of section %q controls a parameter that is not auto-capable", sec.ID)
			}
		}
	}
	return nil
}

// checkCountReads verifies that `count.<name>` references name multi
// attributes.
func (s *Schema) checkCountReads() error {
	check := func(d *Descriptor, counts []string) error {
		for _, name := range counts {
			m, ok := s.byKey[name]
			if !ok {
				return engineerr.Schemaf(d.Key, "formula reads the count of unknown multi attribute %q", name)
			}
			if _, isMulti := m.Multi(); !isMulti {
				return engineerr.Schemaf(d.Key, "formula reads the count of %q, which is not a multi attribute", name)
			}
		}
		return nil
	}
	for _, d := range s.attrs {
		if m, ok := d.Multi(); ok && m.Template.Formula != "" {
			f, err := calc.ParseFormula(m.Template.Formula, 0)
			if err != nil {
				return engineerr.Schemaf(m.Template.Key, "%v", err)
			}
			if err := check(m.Template, f.Counts()); err != nil {
				return err
			}
			continue
		}
		if err := check(d, d.CountReads); err != nil {
			return err
		}
	}
	return nil
}

// lookupRaw finds a declared attribute or the template of a multi attribute
// by its raw key.
func (s *Schema) lookupRaw(key string) (*Descriptor, bool) {
	if d, ok := s.byKey[key]; ok {
		return d, true
	}
	for _, d := range s.attrs {
		if m, ok := d.Multi(); ok && m.Template.Key == key {
			return m.Template, true
		}
	}
	return nil, false
}

var shapeFields = []struct {
	name string
	get  func(*config.Shape) string
}{
	{"x", func(s *config.Shape) string { return s.X }},
	{"y", func(s *config.Shape) string { return s.Y }},
	{"width", func(s *config.Shape) string { return s.Width }},
	{"height", func(s *config.Shape) string { return s.Height }},
}

func compileShapes(defs []*config.Shape) ([]*Shape, error) {
	shapes := make([]*Shape, 0, len(defs))
	seen := make(map[string]bool)
	for _, def := range defs {
		if def == nil {
			continue
		}
		if seen[def.ID] {
			return nil, engineerr.Schemaf("", "preview shape %q is declared twice", def.ID)
		}
		seen[def.ID] = true

		shape := &Shape{
			ID:          def.ID,
			Type:        def.Type,
			Color:       def.Color,
			BorderColor: def.BorderColor,
			BorderWidth: def.BorderWidth,
			Geometry:    make(map[string]*calc.Formula),
		}
		for _, field := range shapeFields {
			src := field.get(def)
			if src == "" {
				continue
			}
			f, err := calc.ParseFormula(src, calc.NoIndex)
			if err != nil {
				return nil, engineerr.Schemaf("", "preview shape %q %s: %v", def.ID, field.name, err)
			}
			shape.Geometry[field.name] = f
		}
		shapes = append(shapes, shape)
	}
	return shapes, nil
}

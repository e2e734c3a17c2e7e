// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file implements template expansion of multi attributes.
package schema

import (
	"sort"

	"github.com/specialistvlad/paramgrid/internal/calc"
	"github.com/specialistvlad/paramgrid/internal/engineerr"
	"github.com/specialistvlad/paramgrid/internal/paramid"
)

// ResolveTemplates expands every multi attribute with the count given in
// counts (its default count when absent) and returns the flat list of
// resolved descriptors. Plain attributes keep their declaration order and
// instances take the place of their multi attribute, ordered by index.
func (s *Schema) ResolveTemplates(counts map[string]int) ([]*Descriptor, error) {
	unknown := make([]string, 0)
	for name := range counts {
		d, ok := s.byKey[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if _, isMulti := d.Multi(); !isMulti {
			return nil, engineerr.Schemaf(name, "a count was given for a parameter that is not a multi attribute")
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, engineerr.Schemaf(unknown[0], "a count was given for an unknown multi attribute")
	}

	var out []*Descriptor
	seen := make(map[string]bool)
	for _, d := range s.attrs {
		m, isMulti := d.Multi()
		if !isMulti {
			out = append(out, d)
			seen[d.Key] = true
			continue
		}
		count, ok := counts[d.Key]
		if !ok {
			count = m.CountDefault
		}
		instances, err := Expand(d, count)
		if err != nil {
			return nil, err
		}
		for _, inst := range instances {
			if seen[inst.Key] {
				return nil, engineerr.Schemaf(inst.Key, "expanded key of %q collides with another parameter", d.Key)
			}
			seen[inst.Key] = true
			out = append(out, inst)
		}
	}
	return out, nil
}

// Expand produces count resolved descriptors from the multi attribute multi.
// The placeholder is substituted with the index in the key, in every
// display-name translation and in depends_on, and the template's rule is bound
// to the index.
func Expand(multi *Descriptor, count int) ([]*Descriptor, error) {
	m, ok := multi.Multi()
	if !ok {
		return nil, engineerr.Schemaf(multi.Key, "parameter is not a multi attribute")
	}
	if !m.ValidCount(count) {
		return nil, engineerr.Schemaf(multi.Key, "count %d is outside [%d, %d]", count, m.CountMin, m.CountMax)
	}

	out := make([]*Descriptor, 0, count)
	for i := 0; i < count; i++ {
		inst, err := instantiate(m.Template, multi.Key, i)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

// InstanceIndex returns the index of key as an instance of the multi
// attribute multi.
func InstanceIndex(multi *Descriptor, key string) (int, bool) {
	m, ok := multi.Multi()
	if !ok {
		return -1, false
	}
	return paramid.Match(m.Template.Key, key)
}

func instantiate(tmpl *Descriptor, multiKey string, index int) (*Descriptor, error) {
	d := tmpl.clone()
	d.Key = paramid.Substitute(tmpl.Key, index)
	d.Index = index
	d.Template = multiKey
	for lang, text := range tmpl.DisplayName {
		d.DisplayName[lang] = paramid.Substitute(text, index)
	}

	switch {
	case tmpl.Formula != "":
		f, err := calc.ParseFormula(tmpl.Formula, index)
		if err != nil {
			return nil, engineerr.Schemaf(d.Key, "%v", err)
		}
		d.Rule = f.Rule()
		d.CountReads = f.Counts()
		if !tmpl.explicitDeps {
			d.DependsOn = f.Reads()
		}
	case tmpl.Rule != nil && !tmpl.explicitDeps:
		d.DependsOn = substituteAll(tmpl.Rule.Reads, index)
	}
	if tmpl.explicitDeps {
		d.DependsOn = substituteAll(tmpl.DependsOn, index)
	}
	return d, nil
}

func substituteAll(keys []string, index int) []string {
	if keys == nil {
		return nil
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = paramid.Substitute(k, index)
	}
	return out
}

// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file builds the dependency graph over resolved descriptors.
package schema

import (
	"github.com/specialistvlad/paramgrid/internal/dag"
	"github.com/specialistvlad/paramgrid/internal/engineerr"
)

// BuildGraph creates a sealed dependency graph with one node per resolved
// descriptor and an edge from every key a rule reads to the key it computes.
// A dependency that does not resolve is a SchemaError; a cycle is a
// CyclicDependencyError.
func BuildGraph(resolved []*Descriptor) (*dag.Graph, error) {
	g := dag.New()
	for _, d := range resolved {
		g.AddNode(d.Key)
	}
	for _, d := range resolved {
		if d.Rule == nil {
			continue
		}
		for _, dep := range d.DependsOn {
			if !g.HasNode(dep) {
				return nil, engineerr.Schemaf(d.Key, "depends on %q, which does not resolve", dep)
			}
			if err := g.AddEdge(dep, d.Key); err != nil {
				return nil, err
			}
		}
	}
	if err := g.Seal(); err != nil {
		return nil, err
	}
	return g, nil
}

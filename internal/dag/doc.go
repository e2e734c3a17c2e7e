// Package dag is the dependency layer of the engine. It holds a directed
// acyclic graph over resolved parameter keys: an edge from A to B means the
// calculation rule of B reads A.
//
// The graph knows nothing about parameters, values or rules. Callers add nodes
// and edges, then Seal the graph, which runs a topological sort and fails with
// a CyclicDependencyError naming a member of any cycle. A sealed graph answers
// TopoIndex, Order, Dependents and Dependencies queries deterministically:
// ties are broken by node insertion order.
package dag

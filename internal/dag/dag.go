package dag

import (
	"fmt"
	"slices"
	"sort"

	"github.com/specialistvlad/paramgrid/internal/engineerr"
)

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*node),
	}
}

// AddNode adds a new node with the given ID to the graph. If a node with
// the same ID already exists, the function does nothing.
func (g *Graph) AddNode(id string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[id]; ok {
		return
	}

	g.nodes[id] = &node{
		id:         id,
		seq:        len(g.ids),
		topo:       -1,
		deps:       make(map[string]*node),
		dependents: make(map[string]*node),
	}
	g.ids = append(g.ids, id)
	g.sealed = false
}

// HasNode reports whether id is part of the graph.
func (g *Graph) HasNode(id string) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.nodes)
}

// AddEdge creates a directed edge from the `fromID` node to the `toID` node.
// This signifies that `toID` has a dependency on `fromID`. An error is returned
// if either node does not exist. A self-reference is a cycle of length one.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return &engineerr.CyclicDependencyError{Key: fromID, Cycle: []string{fromID, fromID}}
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	fromNode, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}

	toNode, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}

	toNode.deps[fromID] = fromNode
	fromNode.dependents[toID] = toNode
	g.sealed = false

	return nil
}

// Dependencies returns the IDs of the nodes the given node depends on.
func (g *Graph) Dependencies(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return g.sorted(n.deps), nil
}

// Dependents returns the IDs of the nodes that depend on the given node.
func (g *Graph) Dependents(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return g.sorted(n.dependents), nil
}

// sorted returns the ids of set in topological order when the graph is
// sealed, in insertion order otherwise. Callers hold the read lock.
func (g *Graph) sorted(set map[string]*node) []string {
	nodes := make([]*node, 0, len(set))
	for _, n := range set {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		if g.sealed {
			return nodes[i].topo < nodes[j].topo
		}
		return nodes[i].seq < nodes[j].seq
	})
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.id
	}
	return ids
}

// Seal computes the topological order of the graph with Kahn's algorithm.
// Among nodes that become ready at the same time, the one inserted first
// comes first. A cycle yields a CyclicDependencyError.
func (g *Graph) Seal() error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	indegree := make(map[string]int, len(g.nodes))
	var ready []*node
	for _, id := range g.ids {
		n := g.nodes[id]
		indegree[id] = len(n.deps)
		if len(n.deps) == 0 {
			ready = append(ready, n)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		n.topo = len(order)
		order = append(order, n.id)

		var released []*node
		for _, dep := range n.dependents {
			indegree[dep.id]--
			if indegree[dep.id] == 0 {
				released = append(released, dep)
			}
		}
		ready = append(ready, released...)
		// Keep the ready queue in insertion order.
		sort.SliceStable(ready, func(i, j int) bool { return ready[i].seq < ready[j].seq })
	}

	if len(order) < len(g.nodes) {
		for _, id := range g.ids {
			g.nodes[id].topo = -1
		}
		g.order = nil
		g.sealed = false
		return g.findCycle(indegree)
	}

	g.order = order
	g.sealed = true
	return nil
}

// Sealed reports whether the topological order is current.
func (g *Graph) Sealed() bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.sealed
}

// Order returns a copy of the topological order computed by Seal.
func (g *Graph) Order() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return slices.Clone(g.order)
}

// TopoIndex returns the position of id in the topological order. It returns
// false when the node is unknown or the graph is not sealed.
func (g *Graph) TopoIndex(id string) (int, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok || !g.sealed {
		return -1, false
	}
	return n.topo, true
}

// DetectCycles checks the graph for any cycles without sealing it.
func (g *Graph) DetectCycles() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.findCycle(nil)
}

// findCycle runs a depth-first search over the nodes left unsorted (all of
// them when remaining is nil) and returns the first cycle it closes.
func (g *Graph) findCycle(remaining map[string]int) error {
	// permanent: nodes that have been fully visited and are not part of a cycle.
	// onStack: nodes currently in the recursion stack for the current traversal.
	permanent := make(map[string]bool)
	onStack := make(map[string]int)
	var stack []string

	var visit func(n *node) error
	visit = func(n *node) error {
		if permanent[n.id] {
			return nil
		}
		if pos, ok := onStack[n.id]; ok {
			cycle := append(slices.Clone(stack[pos:]), n.id)
			return &engineerr.CyclicDependencyError{Key: n.id, Cycle: cycle}
		}

		onStack[n.id] = len(stack)
		stack = append(stack, n.id)

		for _, id := range g.sorted(n.dependents) {
			if remaining != nil && remaining[id] == 0 {
				continue
			}
			if err := visit(g.nodes[id]); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		delete(onStack, n.id)
		permanent[n.id] = true
		return nil
	}

	for _, id := range g.ids {
		if remaining != nil && remaining[id] == 0 {
			continue
		}
		if err := visit(g.nodes[id]); err != nil {
			return err
		}
	}
	return nil
}

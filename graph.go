package ecsched

import (
	"errors"
	"slices"
)

// EdgeKind tells whether an edge was declared or derived.
type EdgeKind uint8

const (
	// EdgeExplicit is a declared Before/After constraint.
	EdgeExplicit EdgeKind = iota

	// EdgeImplicit is derived from conflicting component access.
	EdgeImplicit
)

// String returns the string representation of the edge kind.
func (k EdgeKind) String() string {
	switch k {
	case EdgeExplicit:
		return "explicit"
	case EdgeImplicit:
		return "implicit"
	default:
		return "unknown"
	}
}

// Edge is a directed dependency: From must complete before To starts.
type Edge struct {
	From SystemID
	To   SystemID
	Kind EdgeKind

	// Components lists the conflicting component types behind an implicit edge.
	Components []ComponentType
}

// graph is a directed graph over system ids. Parallel edges collapse into
// one; adjacency lists are kept sorted so every traversal is deterministic.
type graph struct {
	nodes []SystemID
	succ  map[SystemID][]SystemID
	pred  map[SystemID][]SystemID
	edges map[[2]SystemID]*Edge
}

// newGraph creates a graph over the given sorted node ids.
func newGraph(nodes []SystemID) *graph {
	g := &graph{
		nodes: nodes,
		succ:  make(map[SystemID][]SystemID, len(nodes)),
		pred:  make(map[SystemID][]SystemID, len(nodes)),
		edges: make(map[[2]SystemID]*Edge),
	}
	return g
}

// addEdge inserts e. A duplicate of an existing edge is dropped, except that
// an explicit edge replaces an implicit one between the same pair.
func (g *graph) addEdge(e Edge) {
	key := [2]SystemID{e.From, e.To}
	if existing, ok := g.edges[key]; ok {
		if existing.Kind == EdgeImplicit && e.Kind == EdgeExplicit {
			existing.Kind = EdgeExplicit
			existing.Components = nil
		}
		return
	}
	g.edges[key] = &e
	g.succ[e.From] = insertSorted(g.succ[e.From], e.To)
	g.pred[e.To] = insertSorted(g.pred[e.To], e.From)
}

// hasEdge reports whether a direct edge exists in either direction.
func (g *graph) hasEdge(a, b SystemID) bool {
	_, ab := g.edges[[2]SystemID{a, b}]
	_, ba := g.edges[[2]SystemID{b, a}]
	return ab || ba
}

// topoOrder runs Kahn's algorithm, always emitting the smallest ready id.
// Nodes left over sit on or behind a cycle and are returned in rest, sorted.
func (g *graph) topoOrder() (order, rest []SystemID) {
	indegree := make(map[SystemID]int, len(g.nodes))
	for _, n := range g.nodes {
		indegree[n] = len(g.pred[n])
	}

	ready := newReadyQueue(len(g.nodes))
	for _, n := range g.nodes {
		if indegree[n] == 0 {
			ready.Push(n)
		}
	}

	order = make([]SystemID, 0, len(g.nodes))
	for ready.Len() > 0 {
		n := ready.Pop()
		order = append(order, n)
		for _, s := range g.succ[n] {
			indegree[s]--
			if indegree[s] == 0 {
				ready.Push(s)
			}
		}
	}

	if len(order) == len(g.nodes) {
		return order, nil
	}
	for _, n := range g.nodes {
		if indegree[n] > 0 {
			rest = append(rest, n)
		}
	}
	return order, rest
}

// findCycle extracts one cycle from the nodes Kahn's algorithm could not
// emit. Every such node has a predecessor among them, so walking smallest
// predecessors from the smallest node must revisit a node.
func (g *graph) findCycle(rest []SystemID) []SystemID {
	if len(rest) == 0 {
		return nil
	}
	inRest := make(map[SystemID]bool, len(rest))
	for _, n := range rest {
		inRest[n] = true
	}

	visited := make(map[SystemID]int)
	var path []SystemID
	cur := rest[0]
	for {
		if pos, ok := visited[cur]; ok {
			cycle := slices.Clone(path[pos:])
			// path follows predecessors; reverse for edge order
			slices.Reverse(cycle)
			return rotateToMin(cycle)
		}
		visited[cur] = len(path)
		path = append(path, cur)

		next, found := SystemID(""), false
		for _, p := range g.pred[cur] {
			if inRest[p] {
				next, found = p, true
				break
			}
		}
		if !found {
			return nil
		}
		cur = next
	}
}

// edgeList returns all edges sorted by (From, To).
func (g *graph) edgeList() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, *e)
	}
	slices.SortFunc(out, func(a, b Edge) int {
		if a.From != b.From {
			return compareIDs(a.From, b.From)
		}
		return compareIDs(a.To, b.To)
	})
	return out
}

// explicitGraph builds the declared-ordering graph over every registered
// system, enabled or not. Unknown references are collected and joined.
func explicitGraph(decls []Declaration) (*graph, error) {
	ids := make([]SystemID, len(decls))
	known := make(map[SystemID]bool, len(decls))
	for i := range decls {
		ids[i] = decls[i].ID
		known[decls[i].ID] = true
	}

	g := newGraph(ids)
	var errs []error
	for i := range decls {
		d := &decls[i]
		for _, b := range d.Before {
			if !known[b] {
				errs = append(errs, &UnknownSystemReferenceError{From: d.ID, Missing: b})
				continue
			}
			g.addEdge(Edge{From: d.ID, To: b, Kind: EdgeExplicit})
		}
		for _, a := range d.After {
			if !known[a] {
				errs = append(errs, &UnknownSystemReferenceError{From: d.ID, Missing: a})
				continue
			}
			g.addEdge(Edge{From: a, To: d.ID, Kind: EdgeExplicit})
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return g, nil
}

// bridge projects the explicit graph onto the enabled systems. A path that
// runs through disabled systems becomes a direct edge, so A before D before C
// keeps A before C while D is disabled.
func (g *graph) bridge(enabled []SystemID) *graph {
	isEnabled := make(map[SystemID]bool, len(enabled))
	for _, id := range enabled {
		isEnabled[id] = true
	}

	out := newGraph(enabled)
	for _, u := range enabled {
		seen := make(map[SystemID]bool)
		stack := slices.Clone(g.succ[u])
		for len(stack) > 0 {
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if seen[v] {
				continue
			}
			seen[v] = true
			if isEnabled[v] {
				out.addEdge(Edge{From: u, To: v, Kind: EdgeExplicit})
				continue
			}
			stack = append(stack, g.succ[v]...)
		}
	}
	return out
}

func insertSorted(list []SystemID, id SystemID) []SystemID {
	i, found := slices.BinarySearch(list, id)
	if found {
		return list
	}
	return slices.Insert(list, i, id)
}

func rotateToMin(cycle []SystemID) []SystemID {
	if len(cycle) == 0 {
		return cycle
	}
	m := 0
	for i, id := range cycle {
		if id < cycle[m] {
			m = i
		}
	}
	return append(slices.Clone(cycle[m:]), cycle[:m]...)
}

func compareIDs(a, b SystemID) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

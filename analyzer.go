package ecsched

import (
	"slices"
)

// Conflict is a pair of systems whose component access overlaps in a way
// that forbids running them concurrently. A < B.
type Conflict struct {
	A          SystemID
	B          SystemID
	Components []ComponentType
}

// FindConflicts reports every conflicting pair among decls.
// Two systems conflict if both write a component type, or one writes a type
// the other reads. Disabled declarations are ignored. Pairs come out sorted
// by (A, B).
func FindConflicts(decls []Declaration) []Conflict {
	active := make([]*Declaration, 0, len(decls))
	for i := range decls {
		if decls[i].Enabled() {
			active = append(active, &decls[i])
		}
	}
	slices.SortFunc(active, func(a, b *Declaration) int { return compareIDs(a.ID, b.ID) })

	ix := newComponentIndex()
	metas := make([]AccessMeta, len(active))
	for i, d := range active {
		metas[i] = AccessMeta{
			Reads:  ix.mask(d.Reads),
			Writes: ix.mask(d.Writes),
		}
	}

	var out []Conflict
	for i := range active {
		for j := i + 1; j < len(active); j++ {
			if !metas[i].Conflicts(&metas[j]) {
				continue
			}
			on := ix.types(metas[i].Overlap(&metas[j]))
			slices.Sort(on)
			out = append(out, Conflict{
				A:          active[i].ID,
				B:          active[j].ID,
				Components: on,
			})
		}
	}
	return out
}

// orientConflicts adds an implicit edge for every conflicting pair that has
// no direct explicit edge. The edge points from the system ranked earlier in
// the deterministic topological order of the explicit graph. Without
// explicit constraints that rank is plain id order; with them it never
// contradicts a declared edge, so implicit edges cannot close a cycle.
func orientConflicts(g *graph, conflicts []Conflict, rank map[SystemID]int) {
	for _, c := range conflicts {
		if g.hasEdge(c.A, c.B) {
			continue
		}
		from, to := c.A, c.B
		if rank[to] < rank[from] {
			from, to = to, from
		}
		g.addEdge(Edge{
			From:       from,
			To:         to,
			Kind:       EdgeImplicit,
			Components: c.Components,
		})
	}
}

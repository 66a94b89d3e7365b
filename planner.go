package ecsched

import (
	"fmt"
	"math"
	"slices"
)

// CostSource supplies measured costs that override declared ones.
type CostSource interface {
	Cost(id SystemID) (float64, bool)
}

// PlanOptions tune plan construction.
type PlanOptions struct {
	// Workers caps every stage's worker hint. Zero or negative means no cap.
	Workers int

	// Costs, when set, overrides declared costs for load balancing.
	Costs CostSource
}

// measured returns the measured cost of id, if there is a usable one.
func (o PlanOptions) measured(id SystemID) (float64, bool) {
	if o.Costs == nil {
		return 0, false
	}
	c, ok := o.Costs.Cost(id)
	if !ok || !(c > 0) || math.IsInf(c, 0) {
		return 0, false
	}
	return c, true
}

// costs returns the load-balancing cost of every declaration.
// Measured costs are wall time while declared costs are relative units, so
// the declared cost of a system that has not been measured yet is scaled by
// the ratio of measured to declared cost over the systems that have both.
func (o PlanOptions) costs(decls []Declaration) map[SystemID]float64 {
	out := make(map[SystemID]float64, len(decls))
	var measuredSum, declaredSum float64
	var unmeasured []*Declaration
	for i := range decls {
		d := &decls[i]
		if c, ok := o.measured(d.ID); ok {
			out[d.ID] = c
			measuredSum += c
			declaredSum += d.effectiveCost()
			continue
		}
		unmeasured = append(unmeasured, d)
	}

	scale := 1.0
	if measuredSum > 0 && declaredSum > 0 {
		scale = measuredSum / declaredSum
	}
	for _, d := range unmeasured {
		out[d.ID] = d.effectiveCost() * scale
	}
	return out
}

// Build computes the execution plan for a registry snapshot.
//
// It fails with ErrUnknownSystemReference when an ordering constraint names
// an unregistered system, with ErrCyclicDependency when the declared
// constraints form a cycle, and with ErrConflictingMainThreadConstraint if
// the levelled plan violates an edge or places conflicting systems together.
func Build(snap Snapshot, opts PlanOptions) (*Plan, error) {
	all := snap.decls

	explicit, err := explicitGraph(all)
	if err != nil {
		return nil, err
	}
	if _, rest := explicit.topoOrder(); len(rest) > 0 {
		return nil, &CyclicDependencyError{Cycle: explicit.findCycle(rest)}
	}

	decls := make(map[SystemID]*Declaration, len(all))
	enabled := make([]SystemID, 0, len(all))
	active := make([]Declaration, 0, len(all))
	for i := range all {
		if !all[i].Enabled() {
			continue
		}
		decls[all[i].ID] = &all[i]
		enabled = append(enabled, all[i].ID)
		active = append(active, all[i])
	}

	g := explicit.bridge(enabled)
	order, rest := g.topoOrder()
	if len(rest) > 0 {
		return nil, &CyclicDependencyError{Cycle: g.findCycle(rest)}
	}
	rank := make(map[SystemID]int, len(order))
	for i, id := range order {
		rank[id] = i
	}

	conflicts := FindConflicts(active)
	orientConflicts(g, conflicts, rank)

	// Implicit edges point forward in rank, so order is still topological.
	level := make(map[SystemID]int, len(order))
	depth := 0
	for _, id := range order {
		l := 0
		for _, p := range g.pred[id] {
			if level[p]+1 > l {
				l = level[p] + 1
			}
		}
		level[id] = l
		depth = max(depth, l+1)
	}

	plan := &Plan{
		Version:   snap.version,
		Stages:    make([]Stage, depth),
		Edges:     g.edgeList(),
		Conflicts: conflicts,
		decls:     decls,
		stageOf:   level,
	}
	for i := range plan.Stages {
		plan.Stages[i].Index = i
	}
	// enabled is sorted, so each stage's lists come out sorted too.
	for _, id := range enabled {
		s := &plan.Stages[level[id]]
		if decls[id].MainThread {
			s.MainThread = append(s.MainThread, id)
		} else {
			s.Parallel = append(s.Parallel, id)
		}
	}

	if err := plan.verify(); err != nil {
		return nil, err
	}

	costs := opts.costs(active)
	for i := range plan.Stages {
		plan.balance(&plan.Stages[i], costs, opts.Workers)
	}
	plan.ID = plan.fingerprint()
	plan.layout = buildLayout(plan)
	return plan, nil
}

// verify checks the levelled plan against every edge and conflict.
func (p *Plan) verify() error {
	for _, e := range p.Edges {
		if p.stageOf[e.From] >= p.stageOf[e.To] {
			return &PlacementError{
				From:   e.From,
				To:     e.To,
				Reason: fmt.Sprintf("%s edge not respected (stage %d, stage %d)", e.Kind, p.stageOf[e.From], p.stageOf[e.To]),
			}
		}
	}
	for _, c := range p.Conflicts {
		if p.stageOf[c.A] == p.stageOf[c.B] {
			return &PlacementError{
				From:   c.A,
				To:     c.B,
				Reason: fmt.Sprintf("conflicting access to %v in stage %d", c.Components, p.stageOf[c.A]),
			}
		}
	}
	return nil
}

// balance fills in the stage's cost, worker hint and lanes.
// Lanes are filled longest-processing-time first: systems by descending
// cost, then ascending id, each onto the least loaded lane.
func (p *Plan) balance(s *Stage, costs map[SystemID]float64, maxWorkers int) {
	for _, id := range s.MainThread {
		s.Cost += costs[id]
	}

	var total, largest float64
	for _, id := range s.Parallel {
		total += costs[id]
		largest = max(largest, costs[id])
	}
	s.Cost += total

	if len(s.Parallel) == 0 {
		return
	}

	// Guard against 4.0000000001 rounding up to 5.
	workers := int(math.Ceil(total/largest - 1e-9))
	workers = max(1, min(workers, len(s.Parallel)))
	if maxWorkers > 0 {
		workers = min(workers, maxWorkers)
	}
	s.Workers = workers

	sorted := slices.Clone(s.Parallel)
	slices.SortStableFunc(sorted, func(a, b SystemID) int {
		switch {
		case costs[a] > costs[b]:
			return -1
		case costs[a] < costs[b]:
			return 1
		}
		return compareIDs(a, b)
	})

	s.Lanes = make([][]SystemID, workers)
	loads := make([]float64, workers)
	for _, id := range sorted {
		lane := 0
		for i := 1; i < workers; i++ {
			if loads[i] < loads[lane] {
				lane = i
			}
		}
		s.Lanes[lane] = append(s.Lanes[lane], id)
		loads[lane] += costs[id]
	}
}

package ecsched

import (
	"testing"
)

// decl builds a declaration from small option funcs so test tables stay
// readable.
func decl(id string, opts ...func(*Declaration)) Declaration {
	d := Declaration{ID: SystemID(id)}
	for _, o := range opts {
		o(&d)
	}
	return d
}

func reads(types ...string) func(*Declaration) {
	return func(d *Declaration) {
		for _, t := range types {
			d.Reads = append(d.Reads, ComponentType(t))
		}
	}
}

func writes(types ...string) func(*Declaration) {
	return func(d *Declaration) {
		for _, t := range types {
			d.Writes = append(d.Writes, ComponentType(t))
		}
	}
}

func before(ids ...string) func(*Declaration) {
	return func(d *Declaration) {
		for _, id := range ids {
			d.Before = append(d.Before, SystemID(id))
		}
	}
}

func after(ids ...string) func(*Declaration) {
	return func(d *Declaration) {
		for _, id := range ids {
			d.After = append(d.After, SystemID(id))
		}
	}
}

func cost(c float64) func(*Declaration) {
	return func(d *Declaration) { d.Cost = c }
}

func onMain(d *Declaration)   { d.MainThread = true }
func disabled(d *Declaration) { d.Disabled = true }

func hook(fn SystemFunc) func(*Declaration) {
	return func(d *Declaration) { d.System = fn }
}

func registryOf(t *testing.T, decls ...Declaration) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, d := range decls {
		if err := r.Register(d); err != nil {
			t.Fatalf("Register(%s): %v", d.ID, err)
		}
	}
	return r
}

func mustBuild(t *testing.T, decls ...Declaration) *Plan {
	t.Helper()
	plan, err := Build(registryOf(t, decls...).Snapshot(), PlanOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return plan
}

func stageOf(t *testing.T, p *Plan, id string) int {
	t.Helper()
	s, ok := p.StageOf(SystemID(id))
	if !ok {
		t.Fatalf("%s not planned", id)
	}
	return s
}

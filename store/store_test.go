package store

import (
	"slices"
	"testing"
	"time"

	"github.com/oriumgames/ecsched"
)

type pos struct{ X, Y float64 }
type vel struct{ X, Y float64 }
type tag struct{}

func TestEntityPoolRecycling(t *testing.T) {
	p := NewEntityPool()
	a := p.Create()
	b := p.Create()
	if a.Index() != 0 || b.Index() != 1 || p.Len() != 2 {
		t.Fatalf("a=%d b=%d len=%d", a, b, p.Len())
	}

	if !p.Destroy(a) || p.Destroy(a) {
		t.Fatal("Destroy should succeed once")
	}
	if p.Alive(a) {
		t.Error("destroyed entity still alive")
	}

	c := p.Create()
	if c.Index() != a.Index() || c.Generation() != a.Generation()+1 {
		t.Errorf("recycled id = (%d, gen %d)", c.Index(), c.Generation())
	}
	if p.Alive(a) || !p.Alive(c) || p.Len() != 2 {
		t.Error("stale id confused with its successor")
	}
	if p.Alive(NewEntityID(99, 0)) {
		t.Error("unallocated index alive")
	}
}

func TestStore(t *testing.T) {
	s := New[pos]()
	if s.Type() != ecsched.Component[pos]() {
		t.Errorf("Type() = %s", s.Type())
	}

	s.Set(1, &pos{X: 1})
	s.Set(2, &pos{X: 2})
	if got, ok := s.Get(1); !ok || got.X != 1 {
		t.Errorf("Get(1) = %v, %v", got, ok)
	}
	s.Remove(1)
	if s.Has(1) || !s.Has(2) || s.Len() != 1 {
		t.Error("Remove removed the wrong entity")
	}

	sum := 0.0
	s.Each(func(_ EntityID, p *pos) { sum += p.X })
	if sum != 2 {
		t.Errorf("Each visited %v", sum)
	}
}

func TestJoins(t *testing.T) {
	ps, vs, ts := New[pos](), New[vel](), New[tag]()
	for i := EntityID(0); i < 10; i++ {
		ps.Set(i, &pos{})
		if i%2 == 0 {
			vs.Set(i, &vel{X: 1})
		}
		if i%3 == 0 {
			ts.Set(i, &tag{})
		}
	}

	var two []EntityID
	Each2(ps, vs, func(id EntityID, p *pos, v *vel) {
		p.X += v.X
		two = append(two, id)
	})
	slices.Sort(two)
	if !slices.Equal(two, []EntityID{0, 2, 4, 6, 8}) {
		t.Errorf("Each2 visited %v", two)
	}

	// Every argument order drives the loop from a different store.
	for name, run := range map[string]func(func(EntityID)){
		"pos first": func(f func(EntityID)) { Each3(ps, vs, ts, func(id EntityID, _ *pos, _ *vel, _ *tag) { f(id) }) },
		"tag first": func(f func(EntityID)) { Each3(ts, ps, vs, func(id EntityID, _ *tag, _ *pos, _ *vel) { f(id) }) },
		"tag middle": func(f func(EntityID)) { Each3(ps, ts, vs, func(id EntityID, _ *pos, _ *tag, _ *vel) { f(id) }) },
	} {
		var three []EntityID
		run(func(id EntityID) { three = append(three, id) })
		slices.Sort(three)
		if !slices.Equal(three, []EntityID{0, 6}) {
			t.Errorf("%s: Each3 visited %v", name, three)
		}
	}
}

func TestWorldDeferredChanges(t *testing.T) {
	w := NewWorld()
	ps := New[pos]()
	w.Register(ps)

	a := w.CreateEntity()
	ps.Set(a, &pos{})

	var spawned EntityID
	w.Defer(func(w *World) {
		spawned = w.CreateEntity()
		ps.Set(spawned, &pos{X: 5})
	})
	w.MarkForDestruction(a)

	if !w.Alive(a) || w.Len() != 1 {
		t.Fatal("queued changes applied before Flush")
	}
	w.Flush()

	if w.Alive(a) || ps.Has(a) {
		t.Error("marked entity survived Flush")
	}
	if !w.Alive(spawned) || w.Len() != 1 {
		t.Error("deferred spawn missing")
	}

	w.DestroyEntity(spawned)
	w.DestroyEntity(spawned)
	if ps.Len() != 0 || w.Len() != 0 {
		t.Errorf("stores hold %d components after destroy", ps.Len())
	}
}

func TestFlushDeclaration(t *testing.T) {
	w := NewWorld()
	ps, vs := New[pos](), New[vel]()
	w.Register(ps, vs)

	d := FlushDeclaration(w, "flush", "movement", "decay")
	if !slices.Equal(d.Writes, []ecsched.ComponentType{ps.Type(), vs.Type()}) {
		t.Errorf("Writes = %v", d.Writes)
	}

	e := w.CreateEntity()
	w.MarkForDestruction(e)
	if err := d.System.Update(w, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if w.Alive(e) {
		t.Error("flush system did not flush")
	}
}

func TestWorldScheduled(t *testing.T) {
	w := NewWorld()
	ps, vs := New[pos](), New[vel]()
	w.Register(ps, vs)
	for i := 0; i < 100; i++ {
		id := w.CreateEntity()
		ps.Set(id, &pos{})
		vs.Set(id, &vel{X: 1, Y: 2})
	}

	m := ecsched.NewManager(ecsched.WithWorkers(4))
	defer m.Close()

	move := ecsched.Declaration{
		ID:     "movement",
		Reads:  []ecsched.ComponentType{vs.Type()},
		Writes: []ecsched.ComponentType{ps.Type()},
		System: ecsched.SystemFunc(func(ecsched.World, time.Duration) error {
			Each2(ps, vs, func(_ EntityID, p *pos, v *vel) {
				p.X += v.X
				p.Y += v.Y
			})
			return nil
		}),
	}
	reap := ecsched.Declaration{
		ID:    "reap",
		Reads: []ecsched.ComponentType{ps.Type()},
		System: ecsched.SystemFunc(func(wd ecsched.World, _ time.Duration) error {
			world := wd.(*World)
			ps.Each(func(id EntityID, p *pos) {
				if p.X >= 3 {
					world.MarkForDestruction(id)
				}
			})
			return nil
		}),
	}
	for _, d := range []ecsched.Declaration{move, reap, FlushDeclaration(w, "flush", "movement", "reap")} {
		if err := m.Register(d); err != nil {
			t.Fatal(err)
		}
	}

	for tick := 1; tick <= 3; tick++ {
		if _, err := m.Tick(w, 50*time.Millisecond); err != nil {
			t.Fatal(err)
		}
	}
	if w.Len() != 0 {
		t.Errorf("%d entities left, want 0", w.Len())
	}
}

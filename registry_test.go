package ecsched

import (
	"errors"
	"math"
	"slices"
	"testing"
	"time"
)

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name string
		decl Declaration
	}{
		{"empty id", decl("   ")},
		{"negative cost", decl("a", cost(-1))},
		{"nan cost", decl("a", cost(math.NaN()))},
		{"infinite cost", decl("a", cost(math.Inf(1)))},
		{"negative interval", decl("a", func(d *Declaration) { d.Interval = -time.Second })},
		{"empty read", decl("a", reads(""))},
		{"empty write", decl("a", writes(" "))},
		{"empty before", decl("a", before(""))},
		{"empty after", decl("a", after(" "))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			if err := r.Register(tt.decl); !errors.Is(err, ErrInvalidDeclaration) {
				t.Fatalf("err = %v, want ErrInvalidDeclaration", err)
			}
			if r.Len() != 0 || r.Version() != 0 {
				t.Error("rejected declaration changed the registry")
			}
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := registryOf(t, decl("caf\u00e9"))

	for _, id := range []string{"caf\u00e9", "cafe\u0301", "  caf\u00e9\t"} {
		err := r.Register(decl(id))
		if !errors.Is(err, ErrDuplicateSystem) {
			t.Errorf("Register(%q) = %v, want ErrDuplicateSystem", id, err)
		}
		var dup *DuplicateSystemError
		if errors.As(err, &dup) && dup.ID != "caf\u00e9" {
			t.Errorf("duplicate id = %q", dup.ID)
		}
	}
	if r.Len() != 1 || r.Version() != 1 {
		t.Errorf("Len = %d, Version = %d", r.Len(), r.Version())
	}
}

func TestRegisterNormalizes(t *testing.T) {
	r := registryOf(t, decl(" a ",
		reads("B", "A", "B"),
		writes(" C", "C"),
		after("x", " x"),
	), decl("x"))

	d, ok := r.Lookup("a")
	if !ok {
		t.Fatal("a not found")
	}
	if !slices.Equal(d.Reads, []ComponentType{"A", "B"}) {
		t.Errorf("Reads = %v", d.Reads)
	}
	if !slices.Equal(d.Writes, []ComponentType{"C"}) {
		t.Errorf("Writes = %v", d.Writes)
	}
	if !slices.Equal(d.After, []SystemID{"x"}) {
		t.Errorf("After = %v", d.After)
	}
}

func TestRegisterCopiesDeclaration(t *testing.T) {
	d := decl("a", reads("X"))
	r := registryOf(t, d)
	d.Reads[0] = "Y"

	got, _ := r.Lookup("a")
	if got.Reads[0] != "X" {
		t.Error("registered declaration shares memory with the caller's")
	}
}

func TestRegisterBundleAtomic(t *testing.T) {
	r := registryOf(t, decl("b"))

	bund := NewBundle("stage").Add(decl("a"), decl("b"), decl("c"))
	if err := r.RegisterBundle(bund); !errors.Is(err, ErrDuplicateSystem) {
		t.Fatalf("err = %v, want ErrDuplicateSystem", err)
	}
	if r.Len() != 1 || r.Version() != 1 || len(r.Bundles()) != 0 {
		t.Fatalf("failed bundle left a trace: len %d, version %d, bundles %v", r.Len(), r.Version(), r.Bundles())
	}

	tests := []struct {
		name   string
		bundle *Bundle
		want   error
	}{
		{"nil", nil, ErrInvalidDeclaration},
		{"inner duplicate", NewBundle("dup").Add(decl("x"), decl(" x")), ErrDuplicateSystem},
		{"invalid member", NewBundle("bad").Add(decl("x"), decl("y", cost(-2))), ErrInvalidDeclaration},
		{"describe failure", NewBundle("desc").System(nil), ErrInvalidDeclaration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.RegisterBundle(tt.bundle); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if r.Len() != 1 {
				t.Errorf("Len = %d after failed bundle", r.Len())
			}
		})
	}
}

func TestBundleLifecycle(t *testing.T) {
	r := NewRegistry()
	stage := NewBundle("stage").
		Add(decl("spawn")).
		Func("decay", nil, writes("Lifetime"))

	if err := r.RegisterBundle(stage); err != nil {
		t.Fatal(err)
	}
	if v := r.Version(); v != 1 {
		t.Errorf("bundle registration bumped version to %d, want 1", v)
	}
	if err := r.RegisterBundle(NewBundle("stage").Add(decl("other"))); !errors.Is(err, ErrDuplicateBundle) {
		t.Errorf("err = %v, want ErrDuplicateBundle", err)
	}

	if !r.Unregister("spawn") {
		t.Fatal("Unregister(spawn) = false")
	}
	if got := r.Bundles(); !slices.Equal(got, []string{"stage"}) {
		t.Errorf("Bundles() = %v", got)
	}
	if !r.UnregisterBundle("stage") || r.Len() != 0 {
		t.Fatal("UnregisterBundle did not remove the remaining members")
	}
	if r.UnregisterBundle("stage") || r.Unregister("spawn") {
		t.Error("second removal reported success")
	}

	// The last member going away removes the bundle.
	if err := r.RegisterBundle(NewBundle("solo").Add(decl("only"))); err != nil {
		t.Fatal(err)
	}
	r.Unregister("only")
	if len(r.Bundles()) != 0 {
		t.Errorf("Bundles() = %v, want none", r.Bundles())
	}
}

func TestSetEnabledVersion(t *testing.T) {
	r := registryOf(t, decl("a"))
	v := r.Version()

	if err := r.SetEnabled("a", true); err != nil || r.Version() != v {
		t.Errorf("no-op SetEnabled: err %v, version %d -> %d", err, v, r.Version())
	}
	if err := r.SetEnabled("a", false); err != nil || r.Version() != v+1 {
		t.Errorf("disable: err %v, version %d -> %d", err, v, r.Version())
	}
	if d, _ := r.Lookup("a"); d.Enabled() {
		t.Error("a still enabled")
	}
	if err := r.SetEnabled("missing", true); !errors.Is(err, ErrUnknownSystem) {
		t.Errorf("err = %v, want ErrUnknownSystem", err)
	}
}

func TestSnapshot(t *testing.T) {
	r := registryOf(t, decl("c"), decl("a"), decl("b"))
	snap := r.Snapshot()

	var ids []SystemID
	for _, d := range snap.Declarations() {
		ids = append(ids, d.ID)
	}
	if !slices.Equal(ids, []SystemID{"a", "b", "c"}) {
		t.Errorf("snapshot order = %v", ids)
	}

	r.Register(decl("d"))
	r.Unregister("a")
	if snap.Len() != 3 || snap.Version() != 3 {
		t.Errorf("snapshot changed: len %d, version %d", snap.Len(), snap.Version())
	}
	if _, ok := snap.Lookup("a"); !ok {
		t.Error("snapshot lost a")
	}
	if _, ok := snap.Lookup("d"); ok {
		t.Error("snapshot gained d")
	}
}

package ecsched

import (
	"errors"
	"slices"
	"testing"
	"time"
)

type position struct{ X, Y float64 }
type velocity struct{ X, Y float64 }
type mesh struct{}

type movementSystem struct {
	_ Read[velocity]
	_ Write[position]
	_ Read[position]
	_ Meta `ecsched:"id=movement,after=input|physics,cost=2.5"`
}

func (*movementSystem) Update(World, time.Duration) error { return nil }

type renderSystem struct {
	_ Read[mesh]
	_ Read[position]
	_ Meta `ecsched:"main, before=present, interval=16ms, disabled"`
}

func (*renderSystem) Update(World, time.Duration) error { return nil }

type plainSystem struct{}

func (plainSystem) Update(World, time.Duration) error { return nil }

type brokenSystem struct {
	_ Meta `ecsched:"cost=lots"`
}

func (*brokenSystem) Update(World, time.Duration) error { return nil }

func TestDescribe(t *testing.T) {
	sys := &movementSystem{}
	d, err := Describe(sys)
	if err != nil {
		t.Fatal(err)
	}

	if d.ID != "movement" || d.Cost != 2.5 || d.MainThread || d.Disabled {
		t.Errorf("declaration = %+v", d)
	}
	if !slices.Equal(d.Writes, []ComponentType{Component[position]()}) {
		t.Errorf("Writes = %v", d.Writes)
	}
	// position is written, so it is not repeated in Reads.
	if !slices.Equal(d.Reads, []ComponentType{Component[velocity]()}) {
		t.Errorf("Reads = %v", d.Reads)
	}
	if !slices.Equal(d.After, []SystemID{"input", "physics"}) {
		t.Errorf("After = %v", d.After)
	}
	if d.System != System(sys) {
		t.Error("hook is not the described system")
	}

	r, err := Describe(&renderSystem{})
	if err != nil {
		t.Fatal(err)
	}
	if r.ID != "renderSystem" || !r.MainThread || !r.Disabled || r.Interval != 16*time.Millisecond {
		t.Errorf("render declaration = %+v", r)
	}
	if !slices.Equal(r.Before, []SystemID{"present"}) || len(r.Reads) != 2 {
		t.Errorf("render declaration = %+v", r)
	}

	p, err := Describe(plainSystem{})
	if err != nil || p.ID != "plainSystem" || len(p.Reads)+len(p.Writes) != 0 {
		t.Errorf("plain = %+v, %v", p, err)
	}
}

func TestDescribeErrors(t *testing.T) {
	tests := []struct {
		name string
		sys  System
	}{
		{"nil", nil},
		{"not a struct", SystemFunc(func(World, time.Duration) error { return nil })},
		{"bad tag", &brokenSystem{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Describe(tt.sys); !errors.Is(err, ErrInvalidDeclaration) {
				t.Errorf("err = %v, want ErrInvalidDeclaration", err)
			}
		})
	}
}

func TestParseTag(t *testing.T) {
	tests := []struct {
		tag     string
		want    TagInfo
		wantErr bool
	}{
		{tag: "", want: TagInfo{}},
		{tag: "id=a", want: TagInfo{ID: "a"}},
		{tag: "main,disabled", want: TagInfo{MainThread: true, Disabled: true}},
		{tag: "before=a|b, after = c |", want: TagInfo{Before: []string{"a", "b"}, After: []string{"c"}}},
		{tag: "cost=0.5,interval=1s", want: TagInfo{Cost: 0.5, Interval: time.Second}},
		{tag: "cost=x", wantErr: true},
		{tag: "interval=soon", wantErr: true},
		{tag: "id", wantErr: true},
		{tag: "colour=red", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, err := parseTag(tt.tag)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseTag(%q) err = %v", tt.tag, err)
			}
			if tt.wantErr {
				return
			}
			if got.ID != tt.want.ID || got.Cost != tt.want.Cost || got.Interval != tt.want.Interval ||
				got.MainThread != tt.want.MainThread || got.Disabled != tt.want.Disabled ||
				!slices.Equal(got.Before, tt.want.Before) || !slices.Equal(got.After, tt.want.After) {
				t.Errorf("parseTag(%q) = %+v, want %+v", tt.tag, got, tt.want)
			}
		})
	}
}

func TestComponentNames(t *testing.T) {
	if Component[position]() != Component[*position]() {
		t.Error("pointer and value types should share a component")
	}
	if Component[position]() == Component[velocity]() {
		t.Error("distinct types share a component")
	}
	if got := Component[position]().String(); got != "github.com/oriumgames/ecsched.position" {
		t.Errorf("Component[position]() = %q", got)
	}
	if got := Component[int](); got != "int" {
		t.Errorf("Component[int]() = %q", got)
	}
}

func TestFindConflicts(t *testing.T) {
	decls := []Declaration{
		decl("c", reads("X")),
		decl("a", writes("X", "Y")),
		decl("b", reads("Y"), writes("Z")),
		decl("d", reads("Z"), disabled),
		decl("e", reads("X", "Y")),
	}
	for i := range decls {
		decls[i] = decls[i].normalize()
	}

	got := FindConflicts(decls)
	want := []Conflict{
		{A: "a", B: "b", Components: []ComponentType{"Y"}},
		{A: "a", B: "c", Components: []ComponentType{"X"}},
		{A: "a", B: "e", Components: []ComponentType{"X", "Y"}},
	}
	if len(got) != len(want) {
		t.Fatalf("conflicts = %+v", got)
	}
	for i := range want {
		if got[i].A != want[i].A || got[i].B != want[i].B || !slices.Equal(got[i].Components, want[i].Components) {
			t.Errorf("conflict %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

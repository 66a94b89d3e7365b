package luasys

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/oriumgames/ecsched"
	"github.com/oriumgames/ecsched/table"
)

const counter = `
total = 0
function update(dt, tick)
    total = total + dt
    last_tick = tick
end
`

func TestUpdateCallsScript(t *testing.T) {
	s, err := New("counter", counter)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	for i := 0; i < 3; i++ {
		if err := s.Update(nil, 500*time.Millisecond); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	if got := lua.LVAsNumber(s.Global("total")); got != 1.5 {
		t.Errorf("total = %v, want 1.5", got)
	}
	if got := lua.LVAsNumber(s.Global("last_tick")); got != 3 {
		t.Errorf("last_tick = %v, want 3", got)
	}
}

func TestUpdateFailures(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"runtime error", "function update() error('boom') end", "boom"},
		{"returned message", "function update() return 'bad state' end", "bad state"},
		{"no update", "x = 1", "no update function"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.name, tt.source)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			defer s.Close()

			err = s.Update(nil, time.Millisecond)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Update error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestSyntaxError(t *testing.T) {
	if _, err := New("broken", "function update("); err == nil {
		t.Fatal("expected load error")
	}
}

func TestWithGlobal(t *testing.T) {
	s, err := New("scaled", "function update(dt) out = dt * factor end", WithGlobal("factor", lua.LNumber(10)))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Update(nil, time.Second); err != nil {
		t.Fatal(err)
	}
	if got := lua.LVAsNumber(s.Global("out")); got != 10 {
		t.Errorf("out = %v, want 10", got)
	}
}

func TestDeclaration(t *testing.T) {
	s, err := New("weather", `
system = {
    id = "weather",
    reads = { "Wind" },
    writes = { "Cloud", "Rain" },
    after = { "movement" },
    main_thread = true,
    cost = 0.5,
}
function update() end
`)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	d, err := s.Declaration("fallback")
	if err != nil {
		t.Fatalf("Declaration: %v", err)
	}
	if d.ID != "weather" || !d.MainThread || d.Cost != 0.5 {
		t.Errorf("declaration = %+v", d)
	}
	if len(d.Reads) != 1 || d.Reads[0] != "Wind" {
		t.Errorf("reads = %v", d.Reads)
	}
	if len(d.Writes) != 2 || d.Writes[0] != "Cloud" || d.Writes[1] != "Rain" {
		t.Errorf("writes = %v", d.Writes)
	}
	if len(d.After) != 1 || d.After[0] != "movement" {
		t.Errorf("after = %v", d.After)
	}
	if d.System != s {
		t.Error("declaration hook is not the script")
	}

	plain, err := New("plain", "function update() end")
	if err != nil {
		t.Fatal(err)
	}
	defer plain.Close()
	d, err = plain.Declaration("plain")
	if err != nil || d.ID != "plain" {
		t.Errorf("fallback declaration = %+v, %v", d, err)
	}
}

func TestDeclarationSchedulingKeys(t *testing.T) {
	tests := []struct {
		name     string
		table    string
		interval time.Duration
		disabled bool
		wantErr  bool
	}{
		{name: "defaults", table: `{}`},
		{name: "interval", table: `{ interval = "250ms" }`, interval: 250 * time.Millisecond},
		{name: "enabled false", table: `{ enabled = false }`, disabled: true},
		{name: "enabled true", table: `{ enabled = true }`},
		{name: "disabled", table: `{ disabled = true, interval = "1s" }`, interval: time.Second, disabled: true},
		{name: "bad interval", table: `{ interval = "soon" }`, wantErr: true},
		{name: "numeric interval", table: `{ interval = 5 }`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.name, "system = "+tt.table+"\nfunction update() end")
			if err != nil {
				t.Fatal(err)
			}
			defer s.Close()

			d, err := s.Declaration("keys")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Declaration err = %v", err)
			}
			if tt.wantErr {
				return
			}
			if d.Interval != tt.interval || d.Disabled != tt.disabled {
				t.Errorf("interval %s disabled %v, want %s %v", d.Interval, d.Disabled, tt.interval, tt.disabled)
			}
		})
	}
}

func TestFailureBecomesRuntimeError(t *testing.T) {
	s, err := New("boom", "function update() error('boom') end")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	r := ecsched.NewRegistry()
	if err := r.Register(ecsched.Declaration{ID: "boom", System: s}); err != nil {
		t.Fatal(err)
	}
	plan, err := ecsched.Build(r.Snapshot(), ecsched.PlanOptions{})
	if err != nil {
		t.Fatal(err)
	}

	report, err := ecsched.NewExecutor(ecsched.ExecutorConfig{}).Run(nil, time.Millisecond, plan)
	if !errors.Is(err, ecsched.ErrSystemRuntimeFailure) {
		t.Fatalf("err = %v, want runtime failure", err)
	}
	if len(report.Failures) != 1 || report.Failures[0].System != "boom" || report.Failures[0].Panicked {
		t.Errorf("failures = %+v", report.Failures)
	}
}

func TestBinder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tick.lua")
	if err := os.WriteFile(path, []byte("function update() end"), 0o644); err != nil {
		t.Fatal(err)
	}

	var loaded []*System
	b := Binder(func(s *System) { loaded = append(loaded, s) })

	sys, err := b.Bind(table.Row{ID: "tick", Script: path})
	if err != nil || sys == nil {
		t.Fatalf("Bind = %v, %v", sys, err)
	}
	defer loaded[0].Close()

	if _, err := b.Bind(table.Row{ID: "native"}); !errors.Is(err, table.ErrUnbound) {
		t.Errorf("row without script: err = %v, want ErrUnbound", err)
	}
	if _, err := b.Bind(table.Row{ID: "missing", Script: filepath.Join(t.TempDir(), "nope.lua")}); err == nil {
		t.Error("expected error for missing script")
	}
}

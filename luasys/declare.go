package luasys

import (
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/oriumgames/ecsched"
	"github.com/oriumgames/ecsched/table"
)

// Declaration builds a declaration from the script's system table, with the
// script as its update hook. fallbackID is used when the table has no id.
// A script without a system table gets an empty access declaration.
// The table accepts the same keys as a declaration table row: id, reads,
// writes, before, after, main_thread, cost, interval and enabled, plus
// disabled as in the struct tag.
func (s *System) Declaration(fallbackID ecsched.SystemID) (ecsched.Declaration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	decl := ecsched.Declaration{ID: fallbackID, System: s}

	v := s.vm.GetGlobal("system")
	if v == lua.LNil {
		return decl, nil
	}
	t, ok := v.(*lua.LTable)
	if !ok {
		return ecsched.Declaration{}, fmt.Errorf("%s: system must be a table, got %s", s.name, v.Type())
	}

	if id, ok := t.RawGetString("id").(lua.LString); ok && id != "" {
		decl.ID = ecsched.SystemID(id)
	}
	for _, c := range stringList(t.RawGetString("reads")) {
		decl.Reads = append(decl.Reads, ecsched.ComponentNamed(c))
	}
	for _, c := range stringList(t.RawGetString("writes")) {
		decl.Writes = append(decl.Writes, ecsched.ComponentNamed(c))
	}
	for _, id := range stringList(t.RawGetString("before")) {
		decl.Before = append(decl.Before, ecsched.SystemID(id))
	}
	for _, id := range stringList(t.RawGetString("after")) {
		decl.After = append(decl.After, ecsched.SystemID(id))
	}
	decl.MainThread = lua.LVAsBool(t.RawGetString("main_thread"))
	if cost, ok := t.RawGetString("cost").(lua.LNumber); ok {
		decl.Cost = float64(cost)
	}
	if v := t.RawGetString("interval"); v != lua.LNil {
		str, ok := v.(lua.LString)
		if !ok {
			return ecsched.Declaration{}, fmt.Errorf("%s: interval must be a duration string, got %s", s.name, v.Type())
		}
		d, err := time.ParseDuration(string(str))
		if err != nil {
			return ecsched.Declaration{}, fmt.Errorf("%s: interval: %w", s.name, err)
		}
		decl.Interval = d
	}
	// enabled = false and disabled = true both switch the system off.
	if v := t.RawGetString("enabled"); v != lua.LNil && !lua.LVAsBool(v) {
		decl.Disabled = true
	}
	if lua.LVAsBool(t.RawGetString("disabled")) {
		decl.Disabled = true
	}
	return decl, nil
}

func stringList(v lua.LValue) []string {
	t, ok := v.(*lua.LTable)
	if !ok {
		return nil
	}
	var out []string
	t.ForEach(func(_, item lua.LValue) {
		if str, ok := item.(lua.LString); ok {
			out = append(out, string(str))
		}
	})
	return out
}

// Binder returns a table.Binder that loads each row's script, if it has
// one. The table row stays the source of scheduling metadata. Loaded
// systems are passed to track so the caller can close them.
func Binder(track func(*System), opts ...Option) table.Binder {
	return table.BinderFunc(func(r table.Row) (ecsched.System, error) {
		if r.Script == "" {
			return nil, table.ErrUnbound
		}
		s, err := Load(r.Script, opts...)
		if err != nil {
			return nil, err
		}
		if track != nil {
			track(s)
		}
		return s, nil
	})
}

// Package luasys runs Lua scripts as scheduler systems.
//
// A script defines a global update function, called once per tick with the
// tick delta in seconds and the script's own tick counter:
//
//	function update(dt, tick)
//	    if tick % 20 == 0 then log("heartbeat " .. tick) end
//	end
//
// Returning a non-empty string from update reports a failure; so does any
// Lua runtime error. A script may describe its own scheduling metadata in a
// global table named system:
//
//	system = {
//	    id = "weather",
//	    reads = { "Wind" },
//	    writes = { "Cloud" },
//	    after = { "movement" },
//	    main_thread = false,
//	    cost = 0.5,
//	}
package luasys

import (
	"errors"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/oriumgames/ecsched"
)

// ErrNoUpdate is returned when a script defines no update function.
var ErrNoUpdate = errors.New("luasys: script has no update function")

// System wraps a single gopher-lua VM. The VM is not safe for concurrent
// use; the scheduler never runs one system twice at once, and the mutex
// covers callers outside the scheduler.
type System struct {
	mu   sync.Mutex
	vm   *lua.LState
	log  *zap.Logger
	name string
	tick uint64
}

// Option configures a System.
type Option func(*System)

// WithLogger sets the logger used by the script's log function.
func WithLogger(l *zap.Logger) Option {
	return func(s *System) {
		if l != nil {
			s.log = l
		}
	}
}

// WithGlobal sets a global before the script runs.
func WithGlobal(name string, v lua.LValue) Option {
	return func(s *System) {
		s.vm.SetGlobal(name, v)
	}
}

func newSystem(name string, opts []Option) *System {
	s := &System{
		vm:   lua.NewState(),
		log:  zap.NewNop(),
		name: name,
	}
	s.vm.SetGlobal("API_VERSION", lua.LNumber(1))
	for _, opt := range opts {
		opt(s)
	}
	s.vm.SetGlobal("log", s.vm.NewFunction(s.luaLog))
	return s
}

// New compiles source and runs its top level.
func New(name, source string, opts ...Option) (*System, error) {
	s := newSystem(name, opts)
	if err := s.vm.DoString(source); err != nil {
		s.vm.Close()
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return s, nil
}

// Load runs the script file at path.
func Load(path string, opts ...Option) (*System, error) {
	s := newSystem(path, opts)
	if err := s.vm.DoFile(path); err != nil {
		s.vm.Close()
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	s.log.Debug("loaded lua script", zap.String("file", path))
	return s, nil
}

// Name returns the script name or path.
func (s *System) Name() string {
	return s.name
}

// Update calls the script's update function.
func (s *System) Update(_ ecsched.World, dt time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn := s.vm.GetGlobal("update")
	if fn.Type() != lua.LTFunction {
		return fmt.Errorf("%s: %w", s.name, ErrNoUpdate)
	}

	s.tick++
	if err := s.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(dt.Seconds()), lua.LNumber(s.tick)); err != nil {
		return fmt.Errorf("lua %s: %w", s.name, err)
	}

	result := s.vm.Get(-1)
	s.vm.Pop(1)

	if msg, ok := result.(lua.LString); ok && msg != "" {
		return fmt.Errorf("lua %s: %s", s.name, string(msg))
	}
	return nil
}

// Global returns a global value of the script.
func (s *System) Global(name string) lua.LValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vm.GetGlobal(name)
}

// SetGlobal sets a global value of the script.
func (s *System) SetGlobal(name string, v lua.LValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vm.SetGlobal(name, v)
}

// Close releases the VM.
func (s *System) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vm.Close()
}

func (s *System) luaLog(L *lua.LState) int {
	s.log.Info(L.CheckString(1), zap.String("script", s.name), zap.Uint64("tick", s.tick))
	return 0
}

package ecsched

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MainThreadFunc runs fn on the designated thread and returns once fn has
// returned. Hosts with a UI or render thread post fn there and wait.
type MainThreadFunc func(fn func())

// TickReport summarizes one executed tick.
type TickReport struct {
	Tick     uint64
	Delta    time.Duration
	PlanID   uuid.UUID
	Ran      int
	Skipped  int
	Duration time.Duration

	// Failures are ordered by stage, then main-thread systems before
	// parallel ones, then id.
	Failures []*SystemRuntimeError
}

// Failed reports whether any system failed during the tick.
func (r *TickReport) Failed() bool {
	return len(r.Failures) > 0
}

// Err joins every failure into one error, or returns nil.
func (r *TickReport) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// ExecutorConfig configures an Executor.
type ExecutorConfig struct {
	// Pool runs parallel lanes. A nil pool runs them inline.
	Pool *Pool

	// Logger receives failure reports. Nil means zap.NewNop().
	Logger *zap.Logger

	// MainThread runs main-thread systems. Nil runs them on the goroutine
	// that calls Run.
	MainThread MainThreadFunc

	// Costs, when set, receives the wall time of every update.
	Costs *CostModel

	// OnFailure is called once per failure, after the tick, in report order.
	// It runs after the executor has released its lock, so it may read
	// TickNumber and SimTime.
	OnFailure func(*SystemRuntimeError)
}

// Executor runs a plan once per tick.
//
// Within a stage the main-thread systems run first, one after another, on
// the designated thread. The parallel lanes are then dispatched to the pool,
// and the stage ends once every lane has returned. Failed systems never stop
// the rest of the tick.
type Executor struct {
	cfg ExecutorConfig

	// readable by systems and hooks mid-tick
	tick    atomic.Uint64
	simTime atomic.Int64

	// mu serializes ticks and guards the interval timers
	mu       sync.Mutex
	timers   map[SystemID]*intervalState
	timersOf *Plan
}

// stageLayout resolves a stage's ids to declarations. It is built once, when
// the plan is built, and never exposed.
type stageLayout struct {
	decls []*Declaration // main-thread systems, then parallel
	main  int            // number of main-thread systems
	lanes [][]int        // lanes as indexes into decls
}

// intervalState tracks when a throttled system may run next, in simulation time.
type intervalState struct {
	interval time.Duration
	lastRun  time.Duration
	nextRun  time.Duration
}

// shouldRun checks if the system should run at the given simulation time.
func (s *intervalState) shouldRun(now time.Duration) bool {
	if s.interval == 0 {
		return true
	}
	return now >= s.nextRun
}

// markRun updates the last run time and schedules the next run.
func (s *intervalState) markRun(now time.Duration) {
	s.lastRun = now
	if s.interval > 0 {
		// Drift-free timing
		s.nextRun += s.interval
		if s.nextRun <= now {
			// Catch up if we're behind
			s.nextRun = now + s.interval
		}
	}
}

// NewExecutor creates an executor.
func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Executor{
		cfg:    cfg,
		timers: make(map[SystemID]*intervalState),
	}
}

// TickNumber returns the number of ticks run so far.
func (e *Executor) TickNumber() uint64 {
	return e.tick.Load()
}

// SimTime returns the accumulated simulation time.
func (e *Executor) SimTime() time.Duration {
	return time.Duration(e.simTime.Load())
}

// Run executes one tick of plan against w. Ticks are serialized.
// The returned error is an errors.Join of every *SystemRuntimeError, or nil.
func (e *Executor) Run(w World, dt time.Duration, plan *Plan) (*TickReport, error) {
	if plan == nil {
		return nil, errors.New("ecsched: nil plan")
	}

	e.mu.Lock()
	now := time.Duration(e.simTime.Load())
	report := &TickReport{
		Tick:   e.tick.Add(1),
		Delta:  dt,
		PlanID: plan.ID,
	}
	start := time.Now()

	if e.timersOf != plan {
		e.pruneTimers(plan)
		e.timersOf = plan
	}
	for i := range plan.layout {
		e.runStage(w, dt, now, i, &plan.layout[i], report)
	}

	e.simTime.Add(int64(dt))
	report.Duration = time.Since(start)
	e.mu.Unlock()

	for _, f := range report.Failures {
		e.cfg.Logger.Error("system failed",
			zap.String("system", string(f.System)),
			zap.Int("stage", f.Stage),
			zap.Uint64("tick", f.Tick),
			zap.Bool("panicked", f.Panicked),
			zap.Error(f.Err),
		)
		if e.cfg.OnFailure != nil {
			e.cfg.OnFailure(f)
		}
	}

	return report, report.Err()
}

// runStage runs one stage and appends its failures to report.
func (e *Executor) runStage(w World, dt, now time.Duration, index int, layout *stageLayout, report *TickReport) {
	due := make([]bool, len(layout.decls))
	for i, d := range layout.decls {
		if d.System == nil || !e.timer(d).shouldRun(now) {
			report.Skipped++
			continue
		}
		due[i] = true
		report.Ran++
	}

	results := make([]*SystemRuntimeError, len(layout.decls))
	tick := report.Tick

	if layout.main > 0 {
		runMain := func() {
			for i := 0; i < layout.main; i++ {
				if due[i] {
					results[i] = e.runSystem(layout.decls[i], w, dt, index, tick)
				}
			}
		}
		if e.cfg.MainThread != nil {
			e.cfg.MainThread(runMain)
		} else {
			runMain()
		}
	}

	handles := make([]*Handle, 0, len(layout.lanes))
	for _, lane := range layout.lanes {
		handles = append(handles, e.cfg.Pool.Submit(func() {
			for _, i := range lane {
				if due[i] {
					results[i] = e.runSystem(layout.decls[i], w, dt, index, tick)
				}
			}
		}))
	}
	JoinAll(handles...)

	for i, d := range layout.decls {
		if due[i] {
			e.timer(d).markRun(now)
		}
		if results[i] != nil {
			report.Failures = append(report.Failures, results[i])
		}
	}
}

// runSystem invokes one update, converting errors and panics into failures.
func (e *Executor) runSystem(d *Declaration, w World, dt time.Duration, stage int, tick uint64) (failure *SystemRuntimeError) {
	start := time.Now()
	defer func() {
		if e.cfg.Costs != nil {
			e.cfg.Costs.Observe(d.ID, time.Since(start))
		}
		if r := recover(); r != nil {
			failure = &SystemRuntimeError{
				System:   d.ID,
				Stage:    stage,
				Tick:     tick,
				Err:      fmt.Errorf("panic: %v", r),
				Panicked: true,
				Stack:    debug.Stack(),
			}
		}
	}()

	if err := d.System.Update(w, dt); err != nil {
		return &SystemRuntimeError{
			System: d.ID,
			Stage:  stage,
			Tick:   tick,
			Err:    err,
		}
	}
	return nil
}

// timer returns the interval state for d, creating it on first sight so the
// system runs on the tick it first appears.
func (e *Executor) timer(d *Declaration) *intervalState {
	t, ok := e.timers[d.ID]
	if !ok {
		t = &intervalState{nextRun: time.Duration(e.simTime.Load())}
		e.timers[d.ID] = t
	}
	t.interval = d.Interval
	return t
}

// pruneTimers drops the interval state of systems plan no longer contains.
func (e *Executor) pruneTimers(plan *Plan) {
	for id := range e.timers {
		if _, ok := plan.decls[id]; !ok {
			delete(e.timers, id)
		}
	}
}

// Reset clears tick count, simulation time and interval timers.
func (e *Executor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tick.Store(0)
	e.simTime.Store(0)
	clear(e.timers)
	e.timersOf = nil
}

func buildLayout(plan *Plan) []stageLayout {
	out := make([]stageLayout, len(plan.Stages))
	for i := range plan.Stages {
		s := &plan.Stages[i]
		l := &out[i]
		l.main = len(s.MainThread)
		l.decls = make([]*Declaration, 0, s.Len())
		index := make(map[SystemID]int, s.Len())
		for _, id := range s.Systems() {
			index[id] = len(l.decls)
			l.decls = append(l.decls, plan.decls[id])
		}
		for _, lane := range s.Lanes {
			idx := make([]int, len(lane))
			for j, id := range lane {
				idx[j] = index[id]
			}
			l.lanes = append(l.lanes, idx)
		}
	}
	return out
}

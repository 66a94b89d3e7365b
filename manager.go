package ecsched

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrManagerClosed is returned by Tick after Close.
var ErrManagerClosed = errors.New("ecsched: manager closed")

// Manager is the central coordinator.
// It owns the registry, caches the plan built from it and runs that plan
// through the executor. The plan is rebuilt lazily whenever the registry
// version moves. Multiple Manager instances can coexist in one process.
type Manager struct {
	opts   Options
	logger *zap.Logger

	registry *Registry
	pool     *Pool
	executor *Executor

	// costs is nil unless adaptive costs are enabled
	costs *CostModel

	// planMu guards the cached plan and the last build failure
	planMu     sync.Mutex
	plan       *Plan
	planErr    error
	errVersion uint64
	replan     bool

	// tickMu serializes ticks
	tickMu sync.Mutex
	closed atomic.Bool

	// Tick loop
	lifeMu  sync.Mutex
	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewManager creates a manager with an empty registry.
func NewManager(opts ...Option) *Manager {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.TickRate <= 0 {
		o.TickRate = defaultOptions().TickRate
	}

	m := &Manager{
		opts:     o,
		logger:   o.Logger,
		registry: NewRegistry(),
		pool:     NewPool(o.Workers),
	}
	if o.AdaptiveCosts {
		m.costs = NewCostModel(o.CostSmoothing)
	}
	m.executor = NewExecutor(ExecutorConfig{
		Pool:       m.pool,
		Logger:     o.Logger,
		MainThread: o.MainThread,
		Costs:      m.costs,
		OnFailure:  o.OnFailure,
	})
	return m
}

// Registry returns the manager's registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Costs returns the adaptive cost model, or nil when adaptive costs are off.
func (m *Manager) Costs() *CostModel {
	return m.costs
}

// Register adds a system declaration.
func (m *Manager) Register(decl Declaration) error {
	return m.registry.Register(decl)
}

// RegisterBundle adds every system of a bundle atomically.
func (m *Manager) RegisterBundle(b *Bundle) error {
	return m.registry.RegisterBundle(b)
}

// Unregister removes a system.
func (m *Manager) Unregister(id SystemID) bool {
	return m.registry.Unregister(id)
}

// UnregisterBundle removes every system of a bundle.
func (m *Manager) UnregisterBundle(name string) bool {
	return m.registry.UnregisterBundle(name)
}

// SetEnabled enables or disables a system.
func (m *Manager) SetEnabled(id SystemID, enabled bool) error {
	return m.registry.SetEnabled(id, enabled)
}

// Plan returns the current plan, rebuilding it if the registry changed.
// A failed build is cached until the registry changes again. The plan is
// shared and must not be modified.
func (m *Manager) Plan() (*Plan, error) {
	m.planMu.Lock()
	defer m.planMu.Unlock()
	return m.currentPlan()
}

// Replan forces a rebuild even if the registry did not change, so that
// freshly measured costs reach the worker hints.
func (m *Manager) Replan() (*Plan, error) {
	m.planMu.Lock()
	defer m.planMu.Unlock()
	m.replan = true
	return m.currentPlan()
}

// currentPlan must be called with planMu held.
func (m *Manager) currentPlan() (*Plan, error) {
	version := m.registry.Version()
	if !m.replan {
		if m.plan != nil && m.plan.Version == version {
			return m.plan, nil
		}
		if m.planErr != nil && m.errVersion == version {
			return nil, m.planErr
		}
	}
	m.replan = false

	snap := m.registry.Snapshot()
	opts := PlanOptions{Workers: m.pool.Workers()}
	if m.costs != nil {
		opts.Costs = m.costs
	}

	plan, err := Build(snap, opts)
	if err != nil {
		m.plan = nil
		m.planErr = err
		m.errVersion = snap.Version()
		m.logger.Error("plan build failed",
			zap.Uint64("version", snap.Version()),
			zap.Error(err),
		)
		return nil, err
	}

	m.plan = plan
	m.planErr = nil
	m.logger.Info("plan rebuilt",
		zap.Uint64("version", plan.Version),
		zap.Int("stages", len(plan.Stages)),
		zap.Int("systems", plan.Len()),
		zap.String("plan", plan.ID.String()),
	)
	return plan, nil
}

// Tick runs every planned system once against w.
// It refuses to run when the plan cannot be built and returns the build
// error. Otherwise the error joins every system failure of the tick.
func (m *Manager) Tick(w World, dt time.Duration) (*TickReport, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}

	m.tickMu.Lock()
	defer m.tickMu.Unlock()
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}

	plan, err := m.Plan()
	if err != nil {
		return nil, err
	}

	m.pool.Start()
	report, err := m.executor.Run(w, dt, plan)
	if m.opts.OnTick != nil && report != nil {
		m.opts.OnTick(report)
	}
	return report, err
}

// TickNumber returns the number of executed ticks.
func (m *Manager) TickNumber() uint64 {
	return m.executor.TickNumber()
}

// Start begins the fixed-rate tick loop. The loop goroutine is locked to its
// OS thread and serves as the designated thread unless WithMainThread was
// given.
func (m *Manager) Start() {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()

	if m.closed.Load() || m.running.Swap(true) {
		return // Already running
	}
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.pool.Start()
	m.logger.Debug("tick loop started",
		zap.Duration("tick_rate", m.opts.TickRate),
		zap.Int("workers", m.pool.Workers()),
	)
	go m.tickLoop(m.stopCh, m.doneCh)
}

// Stop halts the tick loop and waits for the current tick to finish.
// Systems and hooks must not call it.
func (m *Manager) Stop() {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()

	if !m.running.Swap(false) {
		return // Not running
	}
	close(m.stopCh)
	<-m.doneCh
	m.logger.Debug("tick loop stopped", zap.Uint64("ticks", m.TickNumber()))
}

// Running reports whether the tick loop is running.
func (m *Manager) Running() bool {
	return m.running.Load()
}

// Close stops the tick loop and the worker pool. Further ticks fail with
// ErrManagerClosed.
func (m *Manager) Close() {
	m.Stop()
	if m.closed.Swap(true) {
		return
	}
	m.tickMu.Lock()
	m.pool.Stop()
	m.tickMu.Unlock()
}

// tickLoop is the main scheduler loop.
func (m *Manager) tickLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ticker := time.NewTicker(m.opts.TickRate)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-stop:
			return

		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			// Failures and build errors are logged where they happen.
			_, _ = m.Tick(m.opts.World, dt)
		}
	}
}

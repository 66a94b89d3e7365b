package ecsched

import (
	"runtime"
	"time"

	"go.uber.org/zap"
)

// Options configures a Manager.
type Options struct {
	// Workers is the size of the worker pool and the cap on every stage's
	// worker hint.
	// Default: runtime.GOMAXPROCS(0).
	Workers int

	// Logger receives plan and failure events.
	// Default: zap.NewNop().
	Logger *zap.Logger

	// MainThread runs main-thread systems on a host-designated thread.
	// Default: the goroutine calling Tick.
	MainThread MainThreadFunc

	// AdaptiveCosts feeds measured update times into plan rebuilds.
	AdaptiveCosts bool

	// CostSmoothing is the EWMA weight of each new sample.
	// Default: DefaultCostSmoothing.
	CostSmoothing float64

	// TickRate is the interval of the built-in tick loop.
	// Default: 50ms (20 TPS).
	TickRate time.Duration

	// World is passed to systems by the built-in tick loop.
	World World

	// OnFailure is called for every system failure.
	OnFailure func(*SystemRuntimeError)

	// OnTick is called after every tick, successful or not.
	OnTick func(*TickReport)
}

// defaultOptions returns sensible defaults.
func defaultOptions() Options {
	return Options{
		Workers:       runtime.GOMAXPROCS(0),
		Logger:        zap.NewNop(),
		CostSmoothing: DefaultCostSmoothing,
		TickRate:      50 * time.Millisecond, // 20 TPS
	}
}

// Option configures a Manager.
type Option func(*Options)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) Option {
	return func(o *Options) {
		o.Workers = n
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l == nil {
			l = zap.NewNop()
		}
		o.Logger = l
	}
}

// WithMainThread sets the function that runs main-thread systems.
func WithMainThread(fn MainThreadFunc) Option {
	return func(o *Options) {
		o.MainThread = fn
	}
}

// WithAdaptiveCosts enables measured costs with the given smoothing factor.
// A factor outside (0, 1] uses DefaultCostSmoothing.
func WithAdaptiveCosts(smoothing float64) Option {
	return func(o *Options) {
		o.AdaptiveCosts = true
		o.CostSmoothing = smoothing
	}
}

// WithTickRate sets the tick loop interval.
func WithTickRate(d time.Duration) Option {
	return func(o *Options) {
		o.TickRate = d
	}
}

// WithWorld sets the world handle used by the tick loop.
func WithWorld(w World) Option {
	return func(o *Options) {
		o.World = w
	}
}

// WithFailureHook registers a callback for system failures.
//
// Hooks run on the ticking goroutine. They may read TickNumber, SimTime and
// Plan, but must not call Stop or Close, which wait for the tick to end.
//
// Example:
//
//	ecsched.WithFailureHook(func(f *ecsched.SystemRuntimeError) {
//	    reporter.Report(f)
//	})
func WithFailureHook(fn func(*SystemRuntimeError)) Option {
	return func(o *Options) {
		o.OnFailure = fn
	}
}

// WithTickHook registers a callback run after every tick.
// The same limits as for WithFailureHook apply.
func WithTickHook(fn func(*TickReport)) Option {
	return func(o *Options) {
		o.OnTick = fn
	}
}

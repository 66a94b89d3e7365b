// Package ecsched provides a deterministic, dependency-driven system
// scheduler for ECS simulation loops.
//
// Each system declares which component types it reads and writes, which
// systems it must run before or after, whether it is pinned to the main
// thread and a relative cost. From those declarations ecsched derives:
//   - Implicit ordering between systems whose component access conflicts
//   - A validated, acyclic dependency graph
//   - An execution plan of stages that run in order, with every stage's
//     systems free to run concurrently
//   - Cost-balanced worker lanes for each stage
//
// The plan is rebuilt only when the set of systems changes and reused
// unchanged on every tick.
//
// # Quick Start
//
//	bundle := ecsched.NewBundle("physics").
//	    System(&MovementSystem{}).
//	    Func("gravity", applyGravity, func(d *ecsched.Declaration) {
//	        d.Writes = []ecsched.ComponentType{ecsched.Component[Velocity]()}
//	        d.Before = []ecsched.SystemID{"MovementSystem"}
//	    })
//
//	mngr := ecsched.NewBuilder().
//	    Bundle(bundle.Build()).
//	    Option(ecsched.WithLogger(logger)).
//	    Init()
//	defer mngr.Close()
//
//	for range ticker.C {
//	    report, err := mngr.Tick(world, dt)
//	    ...
//	}
//
// # Declaring Access
//
// Access can be declared as data on a Declaration, or derived with Describe
// from phantom markers on the system struct:
//
//	type MovementSystem struct {
//	    _ ecsched.Read[Velocity]
//	    _ ecsched.Write[Position]
//	    _ ecsched.Meta `ecsched:"id=movement,cost=4"`
//	}
//
// # Tag Reference
//
//	id=name         System id (default: struct type name)
//	before=a|b      Run before systems a and b
//	after=a|b       Run after systems a and b
//	cost=2.5        Relative cost estimate
//	interval=250ms  Run at most once per interval of simulation time
//	main            Main thread only
//	disabled        Registered but excluded from planning
//
// # Scheduling Rules
//
// Two systems conflict when both write a component type, or one writes a
// type the other reads. Conflicting systems without a declared order are
// ordered by their rank in a deterministic topological order of the
// declared constraints, which is plain id order when there are none.
// Stages are assigned by longest path: a system lands one stage after its
// latest predecessor. Within a stage, main-thread systems run first and
// sequentially, then the parallel lanes run on the worker pool, and the
// next stage starts only when every lane has finished.
package ecsched

// Version is the ecsched version.
const Version = "1.0.0"

package ecsched

import "time"

// World is the opaque world handle passed to every system update.
// The scheduler never inspects it.
type World = any

// System is the per-tick update hook of a scheduled system.
// Update runs over every entity matching the system's component query; the
// scheduler guarantees no concurrently running system touches a component
// type this system writes.
type System interface {
	Update(w World, dt time.Duration) error
}

// SystemFunc adapts a plain function to the System interface.
type SystemFunc func(w World, dt time.Duration) error

// Update calls f(w, dt).
func (f SystemFunc) Update(w World, dt time.Duration) error {
	return f(w, dt)
}

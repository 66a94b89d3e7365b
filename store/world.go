package store

import (
	"sync"
	"time"

	"github.com/oriumgames/ecsched"
)

// World is the top-level container passed to systems as their ecsched.World.
// It owns the entity pool and the component stores, and queues structural
// changes requested during a tick until Flush.
//
// Systems running concurrently must not create or destroy entities
// directly; they use Defer and MarkForDestruction instead.
type World struct {
	mu     sync.RWMutex
	pool   *EntityPool
	stores []Removable

	queueMu      sync.Mutex
	commands     []func(*World)
	destroyQueue []EntityID
}

func NewWorld() *World {
	return &World{
		pool:         NewEntityPool(),
		destroyQueue: make([]EntityID, 0, 64),
	}
}

// Register adds component stores to the world so they are cleared when an
// entity is destroyed.
func (w *World) Register(stores ...Removable) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stores = append(w.stores, stores...)
}

// Types returns the component types of every registered store.
func (w *World) Types() []ecsched.ComponentType {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]ecsched.ComponentType, len(w.stores))
	for i, s := range w.stores {
		out[i] = s.Type()
	}
	return out
}

func (w *World) CreateEntity() EntityID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pool.Create()
}

func (w *World) Alive(id EntityID) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pool.Alive(id)
}

// Len returns the number of live entities.
func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pool.Len()
}

// DestroyEntity removes an entity and its components immediately.
func (w *World) DestroyEntity(id EntityID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.destroyLocked(id)
}

func (w *World) destroyLocked(id EntityID) {
	if !w.pool.Alive(id) {
		return
	}
	for _, s := range w.stores {
		s.Remove(id)
	}
	w.pool.Destroy(id)
}

// MarkForDestruction queues an entity for destruction at the next Flush.
func (w *World) MarkForDestruction(id EntityID) {
	w.queueMu.Lock()
	w.destroyQueue = append(w.destroyQueue, id)
	w.queueMu.Unlock()
}

// Defer queues a structural change to run at the next Flush, in call order.
func (w *World) Defer(fn func(*World)) {
	w.queueMu.Lock()
	w.commands = append(w.commands, fn)
	w.queueMu.Unlock()
}

// Flush runs deferred commands, then destroys queued entities.
func (w *World) Flush() {
	w.queueMu.Lock()
	commands := w.commands
	destroy := w.destroyQueue
	w.commands = nil
	w.destroyQueue = make([]EntityID, 0, cap(destroy))
	w.queueMu.Unlock()

	for _, fn := range commands {
		fn(w)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, id := range destroy {
		w.destroyLocked(id)
	}
}

// FlushDeclaration returns a system that flushes w. It writes every
// registered store, so it conflicts with every system touching the world;
// after should name the systems it must follow.
func FlushDeclaration(w *World, id ecsched.SystemID, after ...ecsched.SystemID) ecsched.Declaration {
	return ecsched.Declaration{
		ID:     id,
		Writes: w.Types(),
		After:  after,
		System: ecsched.SystemFunc(func(ecsched.World, time.Duration) error {
			w.Flush()
			return nil
		}),
	}
}

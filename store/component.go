package store

import (
	"github.com/oriumgames/ecsched"
)

// Removable is implemented by all component stores so the World can
// bulk-remove an entity's data from every store on destroy.
type Removable interface {
	Type() ecsched.ComponentType
	Remove(id EntityID)
}

// Store is a typed map of components keyed by entity.
// Its Type is the ComponentType systems declare when they touch it, so a
// system that writes the store must declare Writes: {s.Type()}.
//
// A Store is safe for concurrent readers; writers need exclusive access,
// which the scheduler guarantees for correctly declared systems.
type Store[T any] struct {
	typ  ecsched.ComponentType
	data map[EntityID]*T
}

// New creates a store named after T.
func New[T any]() *Store[T] {
	return &Store[T]{
		typ:  ecsched.Component[T](),
		data: make(map[EntityID]*T, 256),
	}
}

// Type returns the component type of the store.
func (s *Store[T]) Type() ecsched.ComponentType {
	return s.typ
}

func (s *Store[T]) Set(id EntityID, c *T) {
	s.data[id] = c
}

func (s *Store[T]) Get(id EntityID) (*T, bool) {
	c, ok := s.data[id]
	return c, ok
}

func (s *Store[T]) Remove(id EntityID) {
	delete(s.data, id)
}

func (s *Store[T]) Has(id EntityID) bool {
	_, ok := s.data[id]
	return ok
}

func (s *Store[T]) Len() int {
	return len(s.data)
}

func (s *Store[T]) Each(fn func(EntityID, *T)) {
	for id, c := range s.data {
		fn(id, c)
	}
}

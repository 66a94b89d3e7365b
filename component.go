package ecsched

import (
	"reflect"
	"sync"
)

// ComponentType is an opaque tag identifying a component kind.
// Two component types are the same component iff they are equal.
type ComponentType string

// String returns the component type name.
func (c ComponentType) String() string {
	return string(c)
}

// typeNames caches reflect.Type -> ComponentType.
// sync.Map gives lock-free reads on the hot path; types are named once and
// looked up on every Describe and Component call.
var typeNames sync.Map // map[reflect.Type]ComponentType

// Component returns the ComponentType for the Go type T.
// The name is the type's package path and name, so equally named types from
// different packages never collide.
func Component[T any]() ComponentType {
	return ComponentOf(reflect.TypeOf((*T)(nil)).Elem())
}

// ComponentOf returns the ComponentType for t. Pointer types name their
// element type.
func ComponentOf(t reflect.Type) ComponentType {
	if name, ok := typeNames.Load(t); ok {
		return name.(ComponentType)
	}

	base := t
	for base.Kind() == reflect.Ptr {
		base = base.Elem()
	}

	var name ComponentType
	if base.PkgPath() == "" || base.Name() == "" {
		name = ComponentType(base.String())
	} else {
		name = ComponentType(base.PkgPath() + "." + base.Name())
	}

	actual, _ := typeNames.LoadOrStore(t, name)
	return actual.(ComponentType)
}

// ComponentNamed returns a ComponentType for a configuration-level name.
// It is the identity conversion and exists for symmetry with Component.
func ComponentNamed(name string) ComponentType {
	return ComponentType(name)
}

// componentIndex assigns dense bit positions to the component types seen in
// one analysis pass. It is not safe for concurrent use.
type componentIndex struct {
	bits  map[ComponentType]int
	names []ComponentType
}

func newComponentIndex() *componentIndex {
	return &componentIndex{bits: make(map[ComponentType]int)}
}

// bit returns the bit position for c, assigning the next free one if needed.
func (ix *componentIndex) bit(c ComponentType) int {
	if b, ok := ix.bits[c]; ok {
		return b
	}
	b := len(ix.names)
	ix.bits[c] = b
	ix.names = append(ix.names, c)
	return b
}

// mask builds the bitmask for a set of component types.
func (ix *componentIndex) mask(types []ComponentType) Bitmask {
	var m Bitmask
	for _, c := range types {
		m.Set(ix.bit(c))
	}
	return m
}

// types converts a bitmask back into component types, in bit order.
func (ix *componentIndex) types(m Bitmask) []ComponentType {
	var out []ComponentType
	m.Each(func(b int) {
		out = append(out, ix.names[b])
	})
	return out
}

package ecsched

import (
	"reflect"
)

// Read is a phantom marker declaring read access to component T.
// It carries no data; Describe picks it up from a system struct.
//
// Usage:
//
//	type DecaySystem struct {
//	    _ ecsched.Read[Lifetime]
//	    _ ecsched.Write[Particle]
//	}
type Read[T any] struct{}

// Write is a phantom marker declaring write access to component T.
type Write[T any] struct{}

// Meta is a phantom marker carrying scheduling metadata in its struct tag.
//
// Usage:
//
//	type AudioSystem struct {
//	    _ ecsched.Read[SoundEmitter]
//	    _ ecsched.Meta `ecsched:"id=audio,after=movement,main,cost=0.5"`
//	}
type Meta struct{}

// AccessMarker provides component access information for phantom types.
type AccessMarker interface {
	AccessComponent() ComponentType
	AccessMutable() bool
}

// AccessComponent implements AccessMarker for Read[T].
func (Read[T]) AccessComponent() ComponentType {
	return Component[T]()
}

// AccessMutable implements AccessMarker for Read[T].
func (Read[T]) AccessMutable() bool {
	return false
}

// AccessComponent implements AccessMarker for Write[T].
func (Write[T]) AccessComponent() ComponentType {
	return Component[T]()
}

// AccessMutable implements AccessMarker for Write[T].
func (Write[T]) AccessMutable() bool {
	return true
}

var (
	accessMarkerType = reflect.TypeOf((*AccessMarker)(nil)).Elem()
	metaMarkerType   = reflect.TypeOf(Meta{})
)

// getAccessInfo extracts component type and mutability from a marker type.
func getAccessInfo(t reflect.Type) (comp ComponentType, mutable bool, ok bool) {
	if !t.Implements(accessMarkerType) {
		return "", false, false
	}
	v := reflect.New(t).Elem().Interface().(AccessMarker)
	return v.AccessComponent(), v.AccessMutable(), true
}

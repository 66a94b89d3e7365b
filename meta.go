package ecsched

import (
	"fmt"
	"reflect"
)

// AccessMeta describes what components a system reads or writes, interned
// into bitmasks for fast pairwise conflict checks.
type AccessMeta struct {
	Reads  Bitmask
	Writes Bitmask
}

// Conflicts returns true if this access pattern conflicts with another:
// both write a component, or one writes what the other reads.
func (a *AccessMeta) Conflicts(other *AccessMeta) bool {
	return a.Writes.Intersects(other.Writes) ||
		a.Writes.Intersects(other.Reads) ||
		a.Reads.Intersects(other.Writes)
}

// Overlap returns the set of components responsible for a conflict.
func (a *AccessMeta) Overlap(other *AccessMeta) Bitmask {
	return a.Writes.And(other.Writes).
		Or(a.Writes.And(other.Reads)).
		Or(a.Reads.And(other.Writes))
}

// Describe derives a Declaration from a system struct's phantom markers.
//
// Read[T] and Write[T] fields declare component access; a Meta field's
// ecsched tag supplies the id, ordering, thread affinity, cost and interval.
// The id defaults to the struct type name. All other fields are ignored.
// The returned declaration uses sys as its update hook.
func Describe(sys System) (Declaration, error) {
	if sys == nil {
		return Declaration{}, fmt.Errorf("%w: nil system", ErrInvalidDeclaration)
	}

	systemType := reflect.TypeOf(sys)
	for systemType.Kind() == reflect.Ptr {
		systemType = systemType.Elem()
	}
	if systemType.Kind() != reflect.Struct {
		return Declaration{}, fmt.Errorf("%w: system must be a struct, got %v", ErrInvalidDeclaration, systemType.Kind())
	}

	decl := Declaration{
		ID:     SystemID(systemType.Name()),
		System: sys,
	}

	writes := make(map[ComponentType]struct{})
	var reads []ComponentType

	for i := 0; i < systemType.NumField(); i++ {
		field := systemType.Field(i)

		if field.Type == metaMarkerType {
			tag, err := parseTag(field.Tag.Get(tagName))
			if err != nil {
				return Declaration{}, fmt.Errorf("%w: %s: %v", ErrInvalidDeclaration, systemType.Name(), err)
			}
			if tag.ID != "" {
				decl.ID = SystemID(tag.ID)
			}
			for _, id := range tag.Before {
				decl.Before = append(decl.Before, SystemID(id))
			}
			for _, id := range tag.After {
				decl.After = append(decl.After, SystemID(id))
			}
			decl.Cost = tag.Cost
			decl.Interval = tag.Interval
			decl.MainThread = tag.MainThread
			decl.Disabled = tag.Disabled
			continue
		}

		comp, mutable, ok := getAccessInfo(field.Type)
		if !ok {
			continue
		}
		if mutable {
			if _, seen := writes[comp]; !seen {
				writes[comp] = struct{}{}
				decl.Writes = append(decl.Writes, comp)
			}
		} else {
			reads = append(reads, comp)
		}
	}

	// A written component is implicitly read; keep it in one set only.
	for _, comp := range reads {
		if _, ok := writes[comp]; !ok {
			decl.Reads = append(decl.Reads, comp)
		}
	}

	return decl.normalize(), nil
}

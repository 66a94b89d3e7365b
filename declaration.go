package ecsched

import (
	"math"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// SystemID uniquely identifies a system within a registry.
// IDs are compared after NFC normalization and whitespace trimming.
type SystemID string

// Declaration holds the static scheduling metadata of one system.
// A declaration is copied on registration and never mutated afterwards.
type Declaration struct {
	// ID is the unique system id.
	ID SystemID

	// Reads lists the component types the system only reads.
	Reads []ComponentType

	// Writes lists the component types the system mutates.
	Writes []ComponentType

	// Before lists systems that must not start before this one completes.
	Before []SystemID

	// After lists systems that must complete before this one starts.
	After []SystemID

	// MainThread pins the system to the designated thread.
	MainThread bool

	// Cost is a relative runtime estimate. It is only a load-balancing hint;
	// zero means "unknown" and is treated as 1. Once some systems have
	// measured costs, declared costs are rescaled into the measured unit.
	Cost float64

	// Disabled excludes the system from planning without unregistering it.
	Disabled bool

	// Interval throttles the system to at most one run per Interval of
	// simulation time. Zero runs it every tick.
	Interval time.Duration

	// System is the update hook. A nil hook is planned normally and skipped
	// by the executor.
	System System
}

// Enabled reports whether the declaration takes part in planning.
func (d *Declaration) Enabled() bool {
	return !d.Disabled
}

// effectiveCost returns the cost used for load balancing.
func (d *Declaration) effectiveCost() float64 {
	if d.Cost <= 0 || math.IsNaN(d.Cost) || math.IsInf(d.Cost, 0) {
		return 1
	}
	return d.Cost
}

// normalize returns a deep copy with all ids normalized and access sets
// deduplicated in sorted order.
func (d Declaration) normalize() Declaration {
	out := d
	out.ID = NormalizeID(d.ID)
	out.Reads = normalizeComponents(d.Reads)
	out.Writes = normalizeComponents(d.Writes)
	out.Before = normalizeIDs(d.Before)
	out.After = normalizeIDs(d.After)
	return out
}

func (d *Declaration) validate() error {
	if d.ID == "" {
		return invalidDeclaration(d.ID, "empty id")
	}
	if math.IsNaN(d.Cost) || math.IsInf(d.Cost, 0) || d.Cost < 0 {
		return invalidDeclaration(d.ID, "cost must be a finite non-negative number, got %v", d.Cost)
	}
	if d.Interval < 0 {
		return invalidDeclaration(d.ID, "negative interval %s", d.Interval)
	}
	for _, c := range d.Reads {
		if c == "" {
			return invalidDeclaration(d.ID, "empty component type in reads")
		}
	}
	for _, c := range d.Writes {
		if c == "" {
			return invalidDeclaration(d.ID, "empty component type in writes")
		}
	}
	for _, id := range d.Before {
		if id == "" {
			return invalidDeclaration(d.ID, "empty id in before")
		}
	}
	for _, id := range d.After {
		if id == "" {
			return invalidDeclaration(d.ID, "empty id in after")
		}
	}
	return nil
}

// NormalizeID trims surrounding whitespace and applies Unicode NFC so that
// visually identical ids from different sources compare equal.
func NormalizeID(id SystemID) SystemID {
	return SystemID(norm.NFC.String(strings.TrimSpace(string(id))))
}

func normalizeIDs(ids []SystemID) []SystemID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]SystemID, 0, len(ids))
	for _, id := range ids {
		out = append(out, NormalizeID(id))
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func normalizeComponents(types []ComponentType) []ComponentType {
	if len(types) == 0 {
		return nil
	}
	out := make([]ComponentType, 0, len(types))
	for _, t := range types {
		out = append(out, ComponentType(strings.TrimSpace(string(t))))
	}
	slices.Sort(out)
	return slices.Compact(out)
}

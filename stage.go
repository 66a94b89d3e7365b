package ecsched

import (
	"fmt"
	"strings"
)

// Stage is one level of a plan. Systems within a stage never conflict and
// have no ordering constraints between them; stages run in Index order with
// a barrier in between.
type Stage struct {
	// Index is the stage's position in the plan, starting at 0.
	Index int

	// MainThread lists the systems pinned to the designated thread, sorted by id.
	MainThread []SystemID

	// Parallel lists the systems free to run on any worker, sorted by id.
	Parallel []SystemID

	// Workers is the suggested number of workers for Parallel.
	Workers int

	// Lanes groups Parallel into Workers cost-balanced dispatch units.
	Lanes [][]SystemID

	// Cost is the total cost estimate of every system in the stage.
	Cost float64
}

// Len returns the number of systems in the stage.
func (s *Stage) Len() int {
	return len(s.MainThread) + len(s.Parallel)
}

// Systems returns every system in the stage, main-thread systems first.
func (s *Stage) Systems() []SystemID {
	out := make([]SystemID, 0, s.Len())
	out = append(out, s.MainThread...)
	return append(out, s.Parallel...)
}

// String returns the canonical form of the stage's partitioning.
func (s Stage) String() string {
	return fmt.Sprintf("stage %d main=[%s] parallel=[%s]", s.Index, joinIDs(s.MainThread), joinIDs(s.Parallel))
}

func joinIDs(ids []SystemID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, " ")
}

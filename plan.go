package ecsched

import (
	"strings"

	"github.com/google/uuid"
)

// planNamespace is the UUIDv5 namespace for plan fingerprints.
var planNamespace = uuid.MustParse("6d1c3b3e-2f4a-5b8e-9c61-0a7e4f2d9b15")

// Plan is an execution plan built from one registry snapshot.
//
// The exported fields describe the plan and must be treated as read-only;
// the executor runs from a private layout resolved when the plan was built,
// so editing Stages or Lanes never changes what runs.
type Plan struct {
	// ID fingerprints the stage partitioning. Two plans with the same stages
	// share an ID regardless of the registry version they came from.
	ID uuid.UUID

	// Version is the registry version the plan was built from.
	Version uint64

	// Stages in execution order.
	Stages []Stage

	// Edges is the final dependency graph, sorted by (From, To).
	Edges []Edge

	// Conflicts lists every conflicting pair among the planned systems.
	Conflicts []Conflict

	decls   map[SystemID]*Declaration
	stageOf map[SystemID]int
	layout  []stageLayout
}

// StageOf returns the stage index of a planned system.
func (p *Plan) StageOf(id SystemID) (int, bool) {
	s, ok := p.stageOf[NormalizeID(id)]
	return s, ok
}

// Declaration returns the declaration a planned system was built from.
func (p *Plan) Declaration(id SystemID) (Declaration, bool) {
	d, ok := p.decls[NormalizeID(id)]
	if !ok {
		return Declaration{}, false
	}
	return *d, true
}

// Len returns the number of planned systems.
func (p *Plan) Len() int {
	return len(p.stageOf)
}

// Systems returns every planned system in execution order.
func (p *Plan) Systems() []SystemID {
	out := make([]SystemID, 0, p.Len())
	for i := range p.Stages {
		out = append(out, p.Stages[i].Systems()...)
	}
	return out
}

// String returns the canonical, byte-stable rendering of the plan's stages.
func (p *Plan) String() string {
	var b strings.Builder
	for _, s := range p.Stages {
		b.WriteString(s.String())
		b.WriteByte('\n')
	}
	return b.String()
}

func (p *Plan) fingerprint() uuid.UUID {
	return uuid.NewSHA1(planNamespace, []byte(p.String()))
}

package ecsched

import (
	"maps"
	"math"
	"sync"
	"time"
)

// DefaultCostSmoothing is the EWMA weight given to each new sample.
const DefaultCostSmoothing = 0.2

// CostModel tracks an exponentially weighted moving average of each system's
// measured update time, in milliseconds. It is safe for concurrent use and
// implements CostSource.
type CostModel struct {
	mu      sync.RWMutex
	alpha   float64
	costs   map[SystemID]float64
	samples map[SystemID]uint64
}

// NewCostModel creates a model with the given smoothing factor in (0, 1].
// Out-of-range values fall back to DefaultCostSmoothing.
func NewCostModel(alpha float64) *CostModel {
	if !(alpha > 0 && alpha <= 1) {
		alpha = DefaultCostSmoothing
	}
	return &CostModel{
		alpha:   alpha,
		costs:   make(map[SystemID]float64),
		samples: make(map[SystemID]uint64),
	}
}

// Observe folds one measured duration into the system's average.
func (m *CostModel) Observe(id SystemID, d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	if ms <= 0 {
		// Sub-resolution timings would pull the average to zero.
		ms = 1e-6
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.costs[id]
	if !ok {
		m.costs[id] = ms
	} else {
		m.costs[id] = prev + m.alpha*(ms-prev)
	}
	m.samples[id]++
}

// Cost returns the smoothed cost of a system, if it has been observed.
func (m *CostModel) Cost(id SystemID) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.costs[id]
	return c, ok
}

// Samples returns how many measurements went into a system's average.
func (m *CostModel) Samples(id SystemID) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.samples[id]
}

// Seed replaces averages with previously persisted values.
// Seeded systems count as having one sample.
func (m *CostModel) Seed(costs map[SystemID]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range costs {
		if !(c > 0) || math.IsInf(c, 0) {
			continue
		}
		m.costs[id] = c
		if m.samples[id] == 0 {
			m.samples[id] = 1
		}
	}
}

// Snapshot returns a copy of all averages.
func (m *CostModel) Snapshot() map[SystemID]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.costs)
}

// Forget drops a system's history.
func (m *CostModel) Forget(id SystemID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.costs, id)
	delete(m.samples, id)
}

package models

// CoverageSnapshot holds every coverage score computed for a session at
// one point in time. All values are percentages clamped to [0,100].
type CoverageSnapshot struct {
	Overall       float64
	Phases        map[string]float64 // phase id -> coverage
	Constraints   map[string]float64 // constraint id -> coverage
	Assumptions   float64
	Documentation float64
	TestCoverage  float64
}

// NewCoverageSnapshot returns a zeroed snapshot with allocated maps.
func NewCoverageSnapshot() CoverageSnapshot {
	return CoverageSnapshot{
		Phases:      make(map[string]float64),
		Constraints: make(map[string]float64),
	}
}

// Clone returns a deep copy of the snapshot so read-only actions can
// hand out results without aliasing session state.
func (c CoverageSnapshot) Clone() CoverageSnapshot {
	out := c
	out.Phases = make(map[string]float64, len(c.Phases))
	for k, v := range c.Phases {
		out.Phases[k] = v
	}
	out.Constraints = make(map[string]float64, len(c.Constraints))
	for k, v := range c.Constraints {
		out.Constraints[k] = v
	}
	return out
}

// ClampPercent clamps v to the [0,100] range.
func ClampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

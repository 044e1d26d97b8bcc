package models

// PhaseStatus represents the lifecycle state of a phase within a session.
type PhaseStatus string

const (
	PhaseStatusPending    PhaseStatus = "pending"
	PhaseStatusInProgress PhaseStatus = "in_progress"
	PhaseStatusCompleted  PhaseStatus = "completed"
)

// Phase is one ordered stage of the design process. Coverage and Status
// mutate as content is evaluated; everything else is fixed by the
// methodology definition. A phase's dependencies must all be completed
// before it can become in_progress.
type Phase struct {
	ID           string
	Name         string
	Description  string
	Inputs       []string
	Outputs      []string // required deliverable names
	Criteria     []string // required completion statements
	MinCoverage  float64  // completion threshold from the methodology
	Coverage     float64  // 0-100, updated on each evaluation
	Status       PhaseStatus
	Artifacts    []string // artifact ids produced in this phase
	Dependencies []string // phase ids that must be completed first
}

// DependenciesMet reports whether every dependency of p is completed in
// the given phase map. Unknown dependency ids count as unmet.
func (p *Phase) DependenciesMet(phases map[string]*Phase) bool {
	for _, dep := range p.Dependencies {
		d, ok := phases[dep]
		if !ok || d.Status != PhaseStatusCompleted {
			return false
		}
	}
	return true
}

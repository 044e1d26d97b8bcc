// Package coverage scores free-text artifacts against a session's
// phases and constraints using keyword and structural heuristics, and
// detects threshold violations in the computed scores.
package coverage

import (
	"github.com/jmfell/phasegate/internal/catalog"
	"github.com/jmfell/phasegate/internal/models"
)

// Weights combining the completeness, structure, and prose-quality
// signals into a phase coverage figure.
const (
	completenessWeight = 0.45
	structureWeight    = 0.35
	proseWeight        = 0.20
)

// Weights combining sub-scores into the overall figure. When a session
// has no constraints the constraint weight folds into the phase weight,
// keeping the total at 1 so the overall stays a true weighted mean.
const (
	overallPhaseWeight      = 0.35
	overallConstraintWeight = 0.30
	overallDocWeight        = 0.20
	overallTestWeight       = 0.15
)

// Documentation blends structure with prose quality.
const (
	docStructureWeight = 0.70
	docProseWeight     = 0.30
)

// neutralCompleteness is used when the current phase is unset or unknown:
// there is nothing to check outputs against, so score neither high nor low.
const neutralCompleteness = 75.0

// Calculator computes coverage snapshots for session content.
type Calculator struct {
	rules catalog.CoverageRules
}

// NewCalculator returns a Calculator using the given coverage rules.
func NewCalculator(rules catalog.CoverageRules) *Calculator {
	return &Calculator{rules: rules}
}

// Compute evaluates content against the session's current phase and
// constraints and returns a fresh snapshot. Phases other than the
// current one keep their previously recorded coverage.
func (c *Calculator) Compute(state *models.SessionState, content string) models.CoverageSnapshot {
	snap := models.NewCoverageSnapshot()

	structure := structuralScore(content)
	prose := sentenceQuality(content)

	snap.Documentation = models.ClampPercent(docStructureWeight*structure + docProseWeight*prose)
	snap.TestCoverage = models.ClampPercent(additiveScore(keywordOccurrences(content, testKeywords), 20))
	snap.Assumptions = models.ClampPercent(additiveScore(keywordOccurrences(content, assumptionKeywords), 25))

	// Carry forward previously recorded phase coverage, then score the
	// current phase against this content.
	for id, p := range state.Phases {
		snap.Phases[id] = models.ClampPercent(p.Coverage)
	}
	current := state.Phase(state.CurrentPhase)
	completeness := neutralCompleteness
	if current != nil {
		completeness = phaseCompleteness(current, content)
		snap.Phases[current.ID] = models.ClampPercent(
			completenessWeight*completeness + structureWeight*structure + proseWeight*prose)
	}

	for _, con := range state.Config.Constraints {
		snap.Constraints[con.ID] = models.ClampPercent(
			keywordCoverage(content, con.Validation.Keywords))
	}

	snap.Overall = c.overall(state, snap)
	return snap
}

// phaseCompleteness scores how many of the phase's required outputs and
// criteria the content addresses. A phase with nothing declared is
// trivially complete.
func phaseCompleteness(p *models.Phase, content string) float64 {
	total := len(p.Outputs) + len(p.Criteria)
	if total == 0 {
		return 100
	}
	matched := 0
	for _, out := range p.Outputs {
		if PhraseMatch(content, out) {
			matched++
		}
	}
	for _, crit := range p.Criteria {
		if PhraseMatch(content, crit) {
			matched++
		}
	}
	return float64(matched) / float64(total) * 100
}

// overall combines the sub-scores into a single weighted mean. The
// result always lies between the minimum and maximum of its components
// and moves monotonically with each one.
func (c *Calculator) overall(state *models.SessionState, snap models.CoverageSnapshot) float64 {
	phaseComponent := meanPhaseCoverage(state, snap)

	phaseW := overallPhaseWeight
	constraintW := overallConstraintWeight
	if state.Config.Minimal() {
		phaseW += constraintW
		constraintW = 0
	}

	total := phaseW*phaseComponent +
		overallDocWeight*snap.Documentation +
		overallTestWeight*snap.TestCoverage
	if constraintW > 0 {
		total += constraintW * weightedConstraintCoverage(state.Config.Constraints, snap.Constraints)
	}
	return models.ClampPercent(total)
}

// meanPhaseCoverage averages coverage over phases that have been worked
// on (in progress or completed, plus the current phase). Untouched
// pending phases are excluded so early sessions are not judged on
// phases they have not reached.
func meanPhaseCoverage(state *models.SessionState, snap models.CoverageSnapshot) float64 {
	sum, n := 0.0, 0
	for id, p := range state.Phases {
		if p.Status == models.PhaseStatusPending && id != state.CurrentPhase {
			continue
		}
		sum += snap.Phases[id]
		n++
	}
	if n == 0 {
		return neutralCompleteness
	}
	return sum / float64(n)
}

// weightedConstraintCoverage averages constraint scores weighted by each
// constraint's declared weight.
func weightedConstraintCoverage(constraints []models.Constraint, scores map[string]float64) float64 {
	totalWeight, sum := 0.0, 0.0
	for _, con := range constraints {
		w := con.Weight
		if w <= 0 {
			w = 1
		}
		totalWeight += w
		sum += w * scores[con.ID]
	}
	if totalWeight == 0 {
		return 0
	}
	return sum / totalWeight
}

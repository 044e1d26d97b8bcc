package coverage

import (
	"fmt"
	"sort"

	"github.com/jmfell/phasegate/internal/catalog"
	"github.com/jmfell/phasegate/internal/models"
)

// Detector compares a coverage snapshot against the session's thresholds
// and constraint mandatoriness, producing a classified violation list.
type Detector struct {
	rules catalog.CoverageRules
}

// NewDetector returns a Detector using the given coverage rules.
func NewDetector(rules catalog.CoverageRules) *Detector {
	return &Detector{rules: rules}
}

// Detect returns all violations in the snapshot, ordered critical before
// warning before info, and within a severity by descending gap.
//
// Sessions with no constraints configured ("minimal" sessions) get a
// relaxed evaluation: overall and phase shortfalls are downgraded to
// warnings, since there is nothing to violate against except the blanket
// threshold.
func (d *Detector) Detect(snap models.CoverageSnapshot, config models.SessionConfig, phases map[string]*models.Phase) []models.Violation {
	var violations []models.Violation
	minimal := config.Minimal()

	// Overall.
	overallMin := config.CoverageThreshold
	if overallMin <= 0 {
		overallMin = d.rules.OverallMinimum
	}
	if snap.Overall < overallMin {
		sev := models.SeverityCritical
		if minimal {
			sev = models.SeverityWarning
		}
		violations = append(violations, models.Violation{
			Type:         models.ViolationTypeOverall,
			TargetID:     "overall",
			Severity:     sev,
			CurrentValue: snap.Overall,
			Threshold:    overallMin,
			Gap:          overallMin - snap.Overall,
			Message:      fmt.Sprintf("overall coverage %.0f%% below threshold %.0f%%", snap.Overall, overallMin),
		})
	}

	// Phases. Only phases that have been worked on are judged; pending
	// phases have not earned a violation yet.
	for id, p := range phases {
		if p.Status == models.PhaseStatusPending {
			continue
		}
		phaseMin := p.MinCoverage
		if phaseMin <= 0 {
			phaseMin = d.rules.PhaseMinimum
		}
		cov := snap.Phases[id]
		if cov >= phaseMin {
			continue
		}
		gap := phaseMin - cov
		sev := models.SeverityWarning
		if !minimal && gap > 25 {
			sev = models.SeverityCritical
		}
		violations = append(violations, models.Violation{
			Type:         models.ViolationTypePhase,
			TargetID:     id,
			Severity:     sev,
			CurrentValue: cov,
			Threshold:    phaseMin,
			Gap:          gap,
			Message:      fmt.Sprintf("phase %q coverage %.0f%% below minimum %.0f%%", p.Name, cov, phaseMin),
		})
	}

	// Constraints. Mandatory shortfalls are always critical.
	for _, con := range config.Constraints {
		cov := snap.Constraints[con.ID]
		minCov := con.Validation.MinCoverage
		if minCov <= 0 {
			minCov = d.rules.ConstraintMinimum
		}
		if cov >= minCov {
			continue
		}
		sev := models.SeverityWarning
		if con.Mandatory {
			sev = models.SeverityCritical
		}
		violations = append(violations, models.Violation{
			Type:         models.ViolationTypeConstraint,
			TargetID:     con.ID,
			Severity:     sev,
			CurrentValue: cov,
			Threshold:    minCov,
			Gap:          minCov - cov,
			Message:      fmt.Sprintf("constraint %q coverage %.0f%% below minimum %.0f%%", con.Name, cov, minCov),
		})
	}

	// Documentation and test sub-scores against platform minimums.
	if snap.Documentation < d.rules.DocumentationMinimum {
		violations = append(violations, models.Violation{
			Type:         models.ViolationTypeDocumentation,
			TargetID:     "documentation",
			Severity:     models.SeverityWarning,
			CurrentValue: snap.Documentation,
			Threshold:    d.rules.DocumentationMinimum,
			Gap:          d.rules.DocumentationMinimum - snap.Documentation,
			Message:      fmt.Sprintf("documentation coverage %.0f%% below minimum %.0f%%", snap.Documentation, d.rules.DocumentationMinimum),
		})
	}
	if snap.TestCoverage < d.rules.TestMinimum {
		violations = append(violations, models.Violation{
			Type:         models.ViolationTypeTest,
			TargetID:     "test",
			Severity:     models.SeverityWarning,
			CurrentValue: snap.TestCoverage,
			Threshold:    d.rules.TestMinimum,
			Gap:          d.rules.TestMinimum - snap.TestCoverage,
			Message:      fmt.Sprintf("test coverage signal %.0f%% below minimum %.0f%%", snap.TestCoverage, d.rules.TestMinimum),
		})
	}

	sortViolations(violations)
	return violations
}

// sortViolations orders worst-first: by severity rank, then descending gap.
func sortViolations(violations []models.Violation) {
	sort.SliceStable(violations, func(i, j int) bool {
		ri, rj := violations[i].Severity.Rank(), violations[j].Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		return violations[i].Gap > violations[j].Gap
	})
}

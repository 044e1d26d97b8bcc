// Package plan turns detected violations into prioritized remediation
// actions and human-readable recommendations.
package plan

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmfell/phasegate/internal/models"
)

// escalateGap is the constraint gap above which a violation is escalated
// rather than clarified.
const escalateGap = 25.0

// Planner maps violations to enforcement actions.
type Planner struct{}

// NewPlanner returns a new Planner.
func NewPlanner() *Planner {
	return &Planner{}
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// PlanActions yields exactly one action per critical or warning
// violation. Info violations carry no action. With no violations at all
// the list still contains a single low-priority monitoring action, so
// callers never receive an empty plan.
func (p *Planner) PlanActions(violations []models.Violation) []models.EnforcementAction {
	var actions []models.EnforcementAction

	for _, v := range violations {
		if v.Severity == models.SeverityInfo {
			continue
		}
		actions = append(actions, p.actionFor(v))
	}

	if len(actions) == 0 {
		actions = append(actions, models.EnforcementAction{
			ID:          newULID(),
			Type:        models.ActionContinueMonitoring,
			TargetID:    "overall",
			Description: "no coverage violations detected; continue monitoring as content evolves",
			Priority:    models.PriorityLow,
			Effort:      models.EffortLow,
		})
	}

	return actions
}

func (p *Planner) actionFor(v models.Violation) models.EnforcementAction {
	action := models.EnforcementAction{
		ID:       newULID(),
		TargetID: v.TargetID,
		Priority: models.PriorityForSeverity(v.Severity),
		Effort:   models.EffortForGap(v.Gap),
	}

	switch v.Type {
	case models.ViolationTypeConstraint:
		action.ConstraintID = v.TargetID
		if v.Gap > escalateGap {
			action.Type = models.ActionEscalate
			action.Description = fmt.Sprintf("escalate constraint %q: coverage %.0f%% is %.0f points below its minimum", v.TargetID, v.CurrentValue, v.Gap)
		} else {
			action.Type = models.ActionPromptForClarification
			action.Interactive = true
			action.Description = fmt.Sprintf("clarify how constraint %q is addressed; coverage %.0f%% is just below its minimum %.0f%%", v.TargetID, v.CurrentValue, v.Threshold)
		}
	default:
		action.Type = models.ActionAutoAlign
		action.Description = fmt.Sprintf("expand %s content to close a %.0f point coverage gap (currently %.0f%%, needs %.0f%%)", v.Type, v.Gap, v.CurrentValue, v.Threshold)
	}

	return action
}

// Recommend produces deduplicated human-readable guidance from the
// violation set and snapshot. When any phase scores below 80 the lowest
// one gets a recommendation; documentation and test gaps each get one
// when violated.
func (p *Planner) Recommend(violations []models.Violation, snap models.CoverageSnapshot) []string {
	seen := make(map[string]bool)
	var recs []string
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			recs = append(recs, s)
		}
	}

	if id, cov, ok := lowestPhase(snap); ok && cov < 80 {
		add(fmt.Sprintf("Focus on phase %q first: at %.0f%% it is the weakest phase.", id, cov))
	}

	for _, v := range violations {
		switch v.Type {
		case models.ViolationTypeDocumentation:
			add(fmt.Sprintf("Improve documentation structure (headings, lists, tables): currently %.0f%%, target %.0f%%.", v.CurrentValue, v.Threshold))
		case models.ViolationTypeTest:
			add(fmt.Sprintf("Describe the test strategy (unit, integration, coverage targets): currently %.0f%%, target %.0f%%.", v.CurrentValue, v.Threshold))
		case models.ViolationTypeConstraint:
			if v.Severity == models.SeverityCritical {
				add(fmt.Sprintf("Address mandatory constraint %q before advancing.", v.TargetID))
			}
		case models.ViolationTypeOverall:
			add(fmt.Sprintf("Overall coverage %.0f%% is below the session threshold %.0f%%; broaden the artifact before advancing.", v.CurrentValue, v.Threshold))
		}
	}

	if len(recs) == 0 {
		add("Coverage targets are met; keep artifacts up to date as the design evolves.")
	}
	return recs
}

func lowestPhase(snap models.CoverageSnapshot) (string, float64, bool) {
	found := false
	var minID string
	var minCov float64
	for id, cov := range snap.Phases {
		if !found || cov < minCov || (cov == minCov && id < minID) {
			found = true
			minID = id
			minCov = cov
		}
	}
	return minID, minCov, found
}

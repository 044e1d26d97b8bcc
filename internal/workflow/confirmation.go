package workflow

import (
	"fmt"
	"sort"

	"github.com/jmfell/phasegate/internal/coverage"
	"github.com/jmfell/phasegate/internal/models"
	"github.com/jmfell/phasegate/internal/plan"
)

// CheckStatus is the outcome of one named confirmation check.
type CheckStatus string

const (
	CheckPassed         CheckStatus = "passed"
	CheckFailed         CheckStatus = "failed"
	CheckNotImplemented CheckStatus = "not_implemented"
)

// CheckResult is one entry of a confirmation checklist.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Details string
}

// CheckFunc evaluates one named confirmation check against the phase,
// the evaluated content, and the freshly computed snapshot.
type CheckFunc func(phase *models.Phase, content string, state *models.SessionState, snap models.CoverageSnapshot) CheckResult

// Confirmation is the structured result of gating a phase. Renderers
// consume it as data; nothing here is pre-formatted beyond plain strings.
type Confirmation struct {
	Phase           string
	Coverage        models.CoverageSnapshot
	Violations      []models.Violation
	Actions         []models.EnforcementAction
	Checklist       []CheckResult
	Questions       []string
	NextSteps       []string
	Recommendations []string
	Passed          bool
}

// confirmationBuilder runs the configurable check registry and folds the
// detector and planner output into a Confirmation. Unknown check names
// resolve to not_implemented results instead of failing the build.
type confirmationBuilder struct {
	detector *coverage.Detector
	planner  *plan.Planner
	checks   map[string]CheckFunc
	order    []string
}

func newConfirmationBuilder(detector *coverage.Detector, planner *plan.Planner) *confirmationBuilder {
	b := &confirmationBuilder{
		detector: detector,
		planner:  planner,
		checks:   make(map[string]CheckFunc),
	}
	b.register("outputs_present", checkOutputsPresent)
	b.register("criteria_addressed", checkCriteriaAddressed)
	b.register("documentation_quality", checkDocumentationQuality)
	b.register("test_coverage", checkTestCoverage)
	b.register("assumptions_stated", checkAssumptionsStated)
	return b
}

func (b *confirmationBuilder) register(name string, fn CheckFunc) {
	if _, dup := b.checks[name]; !dup {
		b.order = append(b.order, name)
	}
	b.checks[name] = fn
}

// runCheck dispatches a named check. Names with no registered function
// report not_implemented so configurable checklists stay tolerant.
func (b *confirmationBuilder) runCheck(name string, phase *models.Phase, content string, state *models.SessionState, snap models.CoverageSnapshot) CheckResult {
	fn, ok := b.checks[name]
	if !ok {
		return CheckResult{
			Name:    name,
			Status:  CheckNotImplemented,
			Details: fmt.Sprintf("no check registered under %q", name),
		}
	}
	return fn(phase, content, state, snap)
}

// build assembles the full confirmation for the given phase. The passing
// bar depends on strictness: strict requires no critical violations and
// phase coverage at or above the phase minimum; non-strict tolerates a
// shortfall of up to softBar points below the minimum as long as no
// critical violation targets this phase.
func (b *confirmationBuilder) build(state *models.SessionState, phase *models.Phase, content string, snap models.CoverageSnapshot, strict bool) *Confirmation {
	violations := b.detector.Detect(snap, state.Config, state.Phases)

	conf := &Confirmation{
		Coverage:        snap,
		Violations:      violations,
		Actions:         b.planner.PlanActions(violations),
		Recommendations: b.planner.Recommend(violations, snap),
	}
	if phase != nil {
		conf.Phase = phase.ID
	}

	for _, name := range b.order {
		conf.Checklist = append(conf.Checklist, b.runCheck(name, phase, content, state, snap))
	}
	sortChecklist(conf.Checklist)

	conf.Questions = rationaleQuestions(phase, conf.Checklist, violations)
	conf.Passed = b.passed(phase, snap, violations, strict)
	conf.NextSteps = nextSteps(state, phase, conf.Passed, violations)
	return conf
}

// softBar is how far below its minimum a phase may score and still pass
// in non-strict mode.
const softBar = 10.0

func (b *confirmationBuilder) passed(phase *models.Phase, snap models.CoverageSnapshot, violations []models.Violation, strict bool) bool {
	if phase == nil {
		return false
	}
	for _, v := range violations {
		if v.Severity != models.SeverityCritical {
			continue
		}
		if strict || v.TargetID == phase.ID || v.Type == models.ViolationTypeConstraint {
			return false
		}
	}
	bar := phase.MinCoverage
	if !strict {
		bar -= softBar
	}
	return snap.Phases[phase.ID] >= bar
}

// ---------------------------------------------------------------------------
// Default checks
// ---------------------------------------------------------------------------

func checkOutputsPresent(phase *models.Phase, content string, _ *models.SessionState, _ models.CoverageSnapshot) CheckResult {
	res := CheckResult{Name: "outputs_present"}
	if phase == nil || len(phase.Outputs) == 0 {
		res.Status = CheckPassed
		res.Details = "no required outputs declared"
		return res
	}
	var missing []string
	for _, out := range phase.Outputs {
		if !coverage.PhraseMatch(content, out) {
			missing = append(missing, out)
		}
	}
	if len(missing) == 0 {
		res.Status = CheckPassed
		res.Details = fmt.Sprintf("all %d required outputs mentioned", len(phase.Outputs))
	} else {
		res.Status = CheckFailed
		res.Details = fmt.Sprintf("missing outputs: %v", missing)
	}
	return res
}

func checkCriteriaAddressed(phase *models.Phase, content string, _ *models.SessionState, _ models.CoverageSnapshot) CheckResult {
	res := CheckResult{Name: "criteria_addressed"}
	if phase == nil || len(phase.Criteria) == 0 {
		res.Status = CheckPassed
		res.Details = "no completion criteria declared"
		return res
	}
	var missing []string
	for _, crit := range phase.Criteria {
		if !coverage.PhraseMatch(content, crit) {
			missing = append(missing, crit)
		}
	}
	if len(missing) == 0 {
		res.Status = CheckPassed
		res.Details = fmt.Sprintf("all %d criteria addressed", len(phase.Criteria))
	} else {
		res.Status = CheckFailed
		res.Details = fmt.Sprintf("unaddressed criteria: %v", missing)
	}
	return res
}

func checkDocumentationQuality(_ *models.Phase, _ string, _ *models.SessionState, snap models.CoverageSnapshot) CheckResult {
	res := CheckResult{Name: "documentation_quality"}
	if snap.Documentation >= 75 {
		res.Status = CheckPassed
	} else {
		res.Status = CheckFailed
	}
	res.Details = fmt.Sprintf("documentation score %.0f%%", snap.Documentation)
	return res
}

func checkTestCoverage(_ *models.Phase, _ string, _ *models.SessionState, snap models.CoverageSnapshot) CheckResult {
	res := CheckResult{Name: "test_coverage"}
	if snap.TestCoverage >= 70 {
		res.Status = CheckPassed
	} else {
		res.Status = CheckFailed
	}
	res.Details = fmt.Sprintf("test coverage signal %.0f%%", snap.TestCoverage)
	return res
}

func checkAssumptionsStated(_ *models.Phase, _ string, _ *models.SessionState, snap models.CoverageSnapshot) CheckResult {
	res := CheckResult{Name: "assumptions_stated"}
	if snap.Assumptions > 0 {
		res.Status = CheckPassed
		res.Details = fmt.Sprintf("assumption score %.0f%%", snap.Assumptions)
	} else {
		res.Status = CheckFailed
		res.Details = "no assumptions stated in the content"
	}
	return res
}

// ---------------------------------------------------------------------------
// Questions and next steps
// ---------------------------------------------------------------------------

// rationaleQuestions derives the follow-up questions a reviewer should
// answer before signing off the phase, one per failed check plus one per
// critical constraint violation.
func rationaleQuestions(phase *models.Phase, checklist []CheckResult, violations []models.Violation) []string {
	var qs []string
	for _, c := range checklist {
		if c.Status != CheckFailed {
			continue
		}
		switch c.Name {
		case "outputs_present":
			qs = append(qs, "Which required deliverables are intentionally deferred, and why?")
		case "criteria_addressed":
			qs = append(qs, "Which completion criteria remain open, and what is blocking them?")
		case "documentation_quality":
			qs = append(qs, "Can the artifact be restructured with headings and lists to aid review?")
		case "test_coverage":
			qs = append(qs, "What is the test strategy for this phase's deliverables?")
		case "assumptions_stated":
			qs = append(qs, "What assumptions is this work resting on that are not written down?")
		}
	}
	for _, v := range violations {
		if v.Type == models.ViolationTypeConstraint && v.Severity == models.SeverityCritical {
			qs = append(qs, fmt.Sprintf("How will mandatory constraint %q be satisfied before sign-off?", v.TargetID))
		}
	}
	if phase != nil && len(qs) == 0 {
		qs = append(qs, fmt.Sprintf("Is phase %q ready to be closed out?", phase.Name))
	}
	return dedupe(qs)
}

func nextSteps(state *models.SessionState, phase *models.Phase, passed bool, violations []models.Violation) []string {
	var steps []string
	if !passed {
		for _, v := range violations {
			if v.Severity == models.SeverityCritical {
				steps = append(steps, fmt.Sprintf("Resolve: %s", v.Message))
			}
		}
		if phase != nil {
			steps = append(steps, fmt.Sprintf("Revise the artifact for phase %q and validate again.", phase.Name))
		}
		return dedupe(steps)
	}
	if phase != nil {
		if next := state.NextPhase(phase.ID); next != "" {
			steps = append(steps, fmt.Sprintf("Begin phase %q.", next))
		} else {
			steps = append(steps, "All phases are complete; produce the final deliverables.")
		}
	}
	return steps
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// sortChecklist keeps failures first so renderers surface problems at
// the top of the checklist.
func sortChecklist(checks []CheckResult) {
	rank := func(s CheckStatus) int {
		switch s {
		case CheckFailed:
			return 0
		case CheckNotImplemented:
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(checks, func(i, j int) bool {
		return rank(checks[i].Status) < rank(checks[j].Status)
	})
}

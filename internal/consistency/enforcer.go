// Package consistency compares a session's constraint treatment against
// the recorded decisions of other sessions and emits enforcement actions
// when they diverge.
package consistency

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmfell/phasegate/internal/catalog"
	"github.com/jmfell/phasegate/internal/models"
	"github.com/jmfell/phasegate/internal/store"
)

// Score penalties per unresolved violation severity.
const (
	criticalPenalty = 25.0
	warningPenalty  = 10.0
	infoPenalty     = 5.0
)

// promptScoreBar is the consistency score below which interactive
// clarification prompts are always emitted.
const promptScoreBar = 80.0

// Request carries one consistency enforcement call.
type Request struct {
	State        *models.SessionState
	ConstraintID string // restrict to one constraint when set
	PhaseID      string
	StrictMode   bool // lowers the divergence margin
	Context      string
}

// Enforcer detects cross-session constraint divergence.
type Enforcer struct {
	store        store.DecisionStore
	margin       float64
	strictMargin float64
}

// NewEnforcer returns an Enforcer backed by the given decision store.
func NewEnforcer(st store.DecisionStore, rules catalog.CoverageRules) *Enforcer {
	return &Enforcer{
		store:        st,
		margin:       rules.ConsistencyMargin,
		strictMargin: rules.StrictConsistencyMargin,
	}
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// EnforceConsistency runs the full pass: detect divergences, score them,
// derive actions and prompts, and record the session's current
// constraint decisions so later sessions can compare against them.
func (e *Enforcer) EnforceConsistency(ctx context.Context, req Request) (*models.ConsistencyResult, error) {
	if req.State == nil {
		return nil, models.MissingField("sessionState")
	}

	margin := e.margin
	if req.StrictMode {
		margin = e.strictMargin
	}

	violations, err := e.detect(ctx, req.State, req.ConstraintID, margin)
	if err != nil {
		return nil, err
	}

	result := e.buildResult(req, violations)

	// Recording is bookkeeping for future sessions; a storage failure
	// should not discard a valid enforcement result.
	if err := e.recordDecisions(ctx, req); err != nil {
		slog.Warn("failed to record constraint decisions", "session", req.State.Config.SessionID, "error", err)
	}
	return result, nil
}

// DetectViolations reports divergences using the default margin, without
// scoring, actions, or recording.
func (e *Enforcer) DetectViolations(ctx context.Context, state *models.SessionState, constraintID string) ([]models.ConsistencyViolation, error) {
	if state == nil {
		return nil, models.MissingField("sessionState")
	}
	return e.detect(ctx, state, constraintID, e.margin)
}

// ValidateCrossSession is the read-only variant: it detects, scores, and
// builds prompts but records nothing.
func (e *Enforcer) ValidateCrossSession(ctx context.Context, state *models.SessionState, constraintID string) (*models.ConsistencyResult, error) {
	if state == nil {
		return nil, models.MissingField("sessionState")
	}
	violations, err := e.detect(ctx, state, constraintID, e.margin)
	if err != nil {
		return nil, err
	}
	return e.buildResult(Request{State: state, ConstraintID: constraintID}, violations), nil
}

// detect compares each configured constraint against its history.
func (e *Enforcer) detect(ctx context.Context, state *models.SessionState, constraintID string, margin float64) ([]models.ConsistencyViolation, error) {
	var violations []models.ConsistencyViolation

	for _, con := range state.Config.Constraints {
		if constraintID != "" && con.ID != constraintID {
			continue
		}

		history, err := e.store.ListDecisions(ctx, store.DecisionFilter{ConstraintID: con.ID})
		if err != nil {
			return nil, fmt.Errorf("list decisions for %s: %w", con.ID, err)
		}
		history = excludeSession(history, state.Config.SessionID)
		if len(history) == 0 {
			continue
		}

		current := state.Coverage.Constraints[con.ID]
		histMean := meanCoverage(history)
		divergence := abs(current - histMean)

		if divergence > margin {
			sev := models.SeverityWarning
			if divergence > 2*margin {
				sev = models.SeverityCritical
			}
			violations = append(violations, models.ConsistencyViolation{
				ConstraintID:    con.ID,
				ViolationType:   models.ConsistencyDecisionConflict,
				Severity:        sev,
				CurrentValue:    current,
				HistoricalValue: histMean,
				Divergence:      divergence,
				Description: fmt.Sprintf("constraint %q scores %.0f%% here but averaged %.0f%% across %d prior session(s)",
					con.ID, current, histMean, len(history)),
			})
		}

		// A mandatory constraint that prior sessions enforced but this
		// session fails is a mismatch even when the raw divergence is small.
		if con.Mandatory && majorityEnforced(history) && current < con.Validation.MinCoverage {
			violations = append(violations, models.ConsistencyViolation{
				ConstraintID:    con.ID,
				ViolationType:   models.ConsistencyEnforcementMismatch,
				Severity:        models.SeverityCritical,
				CurrentValue:    current,
				HistoricalValue: histMean,
				Divergence:      con.Validation.MinCoverage - current,
				Description: fmt.Sprintf("mandatory constraint %q was enforced by prior sessions but fails its %.0f%% minimum here",
					con.ID, con.Validation.MinCoverage),
			})
		}

		if distinctRationales(history) > 1 {
			violations = append(violations, models.ConsistencyViolation{
				ConstraintID:    con.ID,
				ViolationType:   models.ConsistencyRationaleInconsistency,
				Severity:        models.SeverityInfo,
				CurrentValue:    current,
				HistoricalValue: histMean,
				Divergence:      divergence,
				Description:     fmt.Sprintf("prior sessions recorded conflicting rationales for constraint %q", con.ID),
			})
		}
	}

	return violations, nil
}

// buildResult scores the violations and derives actions and prompts.
func (e *Enforcer) buildResult(req Request, violations []models.ConsistencyViolation) *models.ConsistencyResult {
	result := &models.ConsistencyResult{
		SessionID:  req.State.Config.SessionID,
		Violations: violations,
	}

	score := 100.0
	for _, v := range violations {
		switch v.Severity {
		case models.SeverityCritical:
			score -= criticalPenalty
		case models.SeverityWarning:
			score -= warningPenalty
		default:
			score -= infoPenalty
		}
	}
	if score < 0 {
		score = 0
	}
	result.ConsistencyScore = score

	for _, v := range violations {
		result.Actions = append(result.Actions, e.actionFor(v))
	}

	if score < promptScoreBar {
		result.Prompts = e.prompts(req, violations)
	}
	return result
}

// actionFor maps a consistency violation to an enforcement action.
// Large conflicts and mandatory mismatches warrant a recorded decision.
func (e *Enforcer) actionFor(v models.ConsistencyViolation) models.EnforcementAction {
	action := models.EnforcementAction{
		ID:           newULID(),
		ConstraintID: v.ConstraintID,
		TargetID:     v.ConstraintID,
		Priority:     models.PriorityForSeverity(v.Severity),
		Effort:       models.EffortForGap(v.Divergence),
	}

	switch {
	case v.Severity == models.SeverityCritical:
		action.Type = models.ActionGenerateADR
		action.Description = fmt.Sprintf("record a decision for constraint %q: %s", v.ConstraintID, v.Description)
	case v.ViolationType == models.ConsistencyDecisionConflict:
		action.Type = models.ActionPromptForClarification
		action.Interactive = true
		action.Description = fmt.Sprintf("clarify why constraint %q diverges from its historical treatment", v.ConstraintID)
	default:
		action.Type = models.ActionAutoAlign
		action.Description = fmt.Sprintf("align constraint %q with its historical treatment: %s", v.ConstraintID, v.Description)
	}
	return action
}

// prompts builds interactive clarification strings. When a phase id is
// supplied the prompt references it (and the caller context) so callers
// can present phase-aware questions.
func (e *Enforcer) prompts(req Request, violations []models.ConsistencyViolation) []string {
	var prompts []string
	for _, v := range violations {
		if v.Severity == models.SeverityInfo {
			continue
		}
		p := fmt.Sprintf("Constraint %q diverges from prior sessions (%.0f%% now vs %.0f%% historically). Is this intentional?",
			v.ConstraintID, v.CurrentValue, v.HistoricalValue)
		if req.PhaseID != "" {
			p = fmt.Sprintf("During phase %q: %s", req.PhaseID, p)
		}
		if req.Context != "" {
			p += fmt.Sprintf(" Context: %s", req.Context)
		}
		prompts = append(prompts, p)
	}
	if len(prompts) == 0 {
		p := "Consistency score is low; review this session's constraint decisions against prior sessions."
		if req.PhaseID != "" {
			p = fmt.Sprintf("During phase %q: %s", req.PhaseID, p)
		}
		prompts = append(prompts, p)
	}
	return prompts
}

// recordDecisions persists the current session's treatment of each
// constraint under consideration.
func (e *Enforcer) recordDecisions(ctx context.Context, req Request) error {
	for _, con := range req.State.Config.Constraints {
		if req.ConstraintID != "" && con.ID != req.ConstraintID {
			continue
		}
		coverage := req.State.Coverage.Constraints[con.ID]
		d := &models.ConstraintDecision{
			SessionID:    req.State.Config.SessionID,
			ConstraintID: con.ID,
			Coverage:     coverage,
			Mandatory:    con.Mandatory,
			Enforced:     coverage >= con.Validation.MinCoverage,
			Rationale:    req.Context,
			DecidedAt:    time.Now().UTC(),
		}
		if err := e.store.SaveDecision(ctx, d); err != nil {
			return fmt.Errorf("record decision for %s: %w", con.ID, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func excludeSession(decisions []*models.ConstraintDecision, sessionID string) []*models.ConstraintDecision {
	var out []*models.ConstraintDecision
	for _, d := range decisions {
		if d.SessionID != sessionID {
			out = append(out, d)
		}
	}
	return out
}

func meanCoverage(decisions []*models.ConstraintDecision) float64 {
	if len(decisions) == 0 {
		return 0
	}
	sum := 0.0
	for _, d := range decisions {
		sum += d.Coverage
	}
	return sum / float64(len(decisions))
}

func majorityEnforced(decisions []*models.ConstraintDecision) bool {
	enforced := 0
	for _, d := range decisions {
		if d.Enforced {
			enforced++
		}
	}
	return enforced*2 > len(decisions)
}

func distinctRationales(decisions []*models.ConstraintDecision) int {
	seen := make(map[string]bool)
	for _, d := range decisions {
		if d.Rationale != "" {
			seen[d.Rationale] = true
		}
	}
	return len(seen)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

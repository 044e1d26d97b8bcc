// Package workflow owns the session state machine: it starts sessions,
// gates phase transitions on confirmation results, and exposes the
// read-only status, validation, and reset actions.
package workflow

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmfell/phasegate/internal/catalog"
	"github.com/jmfell/phasegate/internal/consistency"
	"github.com/jmfell/phasegate/internal/coverage"
	"github.com/jmfell/phasegate/internal/models"
	"github.com/jmfell/phasegate/internal/pivot"
	"github.com/jmfell/phasegate/internal/plan"
)

// Workflow orchestrates sessions through their phases. The session map
// is guarded by a mutex so overlapping tool invocations on the same
// session serialize instead of racing.
type Workflow struct {
	mu       sync.Mutex
	catalog  *catalog.Catalog
	calc     *coverage.Calculator
	detector *coverage.Detector
	planner  *plan.Planner
	pivots   *pivot.Evaluator
	enforcer *consistency.Enforcer
	confirm  *confirmationBuilder
	sessions map[string]*models.SessionState
	strict   bool
}

// New wires a Workflow from the catalog and its collaborators. The
// enforcer may be nil when cross-session consistency is not configured.
func New(cat *catalog.Catalog, enforcer *consistency.Enforcer, strict bool) *Workflow {
	detector := coverage.NewDetector(cat.Rules)
	planner := plan.NewPlanner()
	return &Workflow{
		catalog:  cat,
		calc:     coverage.NewCalculator(cat.Rules),
		detector: detector,
		planner:  planner,
		pivots:   pivot.NewEvaluator(cat.Rules),
		enforcer: enforcer,
		confirm:  newConfirmationBuilder(detector, planner),
		sessions: make(map[string]*models.SessionState),
		strict:   strict,
	}
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// ---------------------------------------------------------------------------
// Results
// ---------------------------------------------------------------------------

// StartResult reports the freshly initialized session.
type StartResult struct {
	SessionID    string
	CurrentPhase string
	PhaseOrder   []string
	Coverage     models.CoverageSnapshot
	Status       models.SessionStatus
}

// AdvanceResult reports the outcome of one advance attempt. Success
// false means the confirmation did not pass; the session is unchanged
// apart from recorded coverage.
type AdvanceResult struct {
	Success       bool
	Message       string
	Phase         string // the phase that was evaluated
	NextPhase     string // set when the session advanced
	SessionStatus models.SessionStatus
	Confirmation  *Confirmation
	Pivot         *models.PivotDecision // attached when pivots are enabled
}

// CompleteResult reports an explicit phase completion.
type CompleteResult struct {
	Success   bool
	Message   string
	Phase     string
	Coverage  float64
	Artifacts []string
}

// StatusResult is the read-only session report.
type StatusResult struct {
	SessionID       string
	CurrentPhase    string
	Status          models.SessionStatus
	Coverage        models.CoverageSnapshot
	Phases          map[string]models.PhaseStatus
	Violations      []models.Violation
	Recommendations []string
	History         []models.HistoryEntry
}

// ResetResult reports a session reset.
type ResetResult struct {
	SessionID    string
	CurrentPhase string
	Message      string
}

// ---------------------------------------------------------------------------
// Actions
// ---------------------------------------------------------------------------

// Start creates (or overwrites) the session for config.SessionID with
// the catalog's phases, the first one in progress, and zeroed coverage.
// Starting an existing id is last-write-wins; uniqueness is the
// caller's concern.
func (w *Workflow) Start(config models.SessionConfig) (*StartResult, error) {
	if config.SessionID == "" {
		return nil, models.MissingField("sessionId")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	phases, order := w.catalog.SessionPhases()
	if len(order) == 0 {
		return nil, models.ValidationFailed("start", "catalog declares no phases")
	}

	now := time.Now().UTC()
	state := &models.SessionState{
		Config:       config,
		CurrentPhase: order[0],
		Phases:       phases,
		PhaseOrder:   order,
		Coverage:     models.NewCoverageSnapshot(),
		Status:       models.SessionStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	state.Phases[order[0]].Status = models.PhaseStatusInProgress
	state.AppendHistory("start", order[0], fmt.Sprintf("session started with %d phases", len(order)))

	w.sessions[config.SessionID] = state

	return &StartResult{
		SessionID:    config.SessionID,
		CurrentPhase: state.CurrentPhase,
		PhaseOrder:   append([]string(nil), order...),
		Coverage:     state.Coverage.Clone(),
		Status:       state.Status,
	}, nil
}

// Advance evaluates content against the current phase and, when the
// confirmation passes, completes the phase and moves to the next one.
// A failed confirmation records the coverage but never rewinds.
func (w *Workflow) Advance(sessionID, content string) (*AdvanceResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	state, ok := w.sessions[sessionID]
	if !ok {
		return nil, models.SessionNotFound(sessionID)
	}
	if state.Status == models.SessionStatusCompleted {
		return &AdvanceResult{
			Success:       false,
			Message:       "session is already completed; no further phases to advance into",
			Phase:         state.CurrentPhase,
			SessionStatus: state.Status,
		}, nil
	}

	phase := state.Phase(state.CurrentPhase)
	snap := w.calc.Compute(state, content)
	w.recordCoverage(state, phase, snap, content, "advance")

	conf := w.confirm.build(state, phase, content, snap, w.strict)

	result := &AdvanceResult{
		Phase:        state.CurrentPhase,
		Confirmation: conf,
	}

	if state.Config.EnablePivots {
		d := w.pivots.Evaluate(pivot.Request{State: state, Content: content})
		result.Pivot = &d
		if d.Triggered {
			state.AppendHistory("pivot", state.CurrentPhase, d.Reason)
		}
	}

	if !conf.Passed {
		result.Success = false
		result.Message = advanceFailureMessage(phase, conf)
		result.SessionStatus = state.Status
		return result, nil
	}

	phase.Status = models.PhaseStatusCompleted
	next := state.NextPhase(phase.ID)
	if next == "" {
		state.Status = models.SessionStatusCompleted
		state.AppendHistory("advance", phase.ID, "final phase completed; session complete")
		result.Success = true
		result.Message = fmt.Sprintf("phase %q completed; all phases done", phase.Name)
		result.SessionStatus = state.Status
		return result, nil
	}

	state.CurrentPhase = next
	nextPhase := state.Phase(next)
	if nextPhase.DependenciesMet(state.Phases) {
		nextPhase.Status = models.PhaseStatusInProgress
	}
	state.AppendHistory("advance", phase.ID, fmt.Sprintf("advanced to phase %q", next))

	result.Success = true
	result.Message = fmt.Sprintf("phase %q completed; now in %q", phase.Name, nextPhase.Name)
	result.NextPhase = next
	result.SessionStatus = state.Status
	return result, nil
}

// Complete marks the given phase completed with the content's coverage,
// whether or not it is the current phase. Back-filling an earlier phase
// never moves currentPhase; that is what Advance is for.
func (w *Workflow) Complete(sessionID, phaseID, content string) (*CompleteResult, error) {
	if phaseID == "" {
		return nil, models.MissingField("phaseId")
	}
	if content == "" {
		return nil, models.MissingField("content")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	state, ok := w.sessions[sessionID]
	if !ok {
		return nil, models.SessionNotFound(sessionID)
	}
	phase := state.Phase(phaseID)
	if phase == nil {
		return nil, models.ValidationFailed("complete", "unknown phase %q", phaseID)
	}

	// Score the content against the named phase, not the current one.
	savedCurrent := state.CurrentPhase
	state.CurrentPhase = phaseID
	snap := w.calc.Compute(state, content)
	state.CurrentPhase = savedCurrent

	w.recordCoverage(state, phase, snap, content, "complete")
	phase.Status = models.PhaseStatusCompleted
	state.AppendHistory("complete", phaseID, fmt.Sprintf("phase explicitly completed at %.0f%% coverage", phase.Coverage))

	return &CompleteResult{
		Success:   true,
		Message:   fmt.Sprintf("phase %q marked completed at %.0f%% coverage", phase.Name, phase.Coverage),
		Phase:     phaseID,
		Coverage:  phase.Coverage,
		Artifacts: append([]string(nil), phase.Artifacts...),
	}, nil
}

// Validate runs the confirmation pipeline read-only. Nothing in the
// session is mutated, so repeated calls with the same content return
// identical results.
func (w *Workflow) Validate(sessionID, content string) (*Confirmation, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	state, ok := w.sessions[sessionID]
	if !ok {
		return nil, models.SessionNotFound(sessionID)
	}
	phase := state.Phase(state.CurrentPhase)
	snap := w.calc.Compute(state, content)
	return w.confirm.build(state, phase, content, snap, w.strict), nil
}

// Status reports the session's current phase, coverage, violations, and
// recommendations without mutation.
func (w *Workflow) Status(sessionID string) (*StatusResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	state, ok := w.sessions[sessionID]
	if !ok {
		return nil, models.SessionNotFound(sessionID)
	}

	violations := w.detector.Detect(state.Coverage, state.Config, state.Phases)
	statuses := make(map[string]models.PhaseStatus, len(state.Phases))
	for id, p := range state.Phases {
		statuses[id] = p.Status
	}

	return &StatusResult{
		SessionID:       sessionID,
		CurrentPhase:    state.CurrentPhase,
		Status:          state.Status,
		Coverage:        state.Coverage.Clone(),
		Phases:          statuses,
		Violations:      violations,
		Recommendations: w.planner.Recommend(violations, state.Coverage),
		History:         append([]models.HistoryEntry(nil), state.History...),
	}, nil
}

// Reset returns the session to its first phase with zeroed coverage.
// History is appended to, never cleared.
func (w *Workflow) Reset(sessionID string) (*ResetResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	state, ok := w.sessions[sessionID]
	if !ok {
		return nil, models.SessionNotFound(sessionID)
	}

	first := state.PhaseOrder[0]
	for _, p := range state.Phases {
		p.Status = models.PhaseStatusPending
		p.Coverage = 0
		p.Artifacts = nil
	}
	state.Phases[first].Status = models.PhaseStatusInProgress
	state.CurrentPhase = first
	state.Coverage = models.NewCoverageSnapshot()
	state.Status = models.SessionStatusActive
	state.UpdatedAt = time.Now().UTC()
	state.AppendHistory("reset", first, "session reset to first phase")

	return &ResetResult{
		SessionID:    sessionID,
		CurrentPhase: first,
		Message:      fmt.Sprintf("session reset; back at phase %q", first),
	}, nil
}

// EvaluatePivot runs the pivot evaluator against a session.
func (w *Workflow) EvaluatePivot(sessionID, content, triggerReason string, force bool) (*models.PivotDecision, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	state, ok := w.sessions[sessionID]
	if !ok {
		return nil, models.SessionNotFound(sessionID)
	}

	d := w.pivots.Evaluate(pivot.Request{
		State:         state,
		Content:       content,
		TriggerReason: triggerReason,
		Force:         force,
	})
	if d.Triggered {
		state.AppendHistory("pivot", state.CurrentPhase, d.Reason)
	}
	return &d, nil
}

// EnforceConsistency runs the cross-session consistency pass for a
// session, recording its constraint decisions.
func (w *Workflow) EnforceConsistency(ctx context.Context, sessionID, constraintID, phaseID string, strictMode bool, contextStr string) (*models.ConsistencyResult, error) {
	if w.enforcer == nil {
		return nil, models.ValidationFailed("enforce_consistency", "no consistency enforcer configured")
	}

	w.mu.Lock()
	state, ok := w.sessions[sessionID]
	w.mu.Unlock()
	if !ok {
		return nil, models.SessionNotFound(sessionID)
	}

	return w.enforcer.EnforceConsistency(ctx, consistency.Request{
		State:        state,
		ConstraintID: constraintID,
		PhaseID:      phaseID,
		StrictMode:   strictMode,
		Context:      contextStr,
	})
}

// Sessions returns the ids of all in-memory sessions.
func (w *Workflow) Sessions() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	ids := make([]string, 0, len(w.sessions))
	for id := range w.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Session returns the live state for a session id, or nil. Callers must
// not mutate the returned state.
func (w *Workflow) Session(sessionID string) *models.SessionState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sessions[sessionID]
}

// ---------------------------------------------------------------------------
// Dynamic dispatch
// ---------------------------------------------------------------------------

// ActionRequest is the generic input for name-dispatched actions.
type ActionRequest struct {
	SessionID string
	PhaseID   string
	Content   string
	Config    *models.SessionConfig
}

// Do dispatches an action by name. Unknown names fail with a validation
// error; they never silently no-op.
func (w *Workflow) Do(action string, req ActionRequest) (any, error) {
	switch action {
	case "start":
		if req.Config == nil {
			return nil, models.MissingField("config")
		}
		return w.Start(*req.Config)
	case "advance":
		return w.Advance(req.SessionID, req.Content)
	case "complete":
		return w.Complete(req.SessionID, req.PhaseID, req.Content)
	case "validate":
		return w.Validate(req.SessionID, req.Content)
	case "status":
		return w.Status(req.SessionID)
	case "reset":
		return w.Reset(req.SessionID)
	default:
		return nil, models.ValidationFailed(action, "unknown action %q", action)
	}
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

// recordCoverage stores the snapshot on the session, updates the scored
// phase, and captures the content as an artifact.
func (w *Workflow) recordCoverage(state *models.SessionState, phase *models.Phase, snap models.CoverageSnapshot, content, source string) {
	state.Coverage = snap
	if phase != nil {
		phase.Coverage = snap.Phases[phase.ID]
	}
	if content != "" && phase != nil {
		art := models.Artifact{
			ID:        newULID(),
			Name:      fmt.Sprintf("%s-%s", phase.ID, source),
			Type:      source,
			Content:   content,
			Format:    "markdown",
			Timestamp: time.Now().UTC(),
		}
		state.Artifacts = append(state.Artifacts, art)
		phase.Artifacts = append(phase.Artifacts, art.ID)
	}
	state.UpdatedAt = time.Now().UTC()
}

func advanceFailureMessage(phase *models.Phase, conf *Confirmation) string {
	for _, v := range conf.Violations {
		if v.Severity == models.SeverityCritical {
			return fmt.Sprintf("phase %q not confirmed: %s", phase.Name, v.Message)
		}
	}
	return fmt.Sprintf("phase %q not confirmed: coverage %.0f%% is below the passing bar", phase.Name, conf.Coverage.Phases[phase.ID])
}

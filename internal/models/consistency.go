package models

import "time"

// ConsistencyViolationType classifies a cross-session divergence.
type ConsistencyViolationType string

const (
	ConsistencyDecisionConflict       ConsistencyViolationType = "decision_conflict"
	ConsistencyRationaleInconsistency ConsistencyViolationType = "rationale_inconsistency"
	ConsistencyEnforcementMismatch    ConsistencyViolationType = "enforcement_mismatch"
)

// ConsistencyViolation records one divergence between the current
// session's treatment of a constraint and its historical treatment.
type ConsistencyViolation struct {
	ConstraintID    string
	ViolationType   ConsistencyViolationType
	Severity        Severity
	CurrentValue    float64
	HistoricalValue float64
	Divergence      float64
	Description     string
}

// ConsistencyResult is the outcome of a consistency enforcement pass.
type ConsistencyResult struct {
	SessionID        string
	ConsistencyScore float64 // 0-100, 100 = fully consistent (or nothing to compare)
	Violations       []ConsistencyViolation
	Actions          []EnforcementAction
	Prompts          []string // interactive clarification prompts
}

// ConstraintDecision is one recorded treatment of a constraint in a
// session. Decisions are the cross-session history the consistency
// enforcer compares against.
type ConstraintDecision struct {
	ID           string
	SessionID    string
	ConstraintID string
	Coverage     float64
	Mandatory    bool
	Enforced     bool // whether the constraint passed its threshold
	Rationale    string
	DecidedAt    time.Time
}

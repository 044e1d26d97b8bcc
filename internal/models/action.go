package models

// ActionType is the closed set of remediation action kinds.
type ActionType string

const (
	ActionPromptForClarification ActionType = "prompt_for_clarification"
	ActionAutoAlign              ActionType = "auto_align"
	ActionGenerateADR            ActionType = "generate_adr"
	ActionEscalate               ActionType = "escalate"
	ActionContinueMonitoring     ActionType = "continue_monitoring"
)

// ActionPriority orders remediation work for human consumers.
type ActionPriority string

const (
	PriorityHigh   ActionPriority = "high"
	PriorityMedium ActionPriority = "medium"
	PriorityLow    ActionPriority = "low"
)

// EffortLevel estimates the work required to close a gap.
type EffortLevel string

const (
	EffortLow    EffortLevel = "low"
	EffortMedium EffortLevel = "medium"
	EffortHigh   EffortLevel = "high"
)

// EffortForGap maps a coverage gap to an effort estimate.
func EffortForGap(gap float64) EffortLevel {
	switch {
	case gap > 40:
		return EffortHigh
	case gap >= 20:
		return EffortMedium
	default:
		return EffortLow
	}
}

// PriorityForSeverity derives an action priority from violation severity.
func PriorityForSeverity(s Severity) ActionPriority {
	switch s {
	case SeverityCritical:
		return PriorityHigh
	case SeverityWarning:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// EnforcementAction is one prioritized remediation step derived from a
// violation (or from cross-session consistency analysis).
type EnforcementAction struct {
	ID           string
	Type         ActionType
	ConstraintID string // set for constraint-scoped actions
	TargetID     string // phase id, constraint id, or "overall"
	Description  string
	Interactive  bool
	Priority     ActionPriority
	Effort       EffortLevel
}

package models

// ViolationType identifies what kind of coverage shortfall was detected.
type ViolationType string

const (
	ViolationTypePhase         ViolationType = "phase"
	ViolationTypeConstraint    ViolationType = "constraint"
	ViolationTypeOverall       ViolationType = "overall"
	ViolationTypeDocumentation ViolationType = "documentation"
	ViolationTypeTest          ViolationType = "test"
)

// Severity classifies how serious a violation is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Rank orders severities for sorting: critical < warning < info.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// Violation is a detected shortfall of coverage against a threshold.
// TargetID is a phase or constraint id, or "overall".
type Violation struct {
	Type         ViolationType
	TargetID     string
	Severity     Severity
	CurrentValue float64
	Threshold    float64
	Gap          float64 // Threshold - CurrentValue
	Message      string
}

package models

// ConstraintType classifies what kind of requirement a constraint captures.
type ConstraintType string

const (
	ConstraintTypeFunctional    ConstraintType = "functional"
	ConstraintTypeNonFunctional ConstraintType = "non-functional"
	ConstraintTypeArchitectural ConstraintType = "architectural"
	ConstraintTypeTechnical     ConstraintType = "technical"
	ConstraintTypeCompliance    ConstraintType = "compliance"
)

// ConstraintValidation holds the scoring rules for one constraint.
type ConstraintValidation struct {
	MinCoverage float64  // 0-100 threshold below which the constraint is violated
	Keywords    []string // vocabulary the coverage calculator matches against
}

// Constraint is a named requirement artifacts must satisfy. Constraints
// are immutable once loaded and identified by ID across sessions, which
// is what makes cross-session consistency comparison possible.
type Constraint struct {
	ID          string
	Name        string
	Type        ConstraintType
	Category    string
	Description string
	Validation  ConstraintValidation
	Weight      float64 // relative importance, > 0
	Mandatory   bool
	Source      string // provenance, e.g. "methodology:default" or a file path
}

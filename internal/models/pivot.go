package models

// PivotAlternative is one ranked candidate approach offered when a pivot
// is under consideration.
type PivotAlternative struct {
	Name        string
	Pros        []string
	Cons        []string
	Feasibility float64 // 0-100
}

// PivotDecision is the outcome of a pivot evaluation. Alternatives are
// produced whether or not the pivot triggered, ranked by feasibility.
type PivotDecision struct {
	Triggered      bool
	Reason         string
	Complexity     float64 // 0-1
	Entropy        float64 // 0-1
	Threshold      float64 // the threshold that was compared against
	Alternatives   []PivotAlternative
	Recommendation string
}

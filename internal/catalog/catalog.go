// Package catalog loads and holds the methodology definition: phases,
// constraint rules grouped by category, global coverage rules, and named
// output-format templates. The rest of the engine depends only on the
// typed form, never on the source file.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jmfell/phasegate/internal/models"
)

//go:embed methodology.yaml
var defaultMethodology []byte

// PhaseDef is a methodology-declared phase template. Sessions
// instantiate their own mutable Phase values from these.
type PhaseDef struct {
	ID              string   `yaml:"id"`
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description"`
	MinCoverage     float64  `yaml:"min_coverage"`
	Inputs          []string `yaml:"inputs"`
	RequiredOutputs []string `yaml:"required_outputs"`
	Criteria        []string `yaml:"criteria"`
	DependsOn       []string `yaml:"depends_on"`
}

// CoverageRules holds the global thresholds the detector and evaluators
// compare against. Zero values are replaced with platform defaults.
type CoverageRules struct {
	OverallMinimum          float64 `yaml:"overall_minimum"`
	PhaseMinimum            float64 `yaml:"phase_minimum"`
	ConstraintMinimum       float64 `yaml:"constraint_minimum"`
	DocumentationMinimum    float64 `yaml:"documentation_minimum"`
	TestMinimum             float64 `yaml:"test_minimum"`
	PivotComplexity         float64 `yaml:"pivot_complexity_threshold"`
	PivotEntropy            float64 `yaml:"pivot_entropy_threshold"`
	PivotCoverageMargin     float64 `yaml:"pivot_coverage_margin"`
	ConsistencyMargin       float64 `yaml:"consistency_margin"`
	StrictConsistencyMargin float64 `yaml:"strict_consistency_margin"`
}

// Platform defaults applied when the catalog file leaves a rule unset.
const (
	DefaultOverallMinimum       = 70.0
	DefaultPhaseMinimum         = 70.0
	DefaultConstraintMinimum    = 70.0
	DefaultDocumentationMinimum = 75.0
	DefaultTestMinimum          = 70.0
	DefaultPivotComplexity      = 0.7
	DefaultPivotEntropy         = 0.6
	DefaultPivotCoverageMargin  = 15.0
	DefaultConsistencyMargin    = 25.0
	DefaultStrictMargin         = 10.0
)

func (r *CoverageRules) applyDefaults() {
	if r.OverallMinimum == 0 {
		r.OverallMinimum = DefaultOverallMinimum
	}
	if r.PhaseMinimum == 0 {
		r.PhaseMinimum = DefaultPhaseMinimum
	}
	if r.ConstraintMinimum == 0 {
		r.ConstraintMinimum = DefaultConstraintMinimum
	}
	if r.DocumentationMinimum == 0 {
		r.DocumentationMinimum = DefaultDocumentationMinimum
	}
	if r.TestMinimum == 0 {
		r.TestMinimum = DefaultTestMinimum
	}
	if r.PivotComplexity == 0 {
		r.PivotComplexity = DefaultPivotComplexity
	}
	if r.PivotEntropy == 0 {
		r.PivotEntropy = DefaultPivotEntropy
	}
	if r.PivotCoverageMargin == 0 {
		r.PivotCoverageMargin = DefaultPivotCoverageMargin
	}
	if r.ConsistencyMargin == 0 {
		r.ConsistencyMargin = DefaultConsistencyMargin
	}
	if r.StrictConsistencyMargin == 0 {
		r.StrictConsistencyMargin = DefaultStrictMargin
	}
}

// fileConstraint is the YAML shape of a constraint before it is folded
// into models.Constraint with its category attached.
type fileConstraint struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"`
	Description string   `yaml:"description"`
	Keywords    []string `yaml:"keywords"`
	Weight      float64  `yaml:"weight"`
	Mandatory   bool     `yaml:"mandatory"`
	MinCoverage float64  `yaml:"min_coverage"`
	Source      string   `yaml:"source"`
}

type catalogFile struct {
	Phases        []PhaseDef                  `yaml:"phases"`
	Constraints   map[string][]fileConstraint `yaml:"constraints"`
	CoverageRules CoverageRules               `yaml:"coverage_rules"`
	OutputFormats map[string]string           `yaml:"output_formats"`
}

// Catalog is the parsed, immutable methodology definition.
type Catalog struct {
	Phases        []PhaseDef
	Constraints   []models.Constraint
	Rules         CoverageRules
	OutputFormats map[string]string

	byPhase      map[string]*PhaseDef
	byConstraint map[string]*models.Constraint
}

// Default returns the catalog built from the embedded methodology.
func Default() *Catalog {
	c, err := Parse(defaultMethodology)
	if err != nil {
		// The embedded methodology is validated by tests; a parse failure
		// here means a broken build, not a runtime condition.
		panic(fmt.Sprintf("embedded methodology is invalid: %v", err))
	}
	return c
}

// Load reads and parses a methodology file from disk.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse builds a Catalog from raw YAML.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}
	if len(f.Phases) == 0 {
		return nil, fmt.Errorf("catalog declares no phases")
	}

	f.CoverageRules.applyDefaults()

	c := &Catalog{
		Phases:        f.Phases,
		Rules:         f.CoverageRules,
		OutputFormats: f.OutputFormats,
		byPhase:       make(map[string]*PhaseDef, len(f.Phases)),
		byConstraint:  make(map[string]*models.Constraint),
	}
	if c.OutputFormats == nil {
		c.OutputFormats = map[string]string{}
	}

	for i := range c.Phases {
		p := &c.Phases[i]
		if p.ID == "" {
			return nil, fmt.Errorf("phase %d has no id", i)
		}
		if _, dup := c.byPhase[p.ID]; dup {
			return nil, fmt.Errorf("duplicate phase id %q", p.ID)
		}
		if p.MinCoverage == 0 {
			p.MinCoverage = f.CoverageRules.PhaseMinimum
		}
		c.byPhase[p.ID] = p
	}

	for category, group := range f.Constraints {
		for _, fc := range group {
			if fc.ID == "" {
				return nil, fmt.Errorf("constraint in category %q has no id", category)
			}
			if _, dup := c.byConstraint[fc.ID]; dup {
				return nil, fmt.Errorf("duplicate constraint id %q", fc.ID)
			}
			weight := fc.Weight
			if weight <= 0 {
				weight = 1
			}
			minCov := fc.MinCoverage
			if minCov == 0 {
				minCov = f.CoverageRules.ConstraintMinimum
			}
			source := fc.Source
			if source == "" {
				source = "methodology:default"
			}
			con := models.Constraint{
				ID:          fc.ID,
				Name:        fc.Name,
				Type:        models.ConstraintType(fc.Type),
				Category:    category,
				Description: fc.Description,
				Validation: models.ConstraintValidation{
					MinCoverage: minCov,
					Keywords:    fc.Keywords,
				},
				Weight:    weight,
				Mandatory: fc.Mandatory,
				Source:    source,
			}
			c.Constraints = append(c.Constraints, con)
		}
	}
	for i := range c.Constraints {
		c.byConstraint[c.Constraints[i].ID] = &c.Constraints[i]
	}

	return c, nil
}

// PhaseByID returns the phase definition with the given id, or nil.
func (c *Catalog) PhaseByID(id string) *PhaseDef {
	return c.byPhase[id]
}

// ConstraintByID returns the constraint with the given id, or nil.
func (c *Catalog) ConstraintByID(id string) *models.Constraint {
	return c.byConstraint[id]
}

// ConstraintsByCategory returns all constraints in the given category.
func (c *Catalog) ConstraintsByCategory(category string) []models.Constraint {
	var out []models.Constraint
	for _, con := range c.Constraints {
		if con.Category == category {
			out = append(out, con)
		}
	}
	return out
}

// Categories returns the distinct constraint categories in declaration order.
func (c *Catalog) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, con := range c.Constraints {
		if !seen[con.Category] {
			seen[con.Category] = true
			out = append(out, con.Category)
		}
	}
	return out
}

// SessionPhases instantiates fresh mutable phases for a new session,
// returning both the map and the declared order.
func (c *Catalog) SessionPhases() (map[string]*models.Phase, []string) {
	phases := make(map[string]*models.Phase, len(c.Phases))
	order := make([]string, 0, len(c.Phases))
	for _, def := range c.Phases {
		phases[def.ID] = &models.Phase{
			ID:           def.ID,
			Name:         def.Name,
			Description:  def.Description,
			Inputs:       append([]string(nil), def.Inputs...),
			Outputs:      append([]string(nil), def.RequiredOutputs...),
			Criteria:     append([]string(nil), def.Criteria...),
			MinCoverage:  def.MinCoverage,
			Status:       models.PhaseStatusPending,
			Dependencies: append([]string(nil), def.DependsOn...),
		}
		order = append(order, def.ID)
	}
	return phases, order
}

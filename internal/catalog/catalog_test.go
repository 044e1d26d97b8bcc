package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmfell/phasegate/internal/models"
)

func TestDefault_EmbeddedMethodologyParses(t *testing.T) {
	c := Default()

	require.NotEmpty(t, c.Phases)
	require.NotEmpty(t, c.Constraints)
	assert.Equal(t, "discovery", c.Phases[0].ID)

	// Every declared dependency must reference a known phase.
	for _, p := range c.Phases {
		for _, dep := range p.DependsOn {
			assert.NotNil(t, c.PhaseByID(dep), "phase %q depends on unknown phase %q", p.ID, dep)
		}
	}
}

func TestParse_AppliesRuleDefaults(t *testing.T) {
	c, err := Parse([]byte(`
phases:
  - id: only
    name: Only Phase
`))
	require.NoError(t, err)

	assert.Equal(t, DefaultOverallMinimum, c.Rules.OverallMinimum)
	assert.Equal(t, DefaultPhaseMinimum, c.Rules.PhaseMinimum)
	assert.Equal(t, DefaultConstraintMinimum, c.Rules.ConstraintMinimum)
	assert.Equal(t, DefaultDocumentationMinimum, c.Rules.DocumentationMinimum)
	assert.Equal(t, DefaultTestMinimum, c.Rules.TestMinimum)
	assert.Equal(t, DefaultPivotComplexity, c.Rules.PivotComplexity)
	assert.Equal(t, DefaultPivotEntropy, c.Rules.PivotEntropy)
	assert.Equal(t, DefaultConsistencyMargin, c.Rules.ConsistencyMargin)
	assert.Equal(t, DefaultStrictMargin, c.Rules.StrictConsistencyMargin)

	// Phase minimum flows into phases without their own value.
	assert.Equal(t, DefaultPhaseMinimum, c.Phases[0].MinCoverage)
}

func TestParse_NoPhasesFails(t *testing.T) {
	_, err := Parse([]byte(`constraints: {}`))
	assert.Error(t, err)
}

func TestParse_DuplicatePhaseIDFails(t *testing.T) {
	_, err := Parse([]byte(`
phases:
  - id: a
    name: A
  - id: a
    name: A again
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate phase id")
}

func TestParse_DuplicateConstraintIDFails(t *testing.T) {
	_, err := Parse([]byte(`
phases:
  - id: a
    name: A
constraints:
  security:
    - id: dup
      name: One
  performance:
    - id: dup
      name: Two
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate constraint id")
}

func TestParse_ConstraintDefaults(t *testing.T) {
	c, err := Parse([]byte(`
phases:
  - id: a
    name: A
constraints:
  security:
    - id: sec
      name: Security
      keywords: [encryption]
`))
	require.NoError(t, err)

	con := c.ConstraintByID("sec")
	require.NotNil(t, con)
	assert.Equal(t, "security", con.Category)
	assert.Equal(t, 1.0, con.Weight)
	assert.Equal(t, DefaultConstraintMinimum, con.Validation.MinCoverage)
	assert.Equal(t, "methodology:default", con.Source)
}

func TestConstraintsByCategory(t *testing.T) {
	c := Default()
	for _, category := range c.Categories() {
		group := c.ConstraintsByCategory(category)
		require.NotEmpty(t, group)
		for _, con := range group {
			assert.Equal(t, category, con.Category)
		}
	}
}

func TestSessionPhases_FreshInstances(t *testing.T) {
	c := Default()

	first, order := c.SessionPhases()
	second, _ := c.SessionPhases()

	require.Equal(t, len(c.Phases), len(order))
	for _, id := range order {
		require.Contains(t, first, id)
		assert.Equal(t, models.PhaseStatusPending, first[id].Status)
	}

	// Mutating one session's phases must not leak into another's.
	first[order[0]].Status = models.PhaseStatusCompleted
	first[order[0]].Coverage = 99
	assert.Equal(t, models.PhaseStatusPending, second[order[0]].Status)
	assert.Equal(t, 0.0, second[order[0]].Coverage)
}

func TestSessionPhases_CarriesMinCoverage(t *testing.T) {
	c := Default()
	phases, _ := c.SessionPhases()
	for id, p := range phases {
		def := c.PhaseByID(id)
		require.NotNil(t, def)
		assert.Equal(t, def.MinCoverage, p.MinCoverage)
		assert.Greater(t, p.MinCoverage, 0.0)
	}
}

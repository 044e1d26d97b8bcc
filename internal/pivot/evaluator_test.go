package pivot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmfell/phasegate/internal/catalog"
	"github.com/jmfell/phasegate/internal/models"
)

func pivotState(overall, threshold float64) *models.SessionState {
	return &models.SessionState{
		Config: models.SessionConfig{
			SessionID:         "pivot-test",
			CoverageThreshold: threshold,
		},
		CurrentPhase: "design",
		Phases:       map[string]*models.Phase{"design": {ID: "design", Status: models.PhaseStatusInProgress}},
		PhaseOrder:   []string{"design"},
		Coverage:     models.CoverageSnapshot{Overall: overall},
	}
}

func TestEvaluate_ForceAlwaysTriggers(t *testing.T) {
	e := NewEvaluator(catalog.Default().Rules)

	for _, content := range []string{"", "short note", "a distributed real-time system"} {
		d := e.Evaluate(Request{State: pivotState(90, 80), Content: content, Force: true})
		assert.True(t, d.Triggered, "force must trigger regardless of scores (content %q)", content)
		assert.Contains(t, d.Reason, "forced")
	}
}

func TestEvaluate_ComplexityTrigger(t *testing.T) {
	e := NewEvaluator(catalog.Default().Rules)

	content := strings.Repeat("We are building distributed microservices with real-time machine learning and event-driven multi-tenant pipelines. ", 3)
	d := e.Evaluate(Request{State: pivotState(90, 80), Content: content})

	assert.True(t, d.Triggered)
	assert.Contains(t, d.Reason, "complexity")
	assert.GreaterOrEqual(t, d.Complexity, catalog.DefaultPivotComplexity)
}

func TestEvaluate_EntropyTrigger(t *testing.T) {
	e := NewEvaluator(catalog.Default().Rules)

	content := "Requirements are unpredictable and volatile. The experimental scope is uncertain and variable, with changing requirements weekly."
	d := e.Evaluate(Request{State: pivotState(90, 80), Content: content})

	assert.True(t, d.Triggered)
	assert.Contains(t, d.Reason, "entropy")
}

func TestEvaluate_CoverageCollapseTrigger(t *testing.T) {
	e := NewEvaluator(catalog.Default().Rules)

	// Overall 50 sits more than the 15-point margin below the 80 threshold.
	d := e.Evaluate(Request{State: pivotState(50, 80), Content: "a plain design note", TriggerReason: "coverage"})

	assert.True(t, d.Triggered)
	assert.Contains(t, d.Reason, "coverage")
}

func TestEvaluate_NoTriggerForCalmContent(t *testing.T) {
	e := NewEvaluator(catalog.Default().Rules)

	d := e.Evaluate(Request{State: pivotState(90, 80), Content: "A small, well-understood CRUD service."})

	assert.False(t, d.Triggered)
	assert.Contains(t, d.Reason, "no pivot needed")
}

func TestComplexityScore_NonEmptyAlwaysPositive(t *testing.T) {
	e := NewEvaluator(catalog.Default().Rules)

	score := e.complexityScore(Request{State: pivotState(90, 80), Content: "x"})
	assert.Greater(t, score, 0.0)
}

func TestComplexityScore_MetadataHint(t *testing.T) {
	e := NewEvaluator(catalog.Default().Rules)

	state := pivotState(90, 80)
	state.Artifacts = []models.Artifact{{
		ID:       "a1",
		Metadata: map[string]string{"complexity": "0.95"},
	}}

	d := e.Evaluate(Request{State: state, Content: "simple text"})
	assert.True(t, d.Triggered)
	assert.GreaterOrEqual(t, d.Complexity, 0.95)
}

func TestEvaluate_AlternativesRankedByFeasibility(t *testing.T) {
	e := NewEvaluator(catalog.Default().Rules)

	d := e.Evaluate(Request{State: pivotState(90, 80), Content: "distributed microservices"})
	require.NotEmpty(t, d.Alternatives)

	for i := 1; i < len(d.Alternatives); i++ {
		assert.GreaterOrEqual(t, d.Alternatives[i-1].Feasibility, d.Alternatives[i].Feasibility)
	}
	for _, a := range d.Alternatives {
		assert.GreaterOrEqual(t, a.Feasibility, 0.0)
		assert.LessOrEqual(t, a.Feasibility, 100.0)
		assert.NotEmpty(t, a.Name)
	}
}

func TestEvaluate_AlternativesProducedWhenNotTriggered(t *testing.T) {
	e := NewEvaluator(catalog.Default().Rules)

	d := e.Evaluate(Request{State: pivotState(90, 80), Content: "quiet, simple scope"})
	assert.False(t, d.Triggered)
	assert.NotEmpty(t, d.Alternatives)
	assert.Contains(t, d.Recommendation, "Continue with the current approach")
}

func TestEvaluate_RecommendationNamesTopAlternative(t *testing.T) {
	e := NewEvaluator(catalog.Default().Rules)

	d := e.Evaluate(Request{State: pivotState(90, 80), Content: "anything", Force: true})
	require.True(t, d.Triggered)
	require.NotEmpty(t, d.Alternatives)
	assert.Contains(t, d.Recommendation, d.Alternatives[0].Name)
}

package plan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmfell/phasegate/internal/models"
)

func TestPlanActions_EmptyViolationsYieldsMonitoringAction(t *testing.T) {
	p := NewPlanner()

	actions := p.PlanActions(nil)

	require.Len(t, actions, 1)
	assert.Equal(t, models.ActionContinueMonitoring, actions[0].Type)
	assert.Equal(t, models.PriorityLow, actions[0].Priority)
	assert.Equal(t, models.EffortLow, actions[0].Effort)
	assert.NotEmpty(t, actions[0].ID)
}

func TestPlanActions_OneActionPerCriticalOrWarning(t *testing.T) {
	p := NewPlanner()

	violations := []models.Violation{
		{Type: models.ViolationTypeConstraint, TargetID: "security", Severity: models.SeverityCritical, Gap: 50},
		{Type: models.ViolationTypePhase, TargetID: "design", Severity: models.SeverityWarning, Gap: 15},
		{Type: models.ViolationTypeOverall, TargetID: "overall", Severity: models.SeverityInfo, Gap: 5},
	}

	actions := p.PlanActions(violations)
	assert.Len(t, actions, 2, "info violations carry no action")
}

func TestPlanActions_ConstraintGapSelectsType(t *testing.T) {
	p := NewPlanner()

	tests := []struct {
		name        string
		gap         float64
		wantType    models.ActionType
		interactive bool
	}{
		{"large gap escalates", 40, models.ActionEscalate, false},
		{"small gap prompts", 10, models.ActionPromptForClarification, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := models.Violation{
				Type:     models.ViolationTypeConstraint,
				TargetID: "security",
				Severity: models.SeverityCritical,
				Gap:      tt.gap,
			}
			actions := p.PlanActions([]models.Violation{v})
			require.Len(t, actions, 1)
			assert.Equal(t, tt.wantType, actions[0].Type)
			assert.Equal(t, tt.interactive, actions[0].Interactive)
			assert.Equal(t, "security", actions[0].ConstraintID)
		})
	}
}

func TestPlanActions_PhaseViolationAutoAligns(t *testing.T) {
	p := NewPlanner()

	v := models.Violation{
		Type:     models.ViolationTypePhase,
		TargetID: "design",
		Severity: models.SeverityWarning,
		Gap:      12,
	}
	actions := p.PlanActions([]models.Violation{v})
	require.Len(t, actions, 1)
	assert.Equal(t, models.ActionAutoAlign, actions[0].Type)
	assert.Equal(t, "design", actions[0].TargetID)
}

func TestPlanActions_EffortFromGap(t *testing.T) {
	p := NewPlanner()

	tests := []struct {
		gap  float64
		want models.EffortLevel
	}{
		{50, models.EffortHigh},
		{30, models.EffortMedium},
		{10, models.EffortLow},
	}
	for _, tt := range tests {
		v := models.Violation{Type: models.ViolationTypePhase, TargetID: "p", Severity: models.SeverityWarning, Gap: tt.gap}
		actions := p.PlanActions([]models.Violation{v})
		require.Len(t, actions, 1)
		assert.Equal(t, tt.want, actions[0].Effort, "gap %.0f", tt.gap)
	}
}

func TestPlanActions_PriorityFromSeverity(t *testing.T) {
	p := NewPlanner()

	critical := models.Violation{Type: models.ViolationTypePhase, TargetID: "p", Severity: models.SeverityCritical, Gap: 30}
	warning := models.Violation{Type: models.ViolationTypePhase, TargetID: "p", Severity: models.SeverityWarning, Gap: 30}

	actions := p.PlanActions([]models.Violation{critical, warning})
	require.Len(t, actions, 2)
	assert.Equal(t, models.PriorityHigh, actions[0].Priority)
	assert.Equal(t, models.PriorityMedium, actions[1].Priority)
}

func TestRecommend_LowestPhaseAddressed(t *testing.T) {
	p := NewPlanner()

	snap := models.NewCoverageSnapshot()
	snap.Phases["discovery"] = 90
	snap.Phases["design"] = 45

	recs := p.Recommend(nil, snap)
	require.NotEmpty(t, recs)
	assert.Contains(t, recs[0], "design", "the weakest phase gets the first recommendation")
}

func TestRecommend_DocumentationAndTestGaps(t *testing.T) {
	p := NewPlanner()

	violations := []models.Violation{
		{Type: models.ViolationTypeDocumentation, TargetID: "documentation", Severity: models.SeverityWarning, CurrentValue: 40, Threshold: 75, Gap: 35},
		{Type: models.ViolationTypeTest, TargetID: "test", Severity: models.SeverityWarning, CurrentValue: 10, Threshold: 70, Gap: 60},
	}
	snap := models.NewCoverageSnapshot()
	snap.Phases["discovery"] = 90

	recs := p.Recommend(violations, snap)

	var docRec, testRec bool
	for _, r := range recs {
		if strings.Contains(r, "documentation") {
			docRec = true
		}
		if strings.Contains(r, "test strategy") {
			testRec = true
		}
	}
	assert.True(t, docRec, "documentation gap should be addressed: %v", recs)
	assert.True(t, testRec, "test gap should be addressed: %v", recs)
}

func TestRecommend_Deduplicated(t *testing.T) {
	p := NewPlanner()

	v := models.Violation{Type: models.ViolationTypeDocumentation, TargetID: "documentation", Severity: models.SeverityWarning, CurrentValue: 40, Threshold: 75, Gap: 35}
	snap := models.NewCoverageSnapshot()
	snap.Phases["discovery"] = 90

	recs := p.Recommend([]models.Violation{v, v, v}, snap)

	seen := make(map[string]int)
	for _, r := range recs {
		seen[r]++
	}
	for r, n := range seen {
		assert.Equal(t, 1, n, "duplicate recommendation: %s", r)
	}
}

func TestRecommend_FallbackWhenClean(t *testing.T) {
	p := NewPlanner()

	snap := models.NewCoverageSnapshot()
	snap.Phases["discovery"] = 95

	recs := p.Recommend(nil, snap)
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0], "Coverage targets are met")
}

// Package pivot scores session content for complexity and entropy and
// decides whether a change of approach should be recommended.
package pivot

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jmfell/phasegate/internal/catalog"
	"github.com/jmfell/phasegate/internal/models"
)

// Domain-complexity markers. Each occurrence nudges the complexity
// score upward.
var complexityKeywords = []string{
	"microservices",
	"real-time",
	"machine learning",
	"distributed",
	"event-driven",
	"multi-tenant",
	"high availability",
	"eventual consistency",
}

// Variability markers that signal an unstable problem space.
var entropyKeywords = []string{
	"unpredictable",
	"variable",
	"uncertain",
	"volatile",
	"experimental",
	"changing requirements",
}

// Request carries everything an evaluation needs.
type Request struct {
	State         *models.SessionState
	Content       string
	TriggerReason string // "complexity", "entropy", "coverage", or ""
	Force         bool   // forces Triggered=true regardless of scores
}

// Evaluator computes pivot decisions from content, artifact metadata,
// and session coverage.
type Evaluator struct {
	rules catalog.CoverageRules
}

// NewEvaluator returns an Evaluator using the given thresholds.
func NewEvaluator(rules catalog.CoverageRules) *Evaluator {
	return &Evaluator{rules: rules}
}

// Evaluate scores the request and decides whether a pivot is warranted.
// Alternatives are produced either way, ranked by feasibility.
func (e *Evaluator) Evaluate(req Request) models.PivotDecision {
	complexity := e.complexityScore(req)
	entropy := e.entropyScore(req)

	decision := models.PivotDecision{
		Complexity: complexity,
		Entropy:    entropy,
		Threshold:  e.rules.PivotComplexity,
	}

	switch {
	case req.Force:
		decision.Triggered = true
		decision.Reason = "forced evaluation requested by caller"
	case complexity >= e.rules.PivotComplexity:
		decision.Triggered = true
		decision.Reason = fmt.Sprintf("complexity score %.2f crossed threshold %.2f", complexity, e.rules.PivotComplexity)
	case entropy >= e.rules.PivotEntropy:
		decision.Triggered = true
		decision.Threshold = e.rules.PivotEntropy
		decision.Reason = fmt.Sprintf("entropy score %.2f crossed threshold %.2f", entropy, e.rules.PivotEntropy)
	case req.TriggerReason == "coverage" && e.coverageCollapsed(req.State):
		decision.Triggered = true
		decision.Threshold = e.rules.PivotCoverageMargin
		decision.Reason = fmt.Sprintf("coverage %.0f%% fell more than %.0f points below the session threshold",
			req.State.Coverage.Overall, e.rules.PivotCoverageMargin)
	default:
		decision.Reason = fmt.Sprintf("no pivot needed: complexity %.2f and entropy %.2f are below thresholds", complexity, entropy)
	}

	decision.Alternatives = e.alternatives(complexity, entropy)
	decision.Recommendation = e.recommendation(decision)
	return decision
}

// complexityScore derives a 0-1 score from domain markers, content
// length/structure, and artifact metadata hints. Non-empty input always
// scores above zero.
func (e *Evaluator) complexityScore(req Request) float64 {
	markers := countOccurrences(req.Content, complexityKeywords)
	for _, a := range artifactsOf(req.State) {
		markers += countOccurrences(a.Content, complexityKeywords)
	}

	score := 0.12 * float64(markers)

	// Long, heavily sectioned content is itself a complexity signal.
	score += min(float64(len(req.Content))/8000.0, 0.25)
	score += min(float64(strings.Count(req.Content, "\n#"))*0.02, 0.10)

	if hint, ok := metadataScore(req.State, "complexity"); ok && hint > score {
		score = hint
	}

	if score == 0 && req.Content != "" {
		score = 0.05
	}
	return clamp01(score)
}

// entropyScore derives a 0-1 score from variability markers, metadata
// hints, and coverage collapse.
func (e *Evaluator) entropyScore(req Request) float64 {
	markers := countOccurrences(req.Content, entropyKeywords)
	for _, a := range artifactsOf(req.State) {
		markers += countOccurrences(a.Content, entropyKeywords)
		if _, tagged := a.Metadata["entropy"]; tagged {
			markers++
		}
		if _, tagged := a.Metadata["variability"]; tagged {
			markers++
		}
	}

	score := 0.15 * float64(markers)

	if e.coverageCollapsed(req.State) {
		score += 0.25
	}

	if hint, ok := metadataScore(req.State, "entropy"); ok && hint > score {
		score = hint
	}
	return clamp01(score)
}

// coverageCollapsed reports whether overall coverage sits more than the
// configured margin below the session threshold.
func (e *Evaluator) coverageCollapsed(state *models.SessionState) bool {
	if state == nil {
		return false
	}
	threshold := state.Config.CoverageThreshold
	if threshold <= 0 {
		threshold = e.rules.OverallMinimum
	}
	return state.Coverage.Overall < threshold-e.rules.PivotCoverageMargin
}

// alternatives builds the ranked candidate approaches. Feasibility
// shifts with the complexity/entropy profile: simplification gets easier
// to justify as complexity rises, prototyping as entropy rises.
func (e *Evaluator) alternatives(complexity, entropy float64) []models.PivotAlternative {
	alts := []models.PivotAlternative{
		{
			Name: "phased-simplification",
			Pros: []string{"reduces scope risk", "keeps current architecture"},
			Cons: []string{"defers advanced capabilities"},
			Feasibility: clampPercent(55 + 35*complexity),
		},
		{
			Name: "prototype-first",
			Pros: []string{"surfaces unknowns early", "cheap to discard"},
			Cons: []string{"throwaway work", "can anchor the design prematurely"},
			Feasibility: clampPercent(50 + 40*entropy),
		},
		{
			Name: "architecture-spike",
			Pros: []string{"validates the riskiest structural choice"},
			Cons: []string{"pauses feature progress"},
			Feasibility: clampPercent(45 + 30*complexity + 10*entropy),
		},
		{
			Name: "descope-and-defer",
			Pros: []string{"restores schedule confidence"},
			Cons: []string{"stakeholder negotiation required"},
			Feasibility: clampPercent(40 + 20*complexity + 15*entropy),
		},
	}
	sort.SliceStable(alts, func(i, j int) bool {
		return alts[i].Feasibility > alts[j].Feasibility
	})
	return alts
}

func (e *Evaluator) recommendation(d models.PivotDecision) string {
	if !d.Triggered {
		return "Continue with the current approach; no pivot indicators crossed their thresholds."
	}
	if len(d.Alternatives) == 0 {
		return "Pivot indicated, but no viable alternative was identified; escalate for a manual decision."
	}
	top := d.Alternatives[0]
	return fmt.Sprintf("Pivot recommended: adopt %q (feasibility %.0f%%). %s", top.Name, top.Feasibility, d.Reason)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func artifactsOf(state *models.SessionState) []models.Artifact {
	if state == nil {
		return nil
	}
	return state.Artifacts
}

// metadataScore scans session artifacts newest-first for a numeric
// metadata hint with the given key.
func metadataScore(state *models.SessionState, key string) (float64, bool) {
	if state == nil {
		return 0, false
	}
	for i := len(state.Artifacts) - 1; i >= 0; i-- {
		if raw, ok := state.Artifacts[i].Metadata[key]; ok {
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				return clamp01(v), true
			}
		}
	}
	return 0, false
}

func countOccurrences(content string, keywords []string) int {
	lower := strings.ToLower(content)
	total := 0
	for _, kw := range keywords {
		total += strings.Count(lower, kw)
	}
	return total
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

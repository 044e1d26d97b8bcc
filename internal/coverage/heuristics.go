package coverage

import (
	"regexp"
	"strings"
)

// Pure text probes. Everything in this file is a function of the input
// string only, so the calculator stays deterministic and testable.

var (
	headingRe  = regexp.MustCompile(`(?m)^#{1,6}\s+\S`)
	listItemRe = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+\.)\s+\S`)
	fenceRe    = regexp.MustCompile("(?m)^```")
	tableRowRe = regexp.MustCompile(`(?m)^\s*\|.*\|\s*$`)
	linkRe     = regexp.MustCompile(`\[[^\]]+\]\([^)]+\)`)
)

// testKeywords is the vocabulary that signals testing content.
var testKeywords = []string{
	"unit test",
	"integration test",
	"test case",
	"test plan",
	"coverage",
	"e2e",
	"end-to-end",
	"regression",
	"assertion",
	"mocking",
}

// assumptionKeywords is the vocabulary that signals stated assumptions.
var assumptionKeywords = []string{
	"assume",
	"assumption",
	"given that",
	"provided that",
	"it is expected that",
}

// Structural marker weights. Additive, capped at 100 by the caller.
const (
	headingBonus  = 15.0
	listItemBonus = 5.0
	fenceBonus    = 20.0
	tableRowBonus = 6.0
	linkBonus     = 8.0
)

// structuralScore sums bonuses for markdown structure found in content,
// capped at 100. More markers never lower the score.
func structuralScore(content string) float64 {
	if content == "" {
		return 0
	}
	score := float64(len(headingRe.FindAllStringIndex(content, -1)))*headingBonus +
		float64(len(listItemRe.FindAllStringIndex(content, -1)))*listItemBonus +
		float64(len(fenceRe.FindAllStringIndex(content, -1))/2)*fenceBonus +
		float64(len(tableRowRe.FindAllStringIndex(content, -1)))*tableRowBonus +
		float64(len(linkRe.FindAllStringIndex(content, -1)))*linkBonus
	if score > 100 {
		return 100
	}
	return score
}

// keywordOccurrences counts total case-insensitive occurrences of the
// given keywords in content.
func keywordOccurrences(content string, keywords []string) int {
	lower := strings.ToLower(content)
	total := 0
	for _, kw := range keywords {
		total += strings.Count(lower, strings.ToLower(kw))
	}
	return total
}

// keywordCoverage returns the fraction of distinct keywords present in
// content, scaled to 0-100. An empty keyword list yields a neutral 50:
// there is nothing to measure, so neither credit nor blame.
func keywordCoverage(content string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 50
	}
	lower := strings.ToLower(content)
	matched := 0
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			matched++
		}
	}
	return float64(matched) / float64(len(keywords)) * 100
}

// additiveScore converts a hit count to an additive score capped at 100.
func additiveScore(hits int, perHit float64) float64 {
	score := float64(hits) * perHit
	if score > 100 {
		return 100
	}
	return score
}

// sentenceQuality maps average words-per-sentence to a fixed score,
// rewarding neither terse nor run-on writing.
func sentenceQuality(content string) float64 {
	sentences := splitSentences(content)
	if len(sentences) == 0 {
		return 40
	}
	totalWords := 0
	for _, s := range sentences {
		totalWords += len(strings.Fields(s))
	}
	avg := float64(totalWords) / float64(len(sentences))
	switch {
	case avg >= 10 && avg <= 20:
		return 90
	case avg >= 8 && avg <= 25:
		return 75
	case avg >= 5 && avg <= 30:
		return 60
	default:
		return 40
	}
}

func splitSentences(content string) []string {
	raw := strings.FieldsFunc(content, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	var out []string
	for _, s := range raw {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// PhraseMatch reports whether the phrase appears in content,
// case-insensitively.
func PhraseMatch(content, phrase string) bool {
	return strings.Contains(strings.ToLower(content), strings.ToLower(phrase))
}

package coverage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStructuralScore_Empty(t *testing.T) {
	assert.Equal(t, 0.0, structuralScore(""))
}

func TestStructuralScore_Markers(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    float64
	}{
		{"single heading", "# Title\n", 15},
		{"two headings", "# One\n## Two\n", 30},
		{"list items", "- a\n- b\n- c\n", 15},
		{"fenced block", "```\ncode\n```\n", 20},
		{"table rows", "| a | b |\n| c | d |\n", 12},
		{"link", "see [docs](https://example.com)", 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, structuralScore(tt.content))
		})
	}
}

func TestStructuralScore_CappedAt100(t *testing.T) {
	content := strings.Repeat("# Heading\n", 20)
	assert.Equal(t, 100.0, structuralScore(content))
}

func TestStructuralScore_Monotonic(t *testing.T) {
	base := "# One\n- item\n"
	prev := structuralScore(base)
	for i := 0; i < 10; i++ {
		base += "## Another heading\n"
		cur := structuralScore(base)
		assert.GreaterOrEqual(t, cur, prev, "adding a heading must never decrease the score")
		prev = cur
	}
}

func TestKeywordOccurrences(t *testing.T) {
	content := "We need a unit test and another unit test plus an integration test."
	assert.Equal(t, 3, keywordOccurrences(content, testKeywords))
}

func TestKeywordOccurrences_CaseInsensitive(t *testing.T) {
	assert.Equal(t, 1, keywordOccurrences("UNIT TEST here", []string{"unit test"}))
}

func TestKeywordCoverage_EmptyListNeutral(t *testing.T) {
	assert.Equal(t, 50.0, keywordCoverage("anything at all", nil))
}

func TestKeywordCoverage_Ratio(t *testing.T) {
	keywords := []string{"encryption", "authentication", "audit", "tls"}
	content := "We use encryption and authentication everywhere."
	assert.Equal(t, 50.0, keywordCoverage(content, keywords))
}

func TestKeywordCoverage_NoMatches(t *testing.T) {
	assert.Equal(t, 0.0, keywordCoverage("nothing relevant here", []string{"encryption"}))
}

func TestKeywordCoverage_AllMatches(t *testing.T) {
	assert.Equal(t, 100.0, keywordCoverage("tls encryption", []string{"tls", "encryption"}))
}

func TestAdditiveScore(t *testing.T) {
	assert.Equal(t, 60.0, additiveScore(3, 20))
	assert.Equal(t, 100.0, additiveScore(9, 20))
	assert.Equal(t, 0.0, additiveScore(0, 20))
}

func TestSentenceQuality(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    float64
	}{
		{"empty", "", 40},
		{"ideal length", "The quick brown fox jumps over the lazy sleeping dog today.", 90},
		{"short sentences", "Short one here now okay. Another short one right here too.", 60},
		{"very terse", "Yes. No. Maybe.", 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sentenceQuality(tt.content))
		})
	}
}

func TestPhraseMatch(t *testing.T) {
	assert.True(t, PhraseMatch("The Problem Statement is clear", "problem statement"))
	assert.False(t, PhraseMatch("unrelated text", "problem statement"))
}

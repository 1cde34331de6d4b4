package mojibake

import (
	"strings"
	"unicode/utf8"
)

// Per-category contribution caps.
const (
	patternIssueWeight = 10
	patternScoreCap    = 40
	regexIssueWeight   = 8
	regexScoreCap      = 30
	maxConfidence      = 100.0
)

// sampleTruncateAt is the character length beyond which sample lines are cut.
const sampleTruncateAt = 100

// combine folds the evidence from both scanners and the statistical profile
// into a bounded confidence score and the detection verdict. The verdict is
// evidence-gated: statistics alone never set it, however high they score.
func combine(patternIssues, regexIssues []Issue, stats Statistics) (float64, bool) {
	confidence := 0.0

	if len(patternIssues) > 0 {
		score := len(patternIssues) * patternIssueWeight
		if score > patternScoreCap {
			score = patternScoreCap
		}
		confidence += float64(score)
	}

	if len(regexIssues) > 0 {
		score := len(regexIssues) * regexIssueWeight
		if score > regexScoreCap {
			score = regexScoreCap
		}
		confidence += float64(score)
	}

	if stats.SuspiciousSequences > 5 {
		confidence += 20
	}

	if stats.WeirdCharCount > 10 {
		confidence += 15
	}

	if stats.UnusualCharRatio > 0.01 {
		confidence += 10
	}

	// Legitimate non-ASCII text tends to sit outside this band: fully
	// non-Latin scripts score near 1.0 and plain ASCII scores 0.
	if stats.NonASCIIRatio > 0.1 && stats.NonASCIIRatio < 0.5 {
		confidence += 5
	}

	if confidence > maxConfidence {
		confidence = maxConfidence
	}

	return confidence, len(patternIssues) > 0 || len(regexIssues) > 0
}

// extractSamples pulls up to maxSamples lines containing a known corrupted
// sequence from the first lineWindow lines of text. Lines longer than 100
// characters are truncated with a trailing ellipsis marker.
func extractSamples(text string, table *PatternTable, lineWindow, maxSamples int) []string {
	samples := make([]string, 0, maxSamples)

	lines := strings.Split(text, "\n")
	if len(lines) > lineWindow {
		lines = lines[:lineWindow]
	}

	for _, line := range lines {
		if !table.ContainsAny(line) {
			continue
		}
		if utf8.RuneCountInString(line) > sampleTruncateAt {
			line = string([]rune(line)[:sampleTruncateAt]) + "..."
		}
		samples = append(samples, line)
		if len(samples) >= maxSamples {
			break
		}
	}

	return samples
}

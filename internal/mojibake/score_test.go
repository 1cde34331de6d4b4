package mojibake

import (
	"strings"
	"testing"
)

func issuesOf(n int) []Issue {
	issues := make([]Issue, n)
	for i := range issues {
		issues[i] = Issue{Type: IssueKnownPattern, Pattern: "x", Count: 1}
	}
	return issues
}

func TestCombine(t *testing.T) {
	t.Run("NoEvidenceScoresZero", func(t *testing.T) {
		confidence, has := combine(nil, nil, Statistics{})
		if confidence != 0 || has {
			t.Errorf("got (%f, %v), want (0, false)", confidence, has)
		}
	})

	t.Run("PatternContribution", func(t *testing.T) {
		cases := []struct {
			issues int
			want   float64
		}{
			{1, 10}, {2, 20}, {4, 40}, {5, 40}, {10, 40},
		}
		for _, tc := range cases {
			confidence, has := combine(issuesOf(tc.issues), nil, Statistics{})
			if confidence != tc.want {
				t.Errorf("%d pattern issues: confidence = %f, want %f", tc.issues, confidence, tc.want)
			}
			if !has {
				t.Errorf("%d pattern issues: expected has_mojibake", tc.issues)
			}
		}
	})

	t.Run("RegexContribution", func(t *testing.T) {
		cases := []struct {
			issues int
			want   float64
		}{
			{1, 8}, {3, 24}, {4, 30}, {10, 30},
		}
		for _, tc := range cases {
			confidence, has := combine(nil, issuesOf(tc.issues), Statistics{})
			if confidence != tc.want {
				t.Errorf("%d regex issues: confidence = %f, want %f", tc.issues, confidence, tc.want)
			}
			if !has {
				t.Errorf("%d regex issues: expected has_mojibake", tc.issues)
			}
		}
	})

	t.Run("StatisticalBonusesAreExclusiveThresholds", func(t *testing.T) {
		cases := []struct {
			name  string
			stats Statistics
			want  float64
		}{
			{"SuspiciousAtThreshold", Statistics{SuspiciousSequences: 5}, 0},
			{"SuspiciousOverThreshold", Statistics{SuspiciousSequences: 6}, 20},
			{"WeirdAtThreshold", Statistics{WeirdCharCount: 10}, 0},
			{"WeirdOverThreshold", Statistics{WeirdCharCount: 11}, 15},
			{"UnusualAtThreshold", Statistics{UnusualCharRatio: 0.01}, 0},
			{"UnusualOverThreshold", Statistics{UnusualCharRatio: 0.02}, 10},
			{"RatioBelowBand", Statistics{NonASCIIRatio: 0.1}, 0},
			{"RatioInsideBand", Statistics{NonASCIIRatio: 0.3}, 5},
			{"RatioAtUpperBound", Statistics{NonASCIIRatio: 0.5}, 0},
			{"RatioAboveBand", Statistics{NonASCIIRatio: 0.9}, 0},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				confidence, has := combine(nil, nil, tc.stats)
				if confidence != tc.want {
					t.Errorf("confidence = %f, want %f", confidence, tc.want)
				}
				if has {
					t.Error("statistics alone must never set has_mojibake")
				}
			})
		}
	})

	t.Run("CapsAtOneHundred", func(t *testing.T) {
		stats := Statistics{
			SuspiciousSequences: 6,
			WeirdCharCount:      11,
			UnusualCharRatio:    0.02,
			NonASCIIRatio:       0.3,
		}
		confidence, has := combine(issuesOf(4), issuesOf(4), stats)
		if confidence != 100 {
			t.Errorf("confidence = %f, want 100", confidence)
		}
		if !has {
			t.Error("expected has_mojibake")
		}
	})

	t.Run("MonotonicInIssueCount", func(t *testing.T) {
		prev := -1.0
		for n := 0; n <= 6; n++ {
			confidence, _ := combine(issuesOf(n), nil, Statistics{})
			if confidence < prev {
				t.Errorf("confidence decreased at %d issues: %f < %f", n, confidence, prev)
			}
			prev = confidence
		}
	})
}

func TestExtractSamples(t *testing.T) {
	table, err := NewPatternTable(DefaultPatterns())
	if err != nil {
		t.Fatalf("failed to build table: %v", err)
	}

	t.Run("CollectsQualifyingLines", func(t *testing.T) {
		text := "clean line\nbroken Ã© line\nanother clean\nâ€™ too"
		samples := extractSamples(text, table, 100, 5)
		if len(samples) != 2 {
			t.Fatalf("samples = %v, want 2 lines", samples)
		}
		if samples[0] != "broken Ã© line" {
			t.Errorf("samples[0] = %q", samples[0])
		}
	})

	t.Run("StopsAtMaxSamples", func(t *testing.T) {
		lines := make([]string, 10)
		for i := range lines {
			lines[i] = "bad Ã© line"
		}
		samples := extractSamples(strings.Join(lines, "\n"), table, 100, 5)
		if len(samples) != 5 {
			t.Errorf("len = %d, want 5", len(samples))
		}
	})

	t.Run("HonorsLineWindow", func(t *testing.T) {
		text := strings.Repeat("clean\n", 100) + "bad Ã© line"
		samples := extractSamples(text, table, 100, 5)
		if len(samples) != 0 {
			t.Errorf("line outside the window should be skipped, got %v", samples)
		}
	})

	t.Run("TruncatesLongLines", func(t *testing.T) {
		line := "Ã©" + strings.Repeat("x", 150)
		samples := extractSamples(line, table, 100, 5)
		if len(samples) != 1 {
			t.Fatalf("expected one sample, got %d", len(samples))
		}
		if !strings.HasSuffix(samples[0], "...") {
			t.Errorf("expected ellipsis suffix: %q", samples[0])
		}
		runes := []rune(samples[0])
		if len(runes) != 103 {
			t.Errorf("truncated length = %d runes, want 103", len(runes))
		}
	})

	t.Run("EmptyTextYieldsNoSamples", func(t *testing.T) {
		if samples := extractSamples("", table, 100, 5); len(samples) != 0 {
			t.Errorf("expected no samples, got %v", samples)
		}
	})
}

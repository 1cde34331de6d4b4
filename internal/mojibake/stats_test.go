package mojibake

import (
	"strings"
	"testing"
)

func TestAnalyzeStatistics(t *testing.T) {
	t.Run("EmptyInputIsAllZero", func(t *testing.T) {
		stats := AnalyzeStatistics("")
		if stats != (Statistics{}) {
			t.Errorf("expected zero statistics, got %+v", stats)
		}
	})

	t.Run("PlainASCII", func(t *testing.T) {
		stats := AnalyzeStatistics("Hello, world!")
		if stats.TotalChars != 13 {
			t.Errorf("total_chars = %d, want 13", stats.TotalChars)
		}
		if stats.HighBytes != 0 || stats.NonASCIIRatio != 0 {
			t.Errorf("expected no high bytes, got %+v", stats)
		}
		if stats.ControlChars != 0 || stats.SuspiciousSequences != 0 || stats.WeirdCharCount != 0 {
			t.Errorf("expected clean profile, got %+v", stats)
		}
	})

	t.Run("CountsRunesNotBytes", func(t *testing.T) {
		stats := AnalyzeStatistics("é")
		if stats.TotalChars != 1 {
			t.Errorf("total_chars = %d, want 1", stats.TotalChars)
		}
		if stats.HighBytes != 1 {
			t.Errorf("high_bytes = %d, want 1", stats.HighBytes)
		}
		if stats.NonASCIIRatio != 1.0 {
			t.Errorf("non_ascii_ratio = %f, want 1.0", stats.NonASCIIRatio)
		}
	})

	t.Run("WhitespaceControlCharsAreExempt", func(t *testing.T) {
		stats := AnalyzeStatistics("a\tb\nc\rd")
		if stats.ControlChars != 0 {
			t.Errorf("tab/LF/CR should not count, got %d", stats.ControlChars)
		}
		stats = AnalyzeStatistics("a\x00b\x1fc")
		if stats.ControlChars != 2 {
			t.Errorf("control_chars = %d, want 2", stats.ControlChars)
		}
	})

	t.Run("SuspiciousComboDoubleCount", func(t *testing.T) {
		// â€ appears twice in the combo list, so one occurrence counts
		// twice.
		stats := AnalyzeStatistics("xâ€x")
		if stats.SuspiciousSequences != 2 {
			t.Errorf("suspicious_sequences = %d, want 2", stats.SuspiciousSequences)
		}
	})

	t.Run("SuspiciousCombosAccumulate", func(t *testing.T) {
		stats := AnalyzeStatistics(strings.Repeat("ÃŸ", 6))
		if stats.SuspiciousSequences != 6 {
			t.Errorf("suspicious_sequences = %d, want 6", stats.SuspiciousSequences)
		}
		if stats.UnusualCharRatio != 0.5 {
			t.Errorf("unusual_char_ratio = %f, want 0.5", stats.UnusualCharRatio)
		}
	})

	t.Run("WeirdCharCount", func(t *testing.T) {
		stats := AnalyzeStatistics("Â Ã â € ™ ¬ ¦ ¢ ¥ §")
		if stats.WeirdCharCount != 10 {
			t.Errorf("weird_char_count = %d, want 10", stats.WeirdCharCount)
		}
	})

	t.Run("Ratios", func(t *testing.T) {
		// 10 runes, 3 non-ASCII.
		stats := AnalyzeStatistics("abcdefgéöü")
		if stats.TotalChars != 10 {
			t.Fatalf("total_chars = %d, want 10", stats.TotalChars)
		}
		if stats.NonASCIIRatio != 0.3 {
			t.Errorf("non_ascii_ratio = %f, want 0.3", stats.NonASCIIRatio)
		}
		if stats.NonASCIIRatio < 0 || stats.NonASCIIRatio > 1 {
			t.Errorf("non_ascii_ratio out of range: %f", stats.NonASCIIRatio)
		}
		if stats.UnusualCharRatio < 0 {
			t.Errorf("unusual_char_ratio negative: %f", stats.UnusualCharRatio)
		}
	})
}

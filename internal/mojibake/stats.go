package mojibake

import (
	"strings"
	"unicode/utf8"
)

// suspiciousCombos are short fragments that show up mid-word when UTF-8 text
// has been mis-decoded. The â€ fragment is listed twice, so every occurrence
// counts twice toward suspicious_sequences.
var suspiciousCombos = []string{
	"Ã¢", "â€", "Â£", "Ã©", "Ã¨", "Ã ", "Ã¡", "Ã§", "Ã±",
	"â‚¬", "â€™", "â€œ", "â€", "â€¦",
	"Â©", "Â®", "â„¢",
	"Ã¼", "Ã¶", "Ã¤", "ÃŸ", "Ã…", "Ã†", "Ã˜", "Ã¥", "Ã¦", "Ã¸",
}

// weirdChars are the single characters most often left behind by this
// corruption family: the common lead bytes plus stray symbol glyphs.
var weirdChars = []string{
	"Â", "Ã", "â", "€", "™", "¬", "¦", "¢", "¥", "§",
}

// AnalyzeStatistics profiles the character distribution of text. Empty input
// yields all-zero statistics. The input is treated as already-decoded
// characters; this function never fails.
func AnalyzeStatistics(text string) Statistics {
	stats := Statistics{TotalChars: utf8.RuneCountInString(text)}
	if stats.TotalChars == 0 {
		return stats
	}

	for _, r := range text {
		if r > 127 {
			stats.HighBytes++
		}
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			stats.ControlChars++
		}
	}

	for _, combo := range suspiciousCombos {
		stats.SuspiciousSequences += strings.Count(text, combo)
	}

	stats.NonASCIIRatio = float64(stats.HighBytes) / float64(stats.TotalChars)
	stats.UnusualCharRatio = float64(stats.ControlChars+stats.SuspiciousSequences) / float64(stats.TotalChars)

	for _, c := range weirdChars {
		stats.WeirdCharCount += strings.Count(text, c)
	}

	return stats
}

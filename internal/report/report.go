// Package report renders detection results as a human-readable console
// report.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/raaihank/moji-sentinel/internal/mojibake"
)

const (
	bannerWidth  = 60
	sectionWidth = 40
)

// Write renders result to w as the standard scan report: verdict, issue
// list, statistics, and sample lines.
func Write(w io.Writer, result *mojibake.DetectionResult) {
	banner := strings.Repeat("=", bannerWidth)
	section := strings.Repeat("-", sectionWidth)

	fmt.Fprintf(w, "\n%s\n", banner)
	fmt.Fprintln(w, "MOJIBAKE DETECTION REPORT")
	fmt.Fprintln(w, banner)

	if result.HasMojibake {
		fmt.Fprintln(w, "\n⚠️  MOJIBAKE DETECTED!")
		fmt.Fprintf(w, "Confidence: %.1f%%\n", result.Confidence)
	} else {
		fmt.Fprintln(w, "\n✓ No mojibake detected")
	}

	if len(result.Issues) > 0 {
		fmt.Fprintf(w, "\nFound %d issue type(s):\n", len(result.Issues))
		fmt.Fprintln(w, section)

		for _, issue := range result.Issues {
			fmt.Fprintf(w, "• %s\n", issue.Description)
			switch issue.Type {
			case mojibake.IssueKnownPattern:
				fmt.Fprintf(w, "  Found %d occurrence(s)\n", issue.Count)
			case mojibake.IssueRegexMatch:
				fmt.Fprintf(w, "  Found %d match(es)\n", issue.Count)
				if len(issue.Samples) > 0 {
					samples := issue.Samples
					if len(samples) > 3 {
						samples = samples[:3]
					}
					fmt.Fprintf(w, "  Samples: %q\n", samples)
				}
			}
		}
	}

	fmt.Fprintln(w, "\nStatistics:")
	fmt.Fprintln(w, section)
	fmt.Fprintf(w, "• Total characters: %d\n", result.Statistics.TotalChars)
	fmt.Fprintf(w, "• Non-ASCII ratio: %.2f%%\n", result.Statistics.NonASCIIRatio*100)
	fmt.Fprintf(w, "• Suspicious sequences: %d\n", result.Statistics.SuspiciousSequences)
	fmt.Fprintf(w, "• Weird characters found: %d\n", result.Statistics.WeirdCharCount)

	if len(result.Samples) > 0 {
		fmt.Fprintln(w, "\nSample problematic lines:")
		fmt.Fprintln(w, section)
		for i, sample := range result.Samples {
			fmt.Fprintf(w, "%d. %s\n", i+1, sample)
		}
	}

	fmt.Fprintf(w, "\n%s\n", banner)
}

package mojibake

// IssueType discriminates the two kinds of evidence a scan can produce.
type IssueType string

const (
	// IssueKnownPattern marks a hit on the corrupted-sequence table.
	IssueKnownPattern IssueType = "known_pattern"
	// IssueRegexMatch marks a hit on one of the heuristic rules.
	IssueRegexMatch IssueType = "regex_match"
)

// Issue is one piece of corruption evidence. Expected is set only for
// known-pattern issues; Samples only for regex matches.
type Issue struct {
	Type        IssueType `json:"type"`
	Pattern     string    `json:"pattern"`
	Expected    string    `json:"expected,omitempty"`
	Count       int       `json:"count"`
	Description string    `json:"description"`
	Samples     []string  `json:"samples,omitempty"`
}

// Statistics is the character-distribution profile of a single input.
// Computed fresh per call; never carried across scans.
type Statistics struct {
	TotalChars          int     `json:"total_chars"`
	HighBytes           int     `json:"high_bytes"`
	ControlChars        int     `json:"control_chars"`
	SuspiciousSequences int     `json:"suspicious_sequences"`
	NonASCIIRatio       float64 `json:"non_ascii_ratio"`
	UnusualCharRatio    float64 `json:"unusual_char_ratio"`
	WeirdCharCount      int     `json:"weird_char_count"`
}

// DetectionResult is the complete outcome of one detection call. HasMojibake
// is evidence-gated: it is true only when at least one pattern or regex issue
// exists, regardless of how high the statistical score climbs.
type DetectionResult struct {
	HasMojibake bool       `json:"has_mojibake"`
	Confidence  float64    `json:"confidence"`
	Issues      []Issue    `json:"issues"`
	Statistics  Statistics `json:"statistics"`
	Samples     []string   `json:"samples"`
}

package mojibake

import (
	"fmt"
	"regexp"
)

// RegexRule is one named corruption heuristic.
type RegexRule struct {
	Name        string `json:"name"`
	Pattern     string `json:"pattern"`
	Description string `json:"description"`
}

type compiledRule struct {
	name        string
	pattern     string
	description string
	re          *regexp.Regexp
}

// RegexRuleSet holds compiled rules in priority order. Frozen after
// construction; safe for concurrent Scan calls.
type RegexRuleSet struct {
	rules []compiledRule
}

const maxRuleSamples = 5

// NewRegexRuleSet compiles rules, failing on the first invalid pattern.
// Patterns compile in multiline mode so ^ and $ anchor per line.
func NewRegexRuleSet(rules []RegexRule) (*RegexRuleSet, error) {
	set := &RegexRuleSet{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		if r.Name == "" {
			return nil, fmt.Errorf("regex rule with pattern %q has no name", r.Pattern)
		}
		re, err := regexp.Compile("(?m)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling rule %s: %w", r.Name, err)
		}
		set.rules = append(set.rules, compiledRule{
			name:        r.Name,
			pattern:     r.Pattern,
			description: r.Description,
			re:          re,
		})
	}
	return set, nil
}

// Len returns the number of compiled rules.
func (s *RegexRuleSet) Len() int {
	return len(s.rules)
}

// Names returns the rule names in priority order.
func (s *RegexRuleSet) Names() []string {
	names := make([]string, len(s.rules))
	for i, r := range s.rules {
		names[i] = r.name
	}
	return names
}

// Scan runs every rule over text, emitting one issue per matching rule with
// the total match count and up to five sample matches.
func (s *RegexRuleSet) Scan(text string) []Issue {
	var found []Issue
	for _, rule := range s.rules {
		matches := rule.re.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}
		found = append(found, Issue{
			Type:        IssueRegexMatch,
			Pattern:     rule.pattern,
			Count:       len(matches),
			Description: rule.description,
			Samples:     sampleMatches(matches),
		})
	}
	return found
}

// sampleMatches keeps the first ten raw matches, de-duplicated in first-seen
// order, truncated to five.
func sampleMatches(matches []string) []string {
	if len(matches) > 10 {
		matches = matches[:10]
	}
	seen := make(map[string]struct{}, len(matches))
	samples := make([]string, 0, maxRuleSamples)
	for _, m := range matches {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		samples = append(samples, m)
		if len(samples) == maxRuleSamples {
			break
		}
	}
	return samples
}

// DefaultRules returns the built-in heuristics in priority order: raw UTF-8
// byte shapes, literal Western-European corruption prefixes, lossy-transcoding
// signals, and double-encoding signatures.
func DefaultRules() []RegexRule {
	return []RegexRule{
		{Name: "utf8_2byte", Pattern: `[\x{C2}-\x{DF}][\x{80}-\x{BF}]`, Description: "Possible 2-byte UTF-8 sequence"},
		{Name: "utf8_3byte", Pattern: `[\x{E0}-\x{EF}][\x{80}-\x{BF}]{2}`, Description: "Possible 3-byte UTF-8 sequence"},
		{Name: "utf8_4byte", Pattern: `[\x{F0}-\x{F4}][\x{80}-\x{BF}]{3}`, Description: "Possible 4-byte UTF-8 sequence"},
		{Name: "latin1_utf8", Pattern: `Ã[\x{80}-\x{FF}]`, Description: "Latin-1/Windows-1252 interpretation of UTF-8"},
		{Name: "mojibake_prefix", Pattern: `Â[\x{80}-\x{FF}]`, Description: "Common mojibake prefix"},
		{Name: "quote_mojibake", Pattern: `â€[\x{80}-\x{FF}]`, Description: "Quote/punctuation mojibake"},
		{Name: "special_mojibake", Pattern: `â[\x{80}-\x{FF}]{2}`, Description: "Special character mojibake"},
		// One rule covers every contiguous run of U+FFFD, so a run reports
		// a single match regardless of length.
		{Name: "replacement_runs", Pattern: `\x{FFFD}+`, Description: "Replacement characters (data loss)"},
		{Name: "question_runs", Pattern: `\?{3,}`, Description: "Multiple question marks (possible encoding error)"},
		{Name: "double_encoded", Pattern: `Ã\x{83}Â`, Description: "Possible double-encoded UTF-8"},
		{Name: "double_encoded_quote", Pattern: `Ã¢â‚¬`, Description: "Double-encoded quote pattern"},
	}
}

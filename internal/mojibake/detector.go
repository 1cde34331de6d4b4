// Package mojibake detects character-encoding corruption in text: UTF-8
// byte sequences that were decoded as Windows-1252/Latin-1 and now render as
// garbage. It scores evidence from a known-pattern table, heuristic regex
// rules, and character-distribution statistics.
package mojibake

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/raaihank/moji-sentinel/internal/config"
	"github.com/raaihank/moji-sentinel/internal/logger"
)

// Detector runs the full detection pipeline over input text. All tables are
// built and validated in New and frozen afterwards, so a single Detector is
// safe for concurrent Detect calls.
type Detector struct {
	patterns    *PatternTable
	rules       *RegexRuleSet
	logger      *logger.Logger
	maxSamples  int
	sampleLines int
}

// New creates a detector from configuration. Extra patterns and custom rules
// from the configuration are validated here; an empty corrupted sequence or
// an invalid regex fails construction, never a later scan.
func New(cfg config.DetectorConfig, log *logger.Logger) (*Detector, error) {
	entries := DefaultPatterns()
	for _, p := range cfg.ExtraPatterns {
		entries = append(entries, PatternEntry{Corrupted: p.Corrupted, Correct: p.Correct})
	}
	table, err := NewPatternTable(entries)
	if err != nil {
		return nil, fmt.Errorf("building pattern table: %w", err)
	}

	rules := DefaultRules()
	for _, r := range cfg.ExtraRules {
		rules = append(rules, RegexRule{Name: r.Name, Pattern: r.Pattern, Description: r.Description})
	}
	rules, err = filterRules(rules, cfg.EnabledRules)
	if err != nil {
		return nil, fmt.Errorf("configuring rules: %w", err)
	}
	set, err := NewRegexRuleSet(rules)
	if err != nil {
		return nil, fmt.Errorf("building rule set: %w", err)
	}

	maxSamples := cfg.MaxSamples
	if maxSamples <= 0 {
		maxSamples = 5
	}
	sampleLines := cfg.SampleLines
	if sampleLines <= 0 {
		sampleLines = 100
	}

	detector := &Detector{
		patterns:    table,
		rules:       set,
		logger:      log,
		maxSamples:  maxSamples,
		sampleLines: sampleLines,
	}

	log.Info("Mojibake detector initialized",
		zap.Int("patterns", table.Len()),
		zap.Int("rules", set.Len()),
	)

	return detector, nil
}

// filterRules keeps the rules named in enabled; the name "all" keeps
// everything. Unknown names are configuration errors.
func filterRules(rules []RegexRule, enabled []string) ([]RegexRule, error) {
	if len(enabled) == 0 {
		return rules, nil
	}

	keep := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		if name == "all" {
			return rules, nil
		}
		keep[name] = true
	}

	known := make(map[string]bool, len(rules))
	for _, r := range rules {
		known[r.Name] = true
	}
	for name := range keep {
		if !known[name] {
			return nil, fmt.Errorf("unknown detection rule: %s", name)
		}
	}

	filtered := make([]RegexRule, 0, len(rules))
	for _, r := range rules {
		if keep[r.Name] {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// Detect runs every check over text and merges the evidence into one result.
// It is synchronous, deterministic, and never fails: text with no corruption
// evidence yields a zero-confidence result, not an error.
func (d *Detector) Detect(text string) *DetectionResult {
	patternIssues := d.patterns.Scan(text)
	regexIssues := d.rules.Scan(text)
	stats := AnalyzeStatistics(text)

	confidence, hasMojibake := combine(patternIssues, regexIssues, stats)

	issues := make([]Issue, 0, len(patternIssues)+len(regexIssues))
	issues = append(issues, patternIssues...)
	issues = append(issues, regexIssues...)

	result := &DetectionResult{
		HasMojibake: hasMojibake,
		Confidence:  confidence,
		Issues:      issues,
		Statistics:  stats,
		Samples:     extractSamples(text, d.patterns, d.sampleLines, d.maxSamples),
	}

	d.logger.Debug("Detection completed",
		zap.Bool("has_mojibake", result.HasMojibake),
		zap.Float64("confidence", result.Confidence),
		zap.Int("issues", len(result.Issues)),
		zap.Int("total_chars", stats.TotalChars),
	)

	return result
}

// PatternCount returns the size of the active pattern table.
func (d *Detector) PatternCount() int {
	return d.patterns.Len()
}

// RuleCount returns the number of active regex rules.
func (d *Detector) RuleCount() int {
	return d.rules.Len()
}

// RuleNames returns the active rule names in priority order.
func (d *Detector) RuleNames() []string {
	return d.rules.Names()
}

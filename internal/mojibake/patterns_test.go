package mojibake

import (
	"strings"
	"testing"
)

func TestNewPatternTable(t *testing.T) {
	t.Run("RejectsEmptyCorruptedSequence", func(t *testing.T) {
		_, err := NewPatternTable([]PatternEntry{
			{Corrupted: "Ã©", Correct: "é"},
			{Corrupted: "", Correct: "x"},
		})
		if err == nil {
			t.Fatal("expected error for empty corrupted sequence")
		}
	})

	t.Run("DuplicateKeyKeepsFirstPositionLastValue", func(t *testing.T) {
		table, err := NewPatternTable([]PatternEntry{
			{Corrupted: "a", Correct: "1"},
			{Corrupted: "b", Correct: "2"},
			{Corrupted: "a", Correct: "3"},
			{Corrupted: "c", Correct: "4"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		entries := table.Entries()
		if len(entries) != 3 {
			t.Fatalf("expected 3 entries after dedup, got %d", len(entries))
		}
		if entries[0].Corrupted != "a" || entries[0].Correct != "3" {
			t.Errorf("entry 0 = %+v, want corrupted a, correct 3", entries[0])
		}
		if entries[1].Corrupted != "b" || entries[2].Corrupted != "c" {
			t.Errorf("entries out of order: %+v", entries)
		}
	})

	t.Run("DefaultTableDedup", func(t *testing.T) {
		raw := DefaultPatterns()
		if len(raw) != 49 {
			t.Fatalf("expected 49 raw default entries, got %d", len(raw))
		}
		table, err := NewPatternTable(raw)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if table.Len() != 48 {
			t.Errorf("expected 48 entries after dedup, got %d", table.Len())
		}
		// The shared em/en dash key resolves to the en dash at the em
		// dash's original position.
		entries := table.Entries()
		if entries[5].Corrupted != "â€\"" || entries[5].Correct != "–" {
			t.Errorf("entry 5 = %+v, want the en dash correction", entries[5])
		}
	})
}

func TestPatternTableScan(t *testing.T) {
	table, err := NewPatternTable(DefaultPatterns())
	if err != nil {
		t.Fatalf("failed to build table: %v", err)
	}

	t.Run("CleanTextYieldsNoIssues", func(t *testing.T) {
		if issues := table.Scan("perfectly ordinary text"); len(issues) != 0 {
			t.Errorf("expected no issues, got %d", len(issues))
		}
	})

	t.Run("EmptyTextYieldsNoIssues", func(t *testing.T) {
		if issues := table.Scan(""); len(issues) != 0 {
			t.Errorf("expected no issues, got %d", len(issues))
		}
	})

	t.Run("CountsNonOverlappingOccurrences", func(t *testing.T) {
		issues := table.Scan("Ã© and Ã© again")
		var hit *Issue
		for i := range issues {
			if issues[i].Pattern == "Ã©" {
				hit = &issues[i]
			}
		}
		if hit == nil {
			t.Fatal("expected an issue for Ã©")
		}
		if hit.Count != 2 {
			t.Errorf("count = %d, want 2", hit.Count)
		}
		if hit.Type != IssueKnownPattern {
			t.Errorf("type = %s, want %s", hit.Type, IssueKnownPattern)
		}
		if hit.Expected != "é" {
			t.Errorf("expected = %q, want é", hit.Expected)
		}
	})

	t.Run("DescriptionNamesBothForms", func(t *testing.T) {
		issues := table.Scan("itâ€™s")
		if len(issues) == 0 {
			t.Fatal("expected issues")
		}
		want := "\"â€™\" should be \"'\""
		if issues[0].Description != want {
			t.Errorf("description = %q, want %q", issues[0].Description, want)
		}
	})

	t.Run("IssuesFollowTableOrder", func(t *testing.T) {
		// â€™ sits earlier in the table than Ã©, whatever the text order.
		issues := table.Scan("Ã© before â€™")
		if len(issues) < 2 {
			t.Fatalf("expected at least 2 issues, got %d", len(issues))
		}
		if issues[0].Pattern != "â€™" {
			t.Errorf("first issue = %q, want â€™", issues[0].Pattern)
		}
	})

	t.Run("ContainsAny", func(t *testing.T) {
		if !table.ContainsAny("broken Ã© here") {
			t.Error("expected ContainsAny to report true")
		}
		if table.ContainsAny("clean line") {
			t.Error("expected ContainsAny to report false")
		}
	})
}

func TestPatternTableSubstringKeys(t *testing.T) {
	// The â€ key is a prefix of â€™, so both report when the longer form
	// occurs. Counting is substring-based by contract.
	table, err := NewPatternTable(DefaultPatterns())
	if err != nil {
		t.Fatalf("failed to build table: %v", err)
	}
	issues := table.Scan("â€™")
	patterns := make([]string, len(issues))
	for i, issue := range issues {
		patterns[i] = issue.Pattern
	}
	joined := strings.Join(patterns, ",")
	if !strings.Contains(joined, "â€™") || !strings.Contains(joined, "â€") {
		t.Errorf("expected both â€™ and â€ issues, got %v", patterns)
	}
}

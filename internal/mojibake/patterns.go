package mojibake

import (
	"fmt"
	"strings"
)

// PatternEntry maps one corrupted character sequence, as it appears after a
// bad decode, to the character it should have been.
type PatternEntry struct {
	Corrupted string `json:"corrupted"`
	Correct   string `json:"correct"`
}

// PatternTable is an ordered set of PatternEntry with unique corrupted keys.
// Frozen after construction; safe for concurrent Scan calls.
type PatternTable struct {
	entries []PatternEntry
}

// NewPatternTable validates entries and builds a table. A duplicate corrupted
// key keeps the position of its first occurrence and the correction of its
// last.
func NewPatternTable(entries []PatternEntry) (*PatternTable, error) {
	index := make(map[string]int, len(entries))
	deduped := make([]PatternEntry, 0, len(entries))

	for i, e := range entries {
		if e.Corrupted == "" {
			return nil, fmt.Errorf("pattern entry %d: corrupted sequence is empty", i)
		}
		if at, seen := index[e.Corrupted]; seen {
			deduped[at].Correct = e.Correct
			continue
		}
		index[e.Corrupted] = len(deduped)
		deduped = append(deduped, e)
	}

	return &PatternTable{entries: deduped}, nil
}

// Len returns the number of entries after deduplication.
func (t *PatternTable) Len() int {
	return len(t.entries)
}

// Entries returns a copy of the table contents in iteration order.
func (t *PatternTable) Entries() []PatternEntry {
	out := make([]PatternEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// ContainsAny reports whether any corrupted sequence in the table occurs in s.
func (t *PatternTable) ContainsAny(s string) bool {
	for _, e := range t.entries {
		if strings.Contains(s, e.Corrupted) {
			return true
		}
	}
	return false
}

// Scan counts non-overlapping occurrences of every entry in text and reports
// one issue per entry found, in table order.
func (t *PatternTable) Scan(text string) []Issue {
	var found []Issue
	for _, e := range t.entries {
		count := strings.Count(text, e.Corrupted)
		if count == 0 {
			continue
		}
		found = append(found, Issue{
			Type:        IssueKnownPattern,
			Pattern:     e.Corrupted,
			Expected:    e.Correct,
			Count:       count,
			Description: fmt.Sprintf("\"%s\" should be \"%s\"", e.Corrupted, e.Correct),
		})
	}
	return found
}

// DefaultPatterns returns the built-in corruption table: UTF-8 sequences for
// punctuation, accented Latin letters, and symbol glyphs as they render when
// decoded as Windows-1252/Latin-1. The em dash and en dash rows share one
// corrupted key; NewPatternTable collapses them to the en dash correction.
func DefaultPatterns() []PatternEntry {
	return []PatternEntry{
		// Quotes and punctuation
		{Corrupted: "â€™", Correct: "'"},       // right single quote
		{Corrupted: "â€˜", Correct: "'"},       // left single quote
		{Corrupted: "â€œ", Correct: "\""},      // left double quote
		{Corrupted: "â€", Correct: "\""},       // right double quote
		{Corrupted: "â€¦", Correct: "…"},       // ellipsis
		{Corrupted: "â€\"", Correct: "—"},      // em dash
		{Corrupted: "â€\"", Correct: "–"},      // en dash

		// Spaces and breaks
		{Corrupted: "Â ", Correct: " "},        // non-breaking space
		{Corrupted: "Â ", Correct: " "},   // non-breaking space variant
		{Corrupted: "Â­", Correct: ""},    // soft hyphen

		// Accented characters
		{Corrupted: "Ã¡", Correct: "á"},
		{Corrupted: "Ã©", Correct: "é"},
		{Corrupted: "Ã­", Correct: "í"},
		{Corrupted: "Ã³", Correct: "ó"},
		{Corrupted: "Ãº", Correct: "ú"},
		{Corrupted: "Ã ", Correct: "à"},
		{Corrupted: "Ã¨", Correct: "è"},
		{Corrupted: "Ã¬", Correct: "ì"},
		{Corrupted: "Ã²", Correct: "ò"},
		{Corrupted: "Ã¹", Correct: "ù"},
		{Corrupted: "Ã¢", Correct: "â"},
		{Corrupted: "Ãª", Correct: "ê"},
		{Corrupted: "Ã®", Correct: "î"},
		{Corrupted: "Ã´", Correct: "ô"},
		{Corrupted: "Ã»", Correct: "û"},
		{Corrupted: "Ã£", Correct: "ã"},
		{Corrupted: "Ã±", Correct: "ñ"},
		{Corrupted: "Ãµ", Correct: "õ"},
		{Corrupted: "Ã¤", Correct: "ä"},
		{Corrupted: "Ã«", Correct: "ë"},
		{Corrupted: "Ã¯", Correct: "ï"},
		{Corrupted: "Ã¶", Correct: "ö"},
		{Corrupted: "Ã¼", Correct: "ü"},

		// Currency and legal symbols
		{Corrupted: "â‚¬", Correct: "€"},       // euro
		{Corrupted: "Â£", Correct: "£"},        // pound
		{Corrupted: "Â¥", Correct: "¥"},        // yen
		{Corrupted: "Â©", Correct: "©"},        // copyright
		{Corrupted: "Â®", Correct: "®"},        // registered
		{Corrupted: "â„¢", Correct: "™"},       // trademark

		// Math symbols
		{Corrupted: "Ã—", Correct: "×"},        // multiplication
		{Corrupted: "Ã·", Correct: "÷"},        // division
		{Corrupted: "Â±", Correct: "±"},        // plus-minus
		{Corrupted: "â‰", Correct: "≠"},        // not equal
		{Corrupted: "â‰¤", Correct: "≤"},       // less or equal
		{Corrupted: "â‰¥", Correct: "≥"},       // greater or equal

		// Bullets and section marks
		{Corrupted: "â€¢", Correct: "•"},       // bullet
		{Corrupted: "Â°", Correct: "°"},        // degree
		{Corrupted: "Â§", Correct: "§"},        // section
		{Corrupted: "Â¶", Correct: "¶"},        // pilcrow
	}
}

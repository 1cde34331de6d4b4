package store

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/raaihank/moji-sentinel/internal/mojibake"
)

// ScanRecord is one persisted detection outcome. The raw text is never
// stored, only its hash and the summary numbers.
type ScanRecord struct {
	ID                  int64     `db:"id" json:"id"`
	TextHash            string    `db:"text_hash" json:"text_hash"`
	Source              string    `db:"source" json:"source"`
	HasMojibake         bool      `db:"has_mojibake" json:"has_mojibake"`
	Confidence          float64   `db:"confidence" json:"confidence"`
	IssueCount          int       `db:"issue_count" json:"issue_count"`
	TotalChars          int       `db:"total_chars" json:"total_chars"`
	NonASCIIRatio       float64   `db:"non_ascii_ratio" json:"non_ascii_ratio"`
	SuspiciousSequences int       `db:"suspicious_sequences" json:"suspicious_sequences"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// NewRecord builds a ScanRecord from a detection result. Source names where
// the text came from (api, stdin, a file path, or a corpus name).
func NewRecord(source, text string, result *mojibake.DetectionResult) *ScanRecord {
	sum := sha256.Sum256([]byte(text))
	return &ScanRecord{
		TextHash:            hex.EncodeToString(sum[:]),
		Source:              source,
		HasMojibake:         result.HasMojibake,
		Confidence:          result.Confidence,
		IssueCount:          len(result.Issues),
		TotalChars:          result.Statistics.TotalChars,
		NonASCIIRatio:       result.Statistics.NonASCIIRatio,
		SuspiciousSequences: result.Statistics.SuspiciousSequences,
	}
}

// BatchResult represents the outcome of a batch insert operation
type BatchResult struct {
	Inserted   int64         `json:"inserted"`
	Duplicates int64         `json:"duplicates"`
	Duration   time.Duration `json:"duration"`
}

// ScanStats represents aggregate scan history statistics
type ScanStats struct {
	TotalScans    int64      `json:"total_scans"`
	FlaggedCount  int64      `json:"flagged_count"`
	CleanCount    int64      `json:"clean_count"`
	AvgConfidence float64    `json:"avg_confidence"`
	LastScanAt    *time.Time `json:"last_scan_at,omitempty"`
}

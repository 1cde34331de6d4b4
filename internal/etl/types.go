package etl

import (
	"path/filepath"
	"strings"
	"time"
)

// DataRecord is a single text row from an input dataset. Row is the
// record's position in the file, used for validation reporting.
type DataRecord struct {
	Row  int64  `csv:"-" parquet:"-" json:"-"`
	Text string `csv:"text" parquet:"text" json:"text"`
}

// ProcessingResult summarizes one corpus run.
type ProcessingResult struct {
	TotalRecords  int64         `json:"total_records"`
	Flagged       int64         `json:"flagged"`
	Clean         int64         `json:"clean"`
	Failed        int64         `json:"failed"`
	Duplicates    int64         `json:"duplicates"`
	Duration      time.Duration `json:"duration"`
	DetectionTime time.Duration `json:"detection_time"`
	DatabaseTime  time.Duration `json:"database_time"`
	CacheTime     time.Duration `json:"cache_time"`
	Errors        []string      `json:"errors,omitempty"`
}

// ValidationError describes one rejected record.
type ValidationError struct {
	Row     int64  `json:"row"`
	Message string `json:"message"`
}

// ValidationResult summarizes a validate-only pass over a dataset.
type ValidationResult struct {
	TotalRecords int64             `json:"total_records"`
	Valid        int64             `json:"valid"`
	Invalid      int64             `json:"invalid"`
	Errors       []ValidationError `json:"errors,omitempty"`
}

// Config contains corpus pipeline configuration
type Config struct {
	BatchSize      int           `yaml:"batch_size" mapstructure:"batch_size"`
	WorkerCount    int           `yaml:"worker_count" mapstructure:"worker_count"`
	MaxRetries     int           `yaml:"max_retries" mapstructure:"max_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`
	ValidateData   bool          `yaml:"validate_data" mapstructure:"validate_data"`
	UpdateCache    bool          `yaml:"update_cache" mapstructure:"update_cache"`
	ProgressReport int           `yaml:"progress_report" mapstructure:"progress_report"`
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      500,
		WorkerCount:    4,
		MaxRetries:     3,
		RetryDelay:     5 * time.Second,
		ValidateData:   true,
		UpdateCache:    true,
		ProgressReport: 1000,
	}
}

// ProcessingStats tracks live pipeline statistics.
type ProcessingStats struct {
	StartTime      time.Time `json:"start_time"`
	RecordsRead    int64     `json:"records_read"`
	RecordsInvalid int64     `json:"records_invalid"`
	Flagged        int64     `json:"flagged"`
	ProcessingRate float64   `json:"processing_rate"`
}

// FileFormat represents supported dataset formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
	FormatUnknown FileFormat = "unknown"
)

// DetectFileFormat detects the dataset format from the file extension.
func DetectFileFormat(filename string) FileFormat {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV
	case ".parquet":
		return FormatParquet
	case ".json", ".jsonl", ".ndjson":
		return FormatJSON
	default:
		return FormatUnknown
	}
}

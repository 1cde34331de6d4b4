// Package store persists scan outcomes to PostgreSQL so flagged corpora
// and API traffic can be audited later.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/raaihank/moji-sentinel/internal/config"
	"github.com/raaihank/moji-sentinel/internal/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS scan_results (
	id                   BIGSERIAL PRIMARY KEY,
	text_hash            TEXT NOT NULL UNIQUE,
	source               TEXT NOT NULL DEFAULT '',
	has_mojibake         BOOLEAN NOT NULL,
	confidence           DOUBLE PRECISION NOT NULL,
	issue_count          INTEGER NOT NULL,
	total_chars          INTEGER NOT NULL,
	non_ascii_ratio      DOUBLE PRECISION NOT NULL,
	suspicious_sequences INTEGER NOT NULL,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_scan_results_created_at ON scan_results (created_at DESC);
CREATE INDEX IF NOT EXISTS idx_scan_results_flagged ON scan_results (has_mojibake) WHERE has_mojibake;
`

// ScanStore handles scan history storage in PostgreSQL.
type ScanStore struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// New connects to PostgreSQL, applies the schema, and returns a ready store.
func New(cfg config.StoreConfig, log *logger.Logger) (*ScanStore, error) {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	s := &ScanStore{
		db:     db,
		logger: log.WithComponent("store"),
	}

	if err := s.initialize(); err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	s.logger.Info("Scan store initialized",
		zap.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns))

	return s, nil
}

// initialize verifies the connection and applies the scan_results schema.
func (s *ScanStore) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}

	return nil
}

// Insert records a single scan. A text already on file is skipped silently;
// the record's ID and CreatedAt are populated only for fresh rows.
func (s *ScanStore) Insert(ctx context.Context, rec *ScanRecord) error {
	query := `
		INSERT INTO scan_results
			(text_hash, source, has_mojibake, confidence, issue_count,
			 total_chars, non_ascii_ratio, suspicious_sequences)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (text_hash) DO NOTHING
		RETURNING id, created_at`

	err := s.db.QueryRowContext(ctx, query,
		rec.TextHash,
		rec.Source,
		rec.HasMojibake,
		rec.Confidence,
		rec.IssueCount,
		rec.TotalChars,
		rec.NonASCIIRatio,
		rec.SuspiciousSequences,
	).Scan(&rec.ID, &rec.CreatedAt)

	if err == sql.ErrNoRows {
		s.logger.Debug("Scan already recorded", zap.String("text_hash", rec.TextHash))
		return nil
	}
	if err != nil {
		s.logger.Error("Failed to insert scan record",
			zap.Error(err),
			zap.String("source", rec.Source))
		return fmt.Errorf("inserting scan record: %w", err)
	}

	s.logger.Debug("Scan recorded",
		zap.Int64("id", rec.ID),
		zap.String("source", rec.Source),
		zap.Bool("has_mojibake", rec.HasMojibake))

	return nil
}

// BatchInsert records multiple scans in one statement, skipping texts
// already on file.
func (s *ScanStore) BatchInsert(ctx context.Context, recs []*ScanRecord) (*BatchResult, error) {
	if len(recs) == 0 {
		return &BatchResult{}, nil
	}

	start := time.Now()

	valueStrings := make([]string, 0, len(recs))
	valueArgs := make([]interface{}, 0, len(recs)*8)

	for i, rec := range recs {
		valueStrings = append(valueStrings, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			i*8+1, i*8+2, i*8+3, i*8+4, i*8+5, i*8+6, i*8+7, i*8+8))
		valueArgs = append(valueArgs,
			rec.TextHash,
			rec.Source,
			rec.HasMojibake,
			rec.Confidence,
			rec.IssueCount,
			rec.TotalChars,
			rec.NonASCIIRatio,
			rec.SuspiciousSequences,
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO scan_results
			(text_hash, source, has_mojibake, confidence, issue_count,
			 total_chars, non_ascii_ratio, suspicious_sequences)
		VALUES %s
		ON CONFLICT (text_hash) DO NOTHING`,
		strings.Join(valueStrings, ","))

	res, err := s.db.ExecContext(ctx, query, valueArgs...)
	if err != nil {
		s.logger.Error("Batch insert failed", zap.Error(err))
		return nil, fmt.Errorf("batch insert failed: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		s.logger.Warn("Could not get rows affected", zap.Error(err))
		inserted = int64(len(recs))
	}

	result := &BatchResult{
		Inserted:   inserted,
		Duplicates: int64(len(recs)) - inserted,
		Duration:   time.Since(start),
	}

	s.logger.Info("Batch insert completed",
		zap.Int64("inserted", result.Inserted),
		zap.Int64("duplicates_skipped", result.Duplicates),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// RecentScans returns the most recent scan records, newest first.
func (s *ScanStore) RecentScans(ctx context.Context, limit int) ([]*ScanRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, text_hash, source, has_mojibake, confidence, issue_count,
		       total_chars, non_ascii_ratio, suspicious_sequences, created_at
		FROM scan_results
		ORDER BY created_at DESC
		LIMIT $1`

	var recs []*ScanRecord
	if err := s.db.SelectContext(ctx, &recs, query, limit); err != nil {
		return nil, fmt.Errorf("listing recent scans: %w", err)
	}

	return recs, nil
}

// GetStats returns aggregate scan history statistics.
func (s *ScanStore) GetStats(ctx context.Context) (*ScanStats, error) {
	stats := &ScanStats{}

	query := `
		SELECT
			COUNT(*) as total,
			COUNT(CASE WHEN has_mojibake THEN 1 END) as flagged,
			COUNT(CASE WHEN NOT has_mojibake THEN 1 END) as clean,
			COALESCE(AVG(confidence), 0) as avg_confidence,
			MAX(created_at) as last_scan_at
		FROM scan_results`

	var lastScan sql.NullTime
	err := s.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalScans,
		&stats.FlaggedCount,
		&stats.CleanCount,
		&stats.AvgConfidence,
		&lastScan,
	)
	if err != nil {
		return nil, fmt.Errorf("getting scan stats: %w", err)
	}
	if lastScan.Valid {
		stats.LastScanAt = &lastScan.Time
	}

	return stats, nil
}

// Ping tests the database connection.
func (s *ScanStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *ScanStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// maskDatabaseURL hides credentials in a database URL for logging.
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "postgres://***"
	}
	return u.Redacted()
}

// Package etl batch-scans text datasets for mojibake, persisting flagged
// rows and warming the result cache.
package etl

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"

	"github.com/raaihank/moji-sentinel/internal/cache"
	"github.com/raaihank/moji-sentinel/internal/logger"
	"github.com/raaihank/moji-sentinel/internal/mojibake"
	"github.com/raaihank/moji-sentinel/internal/store"
	"github.com/raaihank/moji-sentinel/internal/websocket"
)

const maxRecordBytes = 10000

// Pipeline runs corpus files through the detector. The store, cache, and
// hub are all optional; a pipeline with none of them is a dry run.
type Pipeline struct {
	detector  *mojibake.Detector
	scanStore *store.ScanStore
	cache     *cache.ResultCache
	hub       *websocket.Hub
	config    *Config
	logger    *logger.Logger

	mu         sync.RWMutex
	stats      *ProcessingStats
	totalRows  int64
	lastReport int64
}

// NewPipeline creates a corpus pipeline.
func NewPipeline(detector *mojibake.Detector, scanStore *store.ScanStore, resultCache *cache.ResultCache, hub *websocket.Hub, cfg *Config, log *logger.Logger) *Pipeline {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Pipeline{
		detector:  detector,
		scanStore: scanStore,
		cache:     resultCache,
		hub:       hub,
		config:    cfg,
		logger:    log.WithComponent("etl"),
		stats:     &ProcessingStats{StartTime: time.Now()},
	}
}

// ProcessFile scans a dataset file (CSV, Parquet, or JSON) and returns the
// processing summary.
func (p *Pipeline) ProcessFile(ctx context.Context, filePath string) (*ProcessingResult, error) {
	p.logger.Info("Starting corpus scan",
		zap.String("file", filePath),
		zap.Int("batch_size", p.config.BatchSize),
		zap.Int("workers", p.config.WorkerCount))

	start := time.Now()
	result := &ProcessingResult{}
	corpus := filepath.Base(filePath)

	p.resetStats()

	err := p.forEachBatch(ctx, filePath, func(batch []*DataRecord) {
		p.processBatch(ctx, corpus, batch, result)
	})
	if err != nil {
		return result, err
	}

	result.Duration = time.Since(start)

	p.logger.Info("Corpus scan completed",
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("flagged", result.Flagged),
		zap.Int64("clean", result.Clean),
		zap.Int64("failed", result.Failed),
		zap.Duration("duration", result.Duration),
		zap.Duration("detection_time", result.DetectionTime),
		zap.Duration("database_time", result.DatabaseTime))

	if p.hub != nil {
		p.hub.BroadcastProgress(corpus, result.TotalRecords, p.knownTotal(), result.Flagged, result.Failed)
	}

	return result, nil
}

// Validate checks a dataset without scanning it, reporting rejected records.
func (p *Pipeline) Validate(ctx context.Context, filePath string) (*ValidationResult, error) {
	const maxReportedErrors = 20

	result := &ValidationResult{}
	err := p.forEachBatch(ctx, filePath, func(batch []*DataRecord) {
		for _, rec := range batch {
			result.TotalRecords++
			if err := p.validateRecord(rec); err != nil {
				result.Invalid++
				if len(result.Errors) < maxReportedErrors {
					result.Errors = append(result.Errors, ValidationError{
						Row:     rec.Row,
						Message: err.Error(),
					})
				}
				continue
			}
			result.Valid++
		}
	})
	if err != nil {
		return result, err
	}

	return result, nil
}

// forEachBatch streams the file's records to fn in batches of the
// configured size.
func (p *Pipeline) forEachBatch(ctx context.Context, filePath string, fn func([]*DataRecord)) error {
	format := DetectFileFormat(filePath)
	if format == FormatUnknown {
		return fmt.Errorf("unsupported file format: %s", filepath.Ext(filePath))
	}
	p.logger.Info("Detected file format", zap.String("format", string(format)))

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", filePath, err)
	}
	defer file.Close()

	var readBatch func() ([]*DataRecord, error)
	switch format {
	case FormatCSV:
		readBatch, err = p.csvReader(file)
	case FormatParquet:
		readBatch, err = p.parquetReader(file)
	case FormatJSON:
		readBatch, err = p.jsonReader(file)
	}
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := readBatch()
		if err != nil {
			return fmt.Errorf("reading batch: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}

		fn(batch)
	}
}

// csvReader returns a batch reader over a CSV file with a header row. The
// text column is located by name, defaulting to the first column.
func (p *Pipeline) csvReader(file *os.File) (func() ([]*DataRecord, error), error) {
	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	p.logger.Info("CSV header detected", zap.Strings("columns", header))

	textCol := 0
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), "text") {
			textCol = i
			break
		}
	}

	row := int64(1)
	return func() ([]*DataRecord, error) {
		var batch []*DataRecord
		for len(batch) < p.config.BatchSize {
			record, err := reader.Read()
			if err == io.EOF {
				break
			}
			row++
			if err != nil {
				p.logger.Warn("Failed to read CSV record", zap.Int64("row", row), zap.Error(err))
				continue
			}
			if textCol >= len(record) {
				p.logger.Warn("CSV record missing text column", zap.Int64("row", row))
				continue
			}
			batch = append(batch, &DataRecord{Row: row, Text: record[textCol]})
		}
		return batch, nil
	}, nil
}

// parquetReader returns a batch reader over a Parquet file.
func (p *Pipeline) parquetReader(file *os.File) (func() ([]*DataRecord, error), error) {
	reader := parquet.NewReader(file)

	p.mu.Lock()
	p.totalRows = reader.NumRows()
	p.mu.Unlock()

	row := int64(0)
	done := false
	return func() ([]*DataRecord, error) {
		var batch []*DataRecord
		for !done && len(batch) < p.config.BatchSize {
			var rec DataRecord
			err := reader.Read(&rec)
			if err == io.EOF {
				done = true
				if err := reader.Close(); err != nil {
					p.logger.Warn("Failed to close Parquet reader", zap.Error(err))
				}
				break
			}
			row++
			if err != nil {
				p.logger.Warn("Failed to read Parquet record", zap.Int64("row", row), zap.Error(err))
				continue
			}
			rec.Row = row
			batch = append(batch, &rec)
		}
		return batch, nil
	}, nil
}

// jsonReader returns a batch reader over a JSON file, accepting either a
// top-level array of objects or newline-delimited objects.
func (p *Pipeline) jsonReader(file *os.File) (func() ([]*DataRecord, error), error) {
	decoder := json.NewDecoder(file)
	inArray := false

	tok, err := decoder.Token()
	if err == io.EOF {
		return func() ([]*DataRecord, error) { return nil, nil }, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading JSON: %w", err)
	}
	if delim, ok := tok.(json.Delim); ok && delim == '[' {
		inArray = true
	} else {
		// Not an array, rewind and stream objects.
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewinding JSON file: %w", err)
		}
		decoder = json.NewDecoder(file)
	}

	row := int64(0)
	done := false
	return func() ([]*DataRecord, error) {
		var batch []*DataRecord
		for !done && len(batch) < p.config.BatchSize {
			if inArray && !decoder.More() {
				done = true
				break
			}
			var rec DataRecord
			err := decoder.Decode(&rec)
			if err == io.EOF {
				done = true
				break
			}
			row++
			if err != nil {
				// The decoder cannot resync after a syntax error.
				p.logger.Warn("Failed to decode JSON record, stopping",
					zap.Int64("row", row), zap.Error(err))
				done = true
				break
			}
			rec.Row = row
			batch = append(batch, &rec)
		}
		return batch, nil
	}, nil
}

// processBatch validates, scans, persists, and reports one batch.
func (p *Pipeline) processBatch(ctx context.Context, corpus string, batch []*DataRecord, result *ProcessingResult) {
	result.TotalRecords += int64(len(batch))

	valid := batch[:0:0]
	for _, rec := range batch {
		if err := p.validateRecord(rec); err != nil {
			p.logger.Debug("Skipping invalid record", zap.Int64("row", rec.Row), zap.Error(err))
			result.Failed++
			continue
		}
		valid = append(valid, rec)
	}

	p.mu.Lock()
	p.stats.RecordsRead += int64(len(batch))
	p.stats.RecordsInvalid += int64(len(batch) - len(valid))
	p.mu.Unlock()

	if len(valid) == 0 {
		return
	}

	detectStart := time.Now()
	results := p.scanBatch(valid)
	result.DetectionTime += time.Since(detectStart)

	var flaggedRecs []*store.ScanRecord
	nFlagged := 0
	for i, res := range results {
		if res.HasMojibake {
			nFlagged++
			flaggedRecs = append(flaggedRecs, store.NewRecord(corpus, valid[i].Text, res))
		}
	}

	if p.scanStore != nil && len(flaggedRecs) > 0 {
		dbStart := time.Now()
		br, err := p.insertWithRetry(ctx, flaggedRecs)
		result.DatabaseTime += time.Since(dbStart)
		if err != nil {
			p.logger.Error("Batch persist failed", zap.Error(err))
			result.Failed += int64(len(valid))
			result.Errors = append(result.Errors, err.Error())
			return
		}
		result.Duplicates += br.Duplicates
	}

	result.Flagged += int64(nFlagged)
	result.Clean += int64(len(valid) - nFlagged)

	p.mu.Lock()
	p.stats.Flagged += int64(nFlagged)
	p.mu.Unlock()

	if p.config.UpdateCache && p.cache != nil {
		cacheStart := time.Now()
		for i, res := range results {
			if err := p.cache.Set(ctx, valid[i].Text, res); err != nil {
				p.logger.Warn("Failed to warm cache", zap.Error(err))
				break
			}
		}
		result.CacheTime += time.Since(cacheStart)
	}

	p.maybeReportProgress(corpus, result)
}

// scanBatch runs the detector over the records with the configured number
// of workers.
func (p *Pipeline) scanBatch(records []*DataRecord) []*mojibake.DetectionResult {
	results := make([]*mojibake.DetectionResult, len(records))

	workers := p.config.WorkerCount
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = p.detector.Detect(records[i].Text)
			}
		}()
	}

	for i := range records {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// insertWithRetry persists a batch, retrying transient failures.
func (p *Pipeline) insertWithRetry(ctx context.Context, recs []*store.ScanRecord) (*store.BatchResult, error) {
	var br *store.BatchResult
	var err error

	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Warn("Retrying batch insert",
				zap.Int("attempt", attempt),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.config.RetryDelay):
			}
		}

		br, err = p.scanStore.BatchInsert(ctx, recs)
		if err == nil {
			return br, nil
		}
	}

	return nil, fmt.Errorf("batch insert failed after %d retries: %w", p.config.MaxRetries, err)
}

// validateRecord rejects records the detector should not be fed.
func (p *Pipeline) validateRecord(rec *DataRecord) error {
	if !p.config.ValidateData {
		return nil
	}
	if strings.TrimSpace(rec.Text) == "" {
		return fmt.Errorf("empty text")
	}
	if len(rec.Text) > maxRecordBytes {
		return fmt.Errorf("text too long: %d bytes", len(rec.Text))
	}
	return nil
}

// maybeReportProgress logs and broadcasts progress every ProgressReport
// records.
func (p *Pipeline) maybeReportProgress(corpus string, result *ProcessingResult) {
	p.mu.Lock()
	due := p.config.ProgressReport > 0 && result.TotalRecords-p.lastReport >= int64(p.config.ProgressReport)
	if due {
		p.lastReport = result.TotalRecords
	}
	elapsed := time.Since(p.stats.StartTime)
	p.mu.Unlock()

	if !due {
		return
	}

	rate := float64(result.TotalRecords) / elapsed.Seconds()
	p.logger.Info("Processing progress",
		zap.Int64("records_processed", result.TotalRecords),
		zap.Int64("flagged", result.Flagged),
		zap.Int64("failed", result.Failed),
		zap.Float64("rate_per_sec", rate),
		zap.Duration("elapsed", elapsed))

	if p.hub != nil {
		p.hub.BroadcastProgress(corpus, result.TotalRecords, p.knownTotal(), result.Flagged, result.Failed)
	}
}

func (p *Pipeline) knownTotal() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalRows
}

func (p *Pipeline) resetStats() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats = &ProcessingStats{StartTime: time.Now()}
	p.totalRows = 0
	p.lastReport = 0
}

// GetStats returns a snapshot of the live processing statistics.
func (p *Pipeline) GetStats() *ProcessingStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := *p.stats
	if elapsed := time.Since(stats.StartTime).Seconds(); elapsed > 0 {
		stats.ProcessingRate = float64(stats.RecordsRead) / elapsed
	}
	return &stats
}

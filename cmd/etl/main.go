package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/moji-sentinel/internal/cache"
	"github.com/raaihank/moji-sentinel/internal/config"
	"github.com/raaihank/moji-sentinel/internal/etl"
	"github.com/raaihank/moji-sentinel/internal/logger"
	"github.com/raaihank/moji-sentinel/internal/mojibake"
	"github.com/raaihank/moji-sentinel/internal/store"
)

func main() {
	var (
		configPath   = flag.String("config", "configs/default.yaml", "Configuration file path")
		inputFile    = flag.String("input", "", "Input dataset file (CSV, Parquet, or JSON)")
		batchSize    = flag.Int("batch-size", 500, "Batch size for processing")
		workers      = flag.Int("workers", 4, "Number of worker goroutines")
		skipCache    = flag.Bool("skip-cache", false, "Skip warming the Redis result cache")
		validateOnly = flag.Bool("validate-only", false, "Only validate data, don't scan")
		dryRun       = flag.Bool("dry-run", false, "Dry run - don't write to database")
		showStats    = flag.Bool("stats", false, "Show scan history statistics and exit")
	)
	flag.Parse()

	if *inputFile == "" && !*showStats {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --input dataset.csv --batch-size 500\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input dataset.parquet --workers 8\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input dataset.jsonl --validate-only\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --stats\n", os.Args[0])
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		}
	}
	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting Moji-Sentinel corpus audit",
		zap.String("version", "0.1.0"),
		zap.String("config", *configPath))

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling operations...")
		cancel()
	}()

	// Initialize services
	services, err := initializeServices(cfg, log, *dryRun, *skipCache)
	if err != nil {
		log.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.cleanup()

	// Handle different operations
	switch {
	case *showStats:
		if err := showScanStats(ctx, services, log); err != nil {
			log.Fatal("Failed to show stats", zap.Error(err))
		}
	default:
		etlConfig := etl.DefaultConfig()
		etlConfig.BatchSize = *batchSize
		etlConfig.WorkerCount = *workers
		etlConfig.UpdateCache = !*skipCache

		if err := processDataset(ctx, services, cfg.Detector, etlConfig, *inputFile, *validateOnly, log); err != nil {
			log.Fatal("Corpus processing failed", zap.Error(err))
		}
	}

	log.Info("Corpus audit completed successfully")
}

// services holds the optional sinks a corpus run writes to. Either may be
// nil: a run with neither is a pure dry run.
type services struct {
	scanStore   *store.ScanStore
	resultCache *cache.ResultCache
}

func (s *services) cleanup() {
	if s.scanStore != nil {
		s.scanStore.Close()
	}
	if s.resultCache != nil {
		s.resultCache.Close()
	}
}

// initializeServices connects the store and cache that the configuration
// enables and the flags have not turned off.
func initializeServices(cfg *config.Config, log *logger.Logger, dryRun, skipCache bool) (*services, error) {
	services := &services{}

	if cfg.Store.Enabled && !dryRun {
		log.Info("Initializing scan store...")
		scanStore, err := store.New(cfg.Store, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize scan store: %w", err)
		}
		services.scanStore = scanStore
	} else {
		log.Info("Scan store disabled, flagged rows will not be persisted",
			zap.Bool("dry_run", dryRun),
			zap.Bool("store_enabled", cfg.Store.Enabled))
	}

	if cfg.Cache.Enabled && !skipCache {
		log.Info("Initializing result cache...")
		resultCache, err := cache.New(cfg.Cache, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize result cache: %w", err)
		}
		services.resultCache = resultCache
	}

	return services, nil
}

// processDataset runs the input dataset through the detector, or through
// validation only.
func processDataset(ctx context.Context, services *services, detectorCfg config.DetectorConfig, etlConfig *etl.Config, inputFile string, validateOnly bool, log *logger.Logger) error {
	log.Info("Processing dataset",
		zap.String("file", inputFile),
		zap.Bool("validate_only", validateOnly),
		zap.Int("batch_size", etlConfig.BatchSize),
		zap.Int("workers", etlConfig.WorkerCount))

	// Check if file exists
	if _, err := os.Stat(inputFile); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", inputFile)
	}

	detector, err := mojibake.New(detectorCfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize detector: %w", err)
	}

	pipeline := etl.NewPipeline(
		detector,
		services.scanStore,
		services.resultCache,
		nil,
		etlConfig,
		log,
	)

	if validateOnly {
		result, err := pipeline.Validate(ctx, inputFile)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		printValidationSummary(inputFile, result)
		return nil
	}

	result, err := pipeline.ProcessFile(ctx, inputFile)
	if err != nil {
		return fmt.Errorf("pipeline processing failed: %w", err)
	}

	log.Info("Dataset processing completed",
		zap.String("file", inputFile),
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("flagged", result.Flagged),
		zap.Int64("clean", result.Clean),
		zap.Int64("failed", result.Failed),
		zap.Duration("total_duration", result.Duration))

	if len(result.Errors) > 0 {
		log.Warn("Processing completed with errors", zap.Strings("errors", result.Errors))
	}

	printProcessingSummary(inputFile, result)
	return nil
}

// printProcessingSummary displays the corpus run outcome
func printProcessingSummary(inputFile string, result *etl.ProcessingResult) {
	fmt.Printf("\n=== Corpus Scan Summary ===\n")
	fmt.Printf("Input File:         %s\n", inputFile)
	fmt.Printf("Total Records:      %d\n", result.TotalRecords)
	fmt.Printf("Flagged:            %d (%.1f%%)\n", result.Flagged, percentOf(result.Flagged, result.TotalRecords))
	fmt.Printf("Clean:              %d\n", result.Clean)
	fmt.Printf("Failed:             %d\n", result.Failed)
	fmt.Printf("Duplicates Skipped: %d\n", result.Duplicates)

	fmt.Printf("\n=== Timing ===\n")
	fmt.Printf("Total Duration:     %v\n", result.Duration.Round(time.Millisecond))
	fmt.Printf("Detection Time:     %v\n", result.DetectionTime.Round(time.Millisecond))
	fmt.Printf("Database Time:      %v\n", result.DatabaseTime.Round(time.Millisecond))
	fmt.Printf("Cache Time:         %v\n", result.CacheTime.Round(time.Millisecond))
	if secs := result.Duration.Seconds(); secs > 0 {
		fmt.Printf("Records/Second:     %.1f\n", float64(result.TotalRecords)/secs)
	}
}

// printValidationSummary displays the validate-only outcome
func printValidationSummary(inputFile string, result *etl.ValidationResult) {
	fmt.Printf("\n=== Dataset Validation Summary ===\n")
	fmt.Printf("Input File:     %s\n", inputFile)
	fmt.Printf("Total Records:  %d\n", result.TotalRecords)
	fmt.Printf("Valid:          %d\n", result.Valid)
	fmt.Printf("Invalid:        %d\n", result.Invalid)

	if len(result.Errors) > 0 {
		fmt.Printf("\n=== Validation Errors ===\n")
		for _, e := range result.Errors {
			fmt.Printf("Row %d: %s\n", e.Row, e.Message)
		}
	}
}

// showScanStats displays scan history and cache statistics
func showScanStats(ctx context.Context, services *services, log *logger.Logger) error {
	if services.scanStore == nil {
		return fmt.Errorf("scan store is not enabled")
	}

	log.Info("Retrieving scan history statistics...")

	stats, err := services.scanStore.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get scan stats: %w", err)
	}

	fmt.Printf("\n=== Moji-Sentinel Scan History ===\n")
	fmt.Printf("Total Scans:        %d\n", stats.TotalScans)
	fmt.Printf("Flagged:            %d (%.1f%%)\n", stats.FlaggedCount, percentOf(stats.FlaggedCount, stats.TotalScans))
	fmt.Printf("Clean:              %d\n", stats.CleanCount)
	fmt.Printf("Avg Confidence:     %.1f%%\n", stats.AvgConfidence)
	if stats.LastScanAt != nil {
		fmt.Printf("Last Scan:          %s\n", stats.LastScanAt.Format(time.RFC3339))
	}

	recent, err := services.scanStore.RecentScans(ctx, 10)
	if err != nil {
		log.Warn("Failed to list recent scans", zap.Error(err))
	} else if len(recent) > 0 {
		fmt.Printf("\n=== Recent Scans ===\n")
		for _, rec := range recent {
			verdict := "clean"
			if rec.HasMojibake {
				verdict = "MOJIBAKE"
			}
			fmt.Printf("%s  %-8s  %5.1f%%  %s\n",
				rec.CreatedAt.Format("2006-01-02 15:04:05"), verdict, rec.Confidence, rec.Source)
		}
	}

	// Get cache stats if available
	if services.resultCache != nil {
		cacheStats, err := services.resultCache.GetStats(ctx)
		if err == nil {
			fmt.Printf("\n=== Cache Statistics ===\n")
			fmt.Printf("Cache Hits:         %d\n", cacheStats.Hits)
			fmt.Printf("Cache Misses:       %d\n", cacheStats.Misses)
			fmt.Printf("Hit Rate:           %.1f%%\n", cacheStats.HitRate)
			fmt.Printf("Total Keys:         %d\n", cacheStats.TotalKeys)
			fmt.Printf("Memory Usage:       %.2f MB\n", float64(cacheStats.MemoryUsage)/1024/1024)
		}
	}

	return nil
}

func percentOf(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

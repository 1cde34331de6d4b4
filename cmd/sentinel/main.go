package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/moji-sentinel/internal/config"
	"github.com/raaihank/moji-sentinel/internal/logger"
	"github.com/raaihank/moji-sentinel/internal/mojibake"
	"github.com/raaihank/moji-sentinel/internal/report"
	"github.com/raaihank/moji-sentinel/internal/server"
	"github.com/raaihank/moji-sentinel/internal/textsource"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

// demoText is corrupted on purpose. Running the binary with no input checks
// this text, so the detector can be tried without preparing a file.
const demoText = `
        This text has mojibake: itâ€™s not displayed correctly.
        The companyâ€™s report shows â‚¬100 in revenue.
        Special chars: Ã© Ã¡ Ã± â€œquotesâ€ and â€" dashes.
        Normal text is fine, but Ã¢â‚¬â„¢ this isn't.
        `

func main() {
	// Parse command line flags
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
		serve       = flag.Bool("serve", false, "Run the detection API server")
		readStdin   = flag.Bool("stdin", false, "Check text piped on stdin")
		jsonOut     = flag.Bool("json", false, "Emit one JSON result per input instead of a report")
	)
	flag.Parse()

	// Show version and exit
	if *showVersion {
		fmt.Printf("Moji-Sentinel %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Perform health check and exit
	if *healthCheck {
		performHealthCheck(cfg)
		return
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

	if *serve {
		runServer(cfg, log)
		return
	}

	exitCode := runChecks(cfg, log, flag.Args(), *readStdin, *jsonOut)
	log.Sync()
	os.Exit(exitCode)
}

// runServer runs the HTTP detection service until a shutdown signal or a
// server error.
func runServer(cfg *config.Config, log *logger.Logger) {
	log.Info("Starting Moji-Sentinel",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	// Create detection server
	srv, err := server.New(cfg, log)
	if err != nil {
		log.Fatal("Failed to create detection server", zap.Error(err))
	}

	// Apply configuration file changes without a restart
	if err := config.Watch(log, func(newCfg *config.Config) {
		if err := srv.Reload(newCfg); err != nil {
			log.Error("Failed to apply reloaded configuration", zap.Error(err))
		}
	}); err != nil {
		log.Warn("Configuration watching unavailable", zap.Error(err))
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- srv.Start()
	}()

	// Setup graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrors:
		log.Error("Server error", zap.Error(err))
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			os.Exit(1)
		}

		log.Info("Server shutdown complete")
	}
}

// runChecks scans the given files, stdin, or the built-in demonstration
// text, and returns 1 when any input contained mojibake.
func runChecks(cfg *config.Config, log *logger.Logger, files []string, readStdin, jsonOut bool) int {
	detector, err := mojibake.New(cfg.Detector, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize detector: %v\n", err)
		return 1
	}

	exitCode := 0
	emit := func(source, text string) {
		result := detector.Detect(text)
		if result.HasMojibake {
			exitCode = 1
		}
		if jsonOut {
			printJSON(source, result)
			return
		}
		report.Write(os.Stdout, result)
	}

	switch {
	case readStdin:
		text, err := textsource.ReadAll(os.Stdin, 0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read stdin: %v\n", err)
			return 1
		}
		emit("stdin", text)

	case len(files) > 0:
		for _, path := range files {
			if !jsonOut {
				fmt.Printf("Checking file: %s\n", path)
			}
			text, err := textsource.ReadFile(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
				exitCode = 1
				continue
			}
			emit(path, text)
		}

	default:
		if !jsonOut {
			fmt.Println("Checking sample text...")
		}
		emit("sample", demoText)
	}

	return exitCode
}

// printJSON writes one JSON object per checked input, newline delimited.
func printJSON(source string, result *mojibake.DetectionResult) {
	out := struct {
		Source string `json:"source"`
		*mojibake.DetectionResult
	}{Source: source, DetectionResult: result}

	if err := json.NewEncoder(os.Stdout).Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode result: %v\n", err)
	}
}

// performHealthCheck performs a health check against the running server
func performHealthCheck(cfg *config.Config) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(healthCheckURL(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}

// healthCheckURL builds the health endpoint URL from the configured listen
// address. A wildcard bind address is reached through localhost.
func healthCheckURL(cfg *config.Config) string {
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s/health", net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port)))
}

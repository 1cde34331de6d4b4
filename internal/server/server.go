// Package server exposes the mojibake detector over HTTP, with optional
// Redis result caching, Postgres scan history, and a live event stream.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/moji-sentinel/internal/cache"
	"github.com/raaihank/moji-sentinel/internal/config"
	"github.com/raaihank/moji-sentinel/internal/logger"
	"github.com/raaihank/moji-sentinel/internal/mojibake"
	"github.com/raaihank/moji-sentinel/internal/store"
	"github.com/raaihank/moji-sentinel/internal/web"
	"github.com/raaihank/moji-sentinel/internal/websocket"
)

const (
	serviceName    = "moji-sentinel"
	serviceVersion = "0.1.0"
)

// Server represents the detection API server
type Server struct {
	cfg     *config.Config
	logger  *logger.Logger
	cache   *cache.ResultCache
	store   *store.ScanStore
	hub     *websocket.Hub
	limiter *rateLimiter
	router  *mux.Router
	server  *http.Server

	// mu guards detector, which is swapped on config reload.
	mu       sync.RWMutex
	detector *mojibake.Detector

	startTime time.Time
}

// New creates a new server instance. Subsystems that are enabled in the
// configuration must be reachable or New fails.
func New(cfg *config.Config, log *logger.Logger) (*Server, error) {
	detector, err := mojibake.New(cfg.Detector, log)
	if err != nil {
		return nil, fmt.Errorf("creating detector: %w", err)
	}

	var resultCache *cache.ResultCache
	if cfg.Cache.Enabled {
		resultCache, err = cache.New(cfg.Cache, log)
		if err != nil {
			return nil, fmt.Errorf("creating result cache: %w", err)
		}
	}

	var scanStore *store.ScanStore
	if cfg.Store.Enabled {
		scanStore, err = store.New(cfg.Store, log)
		if err != nil {
			return nil, fmt.Errorf("creating scan store: %w", err)
		}
	}

	var limiter *rateLimiter
	if cfg.Server.RateLimit.Enabled {
		limiter = newRateLimiter(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)
	}

	s := &Server{
		cfg:       cfg,
		logger:    log.WithComponent("server"),
		detector:  detector,
		cache:     resultCache,
		store:     scanStore,
		hub:       websocket.NewHub(cfg.WebSocket, log),
		limiter:   limiter,
		router:    mux.NewRouter(),
		startTime: time.Now(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")
	s.router.HandleFunc("/stats", s.handleStats).Methods("GET")

	// Dashboard
	s.router.HandleFunc("/", web.ServeDashboard).Methods("GET")
	s.router.HandleFunc("/dashboard", web.ServeDashboard).Methods("GET")

	if s.cfg.WebSocket.Enabled {
		s.router.HandleFunc(s.cfg.WebSocket.Path, s.hub.HandleWebSocket).Methods("GET")
	}

	// Detection API
	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)
	api.HandleFunc("/detect", s.handleDetect).Methods("POST")
}

// Start starts the HTTP server and the event hub. It blocks until the
// server stops.
func (s *Server) Start() error {
	detector := s.currentDetector()

	s.logger.Info("Starting detection server",
		zap.String("addr", s.server.Addr),
		zap.Int("patterns", detector.PatternCount()),
		zap.Int("rules", detector.RuleCount()),
		zap.Bool("cache", s.cache != nil),
		zap.Bool("store", s.store != nil))

	go s.hub.Run()

	return s.server.ListenAndServe()
}

// Reload applies a changed configuration to the running server. Only
// detector settings take effect without a restart.
func (s *Server) Reload(cfg *config.Config) error {
	detector, err := mojibake.New(cfg.Detector, s.logger)
	if err != nil {
		return fmt.Errorf("rebuilding detector: %w", err)
	}

	s.mu.Lock()
	s.detector = detector
	s.cfg.Detector = cfg.Detector
	s.mu.Unlock()

	s.logger.Info("Detector configuration reloaded",
		zap.Int("patterns", detector.PatternCount()),
		zap.Int("rules", detector.RuleCount()))

	return nil
}

// currentDetector returns the detector in use, which may have been
// swapped by Reload.
func (s *Server) currentDetector() *mojibake.Detector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detector
}

// Stop gracefully stops the HTTP server and closes subsystem connections.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping detection server")

	err := s.server.Shutdown(ctx)

	if s.cache != nil {
		if cerr := s.cache.Close(); cerr != nil {
			s.logger.Warn("Closing cache connection", zap.Error(cerr))
		}
	}
	if s.store != nil {
		if serr := s.store.Close(); serr != nil {
			s.logger.Warn("Closing store connection", zap.Error(serr))
		}
	}

	return err
}

// Hub returns the WebSocket hub for broadcasting events from other
// components, such as the corpus pipeline.
func (s *Server) Hub() *websocket.Hub {
	return s.hub
}

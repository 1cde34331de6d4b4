package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/moji-sentinel/internal/cache"
	"github.com/raaihank/moji-sentinel/internal/mojibake"
	"github.com/raaihank/moji-sentinel/internal/store"
	"github.com/raaihank/moji-sentinel/internal/textsource"
)

// DetectRequest is the JSON body accepted by POST /v1/detect.
type DetectRequest struct {
	Text string `json:"text"`
}

// DetectResponse wraps a detection result with request metadata.
type DetectResponse struct {
	*mojibake.DetectionResult
	RequestID    string  `json:"request_id,omitempty"`
	Cached       bool    `json:"cached"`
	ProcessingMS float64 `json:"processing_ms"`
}

// handleDetect scans the posted text. JSON bodies carry the text in a
// {"text": ...} envelope; any other content type is scanned as-is, with
// invalid UTF-8 decoded lossily so the detector sees the damage.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r.Context())
	log := s.logger.WithRequestID(requestID)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		log.Error("Failed to read request body", zap.Error(err))
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var text string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req DetectRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		text = req.Text
	} else {
		text = textsource.Decode(body)
	}

	start := time.Now()

	result, cached := s.lookupCached(r.Context(), text)
	if !cached {
		result = s.currentDetector().Detect(text)
		s.storeResult(text, result)
	}

	processingMS := float64(time.Since(start).Microseconds()) / 1000

	s.hub.BroadcastScan("api", requestID, result, processingMS)

	writeJSON(w, http.StatusOK, DetectResponse{
		DetectionResult: result,
		RequestID:       requestID,
		Cached:          cached,
		ProcessingMS:    processingMS,
	})
}

// lookupCached consults the result cache when one is configured.
func (s *Server) lookupCached(ctx context.Context, text string) (*mojibake.DetectionResult, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(ctx, text)
}

// storeResult caches and persists a fresh result. Both writes are best
// effort and never fail the request.
func (s *Server) storeResult(text string, result *mojibake.DetectionResult) {
	if s.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := s.cache.Set(ctx, text, result); err != nil {
			s.logger.Warn("Failed to cache result", zap.Error(err))
		}
		cancel()
	}

	if s.store != nil {
		rec := store.NewRecord("api", text, result)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.store.Insert(ctx, rec); err != nil {
				s.logger.Warn("Failed to persist scan record", zap.Error(err))
			}
		}()
	}
}

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// handleHealth reports liveness plus the state of optional subsystems.
// Degraded subsystems turn the response into a 503 so container health
// checks notice.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.cache != nil {
		if err := s.cache.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Checks["cache"] = err.Error()
		} else {
			resp.Checks["cache"] = "ok"
		}
	}
	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Checks["store"] = err.Error()
		} else {
			resp.Checks["store"] = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

type infoResponse struct {
	Name             string   `json:"name"`
	Version          string   `json:"version"`
	Patterns         int      `json:"patterns"`
	Rules            int      `json:"rules"`
	RuleNames        []string `json:"rule_names"`
	CacheEnabled     bool     `json:"cache_enabled"`
	StoreEnabled     bool     `json:"store_enabled"`
	WebSocketEnabled bool     `json:"websocket_enabled"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	detector := s.currentDetector()
	writeJSON(w, http.StatusOK, infoResponse{
		Name:             serviceName,
		Version:          serviceVersion,
		Patterns:         detector.PatternCount(),
		Rules:            detector.RuleCount(),
		RuleNames:        detector.RuleNames(),
		CacheEnabled:     s.cache != nil,
		StoreEnabled:     s.store != nil,
		WebSocketEnabled: s.cfg.WebSocket.Enabled,
	})
}

type statsResponse struct {
	UptimeSeconds float64           `json:"uptime_seconds"`
	Detector      detectorStats     `json:"detector"`
	Cache         *cache.Stats      `json:"cache,omitempty"`
	Store         *storeStats       `json:"store,omitempty"`
	WebSocket     websocketHubStats `json:"websocket"`
}

type detectorStats struct {
	Patterns int `json:"patterns"`
	Rules    int `json:"rules"`
}

type storeStats struct {
	*store.ScanStats
	Recent []*store.ScanRecord `json:"recent,omitempty"`
}

type websocketHubStats struct {
	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	TotalMessages     int64 `json:"total_messages"`
	TotalBroadcasts   int64 `json:"total_broadcasts"`
}

// handleStats aggregates statistics from the detector, cache, store, and
// event hub. Unreachable subsystems are logged and omitted.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	hubStats := s.hub.GetStats()
	detector := s.currentDetector()

	resp := statsResponse{
		UptimeSeconds: time.Since(s.startTime).Seconds(),
		Detector: detectorStats{
			Patterns: detector.PatternCount(),
			Rules:    detector.RuleCount(),
		},
		WebSocket: websocketHubStats{
			ActiveConnections: hubStats.ActiveConnections,
			TotalConnections:  hubStats.TotalConnections,
			TotalMessages:     hubStats.TotalMessages,
			TotalBroadcasts:   hubStats.TotalBroadcasts,
		},
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if s.cache != nil {
		if cs, err := s.cache.GetStats(ctx); err != nil {
			s.logger.Warn("Failed to collect cache stats", zap.Error(err))
		} else {
			resp.Cache = cs
		}
	}

	if s.store != nil {
		if ss, err := s.store.GetStats(ctx); err != nil {
			s.logger.Warn("Failed to collect store stats", zap.Error(err))
		} else {
			recent, err := s.store.RecentScans(ctx, 20)
			if err != nil {
				s.logger.Warn("Failed to list recent scans", zap.Error(err))
			}
			resp.Store = &storeStats{ScanStats: ss, Recent: recent}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

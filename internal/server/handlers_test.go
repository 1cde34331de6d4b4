package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/raaihank/moji-sentinel/internal/config"
	"github.com/raaihank/moji-sentinel/internal/logger"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()

	cfg := config.GetDefaults()
	cfg.Cache.Enabled = false
	cfg.Store.Enabled = false
	cfg.Server.RateLimit.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	srv, err := New(cfg, &logger.Logger{Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

func doRequest(srv *Server, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleDetect(t *testing.T) {
	srv := newTestServer(t, nil)

	t.Run("JSONBody", func(t *testing.T) {
		body, _ := json.Marshal(DetectRequest{Text: "itâ€™s broken"})
		rec := doRequest(srv, "POST", "/v1/detect", "application/json", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}

		var resp DetectResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if !resp.HasMojibake {
			t.Error("corrupted text not flagged")
		}
		if resp.Confidence != 35.0 {
			t.Errorf("Confidence = %v, want 35.0", resp.Confidence)
		}
		if resp.Cached {
			t.Error("fresh scan reported as cached")
		}
		if resp.RequestID == "" {
			t.Error("request ID missing from response")
		}
		if rec.Header().Get("X-Request-ID") == "" {
			t.Error("X-Request-ID header missing")
		}
	})

	t.Run("RawBody", func(t *testing.T) {
		rec := doRequest(srv, "POST", "/v1/detect", "text/plain", []byte("itâ€™s broken"))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}

		var resp DetectResponse
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if !resp.HasMojibake || resp.Confidence != 35.0 {
			t.Errorf("raw body verdict = %v/%v, want true/35.0", resp.HasMojibake, resp.Confidence)
		}
	})

	t.Run("RawBodyInvalidUTF8", func(t *testing.T) {
		rec := doRequest(srv, "POST", "/v1/detect", "application/octet-stream", []byte{0xff, 0xfe})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}

		var resp DetectResponse
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if !resp.HasMojibake {
			t.Error("undecodable bytes should surface as replacement-run mojibake")
		}
		found := false
		for _, issue := range resp.Issues {
			if strings.Contains(issue.Description, "data loss") {
				found = true
			}
		}
		if !found {
			t.Errorf("expected a replacement-character issue, got %+v", resp.Issues)
		}
	})

	t.Run("CleanText", func(t *testing.T) {
		body, _ := json.Marshal(DetectRequest{Text: "all quiet here"})
		rec := doRequest(srv, "POST", "/v1/detect", "application/json", body)

		var resp DetectResponse
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.HasMojibake || resp.Confidence != 0 {
			t.Errorf("clean text verdict = %v/%v", resp.HasMojibake, resp.Confidence)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		rec := doRequest(srv, "POST", "/v1/detect", "application/json", []byte("{"))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("BodyTooLarge", func(t *testing.T) {
		small := newTestServer(t, func(cfg *config.Config) {
			cfg.Server.MaxBodyBytes = 8
		})
		rec := doRequest(small, "POST", "/v1/detect", "text/plain", bytes.Repeat([]byte("a"), 64))
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("status = %d, want 413", rec.Code)
		}
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		rec := doRequest(srv, "GET", "/v1/detect", "", nil)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", rec.Code)
		}
	})
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(srv, "GET", "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("Status = %s, want healthy", resp.Status)
	}
}

func TestHandleInfo(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(srv, "GET", "/info", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp infoResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Name != "moji-sentinel" {
		t.Errorf("Name = %s", resp.Name)
	}
	if resp.Patterns != 48 || resp.Rules != 11 {
		t.Errorf("counts = %d/%d, want 48/11", resp.Patterns, resp.Rules)
	}
	if resp.CacheEnabled || resp.StoreEnabled {
		t.Error("disabled subsystems reported as enabled")
	}
}

func TestHandleStats(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(srv, "GET", "/stats", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if _, ok := resp["detector"]; !ok {
		t.Error("stats missing detector section")
	}
	if _, ok := resp["websocket"]; !ok {
		t.Error("stats missing websocket section")
	}
	if _, ok := resp["cache"]; ok {
		t.Error("stats should omit disabled cache")
	}
}

func TestHandleDashboard(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, path := range []string{"/", "/dashboard"} {
		rec := doRequest(srv, "GET", path, "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d", path, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("GET %s content type = %s", path, ct)
		}
		if !strings.Contains(rec.Body.String(), "Moji Sentinel") {
			t.Errorf("GET %s did not serve the dashboard", path)
		}
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.RateLimit.Enabled = true
		cfg.Server.RateLimit.RPS = 1
		cfg.Server.RateLimit.Burst = 2
	})

	body, _ := json.Marshal(DetectRequest{Text: "hello"})

	for i := 0; i < 2; i++ {
		rec := doRequest(srv, "POST", "/v1/detect", "application/json", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := doRequest(srv, "POST", "/v1/detect", "application/json", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("burst-exceeding request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After header")
	}

	// Unlimited endpoints stay reachable.
	if rec := doRequest(srv, "GET", "/health", "", nil); rec.Code != http.StatusOK {
		t.Errorf("health check rate limited: %d", rec.Code)
	}
}

func TestReload(t *testing.T) {
	srv := newTestServer(t, nil)

	before := srv.currentDetector().PatternCount()

	cfg := config.GetDefaults()
	cfg.Detector.ExtraPatterns = []config.PatternMapping{
		{Corrupted: "Ã¼Ã¼", Correct: "üü"},
	}
	if err := srv.Reload(cfg); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if got := srv.currentDetector().PatternCount(); got != before+1 {
		t.Errorf("pattern count after reload = %d, want %d", got, before+1)
	}

	rec := doRequest(srv, "GET", "/info", "", nil)
	var info infoResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decoding info: %v", err)
	}
	if info.Patterns != before+1 {
		t.Errorf("info patterns = %d, want %d", info.Patterns, before+1)
	}
}

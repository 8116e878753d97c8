package main

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bdsgp/internal/manager"
	"bdsgp/internal/middleware"
	"bdsgp/internal/store"
	"bdsgp/internal/upstream"
	"bdsgp/internal/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// initMinimalApp wires the global app against an in-memory store and an
// upstream client that is never called.
func initMinimalApp(t *testing.T) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := manager.DefaultConfig()
	logger := utils.NewWriterLogger(io.Discard)
	limiter := middleware.NewRateLimiter(rate.Every(time.Second), 100)
	t.Cleanup(limiter.Stop)
	app = &App{
		config:      cfg,
		manager:     manager.New(cfg, upstream.NewClient(cfg.Upstream, logger), db, logger),
		store:       db,
		logger:      logger,
		wsHub:       middleware.NewHub(logger),
		rateLimiter: limiter,
	}
}

func TestPublicEndpoints(t *testing.T) {
	initMinimalApp(t)
	r := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("/healthz expected 200, got %d", w.Code)
	}
	var health map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("/healthz invalid JSON: %v", err)
	}
	if health["status"] != "ok" {
		t.Fatalf("/healthz expected status=ok, got %#v", health)
	}

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/version", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("/version expected 200, got %d", w.Code)
	}
	var ver map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &ver); err != nil {
		t.Fatalf("/version invalid JSON: %v", err)
	}
	if _, ok := ver["version"]; !ok {
		t.Fatalf("/version missing 'version' field")
	}
}

func TestReadyzBeforeFirstRefresh(t *testing.T) {
	initMinimalApp(t)
	r := setupRouter()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/readyz", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("/readyz expected 503 before any refresh, got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("/readyz invalid JSON: %v", err)
	}
	if ready, ok := body["ready"].(bool); !ok || ready {
		t.Fatalf("/readyz expected ready=false, got %#v", body["ready"])
	}
}

func TestMOTDPreviewThroughRouter(t *testing.T) {
	initMinimalApp(t)
	r := setupRouter()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/motd/preview", bytes.NewBufferString(`{"text":"§lBold"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("preview expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("preview invalid JSON: %v", err)
	}
	if body["html"] != `<span style="font-weight: bold">Bold</span>` {
		t.Fatalf("unexpected html %v", body["html"])
	}
}

func TestCompressedHandler(t *testing.T) {
	payload := bytes.Repeat([]byte("§aBDSGP "), 512)
	h := compressed(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write(payload)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/servers", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip encoding, got %q", w.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	got, err := io.ReadAll(zr)
	if err != nil || !bytes.Equal(got, payload) {
		t.Fatalf("decompressed body mismatch (err=%v)", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Header().Get("Content-Encoding") != "" {
		t.Fatalf("websocket path must not be compressed")
	}
}

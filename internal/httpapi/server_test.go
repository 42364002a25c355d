package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/DimazzzZ/openrouter-proxy-core/internal/crypto"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/health"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/modelcache"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/settings"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/upstream"
)

func newTestRouter(t *testing.T, upstreamURL string) (*testEngine, *settings.Settings) {
	t.Helper()
	key, err := crypto.DeriveKey("test-machine-id")
	if err != nil {
		t.Fatalf("derive key: %v", err)
	}
	env := crypto.New(key, zap.NewNop())
	store, err := settings.OpenStore(filepath.Join(t.TempDir(), "settings.db"), env)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	s, err := settings.New(store, zap.NewNop())
	if err != nil {
		t.Fatalf("new settings: %v", err)
	}
	if err := s.SetApiKey("sk-or-v1-test"); err != nil {
		t.Fatalf("set api key: %v", err)
	}

	client := upstream.New(upstream.Config{BaseURL: upstreamURL}, zap.NewNop())
	cache := modelcache.New(client, zap.NewNop())
	tracker := health.NewTracker(3, 0)
	tracker.SetConfigured(true)

	router := NewRouter(Deps{
		Client:   client,
		Cache:    cache,
		Settings: s,
		Tracker:  tracker,
		Logger:   zap.NewNop(),
		Service:  "openrouter-proxy-core",
		Version:  "test",
	})
	return &testEngine{router}, s
}

type testEngine struct {
	router http.Handler
}

func (g *testEngine) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	g.router.ServeHTTP(rec, req)
	return rec
}

func TestChatCompletionsNonStreamingHappyPath(t *testing.T) {
	var upstreamHits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&upstreamHits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"gen-1","model":"openai/gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"OK"},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":1,"total_tokens":6}}`))
	}))
	defer srv.Close()

	router, _ := newTestRouter(t, srv.URL)

	body := `{"model":"openai/gpt-4o-mini","messages":[{"role":"user","content":"Say 'OK'"}],"stream":false,"max_tokens":5}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := router.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var decoded map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decoded["model"] != "openai/gpt-4o-mini" {
		t.Fatalf("expected model echoed, got %v", decoded["model"])
	}
	if atomic.LoadInt32(&upstreamHits) != 1 {
		t.Fatalf("expected exactly 1 upstream call, got %d", upstreamHits)
	}
}

func TestChatCompletionsStreamingExactlyOneUpstreamCall(t *testing.T) {
	var upstreamHits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&upstreamHits, 1)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		w.Write([]byte("data: {\"id\":\"gen-1\",\"choices\":[{\"delta\":{\"content\":\"OK\"}}]}\n\n"))
		flusher.Flush()
		w.Write([]byte("data: [DONE]\n\n"))
		flusher.Flush()
	}))
	defer srv.Close()

	router, _ := newTestRouter(t, srv.URL)

	body := `{"model":"openai/gpt-4o-mini","messages":[{"role":"user","content":"Say 'OK'"}],"stream":true}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := router.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", ct)
	}
	out := rec.Body.String()
	if !strings.Contains(out, "data: {") {
		t.Fatalf("expected at least one data event, got %q", out)
	}
	if strings.Count(out, "data: [DONE]") != 1 {
		t.Fatalf("expected exactly one terminal [DONE], got %q", out)
	}
	if atomic.LoadInt32(&upstreamHits) != 1 {
		t.Fatalf("expected exactly 1 upstream call, got %d", upstreamHits)
	}
}

func TestChatCompletionsRejectsMissingModel(t *testing.T) {
	router, _ := newTestRouter(t, "http://unused.invalid")

	body := `{"messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := router.do(req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var decoded map[string]any
	json.Unmarshal(rec.Body.Bytes(), &decoded)
	errObj, _ := decoded["error"].(map[string]any)
	if errObj["type"] != "invalid_request_error" {
		t.Fatalf("expected invalid_request_error, got %v", decoded)
	}
}

func TestChatCompletionsReturns401WhenNoApiKeyConfigured(t *testing.T) {
	router, s := newTestRouter(t, "http://unused.invalid")
	if err := s.SetApiKey(""); err != nil {
		t.Fatalf("clear api key: %v", err)
	}

	body := `{"model":"openai/gpt-4o-mini","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := router.do(req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, "http://unused.invalid")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := router.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var decoded map[string]any
	json.Unmarshal(rec.Body.Bytes(), &decoded)
	if decoded["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", decoded)
	}
}

func TestModelsEndpointUnprefixedAlias(t *testing.T) {
	router, _ := newTestRouter(t, "http://unused.invalid")

	req := httptest.NewRequest(http.MethodGet, "/models?mode=curated", nil)
	rec := router.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var decoded map[string]any
	json.Unmarshal(rec.Body.Bytes(), &decoded)
	if decoded["object"] != "list" {
		t.Fatalf("expected object=list, got %v", decoded)
	}
}

func TestRequestIDHeaderIsStamped(t *testing.T) {
	router, _ := newTestRouter(t, "http://unused.invalid")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := router.do(req)

	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected X-Request-Id header to be set")
	}
}

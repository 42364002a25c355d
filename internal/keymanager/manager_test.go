package keymanager

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/DimazzzZ/openrouter-proxy-core/internal/crypto"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/settings"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/upstream"
)

func newTestSettings(t *testing.T) *settings.Settings {
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
	if err := s.SetProvisioningKey("prov-key"); err != nil {
		t.Fatalf("set provisioning key: %v", err)
	}
	return s
}

func TestEnsureCreatesKeyWhenAbsent(t *testing.T) {
	var createHits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/keys":
			json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
		case r.Method == http.MethodPost && r.URL.Path == "/keys":
			atomic.AddInt32(&createHits, 1)
			json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{"hash": "h1", "name": "IDE Plugin Key"},
				"key":  "sk-or-v1-new",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := upstream.New(upstream.Config{BaseURL: srv.URL}, zap.NewNop())
	s := newTestSettings(t)
	m := New(client, s, zap.NewNop())

	result := m.Ensure(context.Background())
	if !result.Ok {
		t.Fatalf("expected Ensure to succeed, got %q", result.Message)
	}
	if result.Data != "sk-or-v1-new" {
		t.Fatalf("expected new key returned, got %q", result.Data)
	}
	if atomic.LoadInt32(&createHits) != 1 {
		t.Fatalf("expected exactly 1 create call, got %d", createHits)
	}
}

func TestEnsureIsSerializedUnderConcurrency(t *testing.T) {
	var createHits int32
	var created atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/keys":
			if created.Load() {
				json.NewEncoder(w).Encode(map[string]any{
					"data": []map[string]any{{"hash": "h1", "name": "IDE Plugin Key"}},
				})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
		case r.Method == http.MethodPost && r.URL.Path == "/keys":
			atomic.AddInt32(&createHits, 1)
			created.Store(true)
			json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{"hash": "h1", "name": "IDE Plugin Key"},
				"key":  "sk-or-v1-new",
			})
		}
	}))
	defer srv.Close()

	client := upstream.New(upstream.Config{BaseURL: srv.URL}, zap.NewNop())
	s := newTestSettings(t)
	m := New(client, s, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Ensure(context.Background())
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&createHits); got != 1 {
		t.Fatalf("expected a single POST /keys across concurrent Ensure calls, got %d", got)
	}
}

func TestValidateReportsStaleOn401(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid key"}`))
	}))
	defer srv.Close()

	client := upstream.New(upstream.Config{BaseURL: srv.URL}, zap.NewNop())
	s := newTestSettings(t)
	if err := s.SetApiKey("sk-or-v1-stale"); err != nil {
		t.Fatalf("set api key: %v", err)
	}
	m := New(client, s, zap.NewNop())

	result := m.Validate(context.Background())
	if result.Ok || result.StatusCode != 401 {
		t.Fatalf("expected 401 stale result, got ok=%v status=%d", result.Ok, result.StatusCode)
	}
}

package modelcache

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/DimazzzZ/openrouter-proxy-core/internal/upstream"
)

func newTestServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		time.Sleep(20 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"id": "openai/gpt-4o-mini", "name": "GPT-4o mini", "created": 1},
				{"id": "anthropic/claude-3.5-sonnet", "name": "Claude 3.5 Sonnet", "created": 2},
			},
		})
	}))
}

func newTestCache(t *testing.T, srv *httptest.Server) *Cache {
	t.Helper()
	client := upstream.New(upstream.Config{BaseURL: srv.URL}, zap.NewNop())
	return New(client, zap.NewNop())
}

func TestAllPopulatesFromUpstream(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)
	defer srv.Close()

	c := newTestCache(t, srv)
	models := c.All(context.Background())
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected 1 upstream hit, got %d", hits)
	}
}

func TestByProviderFiltersOnPrefix(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)
	defer srv.Close()

	c := newTestCache(t, srv)
	openai := c.ByProvider(context.Background(), "openai")
	if len(openai) != 1 || openai[0].ID != "openai/gpt-4o-mini" {
		t.Fatalf("unexpected provider filter result: %+v", openai)
	}
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)
	defer srv.Close()

	c := newTestCache(t, srv)
	found := c.Search(context.Background(), "CLAUDE")
	if len(found) != 1 {
		t.Fatalf("expected 1 match for case-insensitive search, got %d", len(found))
	}
}

func TestByIDNeverBlocks(t *testing.T) {
	c := newTestCache(t, httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Hour)
	})))
	if _, ok := c.ByID("openai/gpt-4o-mini"); ok {
		t.Fatal("expected uncached lookup to report false, not block")
	}
}

func TestConcurrentRefreshesAreSingleFlight(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)
	defer srv.Close()

	c := newTestCache(t, srv)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.All(context.Background())
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected exactly 1 upstream fetch for concurrent refreshes, got %d", got)
	}
}

func TestCuratedReturnsFixedList(t *testing.T) {
	c := newTestCache(t, httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	if len(c.Curated()) == 0 {
		t.Fatal("expected a non-empty curated list")
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)
	defer srv.Close()

	c := newTestCache(t, srv)
	c.All(context.Background())
	c.Invalidate()
	c.All(context.Background())

	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Fatalf("expected 2 fetches after invalidate, got %d", got)
	}
}

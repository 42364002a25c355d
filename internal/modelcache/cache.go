// Package modelcache holds a TTL-bounded, single-flight cache of
// OpenRouter's model catalog. It is a process-wide singleton owning its
// own mutex — never a package-level mutable variable — with curated,
// filtered, and search views layered on top of the raw list.
package modelcache

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DimazzzZ/openrouter-proxy-core/internal/domain/entity"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/upstream"
)

const defaultTTL = 15 * time.Minute
const firstPopulationTimeout = 30 * time.Second

// curatedIDs is the fixed short list shown when upstream is unreachable
// and as the default UI selector contents.
var curatedIDs = []string{
	"openai/gpt-4o-mini",
	"openai/gpt-4o",
	"anthropic/claude-3.5-sonnet",
	"google/gemini-2.0-flash-001",
	"meta-llama/llama-3.3-70b-instruct",
	"mistralai/mistral-large",
	"deepseek/deepseek-chat",
}

// Cache holds the last-fetched model list plus the machinery to keep it
// fresh: lazy TTL expiry on read, single-flight refresh, and explicit
// invalidation after key-provisioning events.
type Cache struct {
	client *upstream.Client
	logger *zap.Logger

	mu        sync.RWMutex
	models    []entity.ModelInfo
	byID      map[string]entity.ModelInfo
	fetchedAt time.Time

	refreshMu    sync.Mutex
	refreshDone  chan struct{}
	hadFirstData bool

	firstPopulated chan struct{}
	populatedOnce  sync.Once
}

// New builds an empty Cache bound to client.
func New(client *upstream.Client, logger *zap.Logger) *Cache {
	return &Cache{
		client:         client,
		logger:         logger,
		firstPopulated: make(chan struct{}),
	}
}

func (c *Cache) expired() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt.IsZero() || time.Since(c.fetchedAt) > defaultTTL
}

// All returns the full cached list, refreshing first if the TTL elapsed.
// Concurrent callers during a refresh share the single in-flight fetch: if
// a prior value already exists they get it immediately without waiting;
// otherwise (first population) they block on the same fetch the leader
// kicked off, up to the bounded first-population timeout.
func (c *Cache) All(ctx context.Context) []entity.ModelInfo {
	if c.expired() {
		c.refresh(ctx)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]entity.ModelInfo{}, c.models...)
}

// refresh performs a single-flight fetch: only one goroutine at a time
// actually calls upstream. Followers wait on refreshDone before returning
// so a caller observing an empty cache during the very first population
// doesn't read it out from under the leader.
func (c *Cache) refresh(ctx context.Context) {
	c.refreshMu.Lock()
	if c.refreshDone != nil {
		done := c.refreshDone
		hadFirstData := c.hadFirstData
		c.refreshMu.Unlock()
		if hadFirstData {
			return
		}
		select {
		case <-done:
		case <-ctx.Done():
		case <-time.After(firstPopulationTimeout):
		}
		return
	}
	done := make(chan struct{})
	c.refreshDone = done
	c.refreshMu.Unlock()

	defer func() {
		c.refreshMu.Lock()
		c.refreshDone = nil
		c.refreshMu.Unlock()
		close(done)
	}()

	result := c.client.ListModels(ctx)
	if !result.Ok {
		c.logger.Warn("modelcache: refresh failed, keeping stale value", zap.String("message", result.Message))
		return
	}

	c.mu.Lock()
	c.models = result.Data
	c.byID = make(map[string]entity.ModelInfo, len(result.Data))
	for _, m := range result.Data {
		c.byID[m.ID] = m
	}
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	c.refreshMu.Lock()
	c.hadFirstData = true
	c.refreshMu.Unlock()

	c.populatedOnce.Do(func() { close(c.firstPopulated) })
}

// WaitForFirstPopulation blocks until the first successful refresh
// completes or the bounded timeout elapses, whichever comes first.
func (c *Cache) WaitForFirstPopulation(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, firstPopulationTimeout)
	defer cancel()
	select {
	case <-c.firstPopulated:
	case <-ctx.Done():
	}
}

// Curated returns the fixed short list of popular models.
func (c *Cache) Curated() []string {
	return append([]string{}, curatedIDs...)
}

// ByProvider filters the cached list on the "<slug>/" id prefix.
func (c *Cache) ByProvider(ctx context.Context, slug string) []entity.ModelInfo {
	var out []entity.ModelInfo
	for _, m := range c.All(ctx) {
		if m.ProviderSlug() == slug {
			out = append(out, m)
		}
	}
	return out
}

// Search does a case-insensitive substring match on id and name.
func (c *Cache) Search(ctx context.Context, query string) []entity.ModelInfo {
	q := strings.ToLower(query)
	var out []entity.ModelInfo
	for _, m := range c.All(ctx) {
		if strings.Contains(strings.ToLower(m.ID), q) || strings.Contains(strings.ToLower(m.Name), q) {
			out = append(out, m)
		}
	}
	return out
}

// ByID is a point lookup against whatever is currently cached — it never
// blocks on a refresh. ok is false when the id is uncached (including
// when no fetch has happened yet).
func (c *Cache) ByID(id string) (entity.ModelInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.byID[id]
	return m, ok
}

// Invalidate forces the next All/refresh-driven call to re-fetch,
// regardless of TTL. Used after provisioning events that might affect
// which models this key can reach.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchedAt = time.Time{}
}

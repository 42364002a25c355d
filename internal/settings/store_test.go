package settings

import (
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/DimazzzZ/openrouter-proxy-core/internal/crypto"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	key, err := crypto.DeriveKey("test-machine-id")
	if err != nil {
		t.Fatalf("derive key: %v", err)
	}
	env := crypto.New(key, zap.NewNop())
	path := filepath.Join(t.TempDir(), "settings.db")
	store, err := OpenStore(path, env)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}

func TestSettingsDefaultsOnFirstRun(t *testing.T) {
	store := newTestStore(t)
	s, err := New(store, zap.NewNop())
	if err != nil {
		t.Fatalf("new settings: %v", err)
	}
	if s.ProxyPortRangeStart != 11434 || s.ProxyPortRangeEnd != 11534 {
		t.Fatalf("unexpected default port range: %d-%d", s.ProxyPortRangeStart, s.ProxyPortRangeEnd)
	}
}

func TestSettingsPersistAcrossReload(t *testing.T) {
	store := newTestStore(t)
	s, err := New(store, zap.NewNop())
	if err != nil {
		t.Fatalf("new settings: %v", err)
	}
	if err := s.SetApiKey("sk-or-v1-secret"); err != nil {
		t.Fatalf("set api key: %v", err)
	}
	if err := s.AddFavoriteModel("openai/gpt-4o-mini"); err != nil {
		t.Fatalf("add favorite: %v", err)
	}

	reloaded, err := New(store, zap.NewNop())
	if err != nil {
		t.Fatalf("reload settings: %v", err)
	}
	if reloaded.ApiKey != "sk-or-v1-secret" {
		t.Fatalf("expected api key to survive reload, got %q", reloaded.ApiKey)
	}
	if len(reloaded.FavoriteModels) != 1 || reloaded.FavoriteModels[0] != "openai/gpt-4o-mini" {
		t.Fatalf("expected favorite model to survive reload, got %v", reloaded.FavoriteModels)
	}
}

func TestSetProxyPortRangeRejectsInvalid(t *testing.T) {
	store := newTestStore(t)
	s, err := New(store, zap.NewNop())
	if err != nil {
		t.Fatalf("new settings: %v", err)
	}
	if err := s.SetProxyPortRange(9000, 1000); err == nil {
		t.Fatal("expected error for start > end")
	}
	if err := s.SetProxyPortRange(80, 9000); err == nil {
		t.Fatal("expected error for start below 1024")
	}
}

func TestOnChangeNotified(t *testing.T) {
	store := newTestStore(t)
	s, err := New(store, zap.NewNop())
	if err != nil {
		t.Fatalf("new settings: %v", err)
	}

	done := make(chan struct{}, 1)
	s.OnChange(func(*Settings) {
		select {
		case done <- struct{}{}:
		default:
		}
	})

	if err := s.MarkWelcomeSeen(); err != nil {
		t.Fatalf("mark welcome seen: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected change listener to fire")
	}
}

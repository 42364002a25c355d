// Package settings holds the process-wide persistent configuration: auth
// scope, the runtime/provisioning keys, favorite models, proxy port
// settings and the assorted UI-facing flags. Mutations go through typed
// setters that validate, persist write-through via the Store, and fan out
// a change notification — mirroring the teacher's panic-safe goroutine
// launch for that fan-out.
package settings

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/DimazzzZ/openrouter-proxy-core/pkg/safego"
)

// AuthScope selects whether the proxy uses a bare API key or a
// provisioning key capable of issuing/rotating runtime keys.
type AuthScope string

const (
	ScopeRegular  AuthScope = "REGULAR"
	ScopeExtended AuthScope = "EXTENDED"
)

// Settings is the in-memory, mutex-guarded view of the persisted document.
// Secrets (ApiKey, ProvisioningKey) are held here in plaintext; the Store
// is responsible for encrypting them before they touch disk.
type Settings struct {
	mu sync.RWMutex

	AuthScope             AuthScope
	ApiKey                string
	ProvisioningKey       string
	FavoriteModels        []string
	ProxyPort             int
	ProxyPortRangeStart   int
	ProxyPortRangeEnd     int
	ProxyAutoStart        bool
	AutoRefresh           bool
	RefreshInterval       int
	ShowCosts             bool
	TrackGenerations      bool
	MaxTrackedGenerations int
	DefaultMaxTokens      int
	HasSeenWelcome        bool
	HasCompletedSetup     bool
	LastSeenVersion       string

	store     *Store
	logger    *zap.Logger
	listeners []func(*Settings)
}

// New builds a Settings bound to store, applying store defaults and the
// document previously persisted there (if any).
func New(store *Store, logger *zap.Logger) (*Settings, error) {
	s := &Settings{
		ProxyPortRangeStart:   11434,
		ProxyPortRangeEnd:     11534,
		ProxyAutoStart:        true,
		AutoRefresh:           true,
		RefreshInterval:       900,
		MaxTrackedGenerations: 200,
		store:                 store,
		logger:                logger,
	}
	if err := store.Load(s); err != nil {
		return nil, err
	}
	return s, nil
}

// OnChange registers a listener invoked (on its own goroutine) after every
// successful mutation. Order across listeners is not guaranteed.
func (s *Settings) OnChange(fn func(*Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Settings) notify() {
	s.mu.RLock()
	listeners := append([]func(*Settings){}, s.listeners...)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn := fn
		safego.Go(s.logger, "settings-listener", func() { fn(s) })
	}
}

// mutate runs fn under the write lock, persists, then notifies. fn returns
// an error to abort the mutation before it is persisted.
func (s *Settings) mutate(fn func() error) error {
	s.mu.Lock()
	if err := fn(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	if err := s.store.Save(s); err != nil {
		return err
	}
	s.notify()
	return nil
}

// SetAuthScope switches between REGULAR and EXTENDED auth.
func (s *Settings) SetAuthScope(scope AuthScope) error {
	return s.mutate(func() error {
		if scope != ScopeRegular && scope != ScopeExtended {
			return errors.New("settings: invalid auth scope")
		}
		s.AuthScope = scope
		return nil
	})
}

// SetApiKey stores the runtime API key (plaintext in memory; encrypted by
// the store on persist).
func (s *Settings) SetApiKey(key string) error {
	return s.mutate(func() error {
		s.ApiKey = key
		return nil
	})
}

// SetProvisioningKey stores the long-lived provisioning key.
func (s *Settings) SetProvisioningKey(key string) error {
	return s.mutate(func() error {
		s.ProvisioningKey = key
		return nil
	})
}

// AddFavoriteModel appends id if not already present. A duplicate id leaves
// the list unchanged; a blank id is rejected with an error.
func (s *Settings) AddFavoriteModel(id string) error {
	return s.mutate(func() error {
		if id == "" {
			return errors.New("settings: favorite model id must not be blank")
		}
		for _, existing := range s.FavoriteModels {
			if existing == id {
				return nil
			}
		}
		s.FavoriteModels = append(s.FavoriteModels, id)
		return nil
	})
}

// RemoveFavoriteModel removes id if present.
func (s *Settings) RemoveFavoriteModel(id string) error {
	return s.mutate(func() error {
		out := s.FavoriteModels[:0]
		for _, existing := range s.FavoriteModels {
			if existing != id {
				out = append(out, existing)
			}
		}
		s.FavoriteModels = out
		return nil
	})
}

// SetProxyPortRange validates and stores the inclusive port bounds used
// for auto-allocation.
func (s *Settings) SetProxyPortRange(start, end int) error {
	return s.mutate(func() error {
		if start < 1024 || end > 65535 || start > end {
			return errors.New("settings: invalid proxy port range")
		}
		s.ProxyPortRangeStart = start
		s.ProxyPortRangeEnd = end
		return nil
	})
}

// SetProxyPort sets the fixed port (0 = auto-allocate within the range).
func (s *Settings) SetProxyPort(port int) error {
	return s.mutate(func() error {
		if port != 0 && (port < 1024 || port > 65535) {
			return errors.New("settings: proxy port out of range")
		}
		s.ProxyPort = port
		return nil
	})
}

// SetDefaultMaxTokens sets the fallback max_tokens applied when a client
// request omits it (0 = unset / do not apply).
func (s *Settings) SetDefaultMaxTokens(n int) error {
	return s.mutate(func() error {
		if n < 0 {
			return errors.New("settings: default max tokens must be >= 0")
		}
		s.DefaultMaxTokens = n
		return nil
	})
}

// MarkWelcomeSeen and MarkSetupComplete flip their respective one-way flags.
func (s *Settings) MarkWelcomeSeen() error {
	return s.mutate(func() error { s.HasSeenWelcome = true; return nil })
}

func (s *Settings) MarkSetupComplete(version string) error {
	return s.mutate(func() error {
		s.HasCompletedSetup = true
		s.LastSeenVersion = version
		return nil
	})
}

// Snapshot returns a read-locked copy of the fields needed by callers that
// must not hold the settings mutex while doing I/O.
type Snapshot struct {
	AuthScope           AuthScope
	ApiKey              string
	ProvisioningKey     string
	FavoriteModels      []string
	ProxyPort           int
	ProxyPortRangeStart int
	ProxyPortRangeEnd   int
	ProxyAutoStart      bool
	AutoRefresh         bool
	RefreshInterval     int
	DefaultMaxTokens    int
}

func (s *Settings) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		AuthScope:           s.AuthScope,
		ApiKey:              s.ApiKey,
		ProvisioningKey:     s.ProvisioningKey,
		FavoriteModels:      append([]string{}, s.FavoriteModels...),
		ProxyPort:           s.ProxyPort,
		ProxyPortRangeStart: s.ProxyPortRangeStart,
		ProxyPortRangeEnd:   s.ProxyPortRangeEnd,
		ProxyAutoStart:      s.ProxyAutoStart,
		AutoRefresh:         s.AutoRefresh,
		RefreshInterval:     s.RefreshInterval,
		DefaultMaxTokens:    s.DefaultMaxTokens,
	}
}

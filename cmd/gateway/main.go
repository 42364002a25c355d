package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DimazzzZ/openrouter-proxy-core/internal/config"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/crypto"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/health"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/httpapi"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/keymanager"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/logger"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/modelcache"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/proxy"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/settings"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/upstream"
)

const (
	appName    = "openrouter-proxy"
	appVersion = "0.1.0"
)

func main() {
	var forceProxyServer bool

	rootCmd := &cobra.Command{
		Use:   "gateway",
		Short: "openrouter-proxy-core — OpenAI-compatible proxy to OpenRouter",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(forceProxyServer)
		},
	}
	rootCmd.Flags().BoolVar(&forceProxyServer, "proxy-server", false,
		"start the proxy HTTP listener regardless of configured auto-start (test mode)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print the version and exit",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s v%s\n", appName, appVersion)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// run wires every collaborator named in spec.md §2 and drives the proxy's
// lifecycle until a shutdown signal arrives. Construction order matters:
// each stage depends only on what came before it, never on a
// package-level singleton.
func run(forceProxyServer bool) error {
	log, err := logger.New(logger.Config{Level: "info", Format: "console", OutputPath: "stdout"})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	if err := config.Bootstrap(log); err != nil {
		return fmt.Errorf("bootstrap config home: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Log.Level != "" || cfg.Log.Format != "" {
		if rebuilt, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, OutputPath: "stdout"}); err == nil {
			log = rebuilt
		}
	}
	log.Info("starting", zap.String("app", appName), zap.String("version", appVersion))

	machineKey, err := crypto.MachineKey(config.HomeDir())
	if err != nil {
		return fmt.Errorf("derive machine key: %w", err)
	}
	envelope := crypto.New(machineKey, log)

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = filepath.Join(config.HomeDir(), "proxy.db")
	}
	store, err := settings.OpenStore(dbPath, envelope)
	if err != nil {
		return fmt.Errorf("open settings store: %w", err)
	}
	defer store.Close()

	sett, err := settings.New(store, log)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	seedFromEnvironment(sett, log)

	client := upstream.New(upstream.Config{
		BaseURL:     cfg.OpenRouter.BaseURL,
		HTTPReferer: cfg.OpenRouter.HTTPReferer,
		XTitle:      cfg.OpenRouter.XTitle,
		Timeout:     time.Duration(cfg.OpenRouter.TimeoutSeconds) * time.Second,
	}, log)

	cache := modelcache.New(client, log)
	snap := sett.Snapshot()

	var refresher *modelcache.AutoRefresher
	if snap.AutoRefresh {
		refresher = modelcache.NewAutoRefresher(cache, log)
		if err := refresher.Start(snap.RefreshInterval); err != nil {
			log.Warn("modelcache: auto-refresh disabled", zap.Error(err))
			refresher = nil
		}
	}

	keys := keymanager.New(client, sett, log)
	tracker := health.NewTracker(3, 30*time.Second)
	tracker.SetConfigured(snap.ApiKey != "" || snap.ProvisioningKey != "")

	ensureRuntimeKey(context.Background(), keys, sett, tracker, log)

	watcher, err := config.NewWatcher(log)
	if err != nil {
		log.Warn("config: hot-reload disabled", zap.Error(err))
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Client:   client,
		Cache:    cache,
		Settings: sett,
		Tracker:  tracker,
		Logger:   log,
		Service:  appName,
		Version:  appVersion,
		Mode:     "production",
	})

	lifecycle := proxy.New(router, log)
	snap = sett.Snapshot()
	status := lifecycle.Start(context.Background(), snap.ProxyPort, snap.ProxyPortRangeStart, snap.ProxyPortRangeEnd, snap.ProxyAutoStart, forceProxyServer)
	switch {
	case status.Running:
		log.Info("proxy listening", zap.Int("port", status.Port), zap.String("url", status.URL))
	case status.Error != "":
		log.Error("proxy failed to start", zap.String("error", status.Error))
	default:
		log.Info("proxy auto-start disabled; waiting for explicit start")
	}

	if watcher != nil {
		stop := make(chan struct{})
		defer close(stop)
		go watcher.Run(stop, func(*config.Config) {
			log.Info("config changed on disk")
		})
	}

	waitForShutdown(log)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), proxy.ShutdownGrace)
	defer cancel()
	if err := lifecycle.Stop(shutdownCtx); err != nil {
		log.Error("error stopping proxy", zap.Error(err))
	}
	if refresher != nil {
		refresher.Stop()
	}
	log.Info("shutdown complete")
	return nil
}

// seedFromEnvironment applies OPENROUTER_API_KEY / OPENROUTER_PROVISIONING_KEY
// when present, per spec.md §6's E2E test-mode environment variables.
func seedFromEnvironment(sett *settings.Settings, log *zap.Logger) {
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		if err := sett.SetApiKey(key); err != nil {
			log.Warn("seeding OPENROUTER_API_KEY failed", zap.Error(err))
		}
	}
	if key := os.Getenv("OPENROUTER_PROVISIONING_KEY"); key != "" {
		if err := sett.SetProvisioningKey(key); err != nil {
			log.Warn("seeding OPENROUTER_PROVISIONING_KEY failed", zap.Error(err))
		}
		if err := sett.SetAuthScope(settings.ScopeExtended); err != nil {
			log.Warn("setting extended auth scope failed", zap.Error(err))
		}
	}
}

// ensureRuntimeKey performs the startup key validation/regeneration
// spec.md §4.E implies: adopt or create a managed key when a provisioning
// key is configured, validate a bare runtime key otherwise, so the first
// accepted request already has a usable key.
func ensureRuntimeKey(ctx context.Context, keys *keymanager.Manager, sett *settings.Settings, tracker *health.Tracker, log *zap.Logger) {
	snap := sett.Snapshot()

	if snap.ProvisioningKey != "" {
		result := keys.Ensure(ctx)
		if !result.Ok {
			tracker.RecordFailure()
			log.Warn("keymanager: ensure failed at startup", zap.String("message", result.Message))
			return
		}
		validateAndRegenerate(ctx, keys, tracker, log)
		return
	}

	if snap.ApiKey == "" {
		return
	}
	validateAndRegenerate(ctx, keys, tracker, log)
}

// validateAndRegenerate probes the persisted runtime key and, on a 401,
// regenerates it once before the proxy accepts its first request — the
// "deleted and recreated on 401 at startup" transition spec.md §3 names
// for the runtime key's lifecycle.
func validateAndRegenerate(ctx context.Context, keys *keymanager.Manager, tracker *health.Tracker, log *zap.Logger) {
	result := keys.Validate(ctx)
	if result.Ok {
		tracker.RecordSuccess()
		return
	}
	if result.StatusCode != 401 {
		tracker.RecordFailure()
		log.Warn("keymanager: runtime key validation failed", zap.String("message", result.Message))
		return
	}

	log.Warn("keymanager: runtime key stale at startup, regenerating")
	regen := keys.Regenerate(ctx)
	if !regen.Ok {
		tracker.RecordFailure()
		log.Error("keymanager: regeneration failed at startup", zap.String("message", regen.Message))
		return
	}
	tracker.RecordSuccess()
}

// waitForShutdown blocks until SIGINT/SIGTERM arrives.
func waitForShutdown(log *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("received shutdown signal", zap.String("signal", sig.String()))
}

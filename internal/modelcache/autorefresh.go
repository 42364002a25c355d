package modelcache

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// AutoRefresher periodically invalidates and repopulates a Cache on a
// cron schedule, skipping a tick if the previous one is still running
// rather than letting ticks pile up.
type AutoRefresher struct {
	cache    *Cache
	logger   *zap.Logger
	cron     *cron.Cron
	running  bool
	cancelFn context.CancelFunc
}

// NewAutoRefresher builds an AutoRefresher bound to cache.
func NewAutoRefresher(cache *Cache, logger *zap.Logger) *AutoRefresher {
	return &AutoRefresher{cache: cache, logger: logger}
}

// Start schedules a refresh every intervalSeconds. A refresh still in
// progress when the next tick fires causes that tick to be skipped and
// logged, never queued.
func (a *AutoRefresher) Start(intervalSeconds int) error {
	if intervalSeconds <= 0 {
		return fmt.Errorf("modelcache: refresh interval must be positive, got %d", intervalSeconds)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancelFn = cancel

	a.cron = cron.New()
	spec := fmt.Sprintf("@every %ds", intervalSeconds)

	_, err := a.cron.AddFunc(spec, func() {
		if a.running {
			a.logger.Debug("modelcache: previous refresh still running, skipping tick")
			return
		}
		a.running = true
		defer func() { a.running = false }()

		start := time.Now()
		a.cache.Invalidate()
		a.cache.refresh(ctx)
		a.logger.Debug("modelcache: periodic refresh complete", zap.Duration("took", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("modelcache: invalid refresh schedule: %w", err)
	}

	a.cron.Start()
	return nil
}

// Stop halts the scheduler and cancels any in-flight refresh.
func (a *AutoRefresher) Stop() {
	if a.cron != nil {
		a.cron.Stop()
	}
	if a.cancelFn != nil {
		a.cancelFn()
	}
}

// Package proxy owns the HTTP listener's bind/start/stop lifecycle: port
// negotiation within a configured range, idempotent start/stop/restart, and
// a bounded graceful-shutdown grace period. Grounded on the teacher's
// interfaces/http.Server Start/Stop shape, generalized from a fixed
// host:port to spec.md §4.J's scan-on-zero-port negotiation.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DimazzzZ/openrouter-proxy-core/pkg/safego"
)

// ShutdownGrace is the bounded wait for in-flight requests (including
// streaming relays) to finish before the listener is hard-closed.
const ShutdownGrace = 10 * time.Second

// Status is the lifecycle's externally observable state, per spec.md §4.J
// step 2.
type Status struct {
	Running bool
	Port    int
	URL     string
	Error   string
}

// Lifecycle manages a single *http.Server bound to a port chosen from a
// configured range. It is safe for concurrent use; start/stop/restart are
// idempotent per spec.md §4.J.
type Lifecycle struct {
	mu      sync.Mutex
	handler http.Handler
	logger  *zap.Logger

	server  *http.Server
	running bool
	port    int
	lastErr error
}

// New builds a Lifecycle that serves handler once started.
func New(handler http.Handler, logger *zap.Logger) *Lifecycle {
	return &Lifecycle{handler: handler, logger: logger}
}

// Start binds and serves per spec.md §4.J steps 1-4. If configured is false
// and force is false, Start is a no-op (mirrors the host's
// proxyAutoStart-off case). Calling Start while already running is a no-op
// returning the current Status.
func (l *Lifecycle) Start(ctx context.Context, port, rangeStart, rangeEnd int, configured, force bool) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return l.statusLocked()
	}
	if !configured && !force {
		return l.statusLocked()
	}

	listener, boundPort, err := bind(port, rangeStart, rangeEnd)
	if err != nil {
		l.lastErr = err
		l.logger.Error("proxy: bind failed", zap.Error(err))
		return l.statusLocked()
	}

	server := &http.Server{Handler: l.handler}
	l.server = server
	l.port = boundPort
	l.running = true
	l.lastErr = nil

	l.logger.Info("proxy: listening", zap.Int("port", boundPort))
	safego.Go(l.logger, "proxy-listener", func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.logger.Error("proxy: serve error", zap.Error(err))
		}
	})

	return l.statusLocked()
}

// ForceStart bypasses the configured-check, per spec.md §4.J's "forceStart"
// operation. It is equivalent to Start with force=true, which is how the
// --proxy-server test-mode flag starts the listener.
func (l *Lifecycle) ForceStart(ctx context.Context, port, rangeStart, rangeEnd int) Status {
	return l.Start(ctx, port, rangeStart, rangeEnd, true, true)
}

// Stop shuts the server down gracefully within ShutdownGrace, then hard-
// closes. Calling Stop while not running is a no-op.
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.mu.Lock()
	server := l.server
	running := l.running
	l.mu.Unlock()

	if !running || server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, ShutdownGrace)
	defer cancel()

	err := server.Shutdown(shutdownCtx)
	if err != nil {
		l.logger.Warn("proxy: graceful shutdown exceeded grace period, closing", zap.Error(err))
		_ = server.Close()
	}

	l.mu.Lock()
	l.running = false
	l.server = nil
	l.mu.Unlock()

	return nil
}

// Restart stops (if running) and starts again with the same parameters.
func (l *Lifecycle) Restart(ctx context.Context, port, rangeStart, rangeEnd int, configured, force bool) Status {
	_ = l.Stop(ctx)
	return l.Start(ctx, port, rangeStart, rangeEnd, configured, force)
}

// Status reports the current lifecycle state.
func (l *Lifecycle) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.statusLocked()
}

func (l *Lifecycle) statusLocked() Status {
	st := Status{Running: l.running, Port: l.port}
	if l.running {
		st.URL = fmt.Sprintf("http://127.0.0.1:%d", l.port)
	}
	if l.lastErr != nil {
		st.Error = l.lastErr.Error()
	}
	return st
}

// bind attempts port first (if non-zero), else scans [rangeStart, rangeEnd]
// ascending for the first free port, per spec.md §4.J step 1.
func bind(port, rangeStart, rangeEnd int) (net.Listener, int, error) {
	if port != 0 {
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			return nil, 0, fmt.Errorf("proxy: configured port %d unavailable: %w", port, err)
		}
		return ln, port, nil
	}

	for p := rangeStart; p <= rangeEnd; p++ {
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", p))
		if err == nil {
			return ln, p, nil
		}
	}
	return nil, 0, fmt.Errorf("proxy: no free port in range [%d, %d]", rangeStart, rangeEnd)
}

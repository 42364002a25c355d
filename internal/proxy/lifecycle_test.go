package proxy

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"

	"go.uber.org/zap"
)

func TestStartIsIdempotent(t *testing.T) {
	l := New(http.NewServeMux(), zap.NewNop())

	first := l.Start(context.Background(), 0, 20000, 20010, true, false)
	if !first.Running {
		t.Fatalf("expected running after first start, got %+v", first)
	}
	second := l.Start(context.Background(), 0, 20000, 20010, true, false)
	if second.Port != first.Port {
		t.Fatalf("expected second start to be a no-op on the same port, got %+v vs %+v", first, second)
	}

	if err := l.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestStartSkippedWhenNotConfiguredAndNotForced(t *testing.T) {
	l := New(http.NewServeMux(), zap.NewNop())

	st := l.Start(context.Background(), 0, 20100, 20110, false, false)
	if st.Running {
		t.Fatalf("expected Start to no-op when unconfigured and not forced, got %+v", st)
	}
}

func TestForceStartBypassesConfiguredCheck(t *testing.T) {
	l := New(http.NewServeMux(), zap.NewNop())

	st := l.ForceStart(context.Background(), 0, 20200, 20210)
	if !st.Running {
		t.Fatalf("expected ForceStart to run regardless of configured flag, got %+v", st)
	}
	if err := l.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	l := New(http.NewServeMux(), zap.NewNop())
	l.Start(context.Background(), 0, 20300, 20310, true, false)

	if err := l.Stop(context.Background()); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if err := l.Stop(context.Background()); err != nil {
		t.Fatalf("second stop should be a no-op, got: %v", err)
	}
}

// TestPortRangeScanLandsOnFirstFreePort mirrors spec.md §8 scenario 6:
// pre-bind the first two ports in a three-port range and expect the
// lifecycle to land on the third.
func TestPortRangeScanLandsOnFirstFreePort(t *testing.T) {
	const start, end = 20400, 20402

	held := make([]net.Listener, 0, 2)
	for _, p := range []int{start, start + 1} {
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", p))
		if err != nil {
			t.Fatalf("pre-bind port %d: %v", p, err)
		}
		held = append(held, ln)
	}
	defer func() {
		for _, ln := range held {
			ln.Close()
		}
	}()

	l := New(http.NewServeMux(), zap.NewNop())
	st := l.Start(context.Background(), 0, start, end, true, false)
	defer l.Stop(context.Background())

	if !st.Running {
		t.Fatalf("expected lifecycle to start, got %+v", st)
	}
	if st.Port != end {
		t.Fatalf("expected port %d (first free in range), got %d", end, st.Port)
	}
}

func TestBindFailureReportsErrorStatusWithoutRetry(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:20500")
	if err != nil {
		t.Fatalf("pre-bind: %v", err)
	}
	defer ln.Close()

	l := New(http.NewServeMux(), zap.NewNop())
	st := l.Start(context.Background(), 20500, 0, 0, true, false)

	if st.Running {
		t.Fatal("expected Start to fail when the configured port is already bound")
	}
	if st.Error == "" {
		t.Fatal("expected a diagnostic error on bind failure")
	}
}

package health

import (
	"testing"
	"time"

	"github.com/DimazzzZ/openrouter-proxy-core/internal/domain/entity"
)

func TestStatusNotConfiguredWhenNoKey(t *testing.T) {
	tr := NewTracker(3, time.Minute)
	if got := tr.Status(); got != entity.StatusNotConfigured {
		t.Fatalf("expected NOT_CONFIGURED, got %s", got)
	}
}

func TestStatusReadyAfterSuccess(t *testing.T) {
	tr := NewTracker(3, time.Minute)
	tr.SetConfigured(true)
	tr.RecordSuccess()
	if got := tr.Status(); got != entity.StatusReady {
		t.Fatalf("expected READY, got %s", got)
	}
}

func TestStatusErrorAfterThresholdFailures(t *testing.T) {
	tr := NewTracker(2, time.Minute)
	tr.SetConfigured(true)
	tr.RecordFailure()
	tr.RecordFailure()
	if got := tr.Status(); got != entity.StatusError {
		t.Fatalf("expected ERROR after tripping, got %s", got)
	}
	if tr.Allow() {
		t.Fatal("expected Allow to reject while within cooldown")
	}
}

func TestRecoveryProbeAfterCooldown(t *testing.T) {
	tr := NewTracker(1, 10*time.Millisecond)
	tr.SetConfigured(true)
	tr.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	if !tr.Allow() {
		t.Fatal("expected Allow to permit a recovery probe after cooldown")
	}
	if got := tr.Status(); got != entity.StatusConnecting {
		t.Fatalf("expected CONNECTING during probe, got %s", got)
	}
}

package health

import "github.com/DimazzzZ/openrouter-proxy-core/internal/domain/entity"

// Status derives the ConnectionStatus driving the UI/health endpoint from
// the tracker's internal state.
func (t *Tracker) Status() entity.ConnectionStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.configured {
		return entity.StatusNotConfigured
	}
	switch t.state {
	case stateHealthy:
		return entity.StatusReady
	case stateProbing:
		return entity.StatusConnecting
	case stateDown:
		return entity.StatusError
	default:
		return entity.StatusOffline
	}
}

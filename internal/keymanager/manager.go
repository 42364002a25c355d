// Package keymanager owns the lifecycle of the "managed" OpenRouter API
// key this proxy creates on the user's behalf: Absent -> Active -> Stale
// -> regenerate -> Active. Every transition is serialized by a
// process-wide mutex so concurrent Ensure/Regenerate/Revoke calls never
// race each other into issuing two keys.
package keymanager

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/DimazzzZ/openrouter-proxy-core/internal/domain/entity"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/settings"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/upstream"
)

// Manager serializes all state transitions for the managed key.
type Manager struct {
	client   *upstream.Client
	settings *settings.Settings
	logger   *zap.Logger

	mu          sync.Mutex
	managedHash string
}

// New builds a Manager bound to settings and an upstream client.
func New(client *upstream.Client, s *settings.Settings, logger *zap.Logger) *Manager {
	return &Manager{client: client, settings: s, logger: logger}
}

// Ensure adopts the existing managed-name key if one is listed upstream
// and its plaintext is already persisted, or creates a new one when
// neither exists. Concurrent callers observe a single effective POST
// /keys.
func (m *Manager) Ensure(ctx context.Context) entity.ApiResult[string] {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.settings.Snapshot()
	if snap.ProvisioningKey == "" {
		return entity.Failure[string]("no provisioning key configured", 401, nil)
	}

	listResult := m.client.ListKeys(ctx, snap.ProvisioningKey)
	if !listResult.Ok {
		return entity.Failure[string](listResult.Message, listResult.StatusCode, listResult.Cause)
	}

	for _, rec := range listResult.Data {
		if rec.Name == entity.ManagedKeyName && !rec.Disabled {
			m.managedHash = rec.Hash
			if snap.ApiKey != "" {
				m.logger.Debug("keymanager: adopted existing managed key")
				return entity.Success(snap.ApiKey, 200)
			}
			m.logger.Warn("keymanager: managed key record exists but plaintext is not persisted; creating a replacement")
			break
		}
	}

	return m.create(ctx, snap.ProvisioningKey)
}

func (m *Manager) create(ctx context.Context, provisioningKey string) entity.ApiResult[string] {
	createResult := m.client.CreateKey(ctx, provisioningKey, entity.ManagedKeyName, nil)
	if !createResult.Ok {
		return entity.Failure[string](createResult.Message, createResult.StatusCode, createResult.Cause)
	}

	m.managedHash = createResult.Data.Data.Hash
	if err := m.settings.SetApiKey(createResult.Data.Key); err != nil {
		return entity.Failure[string]("persisting new managed key: "+err.Error(), 500, err)
	}
	return entity.Success(createResult.Data.Key, createResult.StatusCode)
}

// Validate probes the persisted runtime key against GET /key. A 401 is
// returned as a "runtime key is stale" failure with status 401 (the caller
// is expected to call Regenerate next); the manager itself keeps no stale
// flag. Any other failure is reported as-is.
func (m *Manager) Validate(ctx context.Context) entity.ApiResult[bool] {
	m.mu.Lock()
	defer m.mu.Unlock()

	apiKey := m.settings.Snapshot().ApiKey
	if apiKey == "" {
		return entity.Failure[bool]("no runtime API key configured", 401, nil)
	}

	result := m.client.CurrentKeyInfo(ctx, apiKey)
	if result.Ok {
		return entity.Success(true, result.StatusCode)
	}
	if result.StatusCode == 401 {
		return entity.Failure[bool]("runtime key is stale", 401, result.Cause)
	}
	return entity.Failure[bool](result.Message, result.StatusCode, result.Cause)
}

// Regenerate deletes the stale managed key (best effort) and issues a
// fresh one, persisting its plaintext and updating settings.
func (m *Manager) Regenerate(ctx context.Context) entity.ApiResult[string] {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.settings.Snapshot()
	if snap.ProvisioningKey == "" {
		return entity.Failure[string]("no provisioning key configured", 401, nil)
	}

	if m.managedHash != "" {
		if del := m.client.DeleteKey(ctx, snap.ProvisioningKey, m.managedHash); !del.Ok {
			m.logger.Warn("keymanager: best-effort delete of stale key failed", zap.String("message", del.Message))
		}
		m.managedHash = ""
	}

	return m.create(ctx, snap.ProvisioningKey)
}

// Revoke deletes the managed key upstream and clears the persisted
// plaintext.
func (m *Manager) Revoke(ctx context.Context) entity.ApiResult[bool] {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.settings.Snapshot()
	if m.managedHash != "" && snap.ProvisioningKey != "" {
		if del := m.client.DeleteKey(ctx, snap.ProvisioningKey, m.managedHash); !del.Ok {
			return entity.Failure[bool](del.Message, del.StatusCode, del.Cause)
		}
		m.managedHash = ""
	}

	if err := m.settings.SetApiKey(""); err != nil {
		return entity.Failure[bool]("clearing persisted key: "+err.Error(), 500, err)
	}
	return entity.Success(true, 200)
}

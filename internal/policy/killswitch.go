package policy

import (
	"context"
	"errors"
	"time"

	"controlplane/internal/models"
	"controlplane/internal/storage"
)

// Switches exposes the global operational switches consulted before
// any tenant-level check.
type Switches interface {
	GlobalKillSwitch(ctx context.Context) (bool, error)
}

// SettingsSource reads system settings by key.
type SettingsSource interface {
	Get(ctx context.Context, key string) (models.JSONB, error)
}

// CachedSwitches reads the global kill switch through a short TTL
// cache, so flipping the system_settings row takes effect within one
// TTL without a database read per request.
type CachedSwitches struct {
	source SettingsSource
	cache  *storage.LRUCache
}

// NewCachedSwitches creates a cached kill-switch accessor.
func NewCachedSwitches(source SettingsSource, ttl time.Duration) *CachedSwitches {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedSwitches{
		source: source,
		cache:  storage.NewLRUCache(4, ttl),
	}
}

// GlobalKillSwitch reports whether all runtime execution is disabled.
// A missing setting row means the switch is off.
func (s *CachedSwitches) GlobalKillSwitch(ctx context.Context) (bool, error) {
	if cached, ok := s.cache.Get(models.SettingGlobalKillSwitch); ok {
		return cached.(bool), nil
	}

	value, err := s.source.Get(ctx, models.SettingGlobalKillSwitch)
	if errors.Is(err, storage.ErrSettingNotFound) {
		s.cache.Set(models.SettingGlobalKillSwitch, false)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	enabled, _ := value["enabled"].(bool)
	s.cache.Set(models.SettingGlobalKillSwitch, enabled)
	return enabled, nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"controlplane/internal/models"
)

// SettingsRepository reads the system_settings key/value table
type SettingsRepository struct {
	db *DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get retrieves a setting value by key
func (r *SettingsRepository) Get(ctx context.Context, key string) (models.JSONB, error) {
	var setting models.Setting
	query := `SELECT key, value, updated_at FROM system_settings WHERE key = $1`

	err := r.db.conn.GetContext(ctx, &setting, query, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSettingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting: %w", err)
	}

	return setting.Value, nil
}

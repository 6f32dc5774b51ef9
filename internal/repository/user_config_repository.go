package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rpattn/productadmin/internal/criteria"
	"github.com/rpattn/productadmin/internal/db"
	"github.com/rpattn/productadmin/internal/domain"
)

type userConfigRepository struct {
	db db.DBTX
}

// NewUserConfigRepository creates a user config repository
func NewUserConfigRepository(exec db.DBTX) UserConfigRepository {
	return &userConfigRepository{db: exec}
}

func (r *userConfigRepository) Search(ctx context.Context, apiCtx domain.APIContext, crit criteria.Criteria) (SearchResult[domain.UserConfig], error) {
	return runSearch(ctx, r.db, userConfigSchema, apiCtx, crit, func(row pgx.Row) (domain.UserConfig, error) {
		var (
			cfg       domain.UserConfig
			valueJSON []byte
		)
		if err := row.Scan(&cfg.ID, &cfg.UserID, &cfg.Key, &valueJSON); err != nil {
			return cfg, err
		}
		if err := decodeJSON(valueJSON, &cfg.Value); err != nil {
			return cfg, fmt.Errorf("decode user config value: %w", err)
		}
		return cfg, nil
	})
}

// Save upserts the config keyed by user and key.
func (r *userConfigRepository) Save(ctx context.Context, apiCtx domain.APIContext, cfg domain.UserConfig) error {
	valueJSON, err := json.Marshal(cfg.Value)
	if err != nil {
		return fmt.Errorf("failed to marshal user config value: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO user_config (id, user_id, key, value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		cfg.ID, cfg.UserID, cfg.Key, valueJSON)
	if err != nil {
		return fmt.Errorf("failed to save user config %s: %w", cfg.Key, err)
	}
	return nil
}

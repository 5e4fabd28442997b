package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
)

// SettingsStore persists the single global settings row. The quota counter
// lives on the same row so call-count and reset-date update atomically.
type SettingsStore struct {
	db dbConn
}

// NewSettingsStore creates a Postgres-backed SettingsStore.
func NewSettingsStore(db dbConn) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns the settings row.
func (s *SettingsStore) Get(ctx context.Context) (leads.Settings, error) {
	var (
		settings leads.Settings
		provider string
		level    string
	)
	err := s.db.QueryRow(ctx, `
SELECT default_provider, concurrency_limit, default_max_results, default_max_pages,
default_fields_level, places_api_key, places_daily_limit, quota_calls_today, quota_last_reset
FROM settings WHERE id = 1`).Scan(
		&provider, &settings.ConcurrencyLimit, &settings.DefaultMaxResults,
		&settings.DefaultMaxPages, &level, &settings.PlacesAPIKey,
		&settings.PlacesDailyLimit, &settings.Quota.CallsToday, &settings.Quota.LastReset,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return leads.Settings{}, leads.ErrNotFound
	}
	if err != nil {
		return leads.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	settings.DefaultProvider = leads.ProviderType(provider)
	settings.DefaultFieldsLevel = leads.FieldsLevel(level)
	return settings, nil
}

// Update replaces the settings row.
func (s *SettingsStore) Update(ctx context.Context, settings leads.Settings) error {
	_, err := s.db.Exec(ctx, `
UPDATE settings SET default_provider = $1, concurrency_limit = $2, default_max_results = $3,
default_max_pages = $4, default_fields_level = $5, places_api_key = $6, places_daily_limit = $7,
quota_calls_today = $8, quota_last_reset = $9
WHERE id = 1`,
		string(settings.DefaultProvider), settings.ConcurrencyLimit, settings.DefaultMaxResults,
		settings.DefaultMaxPages, string(settings.DefaultFieldsLevel), settings.PlacesAPIKey,
		settings.PlacesDailyLimit, settings.Quota.CallsToday, settings.Quota.LastReset,
	)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}

// UpdateQuota persists call-count and reset-date in one statement.
func (s *SettingsStore) UpdateQuota(ctx context.Context, q leads.QuotaCounter) error {
	_, err := s.db.Exec(ctx, `
UPDATE settings SET quota_calls_today = $1, quota_last_reset = $2 WHERE id = 1`,
		q.CallsToday, q.LastReset,
	)
	if err != nil {
		return fmt.Errorf("update quota: %w", err)
	}
	return nil
}

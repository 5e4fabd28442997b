package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
)

func errNoRows() error {
	return pgx.ErrNoRows
}

func TestSettingsStoreGet(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store := NewSettingsStore(mock)

	rows := pgxmock.NewRows([]string{
		"default_provider", "concurrency_limit", "default_max_results", "default_max_pages",
		"default_fields_level", "places_api_key", "places_daily_limit", "quota_calls_today", "quota_last_reset",
	}).AddRow("places", 2, 20, 1, "basic", "key-123", 50, 7, "2026-08-31")
	mock.ExpectQuery(`FROM settings WHERE id = 1`).WillReturnRows(rows)

	settings, err := store.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, leads.ProviderPlaces, settings.DefaultProvider)
	require.Equal(t, leads.FieldsBasic, settings.DefaultFieldsLevel)
	require.Equal(t, 7, settings.Quota.CallsToday)
	require.Equal(t, "2026-08-31", settings.Quota.LastReset)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsStoreUpdateQuota(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store := NewSettingsStore(mock)

	mock.ExpectExec(`UPDATE settings SET quota_calls_today`).
		WithArgs(12, "2026-08-31").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = store.UpdateQuota(context.Background(), leads.QuotaCounter{CallsToday: 12, LastReset: "2026-08-31"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

package memory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
)

func TestScheduleStore_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewScheduleStore()
	sched := leads.Schedule{
		ID:        "s1",
		Name:      "nightly plumbers",
		Kind:      leads.ScheduleRecurring,
		CronExpr:  "0 3 * * *",
		Active:    true,
		Queries:   []string{"plumbers in austin"},
		Provider:  leads.ProviderBrowser,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateSchedule(ctx, sched))
	require.Error(t, store.CreateSchedule(ctx, sched))

	require.NoError(t, store.SetActive(ctx, "s1", false))
	got, err := store.GetSchedule(ctx, "s1")
	require.NoError(t, err)
	require.False(t, got.Active)

	active, err := store.ListSchedules(ctx, true)
	require.NoError(t, err)
	require.Empty(t, active)

	at := time.Now().UTC()
	require.NoError(t, store.TouchLastRun(ctx, "s1", at))
	got, err = store.GetSchedule(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got.LastRunAt)
	require.Equal(t, at, *got.LastRunAt)

	require.NoError(t, store.DeleteSchedule(ctx, "s1"))
	_, err = store.GetSchedule(ctx, "s1")
	require.ErrorIs(t, err, leads.ErrNotFound)
}

func TestBusinessStore_Paging(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewBusinessStore()
	for _, id := range []string{"p1", "p2", "p3"} {
		require.NoError(t, store.Insert(ctx, leads.Business{ID: id, PlaceID: id, Name: id}))
	}

	page, err := store.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, "p1", page[0].PlaceID)

	page, err = store.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "p3", page[0].PlaceID)

	page, err = store.List(ctx, 2, 5)
	require.NoError(t, err)
	require.Empty(t, page)
}

func TestRawRecordStore_FindByPlaceAndJob(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewRawRecordStore()
	_, err := store.FindByPlaceAndJob(ctx, "p1", "j1")
	require.ErrorIs(t, err, leads.ErrNotFound)

	require.NoError(t, store.Insert(ctx, leads.RawRecord{ID: "r1", PlaceID: "p1", JobID: "j1"}))
	got, err := store.FindByPlaceAndJob(ctx, "p1", "j1")
	require.NoError(t, err)
	require.Equal(t, "r1", got.ID)
}

func TestSettingsStore_UpdateQuota(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSettingsStore(leads.Settings{ConcurrencyLimit: 2, PlacesDailyLimit: 50})

	require.NoError(t, store.UpdateQuota(ctx, leads.QuotaCounter{CallsToday: 7, LastReset: "2026-08-31"}))
	got, err := store.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 7, got.Quota.CallsToday)
	require.Equal(t, "2026-08-31", got.Quota.LastReset)
	require.Equal(t, 2, got.ConcurrencyLimit)
}

func TestBlobStore_PutObject(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "raw/j1.json", "application/json", strings.NewReader(`[]`))
	require.NoError(t, err)
	require.Equal(t, "memory://raw/j1.json", uri)

	content, err := store.GetObject("raw/j1.json")
	require.NoError(t, err)
	require.Equal(t, []byte(`[]`), content)
}

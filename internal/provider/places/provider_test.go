package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/progress"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/storage/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testDay = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

// pageHandler serves one result per request and counts calls.
func pageHandler(t *testing.T, calls *atomic.Int64, nextToken func(call int64) string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/places:searchText", r.URL.Path)
		require.NotEmpty(t, r.Header.Get("X-Goog-Api-Key"))
		require.NotEmpty(t, r.Header.Get("X-Goog-FieldMask"))
		call := calls.Add(1)
		page := SearchPage{
			Places:        []json.RawMessage{json.RawMessage(fmt.Sprintf(`{"id":"places/p%d","nationalPhoneNumber":"555"}`, call))},
			NextPageToken: nextToken(call),
		}
		require.NoError(t, json.NewEncoder(w).Encode(page))
	})
}

// captureEmitter records progress events for assertions.
type captureEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (c *captureEmitter) Emit(evt progress.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *captureEmitter) Events() []progress.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]progress.Event(nil), c.events...)
}

func newProviderEnv(t *testing.T, handler http.Handler, settings leads.Settings) (*Provider, *memory.SettingsStore, *captureEmitter) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := memory.NewSettingsStore(settings)
	emitter := &captureEmitter{}
	provider := NewProvider(
		zap.NewNop(),
		NewClient(server.URL, nil),
		store,
		memory.NewBlobStore(),
		fixedClock{now: testDay},
		emitter,
		t.TempDir(),
	)
	return provider, store, emitter
}

func TestFieldMask_Additive(t *testing.T) {
	t.Parallel()

	basic := FieldMask(leads.FieldsBasic)
	contact := FieldMask(leads.FieldsContact)
	atmosphere := FieldMask(leads.FieldsAtmosphere)

	for _, field := range strings.Split(basic, ",") {
		require.Contains(t, contact, field)
		require.Contains(t, atmosphere, field)
	}
	for _, field := range strings.Split(contact, ",") {
		require.Contains(t, atmosphere, field)
	}
	require.Contains(t, contact, "nationalPhoneNumber")
	require.NotContains(t, basic, "nationalPhoneNumber")
	require.Contains(t, atmosphere, "places.rating")
	require.NotContains(t, contact, "places.rating")
}

func TestCheckLimit_NoAPIKey(t *testing.T) {
	t.Parallel()

	provider, _, _ := newProviderEnv(t, http.NotFoundHandler(), leads.Settings{PlacesDailyLimit: 50})
	allowed, remaining, err := provider.CheckLimit(context.Background())
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)
}

func TestCheckLimit_DayRollover(t *testing.T) {
	t.Parallel()

	provider, store, _ := newProviderEnv(t, http.NotFoundHandler(), leads.Settings{
		PlacesAPIKey:     "key",
		PlacesDailyLimit: 50,
		Quota:            leads.QuotaCounter{CallsToday: 50, LastReset: "2026-08-30"},
	})

	allowed, remaining, err := provider.CheckLimit(context.Background())
	require.NoError(t, err)
	require.True(t, allowed, "yesterday's spent budget does not apply")
	require.Equal(t, 50, remaining)

	settings, err := store.Get(context.Background())
	require.NoError(t, err)
	require.Zero(t, settings.Quota.CallsToday)
	require.Equal(t, "2026-08-31", settings.Quota.LastReset, "rollover is persisted")
}

func TestExecuteScrape_LastQuotaUnit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	provider, store, _ := newProviderEnv(t,
		pageHandler(t, &calls, func(int64) string { return "" }),
		leads.Settings{
			PlacesAPIKey:     "key",
			PlacesDailyLimit: 50,
			Quota:            leads.QuotaCounter{CallsToday: 49, LastReset: "2026-08-31"},
		})

	out, err := provider.ExecuteScrape(context.Background(), leads.ScrapeRequest{
		JobID:   "j1",
		Queries: []string{"cafes in portland"},
		Config:  leads.JobConfig{MaxPages: 1},
	})
	require.NoError(t, err)
	require.Equal(t, leads.ProviderPlaces, out.Provider)
	require.EqualValues(t, 1, calls.Load())

	settings, err := store.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 50, settings.Quota.CallsToday)

	_, err = provider.ExecuteScrape(context.Background(), leads.ScrapeRequest{
		JobID:   "j2",
		Queries: []string{"bars in portland"},
	})
	require.ErrorIs(t, err, ErrQuotaExhausted)

	settings, err = store.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 50, settings.Quota.CallsToday, "rejected call spends nothing")
}

func TestExecuteScrape_NoAPIKey(t *testing.T) {
	t.Parallel()

	provider, _, _ := newProviderEnv(t, http.NotFoundHandler(), leads.Settings{PlacesDailyLimit: 50})
	_, err := provider.ExecuteScrape(context.Background(), leads.ScrapeRequest{JobID: "j1", Queries: []string{"x"}})
	require.ErrorIs(t, err, ErrNoAPIKey)
}

func TestExecuteScrape_HardPageCap(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	// Server always offers another page; the hard cap must stop pagination.
	provider, _, _ := newProviderEnv(t,
		pageHandler(t, &calls, func(call int64) string { return fmt.Sprintf("tok%d", call) }),
		leads.Settings{
			PlacesAPIKey:     "key",
			PlacesDailyLimit: 50,
			Quota:            leads.QuotaCounter{LastReset: "2026-08-31"},
		})

	_, err := provider.ExecuteScrape(context.Background(), leads.ScrapeRequest{
		JobID:   "j1",
		Queries: []string{"cafes"},
		Config:  leads.JobConfig{MaxPages: 10},
	})
	require.NoError(t, err)
	require.EqualValues(t, 3, calls.Load())
}

func TestExecuteScrape_MidPaginationExhaustionKeepsPartial(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	provider, store, _ := newProviderEnv(t,
		pageHandler(t, &calls, func(call int64) string { return fmt.Sprintf("tok%d", call) }),
		leads.Settings{
			PlacesAPIKey:     "key",
			PlacesDailyLimit: 50,
			Quota:            leads.QuotaCounter{CallsToday: 48, LastReset: "2026-08-31"},
		})

	out, err := provider.ExecuteScrape(context.Background(), leads.ScrapeRequest{
		JobID:   "j1",
		Queries: []string{"cafes", "bars"},
		Config:  leads.JobConfig{MaxPages: 3},
	})
	require.NoError(t, err, "partial results already collected survive exhaustion")
	require.EqualValues(t, 2, calls.Load())

	sections := readArtifact(t, out.Path)
	require.Len(t, sections, 1, "the second query never ran")
	require.Equal(t, "cafes", sections[0].Query)
	require.Len(t, sections[0].Items, 2)

	settings, err := store.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 50, settings.Quota.CallsToday)
}

func TestExecuteScrape_StopsOnEmptyPage(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		// Empty page with a token that must not be followed.
		require.NoError(t, json.NewEncoder(w).Encode(SearchPage{NextPageToken: "tok"}))
	})
	provider, _, _ := newProviderEnv(t, handler, leads.Settings{
		PlacesAPIKey:     "key",
		PlacesDailyLimit: 50,
		Quota:            leads.QuotaCounter{LastReset: "2026-08-31"},
	})

	out, err := provider.ExecuteScrape(context.Background(), leads.ScrapeRequest{
		JobID:   "j1",
		Queries: []string{"cafes"},
		Config:  leads.JobConfig{MaxPages: 3},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, calls.Load())

	sections := readArtifact(t, out.Path)
	require.Len(t, sections, 1)
	require.Equal(t, "cafes", sections[0].Query)
	require.Empty(t, sections[0].Items)
}

func TestExecuteScrape_ArtifactAttributesQueries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	provider, _, _ := newProviderEnv(t,
		pageHandler(t, &calls, func(int64) string { return "" }),
		leads.Settings{
			PlacesAPIKey:     "key",
			PlacesDailyLimit: 50,
			Quota:            leads.QuotaCounter{LastReset: "2026-08-31"},
		})

	out, err := provider.ExecuteScrape(context.Background(), leads.ScrapeRequest{
		JobID:   "j1",
		Queries: []string{"cafes", "bars"},
		Config:  leads.JobConfig{MaxPages: 1},
	})
	require.NoError(t, err)

	sections := readArtifact(t, out.Path)
	require.Len(t, sections, 2)
	require.Equal(t, "cafes", sections[0].Query)
	require.Len(t, sections[0].Items, 1)
	require.Equal(t, "bars", sections[1].Query)
	require.Len(t, sections[1].Items, 1)
}

func TestExecuteScrape_EmitsPageEvents(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	// First page offers a follow-up token, second does not.
	provider, _, emitter := newProviderEnv(t,
		pageHandler(t, &calls, func(call int64) string {
			if call == 1 {
				return "tok1"
			}
			return ""
		}),
		leads.Settings{
			PlacesAPIKey:     "key",
			PlacesDailyLimit: 50,
			Quota:            leads.QuotaCounter{LastReset: "2026-08-31"},
		})

	_, err := provider.ExecuteScrape(context.Background(), leads.ScrapeRequest{
		JobID:   "j1",
		Queries: []string{"cafes"},
		Config:  leads.JobConfig{MaxPages: 3},
	})
	require.NoError(t, err)

	events := emitter.Events()
	require.Len(t, events, 2, "one event per fetched page")
	for _, evt := range events {
		require.Equal(t, progress.StageProviderPage, evt.Stage)
		require.Equal(t, leads.ProviderPlaces, evt.Provider)
		require.Equal(t, "j1", evt.JobID)
		require.Equal(t, "cafes", evt.Query)
		require.EqualValues(t, 1, evt.Items)
		require.NoError(t, evt.Validate())
	}
}

func readArtifact(t *testing.T, path string) []artifactSection {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	var sections []artifactSection
	require.NoError(t, json.Unmarshal(content, &sections))
	return sections
}

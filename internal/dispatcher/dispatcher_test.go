package dispatcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/hash/sha256"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/id/uuid"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/merge"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/storage/memory"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type fakeProvider struct {
	kind    leads.ProviderType
	content string
	err     error
	called  bool
	dir     string
}

func (p *fakeProvider) Type() leads.ProviderType { return p.kind }

func (p *fakeProvider) ExecuteScrape(_ context.Context, req leads.ScrapeRequest) (leads.RawOutput, error) {
	p.called = true
	if p.err != nil {
		return leads.RawOutput{}, p.err
	}
	path := filepath.Join(p.dir, string(p.kind)+"_"+req.JobID+".json")
	if err := os.WriteFile(path, []byte(p.content), 0o644); err != nil {
		return leads.RawOutput{}, err
	}
	return leads.RawOutput{Path: path, Provider: p.kind}, nil
}

func newDispatcherEnv(t *testing.T, settings leads.Settings, providers ...leads.Provider) (*Dispatcher, *memory.BusinessStore) {
	t.Helper()
	businesses := memory.NewBusinessStore()
	engine := merge.NewEngine(
		zap.NewNop(),
		businesses,
		memory.NewRawRecordStore(),
		uuid.NewUUIDGenerator(),
		systemClock{},
		sha256.New(),
	)
	d := New(zap.NewNop(), memory.NewSettingsStore(settings), engine, nil, systemClock{}, providers...)
	return d, businesses
}

func TestDispatch_ExplicitProvider(t *testing.T) {
	t.Parallel()

	browser := &fakeProvider{kind: leads.ProviderBrowser, dir: t.TempDir(), content: `[{"place_id":"p1","phone":"555"}]`}
	places := &fakeProvider{kind: leads.ProviderPlaces, dir: t.TempDir(), content: `[]`}
	d, businesses := newDispatcherEnv(t, leads.Settings{DefaultProvider: leads.ProviderPlaces}, browser, places)

	counters, err := d.Dispatch(context.Background(), leads.Job{
		ID:       "j1",
		Provider: leads.ProviderBrowser,
		Queries:  []string{"plumbers in austin"},
	})
	require.NoError(t, err)
	require.True(t, browser.called)
	require.False(t, places.called)
	require.Equal(t, leads.JobCounters{Total: 1, New: 1}, counters)

	b, err := businesses.GetByPlaceID(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, []leads.ProviderType{leads.ProviderBrowser}, b.Lineage)
}

func TestDispatch_FallsBackToDefaultProvider(t *testing.T) {
	t.Parallel()

	places := &fakeProvider{kind: leads.ProviderPlaces, dir: t.TempDir(), content: `[{"place_id":"p2","website":"https://w"}]`}
	d, _ := newDispatcherEnv(t, leads.Settings{DefaultProvider: leads.ProviderPlaces}, places)

	counters, err := d.Dispatch(context.Background(), leads.Job{ID: "j1", Queries: []string{"cafes"}})
	require.NoError(t, err)
	require.True(t, places.called)
	require.Equal(t, 1, counters.New)
}

func TestDispatch_UnknownProvider(t *testing.T) {
	t.Parallel()

	d, _ := newDispatcherEnv(t, leads.Settings{DefaultProvider: leads.ProviderPlaces})
	_, err := d.Dispatch(context.Background(), leads.Job{ID: "j1", Queries: []string{"cafes"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no provider registered")
}

func TestDispatch_ProviderFailurePropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("quota exhausted")
	places := &fakeProvider{kind: leads.ProviderPlaces, err: boom}
	d, _ := newDispatcherEnv(t, leads.Settings{}, places)

	_, err := d.Dispatch(context.Background(), leads.Job{ID: "j1", Provider: leads.ProviderPlaces})
	require.ErrorIs(t, err, boom)
}
